package scene

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/game_object"
	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

func newCube(t *testing.T) model.Model {
	t.Helper()
	b := software.NewSoftwareBackend()
	t.Cleanup(b.Release)
	m, err := model.NewModel(b, model.Cube(1))
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func visitNames(t *testing.T, s Scene) []string {
	t.Helper()
	var names []string
	err := s.VisitVisible(s.Camera().ViewProjection(), func(o gbuffer.Object) error {
		names = append(names, o.Name())
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return names
}

func TestVisitVisible(t *testing.T) {
	cube := newCube(t)
	objects := func() []game_object.GameObject {
		return []game_object.GameObject{
			game_object.NewGameObject(game_object.WithName("front"), game_object.WithModel(cube), game_object.WithPosition(0, 0, -5)),
			game_object.NewGameObject(game_object.WithName("behind"), game_object.WithModel(cube), game_object.WithPosition(0, 0, 5)),
			game_object.NewGameObject(game_object.WithName("far left"), game_object.WithModel(cube), game_object.WithPosition(-50, 0, -5)),
			game_object.NewGameObject(game_object.WithName("disabled"), game_object.WithModel(cube), game_object.WithPosition(0, 0, -8), game_object.WithEnabled(false)),
			game_object.NewGameObject(game_object.WithName("no model"), game_object.WithPosition(0, 0, -5)),
			game_object.NewGameObject(game_object.WithName("edge"), game_object.WithModel(cube), game_object.WithPosition(2.6, 0, -5)),
		}
	}

	tests := []struct {
		name    string
		options []SceneBuilderOption
		want    []string
	}{
		{name: "culled", want: []string{"front", "edge"}},
		{name: "culling disabled", options: []SceneBuilderOption{WithCullingDisabled(true)}, want: []string{"front", "behind", "far left", "edge"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := append([]SceneBuilderOption{WithObjects(objects()...)}, tt.options...)
			s := NewScene("test", camera.NewCamera(), options...)

			got := visitNames(t, s)
			if len(got) != len(tt.want) {
				t.Fatalf("visited %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("visit %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
			if s.Visible() != len(tt.want) {
				t.Errorf("Visible() = %d, want %d", s.Visible(), len(tt.want))
			}
		})
	}
}

func TestVisitVisibleStopsAtFirstError(t *testing.T) {
	cube := newCube(t)
	s := NewScene("test", camera.NewCamera(), WithCullingDisabled(true))
	for range 3 {
		s.Add(game_object.NewGameObject(game_object.WithModel(cube)))
	}

	stop := errors.New("stop")
	calls := 0
	err := s.VisitVisible(mgl32.Ident4(), func(gbuffer.Object) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("VisitVisible() = %v after %d calls, want stop after 1", err, calls)
	}
}

func TestRegistry(t *testing.T) {
	s := NewScene("test", camera.NewCamera())

	a := s.Add(game_object.NewGameObject())
	b := s.Add(game_object.NewGameObject())
	c := s.Add(game_object.NewGameObject(game_object.WithID(10)))
	d := s.Add(game_object.NewGameObject())

	if a != 1 || b != 2 || c != 10 || d != 11 {
		t.Errorf("assigned IDs %d, %d, %d, %d, want 1, 2, 10, 11", a, b, c, d)
	}
	if s.Count() != 4 {
		t.Errorf("Count() = %d, want 4", s.Count())
	}
	if s.Get(b) == nil || s.Get(99) != nil {
		t.Error("Get() returned the wrong objects")
	}
	if !s.Remove(b) || s.Remove(b) {
		t.Error("Remove() should succeed once")
	}
	s.Clear()
	if s.Count() != 0 {
		t.Errorf("Count() after Clear() = %d", s.Count())
	}
}

func TestUpdate(t *testing.T) {
	l := light.NewLight(light.WithPosition(2, 0, 0), light.WithOrbit(mgl32.Vec3{}, 1))
	s := NewScene("test", camera.NewCamera(), WithUpdateWorkers(3), WithLight(l))

	var objs []game_object.GameObject
	for range 10 {
		o := game_object.NewGameObject(game_object.WithRotationSpeed(0, 1, 0))
		objs = append(objs, o)
		s.Add(o)
	}
	frozen := game_object.NewGameObject(game_object.WithRotationSpeed(1, 0, 0), game_object.WithEnabled(false))
	s.Add(frozen)

	s.Update(0.25)
	s.Update(0.25)

	for i, o := range objs {
		if got := o.Rotation().Y(); mgl32.Abs(got-0.5) > 1e-5 {
			t.Errorf("object %d rotation = %f, want 0.5", i, got)
		}
	}
	if frozen.Rotation() != (mgl32.Vec3{}) {
		t.Error("disabled object was updated")
	}
	if l.Position() == (mgl32.Vec3{2, 0, 0}) {
		t.Error("scene light did not orbit")
	}
}
