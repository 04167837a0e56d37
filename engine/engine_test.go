package engine

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/camera"
	"github.com/Carmen-Shannon/oxy-deferred/engine/game_object"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/postprocess"
	"github.com/Carmen-Shannon/oxy-deferred/engine/scene"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// newTestEngine builds a headless engine rendering one cube 5 units in front of the camera.
func newTestEngine(t *testing.T, options ...EngineBuilderOption) (Engine, software.SoftwareBackend, scene.Scene) {
	t.Helper()
	b := software.NewSoftwareBackend(software.WithWorkers(2))
	r, err := renderer.NewRenderer(b, 16, 12)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(r.Release)

	cube, err := model.NewModel(b, model.Cube(1))
	if err != nil {
		t.Fatal(err)
	}
	s := scene.NewScene("test", camera.NewCamera(camera.WithAspect(16.0/12.0)),
		scene.WithUpdateWorkers(1),
		scene.WithObjects(game_object.NewGameObject(game_object.WithModel(cube), game_object.WithPosition(0, 0, -5))),
	)

	e := NewEngine(r, append([]EngineBuilderOption{WithScene(s)}, options...)...)
	return e, b, s
}

func TestRenderFrame(t *testing.T) {
	e, b, s := newTestEngine(t)

	for range 3 {
		if err := e.RenderFrame(1.0 / 60); err != nil {
			t.Fatalf("RenderFrame() failed: %v", err)
		}
	}

	if e.Frames() != 3 {
		t.Errorf("Frames() = %d, want 3", e.Frames())
	}
	stats := b.Stats()
	if stats.Presents != 3 || stats.Passes != 6 || stats.Flushes != 3 {
		t.Errorf("stats = %+v, want 3 presents, 6 passes, 3 flushes", stats)
	}
	if s.Visible() != 1 {
		t.Errorf("scene drew %d objects, want 1", s.Visible())
	}
	if center := b.Snapshot().RGBAAt(8, 6); center.R == 0 || center.R != center.G {
		t.Errorf("lit cube pixel = %v, want grey", center)
	}
}

func TestRequestResize(t *testing.T) {
	tests := []struct {
		name       string
		requests   [][2]int
		wantWidth  int
		wantHeight int
	}{
		{"none", nil, 16, 12},
		{"single", [][2]int{{32, 24}}, 32, 24},
		{"latest wins", [][2]int{{20, 10}, {8, 8}, {40, 20}}, 40, 20},
		{"minimized ignored", [][2]int{{32, 24}, {0, 0}}, 32, 24},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, b, s := newTestEngine(t)
			for _, req := range tt.requests {
				e.RequestResize(req[0], req[1])
			}

			if err := e.RenderFrame(0.01); err != nil {
				t.Fatal(err)
			}

			if w, h := b.OutputSize(); w != tt.wantWidth || h != tt.wantHeight {
				t.Errorf("output = %dx%d, want %dx%d", w, h, tt.wantWidth, tt.wantHeight)
			}
			desc, err := e.Renderer().Surfaces().Describe(e.Renderer().Layout().Color())
			if err != nil {
				t.Fatal(err)
			}
			if desc.Width != tt.wantWidth || desc.Height != tt.wantHeight {
				t.Errorf("G-buffer color = %dx%d, want %dx%d", desc.Width, desc.Height, tt.wantWidth, tt.wantHeight)
			}
			wantAspect := float32(tt.wantWidth) / float32(tt.wantHeight)
			if got := s.Camera().Aspect(); mgl32.Abs(got-wantAspect) > 1e-5 {
				t.Errorf("camera aspect = %f, want %f", got, wantAspect)
			}
		})
	}
}

func TestRequestEffect(t *testing.T) {
	tests := []struct {
		name     string
		requests []string
		want     string
	}{
		{"none", nil, postprocess.EffectDeferredShading},
		{"single", []string{postprocess.EffectToneMap}, postprocess.EffectToneMap},
		{"latest wins", []string{postprocess.EffectToneMap, postprocess.EffectCartoon}, postprocess.EffectCartoon},
		{"unknown keeps active", []string{postprocess.EffectToneMap, "sharpen"}, postprocess.EffectDeferredShading},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _, _ := newTestEngine(t)
			for _, name := range tt.requests {
				e.RequestEffect(name)
			}
			if got := e.Renderer().ActiveEffect(); got != postprocess.EffectDeferredShading {
				t.Fatalf("effect changed to %q before the next frame", got)
			}
			if err := e.RenderFrame(0.01); err != nil {
				t.Fatal(err)
			}
			if got := e.Renderer().ActiveEffect(); got != tt.want {
				t.Errorf("ActiveEffect() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNumberKeysSelectEffects(t *testing.T) {
	e, _, _ := newTestEngine(t)
	impl := e.(*engine)

	impl.handleKey(common.Key2)
	impl.handleKey(common.Key9)
	impl.handleKey(common.KeyW)
	if err := e.RenderFrame(0.01); err != nil {
		t.Fatal(err)
	}
	if got, want := e.Renderer().ActiveEffect(), e.Renderer().Effects()[1]; got != want {
		t.Errorf("ActiveEffect() = %q, want %q", got, want)
	}
}

func TestArrowKeysOrbitCamera(t *testing.T) {
	e, _, s := newTestEngine(t)
	impl := e.(*engine)

	impl.handleKey(common.KeyLeft)
	if got := e.Renderer().ActiveEffect(); got != postprocess.EffectDeferredShading {
		t.Errorf("arrow key without a controller changed effect to %q", got)
	}

	ctrl := camera.NewOrbitController(camera.WithRadius(5))
	s.Camera().SetController(ctrl)
	azimuth, elevation := ctrl.Azimuth(), ctrl.Elevation()

	impl.handleKey(common.KeyLeft)
	if ctrl.Azimuth() == azimuth {
		t.Error("KeyLeft did not change azimuth")
	}
	impl.handleKey(common.KeyUp)
	if ctrl.Elevation() == elevation {
		t.Error("KeyUp did not change elevation")
	}
}

type failingScene struct{}

func (failingScene) VisitVisible(mgl32.Mat4, func(gbuffer.Object) error) error {
	return errors.New("scene exploded")
}

func TestRenderFrameError(t *testing.T) {
	e, b, _ := newTestEngine(t)
	e.Renderer().SetScene(failingScene{})

	if err := e.RenderFrame(0.01); err == nil {
		t.Fatal("RenderFrame() succeeded with a failing scene")
	}
	if e.Frames() != 0 {
		t.Errorf("Frames() = %d after a failed frame", e.Frames())
	}

	e.SetScene(nil)
	if err := e.RenderFrame(0.01); err != nil {
		t.Fatalf("RenderFrame() after recovery failed: %v", err)
	}
	if b.Stats().Presents != 2 {
		t.Errorf("presents = %d, want 2", b.Stats().Presents)
	}
}

func TestRenderFrameRejectsDegenerateCamera(t *testing.T) {
	e, b, s := newTestEngine(t)
	s.Camera().SetNear(0)

	err := e.RenderFrame(0.01)
	if !errors.Is(err, common.ErrNotPerspective) {
		t.Fatalf("RenderFrame() with near plane 0 error = %v, want ErrNotPerspective", err)
	}
	if e.Frames() != 0 || b.Stats().Frames != 0 {
		t.Errorf("frame started with a rejected camera: frames %d, backend frames %d", e.Frames(), b.Stats().Frames)
	}

	s.Camera().SetNear(0.1)
	if err := e.RenderFrame(0.01); err != nil {
		t.Fatalf("RenderFrame() after fixing the camera failed: %v", err)
	}
}

func TestRunAndQuit(t *testing.T) {
	var ticks atomic.Int32
	e, _, _ := newTestEngine(t, WithTickRate(500), WithProfiling(true))
	e.SetTickCallback(func(float32) { ticks.Add(1) })
	e.SetRenderCallback(func(float32) {
		if e.Frames() >= 5 && ticks.Load() > 0 {
			e.Quit()
		}
	})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.Quit()
		t.Fatal("Run() did not return after Quit()")
	}

	e.Quit()
	if e.Err() != nil {
		t.Errorf("Err() = %v", e.Err())
	}
	if e.Frames() < 5 {
		t.Errorf("Frames() = %d, want at least 5", e.Frames())
	}
}

func TestRunStopsOnFrameError(t *testing.T) {
	e, _, _ := newTestEngine(t)
	e.Renderer().SetScene(failingScene{})

	done := make(chan struct{})
	go func() {
		e.Run()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		e.Quit()
		t.Fatal("Run() kept going after a frame error")
	}
	if e.Err() == nil {
		t.Error("Err() = nil after a failed frame")
	}
}
