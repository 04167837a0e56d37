package gbuffer

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

type testObject struct {
	name     string
	mesh     backend.Mesh
	model    mgl32.Mat4
	material Material
	visible  bool
}

func (o *testObject) Name() string            { return o.name }
func (o *testObject) Mesh() backend.Mesh      { return o.mesh }
func (o *testObject) ModelMatrix() mgl32.Mat4 { return o.model }
func (o *testObject) Material() Material      { return o.material }

type testScene struct {
	objects []*testObject
}

func (s *testScene) VisitVisible(_ mgl32.Mat4, fn func(Object) error) error {
	for _, o := range s.objects {
		if !o.visible {
			continue
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	return nil
}

func quadMesh(t *testing.T, b backend.Backend) backend.Mesh {
	t.Helper()
	n := mgl32.Vec3{0, 0, 1}
	m, err := b.UploadMesh(backend.MeshData{
		Label:     "quad",
		Positions: []mgl32.Vec3{{-1, -1, 0}, {1, -1, 0}, {1, 1, 0}, {-1, 1, 0}},
		Normals:   []mgl32.Vec3{n, n, n, n},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newLayout(t *testing.T, b software.SoftwareBackend, w, h int) (surface.Manager, *Layout) {
	t.Helper()
	m := surface.NewManager(b)
	l, err := NewLayout(m, b.Capabilities(), w, h)
	if err != nil {
		t.Fatalf("NewLayout() failed: %v", err)
	}
	return m, l
}

func TestNewLayoutAllocationOrder(t *testing.T) {
	b := software.NewSoftwareBackend()
	m, l := newLayout(t, b, 16, 8)

	want := []struct {
		handle surface.Handle
		label  string
		format gputypes.TextureFormat
	}{
		{l.Color(), "G-Buffer Color", ColorFormat},
		{l.NormalDepth(), "G-Buffer Normal Depth", ColorFormat},
		{l.DepthStencil(), "G-Buffer Depth Stencil", gputypes.TextureFormatDepth32Float},
	}
	for i, w := range want {
		d, err := m.Describe(w.handle)
		if err != nil {
			t.Fatalf("surface %d: %v", i, err)
		}
		if d.Label != w.label || d.Format != w.format || d.Width != 16 || d.Height != 8 || !d.FollowOutput {
			t.Errorf("surface %d = %+v", i, d)
		}
		tex, _ := m.Texture(w.handle)
		if st := b.Stats(); tex == nil || st.TexturesCreated != 3 {
			t.Errorf("surface %d texture %v, created %d", i, tex, st.TexturesCreated)
		}
	}
}

func TestNewLayoutFallsBackAndFails(t *testing.T) {
	b := software.NewSoftwareBackend(software.WithoutFormat(gputypes.TextureFormatDepth32Float))
	m, l := newLayout(t, b, 4, 4)
	d, err := m.Describe(l.DepthStencil())
	if err != nil {
		t.Fatal(err)
	}
	if d.Format != gputypes.TextureFormatDepth24Plus {
		t.Errorf("depth format = %v, want Depth24Plus", d.Format)
	}

	opts := []software.SoftwareBackendBuilderOption{software.WithWorkers(1)}
	for _, f := range DepthFormats {
		opts = append(opts, software.WithoutFormat(f))
	}
	nb := software.NewSoftwareBackend(opts...)
	_, err = NewLayout(surface.NewManager(nb), nb.Capabilities(), 4, 4)
	if !errors.Is(err, surface.ErrAllocation) {
		t.Errorf("NewLayout() without depth formats error = %v, want ErrAllocation", err)
	}
	if got := nb.Stats().TexturesCreated; got != 0 {
		t.Errorf("textures created = %d, want 0", got)
	}
}

func TestExecuteVisitsVisibleObjects(t *testing.T) {
	b := software.NewSoftwareBackend()
	if err := b.ConfigureOutput(8, 8); err != nil {
		t.Fatal(err)
	}
	m, l := newLayout(t, b, 8, 8)
	mesh := quadMesh(t, b)

	scene := &testScene{}
	for i := range 5 {
		scene.objects = append(scene.objects, &testObject{
			name:    "quad",
			mesh:    mesh,
			model:   mgl32.Translate3D(0, 0, -5-float32(i)),
			visible: i%2 == 0,
		})
	}

	p := NewPass(b, l)
	target, err := m.RenderTarget(l.FrameBuffer())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := b.BeginPass(target, Clear); err != nil {
		t.Fatal(err)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 10)
	if err := p.Execute(scene, mgl32.Ident4(), proj); err != nil {
		t.Fatal(err)
	}
	if got := p.Drawn(); got != 3 {
		t.Errorf("Drawn() = %d, want 3", got)
	}
	if got := b.Stats().DrawCalls; got != 3 {
		t.Errorf("draw calls = %d, want 3", got)
	}
}

func TestExecuteWritesBothColorSurfaces(t *testing.T) {
	b := software.NewSoftwareBackend()
	if err := b.ConfigureOutput(8, 8); err != nil {
		t.Fatal(err)
	}
	m, l := newLayout(t, b, 8, 8)
	material := Material{Diffuse: mgl32.Vec3{0.8, 0.4, 0.2}, Specular: 0.6}
	scene := &testScene{objects: []*testObject{{
		name:     "quad",
		mesh:     quadMesh(t, b),
		model:    mgl32.Translate3D(0, 0, -5),
		material: material,
		visible:  true,
	}}}

	target, err := m.RenderTarget(l.FrameBuffer())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := b.BeginPass(target, Clear); err != nil {
		t.Fatal(err)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 1, 10)
	if err := NewPass(b, l).Execute(scene, mgl32.Ident4(), proj); err != nil {
		t.Fatal(err)
	}
	if err := b.EndPass(); err != nil {
		t.Fatal(err)
	}

	read := func(h surface.Handle, x, y int) mgl32.Vec4 {
		tex, err := m.Texture(h)
		if err != nil {
			t.Fatal(err)
		}
		v, err := b.ReadTexel(tex, x, y)
		if err != nil {
			t.Fatal(err)
		}
		return v
	}

	if got, want := read(l.Color(), 4, 4), material.Diffuse.Vec4(material.Specular); got.Sub(want).Len() > 1e-5 {
		t.Errorf("color = %v, want %v", got, want)
	}
	nd := read(l.NormalDepth(), 4, 4)
	if n := common.DecodeNormal(nd.Vec3()); n.Sub(mgl32.Vec3{0, 0, 1}).Len() > 1e-4 {
		t.Errorf("decoded normal = %v, want +z", n)
	}
	if mgl32.Abs(nd.W()-0.5) > 1e-4 {
		t.Errorf("stored depth = %v, want 0.5", nd.W())
	}

	if got := read(l.Color(), 0, 0); got != (mgl32.Vec4{0, 0, 1, 1}) {
		t.Errorf("background color = %v, want clear value", got)
	}
	if got := read(l.NormalDepth(), 0, 0).W(); got != 1 {
		t.Errorf("background depth = %v, want far plane", got)
	}
}

func TestExecuteStopsOnDrawError(t *testing.T) {
	b := software.NewSoftwareBackend()
	_, l := newLayout(t, b, 4, 4)
	scene := &testScene{objects: []*testObject{{name: "quad", mesh: quadMesh(t, b), model: mgl32.Ident4(), visible: true}}}

	err := NewPass(b, l).Execute(scene, mgl32.Ident4(), mgl32.Perspective(1, 1, 1, 10))
	if !errors.Is(err, backend.ErrNoPass) {
		t.Errorf("Execute() without a bound pass error = %v, want ErrNoPass", err)
	}
}

func TestNormalMatrixUnderNonUniformScale(t *testing.T) {
	tilt := mgl32.HomogRotate3DY(mgl32.DegToRad(45))
	want := mgl32.Vec3{3, 0, 1}.Normalize()

	tests := []struct {
		name      string
		modelView mgl32.Mat4
		normal    mgl32.Vec3
		want      mgl32.Vec3
	}{
		{"identity", mgl32.Ident4(), mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 0, 1}},
		{"rotation only", tilt, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 1}.Normalize()},
		{"tilted then stretched in z", mgl32.Scale3D(1, 1, 3).Mul4(tilt), mgl32.Vec3{0, 0, 1}, want},
		{"translation ignored", mgl32.Translate3D(4, 5, 6), mgl32.Vec3{0, 1, 0}, mgl32.Vec3{0, 1, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalMatrix(tt.modelView).Mat3().Mul3x1(tt.normal).Normalize()
			if got.Sub(tt.want).Len() > 1e-4 {
				t.Errorf("normal = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExecuteStoresTrueNormalOfStretchedPlane(t *testing.T) {
	b := software.NewSoftwareBackend()
	if err := b.ConfigureOutput(8, 8); err != nil {
		t.Fatal(err)
	}
	m, l := newLayout(t, b, 8, 8)

	// A quad widened in x, tilted 45 degrees about y, then stretched 3x along view z.
	model := mgl32.Translate3D(0, 0, -5).
		Mul4(mgl32.Scale3D(1, 1, 3)).
		Mul4(mgl32.HomogRotate3DY(mgl32.DegToRad(45))).
		Mul4(mgl32.Scale3D(2, 1, 1))
	scene := &testScene{objects: []*testObject{{name: "plane", mesh: quadMesh(t, b), model: model, visible: true}}}

	target, err := m.RenderTarget(l.FrameBuffer())
	if err != nil {
		t.Fatal(err)
	}
	if err := b.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := b.BeginPass(target, Clear); err != nil {
		t.Fatal(err)
	}
	proj := mgl32.Perspective(mgl32.DegToRad(90), 1, 0.5, 20)
	if err := NewPass(b, l).Execute(scene, mgl32.Ident4(), proj); err != nil {
		t.Fatal(err)
	}
	if err := b.EndPass(); err != nil {
		t.Fatal(err)
	}

	tex, err := m.Texture(l.NormalDepth())
	if err != nil {
		t.Fatal(err)
	}
	nd, err := b.ReadTexel(tex, 4, 4)
	if err != nil {
		t.Fatal(err)
	}
	if nd.W() >= 1 {
		t.Fatalf("center pixel not covered, stored depth %v", nd.W())
	}
	want := mgl32.Vec3{3, 0, 1}.Normalize()
	if got := common.DecodeNormal(nd.Vec3()); got.Sub(want).Len() > 1e-3 {
		t.Errorf("stored normal = %v, want %v", got, want)
	}
}

func TestExecuteRejectsNonPerspectiveProjection(t *testing.T) {
	b := software.NewSoftwareBackend()
	_, l := newLayout(t, b, 4, 4)
	scene := &testScene{objects: []*testObject{{name: "quad", mesh: quadMesh(t, b), model: mgl32.Ident4(), visible: true}}}

	p := NewPass(b, l)
	err := p.Execute(scene, mgl32.Ident4(), mgl32.Ortho(-1, 1, -1, 1, 0.1, 10))
	if !errors.Is(err, common.ErrNotPerspective) {
		t.Errorf("Execute() with orthographic projection error = %v, want ErrNotPerspective", err)
	}
	if p.Drawn() != 0 || b.Stats().DrawCalls != 0 {
		t.Errorf("drew %d objects with an invalid projection", p.Drawn())
	}
}
