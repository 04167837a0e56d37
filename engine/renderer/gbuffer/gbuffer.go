// Package gbuffer implements the geometry pass of the deferred pipeline.
//
// The pass renders every visible scene object into two color surfaces at once: diffuse color
// with specular intensity, and view-space normal with normalized linear depth. Effects read
// both surfaces afterwards.
package gbuffer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// Clear is the clear issued when the G-buffer is bound: color surfaces to (0, 0, 1, 1), which
// reads as the far plane in the normal-depth surface, and depth to 1.
var Clear = backend.ClearOp{
	Flags:   backend.ClearColor | backend.ClearDepth | backend.ClearStencil,
	Color:   gputypes.Color{R: 0, G: 0, B: 1, A: 1},
	Depth:   1,
	Stencil: 0,
}

// Material is the surface description written to the color surface.
type Material struct {
	Diffuse  mgl32.Vec3
	Specular float32
}

// Object is a drawable scene object.
type Object interface {
	Name() string
	Mesh() backend.Mesh
	ModelMatrix() mgl32.Mat4
	Material() Material
}

// Scene supplies the objects to draw. Culling is the scene's job.
type Scene interface {
	// VisitVisible calls fn once for every object visible through viewProj and stops at the
	// first error.
	//
	// Parameters:
	//   - viewProj: the projection * view matrix of the camera
	//   - fn: the per-object callback
	//
	// Returns:
	//   - error: the first error returned by fn
	VisitVisible(viewProj mgl32.Mat4, fn func(Object) error) error
}

// gbufferPass is the implementation of the Pass interface.
type gbufferPass struct {
	mu *sync.Mutex

	backend backend.Backend
	layout  *Layout
	program backend.GeometryProgram
	drawn   int
}

// Pass draws scene geometry into a Layout.
type Pass interface {
	// Layout returns the surfaces the pass writes.
	Layout() *Layout

	// Execute draws every visible object of the scene. The G-buffer frame buffer must already be
	// bound (the pass scheduler does this).
	// For each object the model-view matrix is view * model, and the depth triple is recovered
	// from the perspective projection.
	//
	// Parameters:
	//   - scene: the objects to draw
	//   - view: the camera view matrix
	//   - proj: the camera perspective projection matrix
	//
	// Returns:
	//   - error: common.ErrNotPerspective if proj is not a perspective projection, or the first
	//     draw or scene error
	Execute(scene Scene, view, proj mgl32.Mat4) error

	// Drawn returns how many objects the last Execute drew.
	Drawn() int
}

var _ Pass = &gbufferPass{}

// NewPass creates the G-buffer pass over an allocated layout.
//
// Parameters:
//   - b: the backend to draw with
//   - layout: the surfaces to write
//
// Returns:
//   - Pass: the new G-buffer pass
func NewPass(b backend.Backend, layout *Layout) Pass {
	return &gbufferPass{
		mu:      &sync.Mutex{},
		backend: b,
		layout:  layout,
		program: Program(),
	}
}

func (g *gbufferPass) Layout() *Layout {
	return g.layout
}

func (g *gbufferPass) Execute(scene Scene, view, proj mgl32.Mat4) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.drawn = 0
	params, err := common.DepthParamsFromProjection(proj)
	if err != nil {
		return errors.Wrap(err, "g-buffer depth range")
	}
	depth := params.Vec3().Vec4(0)
	drawn := 0
	err = scene.VisitVisible(proj.Mul4(view), func(o Object) error {
		mat := o.Material()
		modelView := view.Mul4(o.ModelMatrix())
		uniforms := backend.GeometryUniforms{
			ModelView: modelView,
			Normal:    NormalMatrix(modelView),
			Proj:      proj,
			Depth:     depth,
			Material:  mat.Diffuse.Vec4(mat.Specular),
		}
		if err := g.backend.DrawMesh(o.Mesh(), g.program, uniforms); err != nil {
			return errors.Wrapf(err, "draw %q", o.Name())
		}
		drawn++
		return nil
	})
	g.drawn = drawn
	return err
}

// NormalMatrix returns the matrix that carries object-space normals into view space: the
// inverse-transpose of the upper 3x3 of modelView. It stays correct under non-uniform scale.
func NormalMatrix(modelView mgl32.Mat4) mgl32.Mat4 {
	return modelView.Mat3().Inv().Transpose().Mat4()
}

func (g *gbufferPass) Drawn() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.drawn
}
