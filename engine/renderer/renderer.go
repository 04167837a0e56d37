package renderer

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/pass"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/postprocess"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pass indices of the deferred pipeline.
const (
	// PassGBuffer renders scene geometry into the G-buffer.
	PassGBuffer = 0
	// PassPresent applies the active effect into the default output.
	PassPresent = 1
)

// ErrReleased is returned by every frame call after Release.
var ErrReleased = errors.New("renderer released")

// extraEffect is an effect added through WithEffect.
type extraEffect struct {
	factory  EffectFactory
	bindings []postprocess.PinBinding
}

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	id        uuid.UUID
	backend   backend.Backend
	surfaces  surface.Manager
	layout    *gbuffer.Layout
	geometry  gbuffer.Pass
	scheduler pass.Scheduler
	graph     postprocess.Graph

	// Pre-creation config collected from builder options
	timer         pass.Timer
	defaultEffect string
	extraEffects  []extraEffect
	presentClear  gputypes.Color

	scene gbuffer.Scene
	view  mgl32.Mat4
	proj  mgl32.Mat4
	depth common.DepthParams
	light mgl32.Vec3

	frame    pass.Frame
	inFrame  bool
	released bool
}

// Renderer is the pipeline context of the deferred renderer.
//
// It owns the backend, the surface manager, the G-buffer, the pass scheduler and the effect graph,
// and exposes the frame as explicit steps: BeginFrame, RunPass for each pass (with Flush between
// passes that return NeedFlush), then EndFrame. Nothing is shared between Renderer instances.
type Renderer interface {
	// ID returns the unique id of this renderer, used to tell instances apart in logs.
	ID() uuid.UUID

	// Backend returns the backend the renderer draws with.
	Backend() backend.Backend

	// Surfaces returns the surface manager owning the G-buffer.
	Surfaces() surface.Manager

	// Layout returns the G-buffer surfaces.
	Layout() *gbuffer.Layout

	// Graph returns the post-processing effect graph.
	Graph() postprocess.Graph

	// Scheduler returns the pass scheduler.
	Scheduler() pass.Scheduler

	// SetScene sets the objects the G-buffer pass draws. A nil scene draws nothing.
	//
	// Parameters:
	//   - scene: the scene to draw
	SetScene(scene gbuffer.Scene)

	// SetCamera sets the view and perspective projection used by the next frame. A projection
	// whose clip planes cannot be recovered is rejected and the previous camera is kept.
	//
	// Parameters:
	//   - view: the world to view transform
	//   - proj: the perspective projection
	//
	// Returns:
	//   - error: common.ErrNotPerspective if proj is not a finite perspective projection
	SetCamera(view, proj mgl32.Mat4) error

	// SetLight sets the world-space position of the point light used by the lit effects.
	//
	// Parameters:
	//   - position: the light position in world space
	SetLight(position mgl32.Vec3)

	// SetActiveEffect selects the effect the present pass applies.
	//
	// Parameters:
	//   - name: the effect name
	//
	// Returns:
	//   - error: postprocess.ErrUnknownEffect if no such effect exists; the active effect is unchanged
	SetActiveEffect(name string) error

	// ActiveEffect returns the name of the active effect.
	ActiveEffect() string

	// Effects returns every registered effect name in registration order.
	Effects() []string

	// Resize reconfigures the default output, reallocates the G-buffer at the new size and
	// rewires every effect pin to the new surfaces. It must not be called during a frame.
	//
	// Parameters:
	//   - width: the new width in pixels
	//   - height: the new height in pixels
	//
	// Returns:
	//   - error: backend.ErrFrameInFlight during a frame, or a surface or backend error
	Resize(width, height int) error

	// BeginFrame starts a frame.
	//
	// Parameters:
	//   - f: the frame number and timing
	//
	// Returns:
	//   - error: ErrReleased, or a backend error
	BeginFrame(f pass.Frame) error

	// PassCount returns the number of passes in a frame.
	PassCount() int

	// RunPass runs pass i of the current frame.
	//
	// Parameters:
	//   - i: the pass index, starting at 0 each frame
	//
	// Returns:
	//   - pass.Result: NeedFlush if another pass follows, Finished after the present pass
	//   - error: pass.ErrPassOrder, pass.ErrPassIndex, or an error from the pass body
	RunPass(i int) (pass.Result, error)

	// Flush submits the work of the passes run so far so the next pass can read it.
	Flush() error

	// EndFrame presents the default output and releases surfaces retired during the frame.
	EndFrame() error

	// Release frees the G-buffer, the surface manager and the backend. Calling it twice is a no-op.
	Release()
}

var _ Renderer = &renderer{}

// Requirements returns what a device must support to run the pipeline.
func Requirements() postprocess.Requirements {
	return postprocess.Requirements{
		MinShaderModel:   2,
		MinRenderTargets: 2,
		ColorFormats:     []gputypes.TextureFormat{gbuffer.ColorFormat},
		DepthFormats:     gbuffer.DepthFormats,
		Usage:            gbuffer.SurfaceUsage,
	}
}

// NewRenderer creates the deferred pipeline on a backend.
//
// The device capabilities are probed before anything is allocated: a device that cannot run the
// pipeline fails with postprocess.ErrDeviceCapability and no surface or output is created.
// The renderer takes ownership of the backend, and releases it when construction fails.
//
// Parameters:
//   - b: the backend to draw with
//   - width: the initial output width in pixels
//   - height: the initial output height in pixels
//   - options: variadic list of RendererBuilderOption functions to configure the Renderer
//
// Returns:
//   - Renderer: the ready renderer, with the default effect active
//   - error: postprocess.ErrDeviceCapability, surface.ErrAllocation, common.ErrNotPerspective,
//     or a backend error
func NewRenderer(b backend.Backend, width, height int, options ...RendererBuilderOption) (_ Renderer, err error) {
	defer func() {
		if err != nil {
			b.Release()
		}
	}()

	r := &renderer{
		mu:            &sync.Mutex{},
		id:            uuid.New(),
		backend:       b,
		defaultEffect: postprocess.EffectDeferredShading,
		presentClear:  gputypes.Color{A: 1},
		view:          mgl32.Ident4(),
		proj:          mgl32.Perspective(mgl32.DegToRad(60), float32(width)/float32(max(height, 1)), 0.1, 100),
	}

	for _, opt := range options {
		opt(r)
	}
	if r.depth, err = common.DepthParamsFromProjection(r.proj); err != nil {
		return nil, errors.Wrap(err, "initial camera")
	}

	caps := b.Capabilities()
	graph, err := postprocess.NewGraph(caps, Requirements())
	if err != nil {
		logger.Log().Error("device cannot run the deferred pipeline",
			zap.String("renderer", r.id.String()),
			zap.String("backend", b.Name()),
			zap.Error(err),
		)
		return nil, err
	}
	r.graph = graph

	if err := b.ConfigureOutput(width, height); err != nil {
		return nil, errors.Wrap(err, "configure output")
	}

	r.surfaces = surface.NewManager(b)
	r.layout, err = gbuffer.NewLayout(r.surfaces, caps, width, height)
	if err != nil {
		r.surfaces.Close()
		return nil, err
	}
	r.geometry = gbuffer.NewPass(b, r.layout)

	var schedulerOptions []pass.SchedulerBuilderOption
	if r.timer != nil {
		schedulerOptions = append(schedulerOptions, pass.WithTimer(r.timer))
	}
	schedulerOptions = append(schedulerOptions, pass.WithPasses(
		pass.Pass{
			Name:   "G-Buffer",
			Target: r.layout.FrameBuffer(),
			Clear:  gbuffer.Clear,
			Body:   r.drawGeometry,
		},
		pass.Pass{
			Name:   "Present",
			Target: nil,
			Clear: backend.ClearOp{
				Flags: backend.ClearColor | backend.ClearDepth,
				Color: r.presentClear,
				Depth: 1,
			},
			Body: r.present,
		},
	))
	r.scheduler = pass.NewScheduler(b, r.surfaces, schedulerOptions...)

	if err := r.registerEffects(); err != nil {
		r.layout.Release(r.surfaces)
		r.surfaces.Close()
		return nil, err
	}

	logger.Log().Info("renderer created",
		zap.String("renderer", r.id.String()),
		zap.String("backend", b.Name()),
		zap.Int("width", width),
		zap.Int("height", height),
		zap.Any("depthFormat", r.depthFormat()),
		zap.String("effect", r.graph.Selector().ActiveName()),
	)
	return r, nil
}

func (r *renderer) registerEffects() error {
	if err := postprocess.RegisterStandardEffects(r.graph, r.backend, r.surfaces); err != nil {
		return err
	}
	for _, e := range r.extraEffects {
		if err := r.graph.Register(e.factory(r.backend, r.surfaces), e.bindings...); err != nil {
			return err
		}
	}
	if err := r.graph.Rewire(r.sources()); err != nil {
		return err
	}
	return r.graph.Selector().SetActive(r.defaultEffect)
}

func (r *renderer) sources() postprocess.Sources {
	return postprocess.Sources{
		Color:        r.layout.Color(),
		NormalDepth:  r.layout.NormalDepth(),
		DepthStencil: r.layout.DepthStencil(),
	}
}

func (r *renderer) depthFormat() gputypes.TextureFormat {
	desc, err := r.surfaces.Describe(r.layout.DepthStencil())
	if err != nil {
		return gputypes.TextureFormatUndefined
	}
	return desc.Format
}

func (r *renderer) ID() uuid.UUID {
	return r.id
}

func (r *renderer) Backend() backend.Backend {
	return r.backend
}

func (r *renderer) Surfaces() surface.Manager {
	return r.surfaces
}

func (r *renderer) Layout() *gbuffer.Layout {
	return r.layout
}

func (r *renderer) Graph() postprocess.Graph {
	return r.graph
}

func (r *renderer) Scheduler() pass.Scheduler {
	return r.scheduler
}

func (r *renderer) SetScene(scene gbuffer.Scene) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.scene = scene
}

func (r *renderer) SetCamera(view, proj mgl32.Mat4) error {
	depth, err := common.DepthParamsFromProjection(proj)
	if err != nil {
		return errors.Wrap(err, "set camera")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.view = view
	r.proj = proj
	r.depth = depth
	return nil
}

func (r *renderer) SetLight(position mgl32.Vec3) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.light = position
}

func (r *renderer) SetActiveEffect(name string) error {
	return r.graph.Selector().SetActive(name)
}

func (r *renderer) ActiveEffect() string {
	return r.graph.Selector().ActiveName()
}

func (r *renderer) Effects() []string {
	return r.graph.Selector().Names()
}

func (r *renderer) Resize(width, height int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	if r.inFrame {
		return errors.Wrap(backend.ErrFrameInFlight, "resize")
	}

	if err := r.surfaces.Resize(width, height); err != nil {
		return err
	}
	if err := r.graph.Rewire(r.sources()); err != nil {
		return errors.Wrap(err, "rewire effects after resize")
	}
	if err := r.backend.ConfigureOutput(width, height); err != nil {
		return errors.Wrapf(err, "resize output to %dx%d", width, height)
	}

	logger.Log().Info("renderer resized",
		zap.String("renderer", r.id.String()),
		zap.Int("width", width),
		zap.Int("height", height),
	)
	return nil
}

func (r *renderer) BeginFrame(f pass.Frame) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return ErrReleased
	}
	if err := r.backend.BeginFrame(); err != nil {
		return err
	}
	r.surfaces.BeginFrame()
	r.scheduler.Reset()
	r.frame = f
	r.inFrame = true
	return nil
}

func (r *renderer) PassCount() int {
	return r.scheduler.Count()
}

func (r *renderer) RunPass(i int) (pass.Result, error) {
	r.mu.Lock()
	if !r.inFrame {
		r.mu.Unlock()
		return pass.Finished, errors.Wrapf(backend.ErrNoFrame, "run pass %d", i)
	}
	f := r.frame
	r.mu.Unlock()

	return r.scheduler.RunPass(i, &f)
}

func (r *renderer) Flush() error {
	return r.backend.Flush()
}

func (r *renderer) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.inFrame {
		return backend.ErrNoFrame
	}
	err := r.backend.EndFrame()
	r.surfaces.EndFrame()
	r.inFrame = false
	return err
}

func (r *renderer) Release() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.released {
		return
	}
	r.released = true
	r.layout.Release(r.surfaces)
	r.surfaces.Close()
	r.backend.Release()

	logger.Log().Info("renderer released", zap.String("renderer", r.id.String()))
}

// drawGeometry is the body of the G-buffer pass.
func (r *renderer) drawGeometry(_ *pass.Frame) error {
	r.mu.Lock()
	scene, view, proj := r.scene, r.view, r.proj
	r.mu.Unlock()

	if scene == nil {
		return nil
	}
	return r.geometry.Execute(scene, view, proj)
}

// present is the body of the present pass: it applies the active effect into the default output.
func (r *renderer) present(f *pass.Frame) error {
	r.mu.Lock()
	state := postprocess.FrameState{
		Depth:      r.depth,
		Projection: r.proj,
		LightInEye: r.view.Mul4x1(r.light.Vec4(1)).Vec3(),
		Elapsed:    f.Elapsed,
		Delta:      f.Delta,
	}
	r.mu.Unlock()

	return r.graph.Apply(state)
}
