package postprocess

import (
	"strconv"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

const sampledTarget = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding

func testRequirements() Requirements {
	return Requirements{
		MinShaderModel:   2,
		MinRenderTargets: 2,
		ColorFormats:     []gputypes.TextureFormat{gputypes.TextureFormatRGBA16Float},
		DepthFormats:     []gputypes.TextureFormat{gputypes.TextureFormatDepth32Float, gputypes.TextureFormatDepth24Plus},
		Usage:            sampledTarget,
	}
}

func testFrameState(t *testing.T) FrameState {
	t.Helper()
	proj := mgl32.Perspective(mgl32.DegToRad(60), 1, 0.5, 40)
	depth, err := common.DepthParamsFromProjection(proj)
	if err != nil {
		t.Fatal(err)
	}
	return FrameState{Depth: depth, Projection: proj, LightInEye: mgl32.Vec3{2, 2, 3}}
}

// recordingEffect records pin bindings in call order.
type recordingEffect struct {
	name  string
	pins  []surface.Handle
	calls *[]string
}

func (r *recordingEffect) Name() string  { return r.name }
func (r *recordingEffect) PinCount() int { return len(r.pins) }
func (r *recordingEffect) Apply() error  { return nil }

func (r *recordingEffect) InputPin(i int, h surface.Handle) error {
	if i < 0 || i >= len(r.pins) {
		return pinError(ErrInvalidPin, "pin %d", i)
	}
	r.pins[i] = h
	*r.calls = append(*r.calls, r.name+":"+strconv.Itoa(i))
	return nil
}

func (r *recordingEffect) Pin(i int) (surface.Handle, error) {
	return r.pins[i], nil
}

type gbufferFixture struct {
	backend software.SoftwareBackend
	manager surface.Manager
	sources Sources
}

func newGBufferFixture(t *testing.T, w, h int) *gbufferFixture {
	t.Helper()
	b := software.NewSoftwareBackend(software.WithWorkers(2))
	if err := b.ConfigureOutput(w, h); err != nil {
		t.Fatal(err)
	}
	m := surface.NewManager(b)
	alloc := func(label string, f gputypes.TextureFormat) surface.Handle {
		hd, err := m.Allocate(surface.Descriptor{Label: label, Width: w, Height: h, Format: f, Usage: sampledTarget, FollowOutput: true})
		if err != nil {
			t.Fatal(err)
		}
		return hd
	}
	return &gbufferFixture{
		backend: b,
		manager: m,
		sources: Sources{
			Color:        alloc("color", gputypes.TextureFormatRGBA16Float),
			NormalDepth:  alloc("normal-depth", gputypes.TextureFormatRGBA16Float),
			DepthStencil: alloc("depth-stencil", gputypes.TextureFormatDepth32Float),
		},
	}
}

// fill clears a surface to a constant value outside of any frame.
func (f *gbufferFixture) fill(t *testing.T, h surface.Handle, c mgl32.Vec4) {
	t.Helper()
	fb := f.manager.NewFrameBuffer("fill")
	if err := f.manager.Attach(fb, surface.SlotColor0, h); err != nil {
		t.Fatal(err)
	}
	target, err := f.manager.RenderTarget(fb)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.backend.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	clear := backend.ClearOp{Flags: backend.ClearColor, Color: gputypes.Color{R: float64(c[0]), G: float64(c[1]), B: float64(c[2]), A: float64(c[3])}}
	if err := f.backend.BeginPass(target, clear); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func (f *gbufferFixture) read(t *testing.T, h surface.Handle, x, y int) mgl32.Vec4 {
	t.Helper()
	tex, err := f.manager.Texture(h)
	if err != nil {
		t.Fatal(err)
	}
	v, err := f.backend.ReadTexel(tex, x, y)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

// applyToOutput applies an effect into the default output.
func (f *gbufferFixture) applyToOutput(t *testing.T, e Effect) {
	t.Helper()
	if err := f.backend.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.BeginPass(nil, backend.ClearOp{Flags: backend.ClearColor | backend.ClearDepth, Depth: 1}); err != nil {
		t.Fatal(err)
	}
	if err := e.Apply(); err != nil {
		t.Fatalf("Apply(%s) failed: %v", e.Name(), err)
	}
	if err := f.backend.EndPass(); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.EndFrame(); err != nil {
		t.Fatal(err)
	}
}

func TestSelectorExclusivity(t *testing.T) {
	s := NewSelector()
	if s.Active() != nil || s.ActiveName() != "" {
		t.Fatal("empty selector has an active effect")
	}

	f := newGBufferFixture(t, 4, 4)
	for _, name := range []string{"a", "b", "c"} {
		e := NewFullscreenEffect(f.backend, f.manager, name, 1, backend.FullscreenProgram{Key: name, Kernel: copyKernel}, nil)
		if err := e.InputPin(0, f.sources.Color); err != nil {
			t.Fatal(err)
		}
		if err := s.Register(e); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.ActiveName(); got != "a" {
		t.Errorf("default active = %q, want first registered", got)
	}

	if err := s.SetActive("c"); err != nil {
		t.Fatal(err)
	}
	if got := s.Active().Name(); got != "c" {
		t.Errorf("Active() = %q, want c", got)
	}

	err := s.SetActive("missing")
	if !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("SetActive(missing) error = %v, want ErrUnknownEffect", err)
	}
	if got := s.ActiveName(); got != "c" {
		t.Errorf("active changed to %q after failed SetActive", got)
	}

	dup := NewFullscreenEffect(f.backend, f.manager, "a", 1, backend.FullscreenProgram{}, nil)
	if err := s.Register(dup); !errors.Is(err, ErrDuplicateEffect) {
		t.Errorf("duplicate Register() error = %v, want ErrDuplicateEffect", err)
	}

	for _, name := range s.Names() {
		e, _ := s.Effect(name)
		if h, _ := e.Pin(0); h != f.sources.Color {
			t.Errorf("effect %q pin changed to %v by selection", name, h)
		}
	}
}

func TestPinErrors(t *testing.T) {
	f := newGBufferFixture(t, 4, 4)
	e := NewDeferredShadingEffect(f.backend, f.manager)
	if e.PinCount() != 2 {
		t.Fatalf("PinCount() = %d, want 2", e.PinCount())
	}

	for _, i := range []int{2, -1} {
		err := e.InputPin(i, f.sources.Color)
		if !errors.Is(err, ErrInvalidPin) || !errors.HasAssertionFailure(err) {
			t.Errorf("InputPin(%d) error = %v, want ErrInvalidPin assertion", i, err)
		}
		if _, err := e.Pin(i); !errors.Is(err, ErrInvalidPin) {
			t.Errorf("Pin(%d) error = %v, want ErrInvalidPin", i, err)
		}
	}

	if err := e.InputPin(0, f.sources.NormalDepth); err != nil {
		t.Fatal(err)
	}
	err := e.Apply()
	if !errors.Is(err, ErrUnboundPin) || !errors.HasAssertionFailure(err) {
		t.Errorf("Apply() with pin 1 unbound error = %v, want ErrUnboundPin assertion", err)
	}
	if got := f.backend.Stats().FullscreenDraws; got != 0 {
		t.Errorf("fullscreen draws = %d, want 0", got)
	}
}

func TestProbe(t *testing.T) {
	full := software.NewSoftwareBackend().Capabilities()

	tests := []struct {
		name     string
		caps     func() backend.Capabilities
		wantHint string
	}{
		{name: "capable device", caps: func() backend.Capabilities { return full }},
		{
			name: "single render target",
			caps: func() backend.Capabilities {
				return software.NewSoftwareBackend(software.WithMaxRenderTargets(1)).Capabilities()
			},
			wantHint: "simultaneous render targets",
		},
		{
			name: "old shader model",
			caps: func() backend.Capabilities {
				return software.NewSoftwareBackend(software.WithShaderModel(1)).Capabilities()
			},
			wantHint: "shader model",
		},
		{
			name: "no float color target",
			caps: func() backend.Capabilities {
				return software.NewSoftwareBackend(software.WithoutFormat(gputypes.TextureFormatRGBA16Float)).Capabilities()
			},
			wantHint: "color format",
		},
		{
			name: "depth not sampleable",
			caps: func() backend.Capabilities {
				return software.NewSoftwareBackend(
					software.WithFormatUsage(gputypes.TextureFormatDepth32Float, gputypes.TextureUsageRenderAttachment),
					software.WithFormatUsage(gputypes.TextureFormatDepth24Plus, gputypes.TextureUsageRenderAttachment),
				).Capabilities()
			},
			wantHint: "depth format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGraph(tt.caps(), testRequirements())
			if tt.wantHint == "" {
				if err != nil || g == nil {
					t.Fatalf("NewGraph() = %v, %v", g, err)
				}
				return
			}
			if !errors.Is(err, ErrDeviceCapability) {
				t.Fatalf("NewGraph() error = %v, want ErrDeviceCapability", err)
			}
			if g != nil {
				t.Error("NewGraph() returned a graph for an incapable device")
			}
			if hints := errors.FlattenHints(err); !strings.Contains(hints, tt.wantHint) {
				t.Errorf("hints %q do not mention %q", hints, tt.wantHint)
			}
		})
	}
}

func TestRewireOrder(t *testing.T) {
	f := newGBufferFixture(t, 4, 4)
	g, err := NewGraph(f.backend.Capabilities(), testRequirements())
	if err != nil {
		t.Fatal(err)
	}

	var calls []string
	first := &recordingEffect{name: "first", pins: make([]surface.Handle, 3), calls: &calls}
	second := &recordingEffect{name: "second", pins: make([]surface.Handle, 2), calls: &calls}
	if err := g.Register(first,
		PinBinding{Pin: 0, Source: SourceDepthStencil},
		PinBinding{Pin: 1, Source: SourceColor},
		PinBinding{Pin: 2, Source: SourceNormalDepth},
	); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(second,
		PinBinding{Pin: 0, Source: SourceNormalDepth},
		PinBinding{Pin: 1, Source: SourceColor},
	); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(&recordingEffect{name: "bad", pins: make([]surface.Handle, 1), calls: &calls}, PinBinding{Pin: 1}); !errors.Is(err, ErrInvalidPin) {
		t.Errorf("Register() with out-of-range binding error = %v, want ErrInvalidPin", err)
	}

	if err := g.Rewire(f.sources); err != nil {
		t.Fatal(err)
	}

	want := []string{"first:1", "second:1", "first:2", "second:0", "first:0"}
	if strings.Join(calls, ",") != strings.Join(want, ",") {
		t.Errorf("rewire order = %v, want %v", calls, want)
	}
	if first.pins[0] != f.sources.DepthStencil || first.pins[1] != f.sources.Color || first.pins[2] != f.sources.NormalDepth {
		t.Errorf("first pins = %v", first.pins)
	}

	late := &recordingEffect{name: "late", pins: make([]surface.Handle, 1), calls: &calls}
	if err := g.Register(late, PinBinding{Pin: 0, Source: SourceColor}); err != nil {
		t.Fatal(err)
	}
	if late.pins[0] != f.sources.Color {
		t.Errorf("effect registered after Rewire has pin %v, want color", late.pins[0])
	}
}

func TestResizeWithoutRewireReportsStalePins(t *testing.T) {
	f := newGBufferFixture(t, 4, 4)
	g, err := NewGraph(f.backend.Capabilities(), testRequirements())
	if err != nil {
		t.Fatal(err)
	}
	if err := RegisterStandardEffects(g, f.backend, f.manager); err != nil {
		t.Fatal(err)
	}
	if err := g.Rewire(f.sources); err != nil {
		t.Fatal(err)
	}
	if err := f.manager.Resize(8, 6); err != nil {
		t.Fatal(err)
	}

	if err := f.backend.ConfigureOutput(8, 6); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.BeginFrame(); err != nil {
		t.Fatal(err)
	}
	if err := f.backend.BeginPass(nil, backend.ClearOp{}); err != nil {
		t.Fatal(err)
	}
	err = g.Apply(testFrameState(t))
	if !errors.Is(err, ErrUnboundPin) || !errors.Is(err, surface.ErrStaleHandle) {
		t.Fatalf("Apply() after resize error = %v, want stale ErrUnboundPin", err)
	}

	var current Sources
	current.Color, _ = f.manager.Current(f.sources.Color)
	current.NormalDepth, _ = f.manager.Current(f.sources.NormalDepth)
	current.DepthStencil, _ = f.manager.Current(f.sources.DepthStencil)
	if err := g.Rewire(current); err != nil {
		t.Fatal(err)
	}
	if err := g.Apply(testFrameState(t)); err != nil {
		t.Errorf("Apply() after Rewire failed: %v", err)
	}
}

// frameEffect counts frame updates and applies, running onFrame inside UpdateFrame.
type frameEffect struct {
	recordingEffect
	onFrame func()
	frames  int
	applies int
}

func (e *frameEffect) UpdateFrame(FrameState) {
	e.frames++
	if e.onFrame != nil {
		e.onFrame()
	}
}

func (e *frameEffect) Apply() error {
	e.applies++
	return nil
}

func TestApplyResolvesActiveEffectOnce(t *testing.T) {
	f := newGBufferFixture(t, 2, 2)
	g, err := NewGraph(f.backend.Capabilities(), testRequirements())
	if err != nil {
		t.Fatal(err)
	}

	var calls []string
	first := &frameEffect{recordingEffect: recordingEffect{name: "first", calls: &calls}}
	second := &frameEffect{recordingEffect: recordingEffect{name: "second", calls: &calls}}
	first.onFrame = func() {
		if err := g.Selector().SetActive("second"); err != nil {
			t.Error(err)
		}
	}
	if err := g.Register(first); err != nil {
		t.Fatal(err)
	}
	if err := g.Register(second); err != nil {
		t.Fatal(err)
	}

	if err := g.Apply(testFrameState(t)); err != nil {
		t.Fatal(err)
	}
	if first.frames != 1 || first.applies != 1 {
		t.Errorf("first: frames %d applies %d, want 1 and 1", first.frames, first.applies)
	}
	if second.frames != 0 || second.applies != 0 {
		t.Errorf("second: frames %d applies %d, want 0 and 0", second.frames, second.applies)
	}

	if err := g.Apply(testFrameState(t)); err != nil {
		t.Fatal(err)
	}
	if second.frames != 1 || second.applies != 1 {
		t.Errorf("second after switch: frames %d applies %d, want 1 and 1", second.frames, second.applies)
	}
}

func TestApplyWithoutEffects(t *testing.T) {
	f := newGBufferFixture(t, 2, 2)
	g, err := NewGraph(f.backend.Capabilities(), testRequirements())
	if err != nil {
		t.Fatal(err)
	}
	if err := g.Apply(testFrameState(t)); !errors.Is(err, ErrUnknownEffect) {
		t.Errorf("Apply() on empty graph error = %v, want ErrUnknownEffect", err)
	}
}

func TestStandardEffectsWriteOnlyTheOutput(t *testing.T) {
	f := newGBufferFixture(t, 6, 6)
	colorValue := mgl32.Vec4{0.6, 0.3, 0.2, 0.5}
	ndValue := common.EncodeNormal(mgl32.Vec3{0, 0, 1}).Vec4(0.25)
	f.fill(t, f.sources.Color, colorValue)
	f.fill(t, f.sources.NormalDepth, ndValue)

	g, err := NewGraph(f.backend.Capabilities(), testRequirements())
	if err != nil {
		t.Fatal(err)
	}
	if err := RegisterStandardEffects(g, f.backend, f.manager); err != nil {
		t.Fatal(err)
	}
	if err := g.Rewire(f.sources); err != nil {
		t.Fatal(err)
	}
	if got := g.Selector().ActiveName(); got != EffectDeferredShading {
		t.Errorf("default effect = %q, want %q", got, EffectDeferredShading)
	}

	state := testFrameState(t)

	for _, name := range g.Selector().Names() {
		t.Run(name, func(t *testing.T) {
			if err := g.Selector().SetActive(name); err != nil {
				t.Fatal(err)
			}
			before := f.backend.Stats().FullscreenDraws

			if err := f.backend.BeginFrame(); err != nil {
				t.Fatal(err)
			}
			if err := f.backend.BeginPass(nil, backend.ClearOp{Flags: backend.ClearColor | backend.ClearDepth, Depth: 1}); err != nil {
				t.Fatal(err)
			}
			if err := g.Apply(state); err != nil {
				t.Fatal(err)
			}
			if err := f.backend.EndPass(); err != nil {
				t.Fatal(err)
			}
			if err := f.backend.EndFrame(); err != nil {
				t.Fatal(err)
			}

			if got := f.backend.Stats().FullscreenDraws - before; got != 1 {
				t.Errorf("fullscreen draws = %d, want 1", got)
			}
			if got := f.read(t, f.sources.Color, 3, 3); got != colorValue {
				t.Errorf("color surface changed to %v", got)
			}
			if got := f.read(t, f.sources.NormalDepth, 3, 3); got.Sub(ndValue).Len() > 1e-5 {
				t.Errorf("normal-depth surface changed to %v", got)
			}
		})
	}
}

func TestCopyAndToneMapValues(t *testing.T) {
	f := newGBufferFixture(t, 2, 2)
	f.fill(t, f.sources.Color, mgl32.Vec4{1, 0.5, 0, 1})

	tests := []struct {
		name   string
		effect Effect
		want   [3]uint8
	}{
		{name: "copy", effect: NewCopyEffect(f.backend, f.manager), want: [3]uint8{255, 128, 0}},
		{name: "tonemap", effect: NewToneMapEffect(f.backend, f.manager, 1), want: [3]uint8{128, 85, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.effect.InputPin(0, f.sources.Color); err != nil {
				t.Fatal(err)
			}
			f.applyToOutput(t, tt.effect)
			px := f.backend.Snapshot().RGBAAt(1, 1)
			if got := [3]uint8{px.R, px.G, px.B}; got != tt.want {
				t.Errorf("output = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDeferredShadingLightsFacingSurfaces(t *testing.T) {
	state := testFrameState(t)
	state.LightInEye = mgl32.Vec3{0, 0, 0}
	params := lightingParams()(state)

	facing := constSampler{w: 4, h: 4, v: common.EncodeNormal(mgl32.Vec3{0, 0, 1}).Vec4(0.25)}
	away := constSampler{w: 4, h: 4, v: common.EncodeNormal(mgl32.Vec3{0, 0, -1}).Vec4(0.25)}
	background := constSampler{w: 4, h: 4, v: mgl32.Vec4{0, 0, 1, 1}}
	albedo := constSampler{w: 4, h: 4, v: mgl32.Vec4{0.5, 0.5, 0.5, 0}}

	lit := deferredShadingKernel(2, 2, []backend.Sampler{facing, albedo}, params)
	unlit := deferredShadingKernel(2, 2, []backend.Sampler{away, albedo}, params)
	bg := deferredShadingKernel(2, 2, []backend.Sampler{background, albedo}, params)

	if lit[0] <= unlit[0] {
		t.Errorf("lit %v not brighter than unlit %v", lit, unlit)
	}
	if mgl32.Abs(unlit[0]-(0.5*defaultAmbient)) > 1e-5 {
		t.Errorf("unlit = %v, want ambient only", unlit)
	}
	if bg != (mgl32.Vec4{0.5, 0.5, 0.5, 1}) {
		t.Errorf("background = %v, want albedo passthrough", bg)
	}
}

func TestCartoonOutlinesDepthEdges(t *testing.T) {
	params := lightingParams(0.4)(FrameState{Projection: mgl32.Perspective(1, 1, 1, 10), Depth: common.NewDepthParams(1, 10)})
	nd := &splitSampler{w: 4, h: 4, left: common.EncodeNormal(mgl32.Vec3{0, 0, 1}).Vec4(0.2), right: mgl32.Vec4{0, 0, 1, 1}}
	albedo := constSampler{w: 4, h: 4, v: mgl32.Vec4{1, 1, 1, 0}}

	if got := cartoonKernel(1, 1, []backend.Sampler{nd, albedo}, params); got != (mgl32.Vec4{0, 0, 0, 1}) {
		t.Errorf("edge pixel = %v, want black outline", got)
	}
	if got := cartoonKernel(0, 1, []backend.Sampler{nd, albedo}, params); got == (mgl32.Vec4{0, 0, 0, 1}) {
		t.Error("interior pixel drawn as outline")
	}
}

func TestTilingUsesTileCenter(t *testing.T) {
	src := &gradientSampler{w: 8, h: 8}
	got := tilingKernel(5, 6, []backend.Sampler{src}, []float32{4})
	want := src.Load(6, 6).Vec3().Vec4(1)
	if got != want {
		t.Errorf("tilingKernel(5, 6) = %v, want %v", got, want)
	}
	border := tilingKernel(4, 6, []backend.Sampler{src}, []float32{4})
	if border != want.Vec3().Mul(0.5).Vec4(1) {
		t.Errorf("border pixel = %v, want darkened tile color", border)
	}
}

func TestAsciiArtsGlyphCoverage(t *testing.T) {
	tests := []struct {
		name string
		grey float32
		ink  int
	}{
		{name: "black is blank", grey: 0, ink: 0},
		{name: "dark is a colon", grey: 0.3, ink: 2 * 4},
		{name: "mid grey is a plus", grey: 0.55, ink: 7 * 4},
		{name: "white is solid", grey: 1, ink: 64},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := constSampler{w: 16, h: 16, v: mgl32.Vec4{tt.grey, tt.grey, tt.grey, 1}}
			ink := 0
			for y := 8; y < 16; y++ {
				for x := 8; x < 16; x++ {
					c := asciiArtsKernel(x, y, []backend.Sampler{src}, []float32{8})
					switch c {
					case mgl32.Vec4{1, 1, 1, 1}:
						ink++
					case mgl32.Vec4{0, 0, 0, 1}:
					default:
						t.Fatalf("pixel (%d, %d) = %v, want black or white", x, y, c)
					}
				}
			}
			if ink != tt.ink {
				t.Errorf("inked pixels in cell = %d, want %d", ink, tt.ink)
			}
		})
	}
}

func TestAsciiArtsUsesCellLuminance(t *testing.T) {
	src := &splitSampler{w: 16, h: 8, left: mgl32.Vec4{0, 0, 0, 1}, right: mgl32.Vec4{1, 1, 1, 1}}
	for y := range 8 {
		if got := asciiArtsKernel(3, y, []backend.Sampler{src}, []float32{8}); got != (mgl32.Vec4{0, 0, 0, 1}) {
			t.Errorf("dark cell pixel (3, %d) = %v, want blank", y, got)
		}
		if got := asciiArtsKernel(11, y, []backend.Sampler{src}, []float32{8}); got != (mgl32.Vec4{1, 1, 1, 1}) {
			t.Errorf("bright cell pixel (11, %d) = %v, want ink", y, got)
		}
	}

	// Cells below the glyph resolution are widened to 4 pixels.
	bright := constSampler{w: 8, h: 8, v: mgl32.Vec4{0.55, 0.55, 0.55, 1}}
	if got := asciiArtsKernel(5, 4, []backend.Sampler{bright}, []float32{1}); got != (mgl32.Vec4{1, 1, 1, 1}) {
		t.Errorf("pixel (5, 4) with 1-pixel cells = %v, want the plus glyph's stem", got)
	}
	if got := asciiArtsKernel(4, 4, []backend.Sampler{bright}, []float32{1}); got != (mgl32.Vec4{0, 0, 0, 1}) {
		t.Errorf("pixel (4, 4) with 1-pixel cells = %v, want blank", got)
	}
}

func TestHashRange(t *testing.T) {
	for i := range 200 {
		v := hash(i, i*7-50, i/3)
		if v < 0 || v > 1 {
			t.Fatalf("hash out of range: %v", v)
		}
	}
	if hash(3, 4, 5) != hash(3, 4, 5) {
		t.Error("hash is not deterministic")
	}
}

type constSampler struct {
	w, h int
	v    mgl32.Vec4
}

func (c constSampler) Width() int                         { return c.w }
func (c constSampler) Height() int                        { return c.h }
func (c constSampler) Load(int, int) mgl32.Vec4           { return c.v }
func (c constSampler) Sample(float32, float32) mgl32.Vec4 { return c.v }

// splitSampler returns left for x < w/2 and right otherwise.
type splitSampler struct {
	w, h        int
	left, right mgl32.Vec4
}

func (s *splitSampler) Width() int  { return s.w }
func (s *splitSampler) Height() int { return s.h }
func (s *splitSampler) Load(x, _ int) mgl32.Vec4 {
	if x < s.w/2 {
		return s.left
	}
	return s.right
}
func (s *splitSampler) Sample(u, v float32) mgl32.Vec4 {
	return s.Load(int(u*float32(s.w)), int(v*float32(s.h)))
}

type gradientSampler struct {
	w, h int
}

func (g *gradientSampler) Width() int  { return g.w }
func (g *gradientSampler) Height() int { return g.h }
func (g *gradientSampler) Load(x, y int) mgl32.Vec4 {
	return mgl32.Vec4{float32(x) / float32(g.w), float32(y) / float32(g.h), 0, 1}
}
func (g *gradientSampler) Sample(u, v float32) mgl32.Vec4 {
	return g.Load(int(u*float32(g.w)), int(v*float32(g.h)))
}
