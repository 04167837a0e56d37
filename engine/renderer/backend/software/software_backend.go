// Package software implements backend.Backend on the CPU.
//
// It rasterizes triangles into float textures with multiple render targets and a depth test,
// and runs fullscreen kernels split across goroutines by row. It needs no GPU, which makes it
// the backend for tests and headless rendering.
package software

import (
	"image"
	"image/color"
	"maps"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// rowsPerTask is the number of rows a single fullscreen task shades.
const rowsPerTask = 8

// Stats counts the work the software backend has performed.
type Stats struct {
	TexturesCreated  int
	TexturesReleased int
	LiveTextures     int
	Frames           int
	Passes           int
	Flushes          int
	DrawCalls        int
	FullscreenDraws  int
	Presents         int
}

// boundPass is the target of the pass currently being recorded.
type boundPass struct {
	label  string
	width  int
	height int
	colors []*texture
	depth  *texture
}

func (p *boundPass) writes(t *texture) bool {
	if t == p.depth {
		return true
	}
	for _, c := range p.colors {
		if c == t {
			return true
		}
	}
	return false
}

// softwareBackend is the implementation of the SoftwareBackend interface.
type softwareBackend struct {
	mu *sync.Mutex

	caps    backend.Capabilities
	workers int

	outputFormat gputypes.TextureFormat
	output       *texture
	outputDepth  *texture

	nextID      int
	textures    map[*texture]struct{}
	frameActive bool
	pass        *boundPass
	stats       Stats
}

// SoftwareBackend is a CPU implementation of backend.Backend with inspection helpers.
type SoftwareBackend interface {
	backend.Backend

	// Snapshot copies the default output into an 8-bit image.
	//
	// Returns:
	//   - *image.RGBA: the presented image, or nil if the output is not configured
	Snapshot() *image.RGBA

	// ReadTexel reads one texel of a texture created by this backend.
	//
	// Parameters:
	//   - t: the texture to read
	//   - x: the column
	//   - y: the row
	//
	// Returns:
	//   - mgl32.Vec4: the stored value (depth formats repeat depth in xyz)
	//   - error: ErrReleased if the texture was released or belongs to another backend
	ReadTexel(t backend.Texture, x, y int) (mgl32.Vec4, error)

	// Stats returns the work counters.
	Stats() Stats
}

var _ SoftwareBackend = &softwareBackend{}

// NewSoftwareBackend creates a CPU backend. The default output must be configured with
// ConfigureOutput before the first frame.
//
// Parameters:
//   - options: the builder options to apply
//
// Returns:
//   - SoftwareBackend: the new backend
func NewSoftwareBackend(options ...SoftwareBackendBuilderOption) SoftwareBackend {
	all := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	b := &softwareBackend{
		mu:      &sync.Mutex{},
		workers: runtime.NumCPU(),
		caps: backend.Capabilities{
			MaxShaderModel:               5,
			MaxSimultaneousRenderTargets: backend.MaxColorAttachments,
			SupportedFormats: map[gputypes.TextureFormat]gputypes.TextureUsage{
				gputypes.TextureFormatRGBA8Unorm:          all,
				gputypes.TextureFormatRGBA8UnormSrgb:      all,
				gputypes.TextureFormatBGRA8Unorm:          all,
				gputypes.TextureFormatR32Float:            all,
				gputypes.TextureFormatRGBA16Float:         all,
				gputypes.TextureFormatRGBA32Float:         all,
				gputypes.TextureFormatDepth16Unorm:        all,
				gputypes.TextureFormatDepth24Plus:         all,
				gputypes.TextureFormatDepth24PlusStencil8: all,
				gputypes.TextureFormatDepth32Float:        all,
			},
		},
		outputFormat: gputypes.TextureFormatRGBA8Unorm,
		textures:     make(map[*texture]struct{}),
	}

	for _, option := range options {
		option(b)
	}
	b.caps.MaxSimultaneousRenderTargets = min(b.caps.MaxSimultaneousRenderTargets, backend.MaxColorAttachments)

	return b
}

func (b *softwareBackend) Name() string {
	return "software"
}

func (b *softwareBackend) Capabilities() backend.Capabilities {
	caps := b.caps
	caps.SupportedFormats = maps.Clone(b.caps.SupportedFormats)
	return caps
}

func (b *softwareBackend) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.createTexture(desc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *softwareBackend) createTexture(desc backend.TextureDescriptor) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Newf("texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	if !b.caps.Supports(desc.Format, desc.Usage) {
		return nil, errors.Wrapf(backend.ErrUnsupportedFormat, "texture %q format %v", desc.Label, desc.Format)
	}

	b.nextID++
	t := newTexture(b.nextID, desc)
	b.textures[t] = struct{}{}
	b.stats.TexturesCreated++
	return t, nil
}

func (b *softwareBackend) ReleaseTexture(t backend.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if st, ok := t.(*texture); ok {
		b.releaseTexture(st)
	}
}

func (b *softwareBackend) releaseTexture(t *texture) {
	if t == nil || t.released {
		return
	}
	t.released = true
	t.pix = nil
	delete(b.textures, t)
	b.stats.TexturesReleased++
}

func (b *softwareBackend) UploadMesh(data backend.MeshData) (backend.Mesh, error) {
	if len(data.Indices)%3 != 0 {
		return nil, errors.Newf("mesh %q index count %d is not a multiple of 3", data.Label, len(data.Indices))
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Positions) {
			return nil, errors.Newf("mesh %q index %d out of range (%d vertices)", data.Label, idx, len(data.Positions))
		}
	}
	if len(data.Normals) != 0 && len(data.Normals) != len(data.Positions) {
		return nil, errors.Newf("mesh %q has %d normals for %d vertices", data.Label, len(data.Normals), len(data.Positions))
	}

	return &mesh{
		label:     data.Label,
		positions: append([]mgl32.Vec3(nil), data.Positions...),
		normals:   append([]mgl32.Vec3(nil), data.Normals...),
		indices:   append([]uint32(nil), data.Indices...),
	}, nil
}

func (b *softwareBackend) ReleaseMesh(m backend.Mesh) {
	if sm, ok := m.(*mesh); ok {
		sm.released = true
	}
}

func (b *softwareBackend) ConfigureOutput(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameActive {
		return errors.Wrap(backend.ErrFrameInFlight, "configure output")
	}

	usage := gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageCopySrc
	output, err := b.createTexture(backend.TextureDescriptor{
		Label:  "Default Output",
		Width:  width,
		Height: height,
		Format: b.outputFormat,
		Usage:  usage,
	})
	if err != nil {
		return errors.Wrap(err, "configure output")
	}
	depth, err := b.createTexture(backend.TextureDescriptor{
		Label:  "Default Output Depth",
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatDepth24Plus,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		b.releaseTexture(output)
		return errors.Wrap(err, "configure output depth")
	}

	b.releaseTexture(b.output)
	b.releaseTexture(b.outputDepth)
	b.output = output
	b.outputDepth = depth

	logger.Log().Debug("software output configured", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (b *softwareBackend) OutputSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.output == nil {
		return 0, 0
	}
	return b.output.width, b.output.height
}

func (b *softwareBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameActive {
		return backend.ErrFrameInFlight
	}
	if b.output == nil {
		return errors.New("default output is not configured")
	}
	b.frameActive = true
	b.stats.Frames++
	return nil
}

func (b *softwareBackend) BeginPass(target *backend.RenderTarget, clear backend.ClearOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.frameActive {
		return backend.ErrNoFrame
	}
	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "pass %q still bound", b.pass.label)
	}

	p, err := b.resolveTarget(target)
	if err != nil {
		return err
	}

	if clear.Flags.Has(backend.ClearColor) {
		c := mgl32.Vec4{float32(clear.Color.R), float32(clear.Color.G), float32(clear.Color.B), float32(clear.Color.A)}
		for _, t := range p.colors {
			t.fill(c)
		}
	}
	if clear.Flags.Has(backend.ClearDepth) && p.depth != nil {
		p.depth.fill(mgl32.Vec4{clear.Depth})
	}
	// Stencil is not stored by the software backend, ClearStencil has nothing to clear.

	b.pass = p
	b.stats.Passes++
	return nil
}

func (b *softwareBackend) resolveTarget(target *backend.RenderTarget) (*boundPass, error) {
	if target == nil {
		return &boundPass{
			label:  "Default Output",
			width:  b.output.width,
			height: b.output.height,
			colors: []*texture{b.output},
			depth:  b.outputDepth,
		}, nil
	}

	if len(target.Colors) > b.caps.MaxSimultaneousRenderTargets {
		return nil, errors.Newf("target %q binds %d color attachments, device supports %d",
			target.Label, len(target.Colors), b.caps.MaxSimultaneousRenderTargets)
	}

	p := &boundPass{label: target.Label}
	for i, c := range target.Colors {
		t, ok := c.(*texture)
		if !ok || t.released {
			return nil, errors.Wrapf(backend.ErrReleased, "target %q color %d", target.Label, i)
		}
		if len(p.colors) == 0 {
			p.width, p.height = t.width, t.height
		} else if t.width != p.width || t.height != p.height {
			return nil, errors.Newf("target %q color %d is %dx%d, expected %dx%d",
				target.Label, i, t.width, t.height, p.width, p.height)
		}
		p.colors = append(p.colors, t)
	}
	if target.DepthStencil != nil {
		t, ok := target.DepthStencil.(*texture)
		if !ok || t.released {
			return nil, errors.Wrapf(backend.ErrReleased, "target %q depth-stencil", target.Label)
		}
		if len(p.colors) == 0 {
			p.width, p.height = t.width, t.height
		}
		p.depth = t
	}
	if p.width == 0 {
		return nil, errors.Newf("target %q has no attachments", target.Label)
	}
	return p, nil
}

func (b *softwareBackend) DrawMesh(m backend.Mesh, program backend.GeometryProgram, uniforms backend.GeometryUniforms) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	sm, ok := m.(*mesh)
	if !ok || sm.released {
		return errors.Wrapf(backend.ErrReleased, "mesh %q", m.Label())
	}
	if program.Shade == nil {
		return errors.Newf("geometry program %q has no CPU shader", program.Key)
	}

	rasterize(b.pass, sm, program.Shade, &uniforms)
	b.stats.DrawCalls++
	return nil
}

func (b *softwareBackend) DrawFullscreen(program backend.FullscreenProgram, inputs []backend.Texture, params []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	if len(b.pass.colors) == 0 {
		return errors.Newf("pass %q has no color attachment to write", b.pass.label)
	}
	if program.Kernel == nil {
		return errors.Newf("fullscreen program %q has no CPU kernel", program.Key)
	}
	if len(params) > backend.MaxFullscreenParams {
		return errors.Newf("fullscreen program %q got %d params, max %d", program.Key, len(params), backend.MaxFullscreenParams)
	}

	samplers := make([]backend.Sampler, len(inputs))
	for i, in := range inputs {
		t, ok := in.(*texture)
		if !ok || t.released {
			return errors.Wrapf(backend.ErrReleased, "fullscreen program %q input %d", program.Key, i)
		}
		if b.pass.writes(t) {
			return errors.Wrapf(backend.ErrFeedbackLoop, "fullscreen program %q input %d (%q)", program.Key, i, t.label)
		}
		samplers[i] = t
	}

	dst := b.pass.colors[0]
	var g errgroup.Group
	g.SetLimit(b.workers)
	for start := 0; start < dst.height; start += rowsPerTask {
		end := min(start+rowsPerTask, dst.height)
		g.Go(func() error {
			for y := start; y < end; y++ {
				for x := 0; x < dst.width; x++ {
					dst.store(x, y, program.Kernel(x, y, samplers, params))
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	b.stats.FullscreenDraws++
	return nil
}

func (b *softwareBackend) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	b.pass = nil
	return nil
}

func (b *softwareBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "flush with pass %q bound", b.pass.label)
	}
	b.stats.Flushes++
	return nil
}

func (b *softwareBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.frameActive {
		return backend.ErrNoFrame
	}
	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "end frame with pass %q bound", b.pass.label)
	}
	b.frameActive = false
	b.stats.Presents++
	return nil
}

func (b *softwareBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for t := range b.textures {
		b.releaseTexture(t)
	}
	b.output = nil
	b.outputDepth = nil
	b.pass = nil
	b.frameActive = false
}

func (b *softwareBackend) Snapshot() *image.RGBA {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.output == nil {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, b.output.width, b.output.height))
	for y := 0; y < b.output.height; y++ {
		for x := 0; x < b.output.width; x++ {
			c := b.output.Load(x, y)
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(c[0]),
				G: toByte(c[1]),
				B: toByte(c[2]),
				A: toByte(c[3]),
			})
		}
	}
	return img
}

func (b *softwareBackend) ReadTexel(t backend.Texture, x, y int) (mgl32.Vec4, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st, ok := t.(*texture)
	if !ok || st.released {
		return mgl32.Vec4{}, errors.Wrapf(backend.ErrReleased, "read texel of %q", t.Label())
	}
	if x < 0 || y < 0 || x >= st.width || y >= st.height {
		return mgl32.Vec4{}, errors.Newf("texel (%d, %d) outside %dx%d texture %q", x, y, st.width, st.height, st.label)
	}
	return st.Load(x, y), nil
}

func (b *softwareBackend) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := b.stats
	s.LiveTextures = len(b.textures)
	return s
}

func toByte(v float32) uint8 {
	return uint8(min(max(v, 0), 1)*255 + 0.5)
}
