// Package webgpu implements backend.Backend on a GPU through cogentcore/webgpu.
//
// Geometry programs and fullscreen effects are compiled from their WGSL source on first use and
// cached per target format set. Per-draw uniforms live in transient buffers that are released
// once the command buffer recording them has been submitted.
package webgpu

import (
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
	"go.uber.org/zap"
)

// outputDepthFormat is the depth buffer paired with the presentable surface.
const outputDepthFormat = gputypes.TextureFormatDepth24Plus

// texture is a device texture with its default view.
type texture struct {
	label    string
	width    int
	height   int
	format   gputypes.TextureFormat
	usage    gputypes.TextureUsage
	info     formatInfo
	tex      *wgpu.Texture
	view     *wgpu.TextureView
	released bool
}

func (t *texture) Label() string                  { return t.label }
func (t *texture) Width() int                     { return t.width }
func (t *texture) Height() int                    { return t.height }
func (t *texture) Format() gputypes.TextureFormat { return t.format }
func (t *texture) Usage() gputypes.TextureUsage   { return t.usage }

func (t *texture) release() {
	if t.released {
		return
	}
	t.released = true
	t.view.Release()
	t.tex.Release()
	t.view = nil
	t.tex = nil
}

// mesh is an interleaved vertex buffer and a uint32 index buffer.
type mesh struct {
	label      string
	vertices   *wgpu.Buffer
	indices    *wgpu.Buffer
	indexCount int
	released   bool
}

func (m *mesh) Label() string   { return m.label }
func (m *mesh) IndexCount() int { return m.indexCount }

func (m *mesh) release() {
	if m.released {
		return
	}
	m.released = true
	m.vertices.Release()
	m.indices.Release()
}

// boundPass is the render pass currently being recorded.
type boundPass struct {
	label   string
	encoder *wgpu.RenderPassEncoder
	colors  []*texture
	depth   *texture
	target  targetKey
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

// webgpuBackend is the implementation of the WebGPUBackend interface.
type webgpuBackend struct {
	mu *sync.Mutex

	instance *wgpu.Instance
	surface  *wgpu.Surface
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	forceFallbackAdapter bool
	presentMode          wgpu.PresentMode
	caps                 backend.Capabilities
	pipelines            *pipelineCache
	sampler              *wgpu.Sampler

	surfaceFormat gputypes.TextureFormat
	surfaceInfo   formatInfo
	outputWidth   int
	outputHeight  int
	outputDepth   *texture

	textures map[*texture]struct{}
	meshes   map[*mesh]struct{}

	frameSurface *wgpu.Texture
	frameOutput  *texture
	encoder      *wgpu.CommandEncoder
	pass         *boundPass
	transient    []func()
}

// WebGPUBackend is a GPU implementation of backend.Backend.
type WebGPUBackend interface {
	backend.Backend

	// SetVSync switches between FIFO presentation and immediate presentation.
	// The change applies the next time the output is configured.
	//
	// Parameters:
	//   - enabled: true to wait for vertical blank
	SetVSync(enabled bool)
}

var _ WebGPUBackend = &webgpuBackend{}

// NewWebGPUBackend creates a device that presents to the given surface.
// The output must be configured with ConfigureOutput before the first frame.
//
// Parameters:
//   - desc: the platform surface, typically from the window
//   - options: the builder options to apply
//
// Returns:
//   - WebGPUBackend: the new backend
//   - error: an error if no adapter or device could be acquired
func NewWebGPUBackend(desc *wgpu.SurfaceDescriptor, options ...WebGPUBackendBuilderOption) (WebGPUBackend, error) {
	runtime.LockOSThread()
	b := &webgpuBackend{
		mu:          &sync.Mutex{},
		presentMode: wgpu.PresentModeImmediate,
		textures:    make(map[*texture]struct{}),
		meshes:      make(map[*mesh]struct{}),
	}
	for _, option := range options {
		option(b)
	}

	b.instance = wgpu.CreateInstance(nil)
	b.surface = b.instance.CreateSurface(desc)

	a, err := b.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: b.forceFallbackAdapter,
		CompatibleSurface:    b.surface,
	})
	if err != nil {
		b.Release()
		return nil, errors.Wrap(err, "request adapter")
	}
	b.adapter = a

	limits := wgpu.DefaultLimits()
	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		b.Release()
		return nil, errors.Wrap(err, "request device")
	}
	b.device = d
	b.queue = d.GetQueue()
	b.caps = coreCapabilities(int(limits.MaxColorAttachments))
	b.pipelines = newPipelineCache(d)

	b.sampler, err = d.CreateSampler(&wgpu.SamplerDescriptor{
		Label:         "Effect Sampler",
		AddressModeU:  wgpu.AddressModeClampToEdge,
		AddressModeV:  wgpu.AddressModeClampToEdge,
		AddressModeW:  wgpu.AddressModeClampToEdge,
		MagFilter:     wgpu.FilterModeNearest,
		MinFilter:     wgpu.FilterModeNearest,
		MipmapFilter:  wgpu.MipmapFilterModeNearest,
		LodMinClamp:   0,
		LodMaxClamp:   32,
		MaxAnisotropy: 1,
	})
	if err != nil {
		b.Release()
		return nil, errors.Wrap(err, "create effect sampler")
	}

	capabilities := b.surface.GetCapabilities(a)
	if len(capabilities.Formats) == 0 {
		b.Release()
		return nil, errors.New("surface reports no formats for the adapter")
	}
	b.surfaceInfo = formatInfo{format: capabilities.Formats[0]}
	for f, info := range formats {
		if info.format == capabilities.Formats[0] {
			b.surfaceFormat = f
			b.surfaceInfo = info
		}
	}

	logger.Log().Info("webgpu backend created",
		zap.Int("maxRenderTargets", b.caps.MaxSimultaneousRenderTargets),
		zap.Bool("fallbackAdapter", b.forceFallbackAdapter),
	)
	return b, nil
}

func (b *webgpuBackend) Name() string {
	return "webgpu"
}

func (b *webgpuBackend) Capabilities() backend.Capabilities {
	caps := coreCapabilities(b.caps.MaxSimultaneousRenderTargets)
	caps.MaxShaderModel = b.caps.MaxShaderModel
	return caps
}

func (b *webgpuBackend) SetVSync(enabled bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.presentMode = wgpu.PresentModeImmediate
	if enabled {
		b.presentMode = wgpu.PresentModeFifo
	}
}

func (b *webgpuBackend) CreateTexture(desc backend.TextureDescriptor) (backend.Texture, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, err := b.createTexture(desc)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (b *webgpuBackend) createTexture(desc backend.TextureDescriptor) (*texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, errors.Newf("texture %q has invalid size %dx%d", desc.Label, desc.Width, desc.Height)
	}
	info, ok := lookupFormat(desc.Format)
	if !ok || !info.usage.Contains(desc.Usage) {
		return nil, errors.Wrapf(backend.ErrUnsupportedFormat, "texture %q format %v", desc.Label, desc.Format)
	}

	tex, err := b.device.CreateTexture(&wgpu.TextureDescriptor{
		Label: desc.Label,
		Size: wgpu.Extent3D{
			Width:              uint32(desc.Width),
			Height:             uint32(desc.Height),
			DepthOrArrayLayers: 1,
		},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        info.format,
		Usage:         toWGPUUsage(desc.Usage),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "create texture %q", desc.Label)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, errors.Wrapf(err, "create view of %q", desc.Label)
	}

	t := &texture{
		label:  desc.Label,
		width:  desc.Width,
		height: desc.Height,
		format: desc.Format,
		usage:  desc.Usage,
		info:   info,
		tex:    tex,
		view:   view,
	}
	b.textures[t] = struct{}{}
	return t, nil
}

func (b *webgpuBackend) ReleaseTexture(t backend.Texture) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wt, ok := t.(*texture); ok {
		b.releaseTexture(wt)
	}
}

func (b *webgpuBackend) releaseTexture(t *texture) {
	if t == nil {
		return
	}
	t.release()
	delete(b.textures, t)
}

func (b *webgpuBackend) UploadMesh(data backend.MeshData) (backend.Mesh, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(data.Indices) == 0 || len(data.Indices)%3 != 0 {
		return nil, errors.Newf("mesh %q index count %d is not a positive multiple of 3", data.Label, len(data.Indices))
	}
	for _, idx := range data.Indices {
		if int(idx) >= len(data.Positions) {
			return nil, errors.Newf("mesh %q index %d out of range (%d vertices)", data.Label, idx, len(data.Positions))
		}
	}
	if len(data.Normals) != 0 && len(data.Normals) != len(data.Positions) {
		return nil, errors.Newf("mesh %q has %d normals for %d vertices", data.Label, len(data.Normals), len(data.Positions))
	}

	vertexData := common.SliceToBytes(interleave(data))
	indexData := common.SliceToBytes(data.Indices)

	vertices, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            data.Label + " Vertex Buffer",
		Size:             uint64(len(vertexData)),
		Usage:            wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %q vertex buffer", data.Label)
	}
	b.queue.WriteBuffer(vertices, 0, vertexData)

	indices, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            data.Label + " Index Buffer",
		Size:             uint64(len(indexData)),
		Usage:            wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		vertices.Release()
		return nil, errors.Wrapf(err, "mesh %q index buffer", data.Label)
	}
	b.queue.WriteBuffer(indices, 0, indexData)

	m := &mesh{label: data.Label, vertices: vertices, indices: indices, indexCount: len(data.Indices)}
	b.meshes[m] = struct{}{}
	return m, nil
}

// interleave packs position and normal per vertex. Missing normals are zero.
func interleave(data backend.MeshData) []float32 {
	out := make([]float32, 0, len(data.Positions)*6)
	for i, p := range data.Positions {
		var n [3]float32
		if i < len(data.Normals) {
			n = data.Normals[i]
		}
		out = append(out, p[0], p[1], p[2], n[0], n[1], n[2])
	}
	return out
}

func (b *webgpuBackend) ReleaseMesh(m backend.Mesh) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if wm, ok := m.(*mesh); ok {
		wm.release()
		delete(b.meshes, wm)
	}
}

func (b *webgpuBackend) ConfigureOutput(width, height int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return errors.Wrap(backend.ErrFrameInFlight, "configure output")
	}
	if width <= 0 || height <= 0 {
		return errors.Newf("output size %dx%d is invalid", width, height)
	}

	depth, err := b.createTexture(backend.TextureDescriptor{
		Label:  "Default Output Depth",
		Width:  width,
		Height: height,
		Format: outputDepthFormat,
		Usage:  gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		return errors.Wrap(err, "configure output depth")
	}

	capabilities := b.surface.GetCapabilities(b.adapter)
	b.surface.Configure(b.adapter, b.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment,
		Format:      b.surfaceInfo.format,
		Width:       uint32(width),
		Height:      uint32(height),
		PresentMode: b.presentMode,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	b.releaseTexture(b.outputDepth)
	b.outputDepth = depth
	b.outputWidth, b.outputHeight = width, height

	logger.Log().Debug("webgpu output configured", zap.Int("width", width), zap.Int("height", height))
	return nil
}

func (b *webgpuBackend) OutputSize() (int, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.outputWidth, b.outputHeight
}

func (b *webgpuBackend) BeginFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface != nil {
		return backend.ErrFrameInFlight
	}
	if b.outputDepth == nil {
		return errors.New("default output is not configured")
	}

	surfaceTexture, err := b.surface.GetCurrentTexture()
	if err != nil {
		return errors.Wrap(err, "acquire surface texture")
	}
	view, err := surfaceTexture.CreateView(nil)
	if err != nil {
		surfaceTexture.Release()
		return errors.Wrap(err, "create surface view")
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		view.Release()
		surfaceTexture.Release()
		return errors.Wrap(err, "create command encoder")
	}

	b.frameSurface = surfaceTexture
	b.frameOutput = &texture{
		label:  "Default Output",
		width:  b.outputWidth,
		height: b.outputHeight,
		format: b.surfaceFormat,
		usage:  gputypes.TextureUsageRenderAttachment,
		info:   b.surfaceInfo,
		view:   view,
	}
	b.encoder = encoder
	return nil
}

func (b *webgpuBackend) BeginPass(target *backend.RenderTarget, clear backend.ClearOp) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder == nil {
		return backend.ErrNoFrame
	}
	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "pass %q still bound", b.pass.label)
	}

	p, err := b.resolveTarget(target)
	if err != nil {
		return err
	}

	colorLoad := wgpu.LoadOpLoad
	if clear.Flags.Has(backend.ClearColor) {
		colorLoad = wgpu.LoadOpClear
	}
	desc := &wgpu.RenderPassDescriptor{
		ColorAttachments: make([]wgpu.RenderPassColorAttachment, len(p.colors)),
	}
	for i, c := range p.colors {
		desc.ColorAttachments[i] = wgpu.RenderPassColorAttachment{
			View:    c.view,
			LoadOp:  colorLoad,
			StoreOp: wgpu.StoreOpStore,
			ClearValue: wgpu.Color{
				R: float64(clear.Color.R),
				G: float64(clear.Color.G),
				B: float64(clear.Color.B),
				A: float64(clear.Color.A),
			},
		}
	}
	if p.depth != nil {
		depthLoad := wgpu.LoadOpLoad
		if clear.Flags.Has(backend.ClearDepth) {
			depthLoad = wgpu.LoadOpClear
		}
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            p.depth.view,
			DepthLoadOp:     depthLoad,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: clear.Depth,
		}
		// Stencil ops must stay undefined for depth-only formats.
		if p.depth.info.stencil {
			stencilLoad := wgpu.LoadOpLoad
			if clear.Flags.Has(backend.ClearStencil) {
				stencilLoad = wgpu.LoadOpClear
			}
			desc.DepthStencilAttachment.StencilLoadOp = stencilLoad
			desc.DepthStencilAttachment.StencilStoreOp = wgpu.StoreOpStore
			desc.DepthStencilAttachment.StencilClearValue = clear.Stencil
		}
	}

	p.encoder = b.encoder.BeginRenderPass(desc)
	b.pass = p
	return nil
}

func (b *webgpuBackend) resolveTarget(target *backend.RenderTarget) (*boundPass, error) {
	if target == nil {
		p := &boundPass{label: "Default Output", colors: []*texture{b.frameOutput}, depth: b.outputDepth}
		p.target = targetKey{colors: []wgpu.TextureFormat{b.surfaceInfo.format}, depth: &b.outputDepth.info}
		return p, nil
	}

	if len(target.Colors) > b.caps.MaxSimultaneousRenderTargets {
		return nil, errors.Newf("target %q binds %d color attachments, device supports %d",
			target.Label, len(target.Colors), b.caps.MaxSimultaneousRenderTargets)
	}

	p := &boundPass{label: target.Label}
	width, height := 0, 0
	for i, c := range target.Colors {
		t, ok := c.(*texture)
		if !ok || t.released {
			return nil, errors.Wrapf(backend.ErrReleased, "target %q color %d", target.Label, i)
		}
		if len(p.colors) == 0 {
			width, height = t.width, t.height
		} else if t.width != width || t.height != height {
			return nil, errors.Newf("target %q color %d is %dx%d, expected %dx%d",
				target.Label, i, t.width, t.height, width, height)
		}
		p.colors = append(p.colors, t)
		p.target.colors = append(p.target.colors, t.info.format)
	}
	if target.DepthStencil != nil {
		t, ok := target.DepthStencil.(*texture)
		if !ok || t.released {
			return nil, errors.Wrapf(backend.ErrReleased, "target %q depth-stencil", target.Label)
		}
		if len(p.colors) > 0 && (t.width != width || t.height != height) {
			return nil, errors.Newf("target %q depth-stencil is %dx%d, expected %dx%d",
				target.Label, t.width, t.height, width, height)
		}
		p.depth = t
		p.target.depth = &t.info
	}
	if len(p.colors) == 0 && p.depth == nil {
		return nil, errors.Newf("target %q has no attachments", target.Label)
	}
	return p, nil
}

// uniformBindGroup uploads data into a transient uniform buffer bound at binding 0 of layout.
func (b *webgpuBackend) uniformBindGroup(label string, layout *wgpu.BindGroupLayout, data []byte) (*wgpu.BindGroup, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            label + " Uniforms",
		Size:             uint64(len(data)),
		Usage:            wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s uniform buffer", label)
	}
	b.queue.WriteBuffer(buf, 0, data)
	b.transient = append(b.transient, buf.Release)

	bg, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:  label + " Uniform Bind Group",
		Layout: layout,
		Entries: []wgpu.BindGroupEntry{
			{Binding: 0, Buffer: buf, Offset: 0, Size: wgpu.WholeSize},
		},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "%s uniform bind group", label)
	}
	b.transient = append(b.transient, bg.Release)
	return bg, nil
}

func (b *webgpuBackend) DrawMesh(m backend.Mesh, program backend.GeometryProgram, uniforms backend.GeometryUniforms) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	wm, ok := m.(*mesh)
	if !ok || wm.released {
		return errors.Wrapf(backend.ErrReleased, "mesh %q", m.Label())
	}
	if program.WGSL == "" {
		return errors.Newf("geometry program %q has no WGSL source", program.Key)
	}

	p, err := b.pipelines.geometry(program, b.pass.target)
	if err != nil {
		return err
	}
	bg, err := b.uniformBindGroup(wm.label, p.groupLayouts[0], common.StructToBytes(&uniforms))
	if err != nil {
		return err
	}

	enc := b.pass.encoder
	enc.SetPipeline(p.pipeline)
	enc.SetBindGroup(0, bg, nil)
	enc.SetVertexBuffer(0, wm.vertices, 0, wgpu.WholeSize)
	enc.SetIndexBuffer(wm.indices, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	enc.DrawIndexed(uint32(wm.indexCount), 1, 0, 0, 0)
	return nil
}

func (b *webgpuBackend) DrawFullscreen(program backend.FullscreenProgram, inputs []backend.Texture, params []float32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	if len(b.pass.colors) == 0 {
		return errors.Newf("pass %q has no color attachment to write", b.pass.label)
	}
	if program.WGSL == "" {
		return errors.Newf("fullscreen program %q has no WGSL source", program.Key)
	}
	if len(params) > backend.MaxFullscreenParams {
		return errors.Newf("fullscreen program %q got %d params, max %d", program.Key, len(params), backend.MaxFullscreenParams)
	}

	textures := make([]*texture, len(inputs))
	for i, in := range inputs {
		t, ok := in.(*texture)
		if !ok || t.released {
			return errors.Wrapf(backend.ErrReleased, "fullscreen program %q input %d", program.Key, i)
		}
		if b.pass.writes(t) {
			return errors.Wrapf(backend.ErrFeedbackLoop, "fullscreen program %q input %d (%q)", program.Key, i, t.label)
		}
		textures[i] = t
	}

	p, err := b.pipelines.fullscreen(program, textures, b.pass.target)
	if err != nil {
		return err
	}

	entries := []wgpu.BindGroupEntry{{Binding: 0, Sampler: b.sampler}}
	for i, t := range textures {
		entries = append(entries, wgpu.BindGroupEntry{Binding: uint32(i + 1), TextureView: t.view})
	}
	inputGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   program.Key + " Input Bind Group",
		Layout:  p.groupLayouts[0],
		Entries: entries,
	})
	if err != nil {
		return errors.Wrapf(err, "fullscreen program %q input bind group", program.Key)
	}
	b.transient = append(b.transient, inputGroup.Release)

	var block [backend.MaxFullscreenParams]float32
	copy(block[:], params)
	paramsGroup, err := b.uniformBindGroup(program.Key, p.groupLayouts[1], common.SliceToBytes(block[:]))
	if err != nil {
		return err
	}

	enc := b.pass.encoder
	enc.SetPipeline(p.pipeline)
	enc.SetBindGroup(0, inputGroup, nil)
	enc.SetBindGroup(1, paramsGroup, nil)
	enc.Draw(3, 1, 0, 0)
	return nil
}

func (b *webgpuBackend) EndPass() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.pass == nil {
		return backend.ErrNoPass
	}
	b.pass.encoder.End()
	b.pass.encoder.Release()
	b.pass = nil
	return nil
}

// submit finishes the current encoder and submits it, then frees the transient resources it
// referenced.
func (b *webgpuBackend) submit() error {
	defer b.releaseTransient()

	commandBuffer, err := b.encoder.Finish(nil)
	b.encoder.Release()
	b.encoder = nil
	if err != nil {
		return errors.Wrap(err, "finish command encoder")
	}
	b.queue.Submit(commandBuffer)
	commandBuffer.Release()
	return nil
}

func (b *webgpuBackend) releaseTransient() {
	for _, release := range b.transient {
		release()
	}
	b.transient = b.transient[:0]
}

func (b *webgpuBackend) Flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.encoder == nil {
		return backend.ErrNoFrame
	}
	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "flush with pass %q bound", b.pass.label)
	}

	if err := b.submit(); err != nil {
		b.dropFrame()
		return err
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		b.dropFrame()
		return errors.Wrap(err, "create command encoder")
	}
	b.encoder = encoder
	return nil
}

func (b *webgpuBackend) EndFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.frameSurface == nil {
		return backend.ErrNoFrame
	}
	if b.pass != nil {
		return errors.Wrapf(backend.ErrPassActive, "end frame with pass %q bound", b.pass.label)
	}

	if b.encoder != nil {
		if err := b.submit(); err != nil {
			b.dropFrame()
			return err
		}
	}
	b.surface.Present()
	b.dropFrame()
	return nil
}

// dropFrame releases the acquired surface texture and any encoder still recording.
func (b *webgpuBackend) dropFrame() {
	if b.pass != nil {
		b.pass.encoder.End()
		b.pass.encoder.Release()
		b.pass = nil
	}
	if b.encoder != nil {
		b.encoder.Release()
		b.encoder = nil
	}
	b.releaseTransient()
	if b.frameOutput != nil {
		b.frameOutput.view.Release()
		b.frameOutput = nil
	}
	if b.frameSurface != nil {
		b.frameSurface.Release()
		b.frameSurface = nil
	}
}

func (b *webgpuBackend) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.dropFrame()
	for t := range b.textures {
		b.releaseTexture(t)
	}
	b.outputDepth = nil
	for m := range b.meshes {
		m.release()
	}
	clear(b.meshes)
	if b.pipelines != nil {
		b.pipelines.release()
		b.pipelines = nil
	}
	if b.sampler != nil {
		b.sampler.Release()
		b.sampler = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.device != nil {
		b.device.Release()
		b.device = nil
	}
	if b.adapter != nil {
		b.adapter.Release()
		b.adapter = nil
	}
	if b.surface != nil {
		b.surface.Release()
		b.surface = nil
	}
	if b.instance != nil {
		b.instance.Release()
		b.instance = nil
	}
}
