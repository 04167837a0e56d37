package webgpu

import (
	"fmt"
	"strings"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cockroachdb/errors"
	"github.com/cogentcore/webgpu/wgpu"
)

// fullscreenVertexWGSL draws one triangle covering the viewport. It is prepended to every
// fullscreen program, which only provides fs_main.
const fullscreenVertexWGSL = `
@vertex
fn vs_main(@builtin(vertex_index) i: u32) -> @builtin(position) vec4<f32> {
    let uv = vec2<f32>(f32((i << 1u) & 2u), f32(i & 2u));
    return vec4<f32>(uv * 2.0 - vec2<f32>(1.0), 0.0, 1.0);
}
`

// geometryVertexStride is one interleaved position and normal.
const geometryVertexStride = 6 * 4

// paramsSize is the byte size of the fullscreen parameter block.
const paramsSize = backend.MaxFullscreenParams * 4

// targetKey describes the attachments a pipeline renders into.
type targetKey struct {
	colors []wgpu.TextureFormat
	depth  *formatInfo
}

func (k targetKey) String() string {
	var sb strings.Builder
	for _, c := range k.colors {
		fmt.Fprintf(&sb, "%d,", c)
	}
	if k.depth != nil {
		fmt.Fprintf(&sb, "d%d", k.depth.format)
	}
	return sb.String()
}

// cachedPipeline is a compiled render pipeline with the layouts its bind groups are built from.
type cachedPipeline struct {
	pipeline       *wgpu.RenderPipeline
	pipelineLayout *wgpu.PipelineLayout
	groupLayouts   []*wgpu.BindGroupLayout
}

func (p *cachedPipeline) release() {
	p.pipeline.Release()
	p.pipelineLayout.Release()
	for _, l := range p.groupLayouts {
		l.Release()
	}
}

// pipelineCache compiles shader modules and pipelines on first use.
// Callers hold the backend lock.
type pipelineCache struct {
	device    *wgpu.Device
	modules   map[string]*wgpu.ShaderModule
	pipelines map[string]*cachedPipeline
}

func newPipelineCache(device *wgpu.Device) *pipelineCache {
	return &pipelineCache{
		device:    device,
		modules:   make(map[string]*wgpu.ShaderModule),
		pipelines: make(map[string]*cachedPipeline),
	}
}

func (c *pipelineCache) module(key, code string) (*wgpu.ShaderModule, error) {
	if m, ok := c.modules[key]; ok {
		return m, nil
	}
	m, err := c.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label:          key + " Shader",
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{Code: code},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "compile program %q", key)
	}
	c.modules[key] = m
	return m, nil
}

// uniformEntry is a uniform buffer at binding 0.
func uniformEntry(visibility wgpu.ShaderStage) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: visibility}
	entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	return entry
}

func depthState(target targetKey, write bool) *wgpu.DepthStencilState {
	if target.depth == nil {
		return nil
	}
	compare := wgpu.CompareFunctionAlways
	if write {
		compare = wgpu.CompareFunctionLess
	}
	return &wgpu.DepthStencilState{
		Format:            target.depth.format,
		DepthWriteEnabled: write,
		DepthCompare:      compare,
		StencilFront:      wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
		StencilBack:       wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways},
	}
}

func colorTargets(target targetKey) []wgpu.ColorTargetState {
	targets := make([]wgpu.ColorTargetState, len(target.colors))
	for i, f := range target.colors {
		targets[i] = wgpu.ColorTargetState{Format: f, WriteMask: wgpu.ColorWriteMaskAll}
	}
	return targets
}

// geometry returns the pipeline drawing program into target.
func (c *pipelineCache) geometry(program backend.GeometryProgram, target targetKey) (*cachedPipeline, error) {
	key := "geometry|" + program.Key + "|" + target.String()
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	module, err := c.module("geometry|"+program.Key, program.WGSL)
	if err != nil {
		return nil, err
	}

	uniformLayout, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   program.Key + " Uniform Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(wgpu.ShaderStageVertex | wgpu.ShaderStageFragment)},
	})
	if err != nil {
		return nil, errors.Wrapf(err, "program %q bind group layout", program.Key)
	}

	return c.build(key, module, []*wgpu.BindGroupLayout{uniformLayout}, []wgpu.VertexBufferLayout{
		{
			ArrayStride: geometryVertexStride,
			StepMode:    wgpu.VertexStepModeVertex,
			Attributes: []wgpu.VertexAttribute{
				{Format: wgpu.VertexFormatFloat32x3, Offset: 0, ShaderLocation: 0},
				{Format: wgpu.VertexFormatFloat32x3, Offset: 12, ShaderLocation: 1},
			},
		},
	}, target, true)
}

// fullscreen returns the pipeline running program over inputs into target.
func (c *pipelineCache) fullscreen(program backend.FullscreenProgram, inputs []*texture, target targetKey) (*cachedPipeline, error) {
	var sb strings.Builder
	sb.WriteString("fullscreen|" + program.Key + "|" + target.String() + "|")
	for _, in := range inputs {
		fmt.Fprintf(&sb, "%d,", in.info.sampleType)
	}
	key := sb.String()
	if p, ok := c.pipelines[key]; ok {
		return p, nil
	}

	module, err := c.module("fullscreen|"+program.Key, fullscreenVertexWGSL+program.WGSL)
	if err != nil {
		return nil, err
	}

	samplerEntry := wgpu.BindGroupLayoutEntry{Binding: 0, Visibility: wgpu.ShaderStageFragment}
	samplerEntry.Sampler.Type = wgpu.SamplerBindingTypeNonFiltering
	entries := []wgpu.BindGroupLayoutEntry{samplerEntry}
	for i, in := range inputs {
		entry := wgpu.BindGroupLayoutEntry{Binding: uint32(i + 1), Visibility: wgpu.ShaderStageFragment}
		entry.Texture.SampleType = in.info.sampleType
		entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		entry.Texture.Multisampled = false
		entries = append(entries, entry)
	}
	inputLayout, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   program.Key + " Input Layout",
		Entries: entries,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "program %q input layout", program.Key)
	}
	paramsLayout, err := c.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
		Label:   program.Key + " Params Layout",
		Entries: []wgpu.BindGroupLayoutEntry{uniformEntry(wgpu.ShaderStageFragment)},
	})
	if err != nil {
		inputLayout.Release()
		return nil, errors.Wrapf(err, "program %q params layout", program.Key)
	}

	return c.build(key, module, []*wgpu.BindGroupLayout{inputLayout, paramsLayout}, nil, target, false)
}

// build creates and caches a pipeline. The group layouts are owned by the result, or released
// on failure.
func (c *pipelineCache) build(
	key string,
	module *wgpu.ShaderModule,
	groupLayouts []*wgpu.BindGroupLayout,
	buffers []wgpu.VertexBufferLayout,
	target targetKey,
	depthWrite bool,
) (*cachedPipeline, error) {
	releaseLayouts := func() {
		for _, l := range groupLayouts {
			l.Release()
		}
	}

	pipelineLayout, err := c.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            key + " Layout",
		BindGroupLayouts: groupLayouts,
	})
	if err != nil {
		releaseLayouts()
		return nil, errors.Wrapf(err, "pipeline layout %q", key)
	}

	pipeline, err := c.device.CreateRenderPipeline(&wgpu.RenderPipelineDescriptor{
		Label:  key,
		Layout: pipelineLayout,
		Vertex: wgpu.VertexState{
			Module:     module,
			EntryPoint: "vs_main",
			Buffers:    buffers,
		},
		Fragment: &wgpu.FragmentState{
			Module:     module,
			EntryPoint: "fs_main",
			Targets:    colorTargets(target),
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  wgpu.PrimitiveTopologyTriangleList,
			FrontFace: wgpu.FrontFaceCCW,
			CullMode:  wgpu.CullModeNone,
		},
		DepthStencil: depthState(target, depthWrite),
		Multisample: wgpu.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		pipelineLayout.Release()
		releaseLayouts()
		return nil, errors.Wrapf(err, "render pipeline %q", key)
	}

	p := &cachedPipeline{pipeline: pipeline, pipelineLayout: pipelineLayout, groupLayouts: groupLayouts}
	c.pipelines[key] = p
	return p, nil
}

func (c *pipelineCache) release() {
	for _, p := range c.pipelines {
		p.release()
	}
	for _, m := range c.modules {
		m.Release()
	}
	clear(c.pipelines)
	clear(c.modules)
}
