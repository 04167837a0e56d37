package webgpu

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/cogentcore/webgpu/wgpu"
	"github.com/gogpu/gputypes"
)

// shaderModel is reported for every WebGPU device: WGSL covers fragment derivatives, MRT and
// integer texel loads.
const shaderModel = 5

// formatInfo is how a backend-neutral format maps onto WebGPU.
type formatInfo struct {
	format wgpu.TextureFormat
	// usage is what every WebGPU implementation guarantees for the format.
	usage gputypes.TextureUsage
	// sampleType is the bind group sample type used when the format is an effect input.
	sampleType wgpu.TextureSampleType
	stencil    bool
}

const (
	colorUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding |
		gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst
	depthUsage = gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding
)

// formats lists the formats WebGPU core guarantees as sampleable render attachments.
// Depth formats are bound as unfilterable floats so effects can textureLoad them.
var formats = map[gputypes.TextureFormat]formatInfo{
	gputypes.TextureFormatRGBA8Unorm:          {wgpu.TextureFormatRGBA8Unorm, colorUsage, wgpu.TextureSampleTypeFloat, false},
	gputypes.TextureFormatRGBA8UnormSrgb:      {wgpu.TextureFormatRGBA8UnormSrgb, colorUsage, wgpu.TextureSampleTypeFloat, false},
	gputypes.TextureFormatBGRA8Unorm:          {wgpu.TextureFormatBGRA8Unorm, colorUsage, wgpu.TextureSampleTypeFloat, false},
	gputypes.TextureFormatRGBA16Float:         {wgpu.TextureFormatRGBA16Float, colorUsage, wgpu.TextureSampleTypeFloat, false},
	gputypes.TextureFormatR32Float:            {wgpu.TextureFormatR32Float, colorUsage, wgpu.TextureSampleTypeUnfilterableFloat, false},
	gputypes.TextureFormatRGBA32Float:         {wgpu.TextureFormatRGBA32Float, colorUsage, wgpu.TextureSampleTypeUnfilterableFloat, false},
	gputypes.TextureFormatDepth16Unorm:        {wgpu.TextureFormatDepth16Unorm, depthUsage | gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst, wgpu.TextureSampleTypeUnfilterableFloat, false},
	gputypes.TextureFormatDepth24Plus:         {wgpu.TextureFormatDepth24Plus, depthUsage, wgpu.TextureSampleTypeUnfilterableFloat, false},
	gputypes.TextureFormatDepth24PlusStencil8: {wgpu.TextureFormatDepth24PlusStencil8, depthUsage, wgpu.TextureSampleTypeUnfilterableFloat, true},
	gputypes.TextureFormatDepth32Float:        {wgpu.TextureFormatDepth32Float, depthUsage | gputypes.TextureUsageCopySrc, wgpu.TextureSampleTypeUnfilterableFloat, false},
}

// lookupFormat returns the WebGPU mapping of f.
func lookupFormat(f gputypes.TextureFormat) (formatInfo, bool) {
	info, ok := formats[f]
	return info, ok
}

// toWGPUUsage converts usage flags one by one; flags with no WebGPU texture equivalent are dropped.
func toWGPUUsage(u gputypes.TextureUsage) wgpu.TextureUsage {
	var out wgpu.TextureUsage
	if u.Contains(gputypes.TextureUsageCopySrc) {
		out |= wgpu.TextureUsageCopySrc
	}
	if u.Contains(gputypes.TextureUsageCopyDst) {
		out |= wgpu.TextureUsageCopyDst
	}
	if u.Contains(gputypes.TextureUsageTextureBinding) {
		out |= wgpu.TextureUsageTextureBinding
	}
	if u.Contains(gputypes.TextureUsageRenderAttachment) {
		out |= wgpu.TextureUsageRenderAttachment
	}
	return out
}

// coreCapabilities builds the capability set of a device created with the given color
// attachment limit.
func coreCapabilities(maxColorAttachments int) backend.Capabilities {
	caps := backend.Capabilities{
		MaxShaderModel:               shaderModel,
		MaxSimultaneousRenderTargets: min(maxColorAttachments, backend.MaxColorAttachments),
		SupportedFormats:             make(map[gputypes.TextureFormat]gputypes.TextureUsage, len(formats)),
	}
	for f, info := range formats {
		caps.SupportedFormats[f] = info.usage
	}
	return caps
}
