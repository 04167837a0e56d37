package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const copyWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    return load(in0, vec2<i32>(pos.xy));
}
`

// NewCopyEffect creates an effect that copies pin 0 to the output unchanged.
func NewCopyEffect(b backend.Backend, m surface.Manager) Effect {
	return NewFullscreenEffect(b, m, EffectCopy, 1, backend.FullscreenProgram{
		Key:    EffectCopy,
		WGSL:   copyWGSL,
		Kernel: copyKernel,
	}, nil)
}

func copyKernel(x, y int, in []backend.Sampler, _ []float32) mgl32.Vec4 {
	return in[0].Load(x, y)
}
