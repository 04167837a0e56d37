package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const toneMapWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let c = max(load(in0, vec2<i32>(pos.xy)).rgb, vec3<f32>(0.0)) * param(0u);
    return vec4<f32>(c / (vec3<f32>(1.0) + c), 1.0);
}
`

// NewToneMapEffect creates an HDR tone mapping effect using the Reinhard operator.
//
// Parameters:
//   - b: the backend to draw with
//   - m: the manager resolving pin handles
//   - exposure: the scale applied before mapping
//
// Returns:
//   - Effect: the tone map effect
func NewToneMapEffect(b backend.Backend, m surface.Manager, exposure float32) Effect {
	return NewFullscreenEffect(b, m, EffectToneMap, 1, backend.FullscreenProgram{
		Key:    EffectToneMap,
		WGSL:   toneMapWGSL,
		Kernel: toneMapKernel,
	}, constParams(exposure))
}

func toneMapKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	c := in[0].Load(x, y)
	var out mgl32.Vec4
	for i := range 3 {
		v := max(c[i], 0) * p[0]
		out[i] = v / (1 + v)
	}
	out[3] = 1
	return out
}
