package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const nightVisionWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let p = vec2<i32>(pos.xy);
    let dims = vec2<f32>(textureDimensions(in0));
    let noise = hash(p.x, p.y, i32(param(0u) * 24.0)) * 0.2 - 0.1;
    let g = (luminance(load(in0, p).rgb) * 1.6 + noise) * vignette(pos.xy, dims);
    return vec4<f32>(vec3<f32>(0.1, 0.95, 0.2) * g, 1.0);
}
`

var nightVisionTint = mgl32.Vec3{0.1, 0.95, 0.2}

// NewNightVisionEffect creates a night vision effect: amplified green luminance with animated
// noise and a vignette.
func NewNightVisionEffect(b backend.Backend, m surface.Manager) Effect {
	return NewFullscreenEffect(b, m, EffectNightVision, 1, backend.FullscreenProgram{
		Key:    EffectNightVision,
		WGSL:   nightVisionWGSL,
		Kernel: nightVisionKernel,
	}, timeParams())
}

func nightVisionKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	noise := hash(x, y, int(p[0]*24))*0.2 - 0.1
	g := (luminance(in[0].Load(x, y).Vec3())*1.6 + noise) * vignette(x, y, in[0].Width(), in[0].Height())
	return nightVisionTint.Mul(g).Vec4(1)
}
