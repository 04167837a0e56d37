package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const oldFashionWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let p = vec2<i32>(pos.xy);
    let dims = vec2<f32>(textureDimensions(in0));
    let c = load(in0, p).rgb;
    var s = vec3<f32>(
        dot(c, vec3<f32>(0.393, 0.769, 0.189)),
        dot(c, vec3<f32>(0.349, 0.686, 0.168)),
        dot(c, vec3<f32>(0.272, 0.534, 0.131)),
    );
    let frame = i32(param(0u) * 12.0);
    s = s + vec3<f32>(hash(p.x, p.y, frame) * 0.1 - 0.05);
    let scratch_x = i32(hash(0, 0, frame) * dims.x);
    if (p.x == scratch_x && hash(1, p.y / 8, frame) > 0.3) {
        s = s + vec3<f32>(0.3);
    }
    return vec4<f32>(s * vignette(pos.xy, dims), 1.0);
}
`

var sepia = mgl32.Mat3{
	0.393, 0.349, 0.272,
	0.769, 0.686, 0.534,
	0.189, 0.168, 0.131,
}

// NewOldFashionEffect creates an aged film effect: sepia toning, film grain, a flickering
// vertical scratch and a vignette.
func NewOldFashionEffect(b backend.Backend, m surface.Manager) Effect {
	return NewFullscreenEffect(b, m, EffectOldFashion, 1, backend.FullscreenProgram{
		Key:    EffectOldFashion,
		WGSL:   oldFashionWGSL,
		Kernel: oldFashionKernel,
	}, timeParams())
}

func oldFashionKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	w, h := in[0].Width(), in[0].Height()
	s := sepia.Mul3x1(in[0].Load(x, y).Vec3())

	frame := int(p[0] * 12)
	grain := hash(x, y, frame)*0.1 - 0.05
	s = s.Add(mgl32.Vec3{grain, grain, grain})
	if x == int(hash(0, 0, frame)*float32(w)) && hash(1, y/8, frame) > 0.3 {
		s = s.Add(mgl32.Vec3{0.3, 0.3, 0.3})
	}
	return s.Mul(vignette(x, y, w, h)).Vec4(1)
}
