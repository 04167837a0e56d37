package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const deferredShadingWGSL = wgslPrelude + `
@group(0) @binding(1) var normal_depth: texture_2d<f32>;
@group(0) @binding(2) var color: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let p = vec2<i32>(pos.xy);
    let nd = load(normal_depth, p);
    let albedo = load(color, p);
    if (nd.w >= 1.0) {
        return vec4<f32>(albedo.rgb, 1.0);
    }
    let dims = vec2<f32>(textureDimensions(normal_depth));
    let vp = view_position(pos.xy, dims, nd.w * param(3u), param(4u), param(5u));
    let n = normalize(nd.xyz * 2.0 - vec3<f32>(1.0));
    let l = normalize(vec3<f32>(param(0u), param(1u), param(2u)) - vp);
    let v = normalize(-vp);
    let diffuse = max(dot(n, l), 0.0);
    var spec = 0.0;
    if (diffuse > 0.0) {
        spec = pow(max(dot(n, normalize(l + v)), 0.0), param(7u)) * albedo.a;
    }
    return vec4<f32>(albedo.rgb * (param(6u) + diffuse) + vec3<f32>(spec), 1.0);
}
`

// NewDeferredShadingEffect creates the lighting effect: a point light in eye space shading the
// G-buffer with Lambert diffuse and Blinn-Phong specular.
// Pin 0 reads normal-depth, pin 1 reads color.
func NewDeferredShadingEffect(b backend.Backend, m surface.Manager) Effect {
	return NewFullscreenEffect(b, m, EffectDeferredShading, 2, backend.FullscreenProgram{
		Key:    EffectDeferredShading,
		WGSL:   deferredShadingWGSL,
		Kernel: deferredShadingKernel,
	}, lightingParams())
}

// lightTerms returns the diffuse and specular terms at a G-buffer texel, and false for background.
func lightTerms(x, y int, nd mgl32.Vec4, w, h int, p []float32) (diffuse, spec float32, ok bool) {
	if nd[3] >= 1 {
		return 0, 0, false
	}
	pos := viewPosition(x, y, w, h, nd[3]*p[3], p[4], p[5])
	n := common.DecodeNormal(nd.Vec3())
	l := safeNormalize(mgl32.Vec3{p[0], p[1], p[2]}.Sub(pos))
	v := safeNormalize(pos.Mul(-1))

	diffuse = max(n.Dot(l), 0)
	if diffuse > 0 {
		spec = pow32(max(n.Dot(safeNormalize(l.Add(v))), 0), p[7])
	}
	return diffuse, spec, true
}

func deferredShadingKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	nd := in[0].Load(x, y)
	albedo := in[1].Load(x, y)

	diffuse, spec, ok := lightTerms(x, y, nd, in[0].Width(), in[0].Height(), p)
	if !ok {
		return albedo.Vec3().Vec4(1)
	}
	spec *= albedo[3]
	return albedo.Vec3().Mul(p[6] + diffuse).Add(mgl32.Vec3{spec, spec, spec}).Vec4(1)
}
