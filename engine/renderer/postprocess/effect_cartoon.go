package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const cartoonWGSL = wgslPrelude + `
@group(0) @binding(1) var normal_depth: texture_2d<f32>;
@group(0) @binding(2) var color: texture_2d<f32>;

fn edge_weight(p: vec2<i32>) -> f32 {
    let c = load(normal_depth, p);
    var e = 0.0;
    var offsets = array<vec2<i32>, 4>(vec2<i32>(1, 0), vec2<i32>(-1, 0), vec2<i32>(0, 1), vec2<i32>(0, -1));
    for (var i = 0; i < 4; i = i + 1) {
        let o = load(normal_depth, p + offsets[i]);
        e = e + (1.0 - dot(c.xyz * 2.0 - vec3<f32>(1.0), o.xyz * 2.0 - vec3<f32>(1.0))) * 0.5 + abs(c.w - o.w) * 4.0;
    }
    return e;
}

fn toon(d: f32) -> f32 {
    if (d > 0.8) { return 1.0; }
    if (d > 0.4) { return 0.6; }
    if (d > 0.1) { return 0.35; }
    return param(6u);
}

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let p = vec2<i32>(pos.xy);
    if (edge_weight(p) > param(8u)) {
        return vec4<f32>(0.0, 0.0, 0.0, 1.0);
    }
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
    let d = max(dot(n, l), 0.0);
    var spec = 0.0;
    if (d > 0.0 && pow(max(dot(n, normalize(l + v)), 0.0), param(7u)) > 0.5) {
        spec = albedo.a;
    }
    return vec4<f32>(albedo.rgb * toon(d) + vec3<f32>(spec), 1.0);
}
`

// NewCartoonEffect creates a toon shading effect: quantized diffuse bands, hard specular
// highlights and black outlines where normal or depth changes sharply.
// Pin 0 reads normal-depth, pin 1 reads color.
//
// Parameters:
//   - b: the backend to draw with
//   - m: the manager resolving pin handles
//   - edgeThreshold: the edge weight above which a pixel becomes outline
//
// Returns:
//   - Effect: the cartoon effect
func NewCartoonEffect(b backend.Backend, m surface.Manager, edgeThreshold float32) Effect {
	return NewFullscreenEffect(b, m, EffectCartoon, 2, backend.FullscreenProgram{
		Key:    EffectCartoon,
		WGSL:   cartoonWGSL,
		Kernel: cartoonKernel,
	}, lightingParams(edgeThreshold))
}

var edgeOffsets = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

func edgeWeight(x, y int, nd backend.Sampler) float32 {
	c := nd.Load(x, y)
	cn := common.DecodeNormal(c.Vec3())
	var e float32
	for _, o := range edgeOffsets {
		n := nd.Load(x+o[0], y+o[1])
		e += (1-cn.Dot(common.DecodeNormal(n.Vec3())))*0.5 + mgl32.Abs(c[3]-n[3])*4
	}
	return e
}

func toon(d, ambient float32) float32 {
	switch {
	case d > 0.8:
		return 1
	case d > 0.4:
		return 0.6
	case d > 0.1:
		return 0.35
	default:
		return ambient
	}
}

func cartoonKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	if edgeWeight(x, y, in[0]) > p[8] {
		return mgl32.Vec4{0, 0, 0, 1}
	}
	nd := in[0].Load(x, y)
	albedo := in[1].Load(x, y)

	diffuse, spec, ok := lightTerms(x, y, nd, in[0].Width(), in[0].Height(), p)
	if !ok {
		return albedo.Vec3().Vec4(1)
	}
	highlight := float32(0)
	if spec > 0.5 {
		highlight = albedo[3]
	}
	return albedo.Vec3().Mul(toon(diffuse, p[6])).Add(mgl32.Vec3{highlight, highlight, highlight}).Vec4(1)
}
