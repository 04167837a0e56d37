package postprocess

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/go-gl/mathgl/mgl32"
)

// wgslPrelude declares the bindings every effect program shares. Input textures follow at
// @group(0) @binding(1..n) and are declared by each program.
const wgslPrelude = `
struct Params {
    v: array<vec4<f32>, 4>,
};

@group(0) @binding(0) var samp: sampler;
@group(1) @binding(0) var<uniform> params: Params;

fn param(i: u32) -> f32 {
    return params.v[i / 4u][i % 4u];
}

fn load(t: texture_2d<f32>, p: vec2<i32>) -> vec4<f32> {
    let d = vec2<i32>(textureDimensions(t));
    return textureLoad(t, clamp(p, vec2<i32>(0), d - vec2<i32>(1)), 0);
}

fn hash(x: i32, y: i32, seed: i32) -> f32 {
    var h = u32(x) * 374761393u + u32(y) * 668265263u + u32(seed) * 2246822519u;
    h = (h ^ (h >> 13u)) * 1274126177u;
    h = h ^ (h >> 16u);
    return f32(h) / 4294967295.0;
}

fn luminance(c: vec3<f32>) -> f32 {
    return dot(c, vec3<f32>(0.299, 0.587, 0.114));
}

fn vignette(pos: vec2<f32>, dims: vec2<f32>) -> f32 {
    let d = length(pos / dims - vec2<f32>(0.5));
    return 1.0 - smoothstep(0.35, 0.75, d);
}

fn view_position(pos: vec2<f32>, dims: vec2<f32>, dist: f32, px: f32, py: f32) -> vec3<f32> {
    let ndc = vec2<f32>(pos.x / dims.x * 2.0 - 1.0, 1.0 - pos.y / dims.y * 2.0);
    return vec3<f32>(ndc.x * dist / px, ndc.y * dist / py, -dist);
}
`

var lumaWeights = mgl32.Vec3{0.299, 0.587, 0.114}

func luminance(c mgl32.Vec3) float32 {
	return c.Dot(lumaWeights)
}

// hash maps integer coordinates and a seed to [0, 1]. The WGSL prelude computes the same value.
func hash(x, y, seed int) float32 {
	h := uint32(x)*374761393 + uint32(y)*668265263 + uint32(seed)*2246822519
	h = (h ^ (h >> 13)) * 1274126177
	h ^= h >> 16
	return float32(float64(h) / math.MaxUint32)
}

func smoothstep(edge0, edge1, x float32) float32 {
	t := common.Clamp((x-edge0)/(edge1-edge0), 0, 1)
	return t * t * (3 - 2*t)
}

// vignette darkens towards the corners, 1 at the center.
func vignette(x, y, w, h int) float32 {
	u := (float32(x)+0.5)/float32(w) - 0.5
	v := (float32(y)+0.5)/float32(h) - 0.5
	d := float32(math.Sqrt(float64(u*u + v*v)))
	return 1 - smoothstep(0.35, 0.75, d)
}

// viewPosition rebuilds a view-space position from a pixel and its eye distance along -z.
// px and py are the x and y scale terms of the perspective projection.
func viewPosition(x, y, w, h int, dist, px, py float32) mgl32.Vec3 {
	ndcX := (float32(x)+0.5)/float32(w)*2 - 1
	ndcY := 1 - (float32(y)+0.5)/float32(h)*2
	return mgl32.Vec3{ndcX * dist / px, ndcY * dist / py, -dist}
}

func safeNormalize(v mgl32.Vec3) mgl32.Vec3 {
	if v.LenSqr() == 0 {
		return v
	}
	return v.Normalize()
}

func pow32(x, y float32) float32 {
	return float32(math.Pow(float64(x), float64(y)))
}
