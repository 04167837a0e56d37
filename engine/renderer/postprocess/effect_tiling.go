package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

const tilingWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let size = max(i32(param(0u)), 1);
    let p = vec2<i32>(pos.xy);
    let tile = p - p % vec2<i32>(size);
    var c = load(in0, tile + vec2<i32>(size / 2)).rgb;
    if (p.x % size == 0 || p.y % size == 0) {
        c = c * 0.5;
    }
    return vec4<f32>(c, 1.0);
}
`

// NewTilingEffect creates a mosaic effect: each tile takes the color at its center and tile
// borders are drawn darker.
//
// Parameters:
//   - b: the backend to draw with
//   - m: the manager resolving pin handles
//   - tileSize: the tile edge in pixels
//
// Returns:
//   - Effect: the tiling effect
func NewTilingEffect(b backend.Backend, m surface.Manager, tileSize int) Effect {
	return NewFullscreenEffect(b, m, EffectTiling, 1, backend.FullscreenProgram{
		Key:    EffectTiling,
		WGSL:   tilingWGSL,
		Kernel: tilingKernel,
	}, constParams(float32(tileSize)))
}

func tilingKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	size := max(int(p[0]), 1)
	c := in[0].Load(x-x%size+size/2, y-y%size+size/2).Vec3()
	if x%size == 0 || y%size == 0 {
		c = c.Mul(0.5)
	}
	return c.Vec4(1)
}
