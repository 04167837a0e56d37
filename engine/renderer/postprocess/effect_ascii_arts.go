package postprocess

import (
	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/go-gl/mathgl/mgl32"
)

// minGlyphCell is the smallest cell that still fits one glyph texel per pixel.
const minGlyphCell = 4

// asciiGlyphs are 4x4 bitmaps ordered by ink coverage, from blank to solid. Bit row*4+col is
// set where the glyph has ink: ' ', '.', ':', '-', '+', '=', '#' and a full block.
var asciiGlyphs = [...]uint16{0x0000, 0x2000, 0x2020, 0x0F00, 0x2F22, 0xF0F0, 0x6FF6, 0xFFFF}

const asciiArtsWGSL = wgslPrelude + `
@group(0) @binding(1) var in0: texture_2d<f32>;

@fragment
fn fs_main(@builtin(position) pos: vec4<f32>) -> @location(0) vec4<f32> {
    let size = max(i32(param(0u)), 4);
    let p = vec2<i32>(pos.xy);
    let cell = p - p % vec2<i32>(size);
    let lo = size / 4;
    let hi = size - 1 - lo;
    let lum = (luminance(load(in0, cell + vec2<i32>(lo, lo)).rgb)
        + luminance(load(in0, cell + vec2<i32>(hi, lo)).rgb)
        + luminance(load(in0, cell + vec2<i32>(lo, hi)).rgb)
        + luminance(load(in0, cell + vec2<i32>(hi, hi)).rgb)) * 0.25;
    var glyphs = array<u32, 8>(0x0000u, 0x2000u, 0x2020u, 0x0F00u, 0x2F22u, 0xF0F0u, 0x6FF6u, 0xFFFFu);
    let level = min(u32(clamp(lum, 0.0, 1.0) * 8.0), 7u);
    let g = (p % vec2<i32>(size)) * 4 / size;
    let ink = f32((glyphs[level] >> u32(g.y * 4 + g.x)) & 1u);
    return vec4<f32>(vec3<f32>(ink), 1.0);
}
`

// NewAsciiArtsEffect creates an effect that redraws the color surface as text: every cell
// shows the glyph whose ink coverage matches the cell's luminance, white on black.
//
// Parameters:
//   - b: the backend to draw with
//   - m: the manager resolving pin handles
//   - cellSize: the glyph cell edge in pixels, at least 4
//
// Returns:
//   - Effect: the ascii arts effect
func NewAsciiArtsEffect(b backend.Backend, m surface.Manager, cellSize int) Effect {
	return NewFullscreenEffect(b, m, EffectAsciiArts, 1, backend.FullscreenProgram{
		Key:    EffectAsciiArts,
		WGSL:   asciiArtsWGSL,
		Kernel: asciiArtsKernel,
	}, constParams(float32(max(cellSize, minGlyphCell))))
}

func asciiArtsKernel(x, y int, in []backend.Sampler, p []float32) mgl32.Vec4 {
	size := max(int(p[0]), minGlyphCell)
	cx, cy := x-x%size, y-y%size
	lo := size / 4
	hi := size - 1 - lo

	var lum float32
	for _, o := range [4][2]int{{lo, lo}, {hi, lo}, {lo, hi}, {hi, hi}} {
		lum += luminance(in[0].Load(cx+o[0], cy+o[1]).Vec3())
	}
	level := min(int(common.Clamp(lum/4, 0, 1)*8), len(asciiGlyphs)-1)

	gx, gy := (x%size)*4/size, (y%size)*4/size
	ink := float32(asciiGlyphs[level] >> (gy*4 + gx) & 1)
	return mgl32.Vec3{ink, ink, ink}.Vec4(1)
}
