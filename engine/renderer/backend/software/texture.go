package software

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/gogpu/gputypes"
)

// texture is a CPU image. Color formats hold four float channels per texel, depth formats hold one.
type texture struct {
	id       int
	label    string
	width    int
	height   int
	format   gputypes.TextureFormat
	usage    gputypes.TextureUsage
	channels int
	pix      []float32
	released bool
}

var _ backend.Texture = &texture{}
var _ backend.Sampler = &texture{}

func newTexture(id int, desc backend.TextureDescriptor) *texture {
	channels := 4
	if desc.Format.IsDepthStencil() {
		channels = 1
	}
	return &texture{
		id:       id,
		label:    desc.Label,
		width:    desc.Width,
		height:   desc.Height,
		format:   desc.Format,
		usage:    desc.Usage,
		channels: channels,
		pix:      make([]float32, desc.Width*desc.Height*channels),
	}
}

func (t *texture) Label() string {
	return t.label
}

func (t *texture) Width() int {
	return t.width
}

func (t *texture) Height() int {
	return t.height
}

func (t *texture) Format() gputypes.TextureFormat {
	return t.format
}

func (t *texture) Usage() gputypes.TextureUsage {
	return t.usage
}

func (t *texture) Load(x, y int) mgl32.Vec4 {
	x = clampInt(x, 0, t.width-1)
	y = clampInt(y, 0, t.height-1)
	i := (y*t.width + x) * t.channels
	if t.channels == 1 {
		d := t.pix[i]
		return mgl32.Vec4{d, d, d, 1}
	}
	return mgl32.Vec4{t.pix[i], t.pix[i+1], t.pix[i+2], t.pix[i+3]}
}

func (t *texture) Sample(u, v float32) mgl32.Vec4 {
	return t.Load(int(u*float32(t.width)), int(v*float32(t.height)))
}

// store writes a texel, clamping to [0, 1] for normalized formats.
func (t *texture) store(x, y int, c mgl32.Vec4) {
	i := (y*t.width + x) * t.channels
	if t.channels == 1 {
		t.pix[i] = c[0]
		return
	}
	if isNormalized(t.format) {
		for k := range 4 {
			c[k] = min(max(c[k], 0), 1)
		}
	}
	copy(t.pix[i:i+4], c[:])
}

func (t *texture) depth(x, y int) float32 {
	return t.pix[y*t.width+x]
}

func (t *texture) setDepth(x, y int, d float32) {
	t.pix[y*t.width+x] = d
}

func (t *texture) fill(c mgl32.Vec4) {
	if t.channels == 1 {
		for i := range t.pix {
			t.pix[i] = c[0]
		}
		return
	}
	for i := 0; i < len(t.pix); i += 4 {
		copy(t.pix[i:i+4], c[:])
	}
}

func isNormalized(f gputypes.TextureFormat) bool {
	switch f {
	case gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb, gputypes.TextureFormatBGRA8Unorm:
		return true
	}
	return false
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// mesh is an uploaded indexed triangle list.
type mesh struct {
	label     string
	positions []mgl32.Vec3
	normals   []mgl32.Vec3
	indices   []uint32
	released  bool
}

var _ backend.Mesh = &mesh{}

func (m *mesh) Label() string {
	return m.label
}

func (m *mesh) IndexCount() int {
	return len(m.indices)
}
