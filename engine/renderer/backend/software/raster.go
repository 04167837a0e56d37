package software

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/go-gl/mathgl/mgl32"
)

// minClipW rejects vertices on or behind the eye plane. Triangles touching them are skipped
// rather than clipped.
const minClipW = 1e-5

// rasterVertex is a vertex after the vertex stage.
type rasterVertex struct {
	screen     mgl32.Vec3
	clipW      float32
	invW       float32
	viewPos    mgl32.Vec3
	viewNormal mgl32.Vec3
}

// rasterize draws an indexed mesh into the bound pass with a LESS depth test.
// NDC z in [-1, 1] is mapped to window depth [0, 1], pixel centers sit at +0.5 and y points down.
func rasterize(p *boundPass, m *mesh, shade backend.GeometryShader, u *backend.GeometryUniforms) {
	normalMatrix := u.Normal.Mat3()
	w, h := float32(p.width), float32(p.height)

	verts := make([]rasterVertex, len(m.positions))
	for i, pos := range m.positions {
		viewPos := u.ModelView.Mul4x1(pos.Vec4(1))
		clip := u.Proj.Mul4x1(viewPos)
		v := rasterVertex{viewPos: viewPos.Vec3(), clipW: clip.W()}
		if i < len(m.normals) {
			v.viewNormal = normalMatrix.Mul3x1(m.normals[i])
		}
		if v.clipW > minClipW {
			v.invW = 1 / v.clipW
			ndc := clip.Vec3().Mul(v.invW)
			v.screen = mgl32.Vec3{
				(ndc.X()*0.5 + 0.5) * w,
				(0.5 - ndc.Y()*0.5) * h,
				ndc.Z()*0.5 + 0.5,
			}
		}
		verts[i] = v
	}

	out := make([]mgl32.Vec4, len(p.colors))
	for t := 0; t+2 < len(m.indices); t += 3 {
		a, b, c := verts[m.indices[t]], verts[m.indices[t+1]], verts[m.indices[t+2]]
		if a.clipW <= minClipW || b.clipW <= minClipW || c.clipW <= minClipW {
			continue
		}
		area := edge(a.screen, b.screen, c.screen[0], c.screen[1])
		if float32(math.Abs(float64(area))) < 1e-12 {
			continue
		}

		minX := max(0, int(math.Floor(float64(min(a.screen[0], b.screen[0], c.screen[0])))))
		maxX := min(p.width-1, int(math.Ceil(float64(max(a.screen[0], b.screen[0], c.screen[0])))))
		minY := max(0, int(math.Floor(float64(min(a.screen[1], b.screen[1], c.screen[1])))))
		maxY := min(p.height-1, int(math.Ceil(float64(max(a.screen[1], b.screen[1], c.screen[1])))))

		for y := minY; y <= maxY; y++ {
			py := float32(y) + 0.5
			for x := minX; x <= maxX; x++ {
				px := float32(x) + 0.5
				w0 := edge(b.screen, c.screen, px, py) / area
				w1 := edge(c.screen, a.screen, px, py) / area
				w2 := edge(a.screen, b.screen, px, py) / area
				if w0 < 0 || w1 < 0 || w2 < 0 {
					continue
				}

				z := w0*a.screen[2] + w1*b.screen[2] + w2*c.screen[2]
				if z < 0 || z > 1 {
					continue
				}
				if p.depth != nil {
					if z >= p.depth.depth(x, y) {
						continue
					}
					p.depth.setDepth(x, y, z)
				}

				pa, pb, pc := w0*a.invW, w1*b.invW, w2*c.invW
				inv := 1 / (pa + pb + pc)
				frag := backend.GeometryFragment{
					ViewPosition: a.viewPos.Mul(pa).Add(b.viewPos.Mul(pb)).Add(c.viewPos.Mul(pc)).Mul(inv),
					ViewNormal:   a.viewNormal.Mul(pa).Add(b.viewNormal.Mul(pb)).Add(c.viewNormal.Mul(pc)),
					Uniforms:     u,
				}
				if frag.ViewNormal.LenSqr() > 0 {
					frag.ViewNormal = frag.ViewNormal.Normalize()
				}

				clear(out)
				shade(frag, out)
				for k, tex := range p.colors {
					tex.store(x, y, out[k])
				}
			}
		}
	}
}

// edge is the signed doubled area of (a, b, p).
func edge(a, b mgl32.Vec3, px, py float32) float32 {
	return (b[0]-a[0])*(py-a[1]) - (b[1]-a[1])*(px-a[0])
}
