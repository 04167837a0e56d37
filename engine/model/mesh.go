package model

import (
	"math"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/go-gl/mathgl/mgl32"
)

// Cube builds an axis-aligned cube centered on the origin with flat per-face normals.
// Triangles wind counter-clockwise when seen from outside.
//
// Parameters:
//   - size: the edge length
//
// Returns:
//   - backend.MeshData: 24 vertices and 36 indices
func Cube(size float32) backend.MeshData {
	h := size / 2
	faces := []struct {
		normal, u, v mgl32.Vec3
	}{
		{mgl32.Vec3{0, 0, 1}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 0, -1}, mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{-1, 0, 0}, mgl32.Vec3{0, 0, 1}, mgl32.Vec3{0, 1, 0}},
		{mgl32.Vec3{0, 1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, -1}},
		{mgl32.Vec3{0, -1, 0}, mgl32.Vec3{1, 0, 0}, mgl32.Vec3{0, 0, 1}},
	}

	data := backend.MeshData{Label: "cube"}
	for _, f := range faces {
		base := uint32(len(data.Positions))
		c := f.normal.Mul(h)
		u := f.u.Mul(h)
		v := f.v.Mul(h)
		data.Positions = append(data.Positions,
			c.Sub(u).Sub(v),
			c.Add(u).Sub(v),
			c.Add(u).Add(v),
			c.Sub(u).Add(v),
		)
		data.Normals = append(data.Normals, f.normal, f.normal, f.normal, f.normal)
		data.Indices = append(data.Indices, base, base+1, base+2, base, base+2, base+3)
	}
	return data
}

// Sphere builds a UV sphere centered on the origin.
//
// Parameters:
//   - radius: the sphere radius
//   - rings: latitude bands, clamped to at least 2
//   - segments: longitude bands, clamped to at least 3
//
// Returns:
//   - backend.MeshData: the sphere with smooth normals
func Sphere(radius float32, rings, segments int) backend.MeshData {
	rings = max(rings, 2)
	segments = max(segments, 3)

	data := backend.MeshData{Label: "sphere"}
	for r := 0; r <= rings; r++ {
		phi := math.Pi * float64(r) / float64(rings)
		y := float32(math.Cos(phi))
		ringRadius := float32(math.Sin(phi))
		for s := 0; s <= segments; s++ {
			theta := 2 * math.Pi * float64(s) / float64(segments)
			n := mgl32.Vec3{
				ringRadius * float32(math.Sin(theta)),
				y,
				ringRadius * float32(math.Cos(theta)),
			}
			data.Normals = append(data.Normals, n)
			data.Positions = append(data.Positions, n.Mul(radius))
		}
	}

	stride := uint32(segments + 1)
	for r := uint32(0); r < uint32(rings); r++ {
		for s := uint32(0); s < uint32(segments); s++ {
			a := r*stride + s
			b := a + stride
			data.Indices = append(data.Indices, a, b, a+1, a+1, b, b+1)
		}
	}
	return data
}

// Plane builds a square in the XZ plane facing +Y.
func Plane(size float32) backend.MeshData {
	h := size / 2
	up := mgl32.Vec3{0, 1, 0}
	return backend.MeshData{
		Label:     "plane",
		Positions: []mgl32.Vec3{{-h, 0, h}, {h, 0, h}, {h, 0, -h}, {-h, 0, -h}},
		Normals:   []mgl32.Vec3{up, up, up, up},
		Indices:   []uint32{0, 1, 2, 0, 2, 3},
	}
}

// BoundingRadius returns the distance from the origin to the farthest vertex.
func BoundingRadius(data backend.MeshData) float32 {
	var r float32
	for _, p := range data.Positions {
		r = max(r, p.Len())
	}
	return r
}
