package model

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend/software"
	"github.com/go-gl/mathgl/mgl32"
)

func TestProceduralMeshes(t *testing.T) {
	tests := []struct {
		name        string
		data        backend.MeshData
		wantIndices int
		wantRadius  float32
	}{
		{"cube", Cube(2), 36, 1.7320508},
		{"sphere", Sphere(1.5, 8, 12), 8 * 12 * 6, 1.5},
		{"plane", Plane(4), 6, 2.828427},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if len(tt.data.Indices) != tt.wantIndices {
				t.Errorf("index count = %d, want %d", len(tt.data.Indices), tt.wantIndices)
			}
			if len(tt.data.Normals) != len(tt.data.Positions) {
				t.Fatalf("%d normals for %d positions", len(tt.data.Normals), len(tt.data.Positions))
			}
			for _, idx := range tt.data.Indices {
				if int(idx) >= len(tt.data.Positions) {
					t.Fatalf("index %d out of range", idx)
				}
			}
			for i, n := range tt.data.Normals {
				if mgl32.Abs(n.Len()-1) > 1e-4 {
					t.Errorf("normal %d has length %f", i, n.Len())
				}
			}
			if got := BoundingRadius(tt.data); mgl32.Abs(got-tt.wantRadius) > 1e-4 {
				t.Errorf("BoundingRadius() = %f, want %f", got, tt.wantRadius)
			}
		})
	}
}

func TestCubeWindsOutward(t *testing.T) {
	data := Cube(1)
	for i := 0; i < len(data.Indices); i += 3 {
		a := data.Positions[data.Indices[i]]
		b := data.Positions[data.Indices[i+1]]
		c := data.Positions[data.Indices[i+2]]
		face := b.Sub(a).Cross(c.Sub(a))
		if face.Dot(data.Normals[data.Indices[i]]) <= 0 {
			t.Errorf("triangle %d winds inward", i/3)
		}
	}
}

func TestNewModel(t *testing.T) {
	b := software.NewSoftwareBackend()
	defer b.Release()

	m, err := NewModel(b, Cube(1), WithName("crate"), WithDiffuse(mgl32.Vec3{1, 0, 0}))
	if err != nil {
		t.Fatal(err)
	}
	if m.Name() != "crate" {
		t.Errorf("Name() = %q", m.Name())
	}
	if m.Mesh() == nil || m.Mesh().IndexCount() != 36 {
		t.Fatalf("Mesh() = %v, want 36 indices", m.Mesh())
	}
	if got := m.Material().Diffuse; got != (mgl32.Vec3{1, 0, 0}) {
		t.Errorf("Material().Diffuse = %v", got)
	}

	m.Release(b)
	m.Release(b)
	if m.Mesh() != nil {
		t.Error("Mesh() is not nil after Release")
	}
}

func TestNewModelRejectsBadGeometry(t *testing.T) {
	b := software.NewSoftwareBackend()
	defer b.Release()

	bad := Plane(1)
	bad.Normals = bad.Normals[:2]
	for name, data := range map[string]backend.MeshData{
		"empty":            {Label: "empty"},
		"missing normals": bad,
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := NewModel(b, data); err == nil {
				t.Error("NewModel() succeeded")
			}
		})
	}
}
