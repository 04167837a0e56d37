// Package model holds meshes uploaded to a backend together with their surface material.
package model

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

// model is the implementation of the Model interface.
type model struct {
	mu *sync.Mutex

	name           string
	mesh           backend.Mesh
	material       gbuffer.Material
	boundingRadius float32
	released       bool
}

// Model defines the interface for a mesh resident on a backend.
// A Model is shared by any number of game objects, each with its own transform.
type Model interface {
	// Name retrieves the model identifier.
	//
	// Returns:
	//   - string: the model name
	Name() string

	// Mesh retrieves the uploaded mesh.
	//
	// Returns:
	//   - backend.Mesh: the mesh, or nil after Release
	Mesh() backend.Mesh

	// Material retrieves the surface material written into the G-buffer.
	//
	// Returns:
	//   - gbuffer.Material: the material
	Material() gbuffer.Material

	// SetMaterial replaces the surface material.
	//
	// Parameters:
	//   - mat: the new material
	SetMaterial(mat gbuffer.Material)

	// BoundingRadius returns the bounding sphere radius for this model, measured as
	// the maximum vertex distance from the origin. Used by frustum culling.
	//
	// Returns:
	//   - float32: the bounding radius
	BoundingRadius() float32

	// Release frees the mesh on the backend it was uploaded to. Safe to call more than once.
	//
	// Parameters:
	//   - b: the backend the mesh was uploaded to
	Release(b backend.Backend)
}

var _ Model = &model{}

// NewModel uploads mesh data to the backend and wraps it in a Model.
//
// Parameters:
//   - b: the backend to upload to
//   - data: the mesh geometry
//   - options: a variadic list of ModelBuilderOption functions to configure the Model
//
// Returns:
//   - Model: the uploaded model
//   - error: an error if the mesh is empty or the upload fails
func NewModel(b backend.Backend, data backend.MeshData, options ...ModelBuilderOption) (Model, error) {
	if len(data.Indices) == 0 || len(data.Positions) == 0 {
		return nil, errors.Newf("model %q has no geometry", data.Label)
	}
	if len(data.Normals) != len(data.Positions) {
		return nil, errors.Newf("model %q has %d normals for %d positions", data.Label, len(data.Normals), len(data.Positions))
	}

	m := &model{
		mu:             &sync.Mutex{},
		name:           data.Label,
		material:       gbuffer.Material{Diffuse: mgl32.Vec3{0.8, 0.8, 0.8}, Specular: 0.5},
		boundingRadius: BoundingRadius(data),
	}
	for _, opt := range options {
		opt(m)
	}

	mesh, err := b.UploadMesh(data)
	if err != nil {
		return nil, errors.Wrapf(err, "upload model %q", m.name)
	}
	m.mesh = mesh
	return m, nil
}

func (m *model) Name() string {
	return m.name
}

func (m *model) Mesh() backend.Mesh {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mesh
}

func (m *model) Material() gbuffer.Material {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.material
}

func (m *model) SetMaterial(mat gbuffer.Material) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.material = mat
}

func (m *model) BoundingRadius() float32 {
	return m.boundingRadius
}

func (m *model) Release(b backend.Backend) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.released {
		return
	}
	m.released = true
	if m.mesh != nil {
		b.ReleaseMesh(m.mesh)
		m.mesh = nil
	}
}
