package model

import (
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/go-gl/mathgl/mgl32"
)

// ModelBuilderOption is a functional option for configuring a Model via NewModel.
type ModelBuilderOption func(*model)

// WithName is an option builder that sets the name of the Model.
// Defaults to the mesh label.
//
// Parameters:
//   - name: the model identifier
//
// Returns:
//   - ModelBuilderOption: a function that applies the name option to a model
func WithName(name string) ModelBuilderOption {
	return func(m *model) {
		m.name = name
	}
}

// WithMaterial is an option builder that sets the surface material of the Model.
//
// Parameters:
//   - mat: the material to set
//
// Returns:
//   - ModelBuilderOption: a function that applies the material option to a model
func WithMaterial(mat gbuffer.Material) ModelBuilderOption {
	return func(m *model) {
		m.material = mat
	}
}

// WithDiffuse is an option builder that sets only the diffuse color of the Model.
func WithDiffuse(diffuse mgl32.Vec3) ModelBuilderOption {
	return func(m *model) {
		m.material.Diffuse = diffuse
	}
}

// WithBoundingRadius overrides the bounding radius computed from the mesh.
//
// Parameters:
//   - radius: the bounding sphere radius
//
// Returns:
//   - ModelBuilderOption: a function that applies the bounding radius option to a model
func WithBoundingRadius(radius float32) ModelBuilderOption {
	return func(m *model) {
		m.boundingRadius = radius
	}
}
