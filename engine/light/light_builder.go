package light

import "github.com/go-gl/mathgl/mgl32"

// LightBuilderOption is a function that configures a Light instance during construction.
type LightBuilderOption func(*lightImpl)

// WithPosition is an option builder that sets the world-space position of the light.
//
// Parameters:
//   - x: the x position component
//   - y: the y position component
//   - z: the z position component
//
// Returns:
//   - LightBuilderOption: a function that applies the position option to a lightImpl
func WithPosition(x, y, z float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.position = mgl32.Vec3{x, y, z}
	}
}

// WithEnabled is an option builder that sets whether the light starts enabled.
func WithEnabled(enabled bool) LightBuilderOption {
	return func(l *lightImpl) {
		l.enabled = enabled
	}
}

// WithOrbit is an option builder that makes the light circle a center point around the world Y axis.
//
// Parameters:
//   - center: the point to orbit
//   - speed: angular speed in radians per second
//
// Returns:
//   - LightBuilderOption: a function that applies the orbit option to a lightImpl
func WithOrbit(center mgl32.Vec3, speed float32) LightBuilderOption {
	return func(l *lightImpl) {
		l.orbitCenter = center
		l.orbitSpeed = speed
	}
}
