// Package light provides the point light the lit post-process effects shade with.
package light

import (
	"sync"

	"github.com/go-gl/mathgl/mgl32"
)

// lightImpl is the implementation of the Light interface.
type lightImpl struct {
	mu *sync.Mutex

	position mgl32.Vec3
	enabled  bool

	// orbit state; orbitSpeed == 0 keeps the light static
	orbitCenter mgl32.Vec3
	orbitSpeed  float32
}

// Light defines the interface for the scene's point light.
//
// The lit effects shade with a single point light whose world-space position is
// handed to the renderer once per frame. A light may orbit a center point around
// the world Y axis to animate the shading.
type Light interface {
	// Position returns the world-space position of the light.
	//
	// Returns:
	//   - mgl32.Vec3: position as (x, y, z)
	Position() mgl32.Vec3

	// SetPosition moves the light.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec3)

	// Enabled returns whether this light contributes to shading.
	Enabled() bool

	// SetEnabled enables or disables the light.
	SetEnabled(enabled bool)

	// SetOrbit makes the light circle center around the world Y axis.
	//
	// Parameters:
	//   - center: the point to orbit
	//   - speed: angular speed in radians per second, 0 to stop
	SetOrbit(center mgl32.Vec3, speed float32)

	// Update advances the orbit.
	//
	// Parameters:
	//   - deltaTime: elapsed time in seconds
	Update(deltaTime float32)
}

var _ Light = &lightImpl{}

// NewLight creates a new enabled Light configured with the given options.
//
// Parameters:
//   - options: functional options to configure the light
//
// Returns:
//   - Light: the configured light instance
func NewLight(options ...LightBuilderOption) Light {
	l := &lightImpl{
		mu:       &sync.Mutex{},
		position: mgl32.Vec3{5, 5, 5},
		enabled:  true,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *lightImpl) Position() mgl32.Vec3 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.position
}

func (l *lightImpl) SetPosition(p mgl32.Vec3) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = p
}

func (l *lightImpl) Enabled() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.enabled
}

func (l *lightImpl) SetEnabled(enabled bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.enabled = enabled
}

func (l *lightImpl) SetOrbit(center mgl32.Vec3, speed float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orbitCenter = center
	l.orbitSpeed = speed
}

func (l *lightImpl) Update(deltaTime float32) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.orbitSpeed == 0 {
		return
	}
	offset := l.position.Sub(l.orbitCenter)
	rot := mgl32.HomogRotate3DY(l.orbitSpeed * deltaTime)
	l.position = l.orbitCenter.Add(rot.Mul4x1(offset.Vec4(1)).Vec3())
}
