// Package game_object holds the per-instance transform of a model placed in a scene.
package game_object

import (
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-deferred/engine/light"
	"github.com/Carmen-Shannon/oxy-deferred/engine/model"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/gbuffer"
	"github.com/go-gl/mathgl/mgl32"
)

type gameObject struct {
	mu *sync.Mutex

	id            uint64
	name          string
	enabled       atomic.Bool
	mdl           model.Model
	attachedLight light.Light

	position      mgl32.Vec3
	rotation      mgl32.Vec3 // euler angles in radians, applied X then Y then Z
	rotationSpeed mgl32.Vec3 // radians per second
	scale         mgl32.Vec3
}

// GameObject defines the interface for a scene entity: a shared Model placed with its own transform.
// A GameObject is drawn by the G-buffer pass, so it satisfies gbuffer.Object.
type GameObject interface {
	gbuffer.Object

	// ID returns the object's unique identifier.
	//
	// Returns:
	//   - uint64: the object ID, 0 until the object is added to a scene
	ID() uint64

	// SetID sets the object's unique identifier.
	//
	// Parameters:
	//   - id: the ID to assign
	SetID(id uint64)

	// Enabled returns whether this object is enabled for rendering.
	//
	// Returns:
	//   - bool: true if enabled
	Enabled() bool

	// SetEnabled sets whether the object is enabled for rendering.
	//
	// Parameters:
	//   - enabled: true to enable
	SetEnabled(enabled bool)

	// Model returns the Model associated with this object, or nil if not set.
	//
	// Returns:
	//   - model.Model: the associated model or nil
	Model() model.Model

	// SetModel assigns a Model to this object.
	//
	// Parameters:
	//   - m: the model to draw
	SetModel(m model.Model)

	// Position returns the world-space position.
	Position() mgl32.Vec3

	// Rotation returns the euler rotation in radians.
	Rotation() mgl32.Vec3

	// RotationSpeed returns the euler rotation speed in radians per second.
	RotationSpeed() mgl32.Vec3

	// Scale returns the per-axis scale.
	Scale() mgl32.Vec3

	// SetPosition moves the object.
	//
	// Parameters:
	//   - p: the new world-space position
	SetPosition(p mgl32.Vec3)

	// SetRotation sets the euler rotation.
	//
	// Parameters:
	//   - r: rotation around X, Y and Z in radians
	SetRotation(r mgl32.Vec3)

	// SetRotationSpeed sets the spin applied by Update.
	//
	// Parameters:
	//   - s: radians per second around X, Y and Z
	SetRotationSpeed(s mgl32.Vec3)

	// SetScale sets the per-axis scale.
	//
	// Parameters:
	//   - s: the new scale
	SetScale(s mgl32.Vec3)

	// BoundingSphere returns the world-space bounding sphere used for frustum culling.
	//
	// Returns:
	//   - center: the sphere center
	//   - radius: the model radius scaled by the largest scale component
	BoundingSphere() (center mgl32.Vec3, radius float32)

	// Light returns the attached light, or nil.
	Light() light.Light

	// SetLight attaches a light that follows the object's position.
	//
	// Parameters:
	//   - l: the light to attach, or nil to detach
	SetLight(l light.Light)

	// Update advances the rotation by the rotation speed and moves the attached light to the object.
	//
	// Parameters:
	//   - deltaTime: elapsed time in seconds
	Update(deltaTime float32)
}

var _ GameObject = &gameObject{}

// NewGameObject creates a new enabled GameObject with unit scale, configured by the provided options.
//
// Parameters:
//   - options: functional options to configure the object
//
// Returns:
//   - GameObject: the newly created object
func NewGameObject(options ...GameObjectBuilderOption) GameObject {
	g := &gameObject{
		mu:    &sync.Mutex{},
		scale: mgl32.Vec3{1, 1, 1},
	}
	g.enabled.Store(true)
	for _, opt := range options {
		opt(g)
	}
	return g
}

func (g *gameObject) ID() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.id
}

func (g *gameObject) SetID(id uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.id = id
}

// Name returns the object name, falling back to the model name.
func (g *gameObject) Name() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.name == "" && g.mdl != nil {
		return g.mdl.Name()
	}
	return g.name
}

func (g *gameObject) Enabled() bool {
	return g.enabled.Load()
}

func (g *gameObject) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

func (g *gameObject) Model() model.Model {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mdl
}

func (g *gameObject) SetModel(m model.Model) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mdl = m
}

func (g *gameObject) Mesh() backend.Mesh {
	m := g.Model()
	if m == nil {
		return nil
	}
	return m.Mesh()
}

func (g *gameObject) Material() gbuffer.Material {
	m := g.Model()
	if m == nil {
		return gbuffer.Material{}
	}
	return m.Material()
}

// ModelMatrix composes translation * rotation * scale.
func (g *gameObject) ModelMatrix() mgl32.Mat4 {
	g.mu.Lock()
	defer g.mu.Unlock()

	t := mgl32.Translate3D(g.position.X(), g.position.Y(), g.position.Z())
	r := mgl32.HomogRotate3DZ(g.rotation.Z()).
		Mul4(mgl32.HomogRotate3DY(g.rotation.Y())).
		Mul4(mgl32.HomogRotate3DX(g.rotation.X()))
	s := mgl32.Scale3D(g.scale.X(), g.scale.Y(), g.scale.Z())
	return t.Mul4(r).Mul4(s)
}

func (g *gameObject) Position() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.position
}

func (g *gameObject) Rotation() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotation
}

func (g *gameObject) RotationSpeed() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rotationSpeed
}

func (g *gameObject) Scale() mgl32.Vec3 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.scale
}

func (g *gameObject) SetPosition(p mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.position = p
}

func (g *gameObject) SetRotation(r mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotation = r
}

func (g *gameObject) SetRotationSpeed(s mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.rotationSpeed = s
}

func (g *gameObject) SetScale(s mgl32.Vec3) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.scale = s
}

func (g *gameObject) BoundingSphere() (mgl32.Vec3, float32) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mdl == nil {
		return g.position, 0
	}
	s := max(mgl32.Abs(g.scale.X()), mgl32.Abs(g.scale.Y()), mgl32.Abs(g.scale.Z()))
	return g.position, g.mdl.BoundingRadius() * s
}

func (g *gameObject) Light() light.Light {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.attachedLight
}

func (g *gameObject) SetLight(l light.Light) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.attachedLight = l
}

func (g *gameObject) Update(deltaTime float32) {
	g.mu.Lock()
	g.rotation = g.rotation.Add(g.rotationSpeed.Mul(deltaTime))
	pos, l := g.position, g.attachedLight
	g.mu.Unlock()

	if l != nil {
		l.SetPosition(pos)
	}
}
