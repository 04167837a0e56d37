// Package postprocess applies full-screen effects to the G-buffer.
//
// An Effect reads surfaces through numbered input pins and writes into whatever output the
// current pass has bound. The Graph wires G-buffer surfaces to pins and the Selector picks the
// single effect a frame applies.
package postprocess

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/common"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
)

var (
	// ErrInvalidPin is returned when a pin index is outside the effect's pin count.
	ErrInvalidPin = errors.New("invalid effect pin")
	// ErrUnboundPin is returned by Apply when a pin has no valid surface bound.
	ErrUnboundPin = errors.New("unbound effect pin")
)

// pinError builds an assertion failure marked with a pin sentinel. Pin misuse is a programming
// error, never a runtime condition.
func pinError(sentinel error, format string, args ...any) error {
	return errors.Mark(errors.AssertionFailedf(format, args...), sentinel)
}

// FrameState is the per-frame data effects may use.
type FrameState struct {
	// Depth is the triple the G-buffer was written with.
	Depth common.DepthParams
	// Projection is the camera projection, used to rebuild view positions from depth.
	Projection mgl32.Mat4
	// LightInEye is the light position in view space.
	LightInEye mgl32.Vec3
	Elapsed    time.Duration
	Delta      time.Duration
}

// FrameAware is implemented by effects that need per-frame parameters.
type FrameAware interface {
	UpdateFrame(state FrameState)
}

// Effect is a full-screen post-processing step.
type Effect interface {
	// Name identifies the effect in the Selector.
	Name() string

	// PinCount returns the fixed number of input pins.
	PinCount() int

	// InputPin binds a surface to a pin.
	//
	// Parameters:
	//   - i: the pin index
	//   - h: the surface to read
	//
	// Returns:
	//   - error: ErrInvalidPin if i is not below PinCount
	InputPin(i int, h surface.Handle) error

	// Pin returns the surface bound to a pin.
	//
	// Parameters:
	//   - i: the pin index
	//
	// Returns:
	//   - surface.Handle: the bound surface, zero if unbound
	//   - error: ErrInvalidPin if i is not below PinCount
	Pin(i int) (surface.Handle, error)

	// Apply draws the effect into the currently bound output.
	//
	// Returns:
	//   - error: ErrUnboundPin if any pin is unbound or refers to a stale surface, or a backend error
	Apply() error
}

// ParamFunc derives the program parameters of an effect from the frame state.
type ParamFunc func(state FrameState) []float32

// fullscreenEffect is an Effect backed by a single fullscreen program.
type fullscreenEffect struct {
	mu *sync.Mutex

	name     string
	pins     []surface.Handle
	program  backend.FullscreenProgram
	params   ParamFunc
	frame    FrameState
	backend  backend.Backend
	surfaces surface.Manager
}

var _ Effect = &fullscreenEffect{}
var _ FrameAware = &fullscreenEffect{}

// NewFullscreenEffect creates an effect that runs one fullscreen program over its pins.
//
// Parameters:
//   - b: the backend to draw with
//   - surfaces: the manager resolving pin handles
//   - name: the effect name
//   - pinCount: the number of input pins
//   - program: the fullscreen program, reading pins in order
//   - params: derives program parameters per frame, may be nil
//
// Returns:
//   - Effect: the new effect
func NewFullscreenEffect(b backend.Backend, surfaces surface.Manager, name string, pinCount int, program backend.FullscreenProgram, params ParamFunc) Effect {
	return &fullscreenEffect{
		mu:       &sync.Mutex{},
		name:     name,
		pins:     make([]surface.Handle, pinCount),
		program:  program,
		params:   params,
		backend:  b,
		surfaces: surfaces,
	}
}

func (e *fullscreenEffect) Name() string {
	return e.name
}

func (e *fullscreenEffect) PinCount() int {
	return len(e.pins)
}

func (e *fullscreenEffect) InputPin(i int, h surface.Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i < 0 || i >= len(e.pins) {
		return pinError(ErrInvalidPin, "effect %q has %d pins, got pin %d", e.name, len(e.pins), i)
	}
	e.pins[i] = h
	return nil
}

func (e *fullscreenEffect) Pin(i int) (surface.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if i < 0 || i >= len(e.pins) {
		return surface.Handle{}, pinError(ErrInvalidPin, "effect %q has %d pins, got pin %d", e.name, len(e.pins), i)
	}
	return e.pins[i], nil
}

func (e *fullscreenEffect) UpdateFrame(state FrameState) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.frame = state
}

func (e *fullscreenEffect) Apply() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	inputs := make([]backend.Texture, len(e.pins))
	for i, h := range e.pins {
		if h.IsZero() {
			return pinError(ErrUnboundPin, "effect %q pin %d is unbound", e.name, i)
		}
		tex, err := e.surfaces.Texture(h)
		if err != nil {
			return errors.Mark(errors.WithAssertionFailure(errors.Wrapf(err, "effect %q pin %d", e.name, i)), ErrUnboundPin)
		}
		inputs[i] = tex
	}

	var params []float32
	if e.params != nil {
		params = e.params(e.frame)
	}
	return errors.Wrapf(e.backend.DrawFullscreen(e.program, inputs, params), "effect %q", e.name)
}
