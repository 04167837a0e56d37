package postprocess

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
)

// Source names a G-buffer surface that can feed a pin.
type Source int

const (
	SourceColor Source = iota
	SourceNormalDepth
	SourceDepthStencil
)

// SourceOrder is the order Rewire rebinds pins in.
var SourceOrder = []Source{SourceColor, SourceNormalDepth, SourceDepthStencil}

func (s Source) String() string {
	switch s {
	case SourceColor:
		return "color"
	case SourceNormalDepth:
		return "normal-depth"
	case SourceDepthStencil:
		return "depth-stencil"
	default:
		return "unknown"
	}
}

// Sources holds the current handle of every G-buffer surface.
type Sources struct {
	Color        surface.Handle
	NormalDepth  surface.Handle
	DepthStencil surface.Handle
}

// Get returns the handle of a source.
func (s Sources) Get(src Source) surface.Handle {
	switch src {
	case SourceColor:
		return s.Color
	case SourceNormalDepth:
		return s.NormalDepth
	case SourceDepthStencil:
		return s.DepthStencil
	default:
		return surface.Handle{}
	}
}

// PinBinding declares that a pin reads a source.
type PinBinding struct {
	Pin    int
	Source Source
}

// registration is an effect and the sources wired to its pins.
type registration struct {
	effect   Effect
	bindings []PinBinding
}

// graph is the implementation of the Graph interface.
type graph struct {
	mu *sync.Mutex

	caps     backend.Capabilities
	selector Selector
	effects  []registration
	sources  Sources
	wired    bool
}

// Graph connects G-buffer surfaces to effect pins and applies the active effect.
type Graph interface {
	// Capabilities returns the capability set the graph was validated against.
	Capabilities() backend.Capabilities

	// Register adds an effect and declares which source feeds each of its pins.
	// If sources were already wired, the new effect's pins are bound immediately.
	//
	// Parameters:
	//   - e: the effect to add
	//   - bindings: the source of each pin
	//
	// Returns:
	//   - error: ErrInvalidPin for a binding outside the pin count, or ErrDuplicateEffect
	Register(e Effect, bindings ...PinBinding) error

	// Rewire rebinds every declared pin to the given sources. Sources are visited in SourceOrder,
	// and for each source every effect in registration order.
	//
	// Parameters:
	//   - sources: the current G-buffer handles
	//
	// Returns:
	//   - error: the first pin error
	Rewire(sources Sources) error

	// Selector returns the effect selector.
	Selector() Selector

	// Apply resolves the active effect once, passes it the frame state if it is FrameAware, and
	// applies that same effect into the bound output.
	//
	// Parameters:
	//   - state: the per-frame camera and light data
	//
	// Returns:
	//   - error: an error if no effect is registered or the effect fails
	Apply(state FrameState) error
}

var _ Graph = &graph{}

// NewGraph probes the device and creates an empty graph. No surface exists yet when this runs,
// so a device that fails the probe allocates nothing.
//
// Parameters:
//   - caps: the probed device capabilities
//   - req: what the pipeline requires of the device
//
// Returns:
//   - Graph: the new graph, or nil on failure
//   - error: ErrDeviceCapability with one hint per missing capability
func NewGraph(caps backend.Capabilities, req Requirements) (Graph, error) {
	if err := Probe(caps, req); err != nil {
		return nil, err
	}
	return &graph{
		mu:       &sync.Mutex{},
		caps:     caps,
		selector: NewSelector(),
	}, nil
}

func (g *graph) Capabilities() backend.Capabilities {
	return g.caps
}

func (g *graph) Register(e Effect, bindings ...PinBinding) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, b := range bindings {
		if b.Pin < 0 || b.Pin >= e.PinCount() {
			return pinError(ErrInvalidPin, "effect %q has %d pins, binding targets pin %d", e.Name(), e.PinCount(), b.Pin)
		}
	}
	if err := g.selector.Register(e); err != nil {
		return err
	}

	r := registration{effect: e, bindings: bindings}
	g.effects = append(g.effects, r)
	if g.wired {
		for _, src := range SourceOrder {
			if err := bind(r, src, g.sources); err != nil {
				return err
			}
		}
	}
	return nil
}

func (g *graph) Rewire(sources Sources) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, src := range SourceOrder {
		for _, r := range g.effects {
			if err := bind(r, src, sources); err != nil {
				return err
			}
		}
	}
	g.sources = sources
	g.wired = true
	return nil
}

func bind(r registration, src Source, sources Sources) error {
	for _, b := range r.bindings {
		if b.Source != src {
			continue
		}
		if err := r.effect.InputPin(b.Pin, sources.Get(src)); err != nil {
			return errors.Wrapf(err, "bind %s", src)
		}
	}
	return nil
}

func (g *graph) Selector() Selector {
	return g.selector
}

func (g *graph) Apply(state FrameState) error {
	active := g.selector.Active()
	if active == nil {
		return errors.Wrap(ErrUnknownEffect, "no effect registered")
	}
	if fa, ok := active.(FrameAware); ok {
		fa.UpdateFrame(state)
	}
	return active.Apply()
}
