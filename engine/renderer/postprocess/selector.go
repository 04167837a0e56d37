package postprocess

import (
	"sync"

	"github.com/Carmen-Shannon/oxy-deferred/engine/logger"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

var (
	// ErrUnknownEffect is returned when selecting an effect that was never registered.
	ErrUnknownEffect = errors.New("unknown effect")
	// ErrDuplicateEffect is returned when registering a second effect under an existing name.
	ErrDuplicateEffect = errors.New("duplicate effect")
)

// selector is the implementation of the Selector interface.
type selector struct {
	mu *sync.Mutex

	effects map[string]Effect
	order   []string
	active  string
}

// Selector holds the registered effects and the one that is active.
//
// Once the first effect is registered exactly one effect is active. Only SetActive changes which
// one; switching never touches effect pins.
type Selector interface {
	// Register adds an effect. The first registered effect becomes active.
	//
	// Parameters:
	//   - e: the effect to add
	//
	// Returns:
	//   - error: ErrDuplicateEffect if the name is taken
	Register(e Effect) error

	// SetActive makes the named effect the active one.
	//
	// Parameters:
	//   - name: the effect name
	//
	// Returns:
	//   - error: ErrUnknownEffect if no such effect is registered; the active effect is unchanged
	SetActive(name string) error

	// Active returns the active effect, or nil before any registration.
	Active() Effect

	// ActiveName returns the name of the active effect.
	ActiveName() string

	// Effect returns a registered effect by name.
	Effect(name string) (Effect, bool)

	// Names returns the registered effect names in registration order.
	Names() []string
}

var _ Selector = &selector{}

// NewSelector creates an empty Selector.
func NewSelector() Selector {
	return &selector{
		mu:      &sync.Mutex{},
		effects: make(map[string]Effect),
	}
}

func (s *selector) Register(e Effect) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name := e.Name()
	if _, ok := s.effects[name]; ok {
		return errors.Wrapf(ErrDuplicateEffect, "%q", name)
	}
	s.effects[name] = e
	s.order = append(s.order, name)
	if s.active == "" {
		s.active = name
	}
	return nil
}

func (s *selector) SetActive(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.effects[name]; !ok {
		return errors.WithHintf(errors.Wrapf(ErrUnknownEffect, "%q", name), "registered effects: %v", s.order)
	}
	if s.active != name {
		logger.Log().Info("active effect changed", zap.String("from", s.active), zap.String("to", name))
	}
	s.active = name
	return nil
}

func (s *selector) Active() Effect {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.effects[s.active]
}

func (s *selector) ActiveName() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.active
}

func (s *selector) Effect(name string) (Effect, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.effects[name]
	return e, ok
}

func (s *selector) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string(nil), s.order...)
}
