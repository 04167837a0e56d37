// Package pass sequences the render passes of a frame.
package pass

import (
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/backend"
	"github.com/Carmen-Shannon/oxy-deferred/engine/renderer/surface"
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
)

var (
	// ErrPassIndex is returned for an index outside the registered passes.
	ErrPassIndex = errors.New("pass index out of range")
	// ErrPassOrder is returned when a pass is run out of sequence.
	ErrPassOrder = errors.New("pass run out of order")
)

// Result tells the orchestrator what to do after a pass.
type Result int

const (
	// NeedFlush means the next pass reads what this pass wrote; flush before running it.
	NeedFlush Result = iota
	// Finished means the frame is complete.
	Finished
)

func (r Result) String() string {
	switch r {
	case NeedFlush:
		return "NeedFlush"
	case Finished:
		return "Finished"
	default:
		return "Result(?)"
	}
}

// Frame carries per-frame data into pass bodies.
type Frame struct {
	// Number counts frames from 1.
	Number uint64
	// Delta is the time since the previous frame.
	Delta time.Duration
	// Elapsed is the time since the first frame.
	Elapsed time.Duration
}

// Pass is one step of a frame.
type Pass struct {
	Name string
	// Target is the frame buffer to bind. Nil binds the default output.
	Target *surface.FrameBuffer
	Clear  backend.ClearOp
	// Body records the pass work once the target is bound and cleared.
	Body func(f *Frame) error
}

// Timer receives the duration of every executed pass.
type Timer interface {
	RecordPass(name string, d time.Duration)
}

// scheduler is the implementation of the Scheduler interface.
type scheduler struct {
	mu *sync.Mutex

	backend  backend.Backend
	surfaces surface.Manager
	timer    Timer

	passes []Pass
	next   int
}

// Scheduler runs registered passes in strict order and reports whether the frame needs more.
//
// Index 0 is the first pass of a frame and the last index presents. Every pass except the last
// returns NeedFlush; the last returns Finished and resets the sequence for the next frame.
type Scheduler interface {
	// Register appends a pass and returns its index.
	//
	// Parameters:
	//   - p: the pass to append
	//
	// Returns:
	//   - int: the index of the pass
	Register(p Pass) int

	// Count returns the number of registered passes.
	Count() int

	// Name returns the name of the pass at index i, or an empty string.
	Name(i int) string

	// Next returns the index the scheduler expects to run next.
	Next() int

	// RunPass binds the target of pass i, clears it, runs its body and ends the pass.
	// A failed pass abandons the frame: the next expected index returns to 0.
	//
	// Parameters:
	//   - i: the pass index, which must equal Next()
	//   - f: the frame being rendered
	//
	// Returns:
	//   - Result: NeedFlush for every pass but the last, Finished for the last
	//   - error: ErrPassIndex, ErrPassOrder, or an error from the target, backend or body
	RunPass(i int, f *Frame) (Result, error)

	// Reset abandons the current frame sequence.
	Reset()
}

var _ Scheduler = &scheduler{}

// NewScheduler creates a Scheduler.
//
// Parameters:
//   - b: the backend passes are recorded on
//   - surfaces: the manager resolving pass targets
//   - options: the builder options to apply
//
// Returns:
//   - Scheduler: the new scheduler
func NewScheduler(b backend.Backend, surfaces surface.Manager, options ...SchedulerBuilderOption) Scheduler {
	s := &scheduler{
		mu:       &sync.Mutex{},
		backend:  b,
		surfaces: surfaces,
	}

	for _, option := range options {
		option(s)
	}

	return s
}

func (s *scheduler) Register(p Pass) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.passes = append(s.passes, p)
	return len(s.passes) - 1
}

func (s *scheduler) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.passes)
}

func (s *scheduler) Name(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.passes) {
		return ""
	}
	return s.passes[i].Name
}

func (s *scheduler) Next() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.next
}

func (s *scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.next = 0
}

func (s *scheduler) RunPass(i int, f *Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i < 0 || i >= len(s.passes) {
		return Finished, errors.Wrapf(ErrPassIndex, "pass %d of %d", i, len(s.passes))
	}
	if i != s.next {
		return Finished, errors.Wrapf(ErrPassOrder, "pass %d (%s) requested, expected %d", i, s.passes[i].Name, s.next)
	}

	p := s.passes[i]
	start := hrtime.Now()
	if err := s.run(p, f); err != nil {
		s.next = 0
		return Finished, errors.Wrapf(err, "pass %d (%s)", i, p.Name)
	}
	if s.timer != nil {
		s.timer.RecordPass(p.Name, hrtime.Since(start))
	}

	if i == len(s.passes)-1 {
		s.next = 0
		return Finished, nil
	}
	s.next = i + 1
	return NeedFlush, nil
}

func (s *scheduler) run(p Pass, f *Frame) error {
	var target *backend.RenderTarget
	if p.Target != nil {
		var err error
		target, err = s.surfaces.RenderTarget(p.Target)
		if err != nil {
			return err
		}
	}

	if err := s.backend.BeginPass(target, p.Clear); err != nil {
		return err
	}

	var bodyErr error
	if p.Body != nil {
		bodyErr = p.Body(f)
	}
	return errors.CombineErrors(bodyErr, s.backend.EndPass())
}
