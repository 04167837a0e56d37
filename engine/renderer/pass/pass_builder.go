package pass

// SchedulerBuilderOption is a function that configures a Scheduler.
type SchedulerBuilderOption func(*scheduler)

// WithTimer attaches a Timer that receives the duration of every successful pass.
//
// Parameters:
//   - t: the timer to notify
//
// Returns:
//   - SchedulerBuilderOption: a function that applies the timer
func WithTimer(t Timer) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.timer = t
	}
}

// WithPasses registers passes in order at construction.
//
// Parameters:
//   - passes: the passes, first to last
//
// Returns:
//   - SchedulerBuilderOption: a function that registers the passes
func WithPasses(passes ...Pass) SchedulerBuilderOption {
	return func(s *scheduler) {
		s.passes = append(s.passes, passes...)
	}
}
