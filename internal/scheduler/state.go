package scheduler

// State is the scheduler's position in its daily cycle.
type State string

const (
	StateIdle       State = "idle"
	StateWaiting    State = "waiting"
	StateSelecting  State = "selecting"
	StateProcessing State = "processing"
)

func (s *Scheduler) State() State {
	if v, ok := s.state.Load().(State); ok {
		return v
	}
	return StateIdle
}

func (s *Scheduler) setState(state State) {
	s.state.Store(state)
	s.billingMetrics.SetSchedulerState(string(state))
}
