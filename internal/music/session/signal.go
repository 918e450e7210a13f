package session

// signal is a single-slot, level-triggered wake-up. Any number of Set calls
// before a wait collapse into one.
type signal struct {
	ch chan struct{}
}

func newSignal() *signal {
	return &signal{ch: make(chan struct{}, 1)}
}

func (s *signal) Set() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

func (s *signal) Clear() {
	select {
	case <-s.ch:
	default:
	}
}

func (s *signal) C() <-chan struct{} {
	return s.ch
}
