package supervisor

import "sync"

// statusBus fans StatusEvents out to subscribers. Same delivery contract as
// the log broadcaster: per-subscriber FIFO, no drops while subscribed, slow
// consumers lag without blocking monitors.
type statusBus struct {
	mu   sync.Mutex
	subs map[*statusSub]struct{}
}

func newStatusBus() *statusBus {
	return &statusBus{subs: make(map[*statusSub]struct{})}
}

func (b *statusBus) subscribe() (<-chan StatusEvent, func()) {
	s := newStatusSub()
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()
	cancel := func() {
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		s.close()
	}
	return s.out, cancel
}

func (b *statusBus) publish(ev StatusEvent) {
	b.mu.Lock()
	for s := range b.subs {
		s.push(ev)
	}
	b.mu.Unlock()
}

type statusSub struct {
	mu     sync.Mutex
	queue  []StatusEvent
	wake   chan struct{}
	out    chan StatusEvent
	closed bool
}

func newStatusSub() *statusSub {
	s := &statusSub{
		wake: make(chan struct{}, 1),
		out:  make(chan StatusEvent, 16),
	}
	go s.drain()
	return s
}

func (s *statusSub) push(ev StatusEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *statusSub) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *statusSub) drain() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		if closed {
			for _, ev := range batch {
				select {
				case s.out <- ev:
				default:
				}
			}
			close(s.out)
			return
		}
		for _, ev := range batch {
			s.out <- ev
		}
		<-s.wake
	}
}
