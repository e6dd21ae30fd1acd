package app

import (
	"sync"

	"github.com/yourusername/ytfetch-go/internal/domain"
)

// DefaultFinishedRetention is how many finished downloads keep their
// event history for late subscribers
const DefaultFinishedRetention = 128

// EventHub fans status events of each download out to any number of
// subscribers. A new subscriber first receives every earlier event of the
// download, then live events, in publish order. Publishing never blocks.
type EventHub struct {
	mu        sync.Mutex
	topics    map[string]*topic
	finished  []string
	retention int
}

type topic struct {
	history []domain.StatusEvent
	subs    map[*Subscription]struct{}
	closed  bool
}

// NewEventHub creates an event hub. retention <= 0 uses the default.
func NewEventHub(retention int) *EventHub {
	if retention <= 0 {
		retention = DefaultFinishedRetention
	}
	return &EventHub{
		topics:    make(map[string]*topic),
		retention: retention,
	}
}

// Open starts a fresh topic for id, dropping any earlier history
func (h *EventHub) Open(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.topics[id]; ok {
		for sub := range old.subs {
			sub.finish()
		}
	}
	h.topics[id] = &topic{subs: make(map[*Subscription]struct{})}
}

// Publish records ev and delivers it to current subscribers
func (h *EventHub) Publish(ev domain.StatusEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[ev.DownloadID]
	if !ok {
		t = &topic{subs: make(map[*Subscription]struct{})}
		h.topics[ev.DownloadID] = t
	}
	if t.closed {
		return
	}

	t.history = append(t.history, ev)
	for sub := range t.subs {
		sub.push(ev)
	}
}

// Close marks the topic finished. Subscribers drain what is queued and
// then see their channel closed.
func (h *EventHub) Close(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[id]
	if !ok || t.closed {
		return
	}
	t.closed = true
	for sub := range t.subs {
		sub.finish()
	}
	t.subs = nil

	h.finished = append(h.finished, id)
	for len(h.finished) > h.retention {
		oldest := h.finished[0]
		h.finished = h.finished[1:]
		if ft, ok := h.topics[oldest]; ok && ft.closed {
			delete(h.topics, oldest)
		}
	}
}

// Subscribe returns a subscription replaying the history of id. ok is
// false when the hub knows nothing about id.
func (h *EventHub) Subscribe(id string) (*Subscription, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[id]
	if !ok {
		return nil, false
	}

	sub := newSubscription(h, id, t.history)
	if t.closed {
		sub.finish()
	} else {
		t.subs[sub] = struct{}{}
	}
	return sub, true
}

// History returns a copy of the events recorded for id
func (h *EventHub) History(id string) []domain.StatusEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[id]
	if !ok {
		return nil
	}
	history := make([]domain.StatusEvent, len(t.history))
	copy(history, t.history)
	return history
}

func (h *EventHub) unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if t, ok := h.topics[sub.id]; ok && t.subs != nil {
		delete(t.subs, sub)
	}
}

// Subscription is an ordered, unbounded event queue for one subscriber
type Subscription struct {
	hub *EventHub
	id  string
	out chan domain.StatusEvent

	mu       sync.Mutex
	pending  []domain.StatusEvent
	finished bool
	notify   chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newSubscription(hub *EventHub, id string, history []domain.StatusEvent) *Subscription {
	pending := make([]domain.StatusEvent, len(history))
	copy(pending, history)

	sub := &Subscription{
		hub:     hub,
		id:      id,
		out:     make(chan domain.StatusEvent),
		pending: pending,
		notify:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
	go sub.pump()
	return sub
}

// C delivers events in order and is closed once the download has finished
// and every event was delivered, or after Close
func (s *Subscription) C() <-chan domain.StatusEvent {
	return s.out
}

// Close stops delivery and releases the subscription
func (s *Subscription) Close() {
	s.stopOnce.Do(func() {
		close(s.stop)
		if s.hub != nil {
			s.hub.unsubscribe(s)
		}
	})
}

func (s *Subscription) push(ev domain.StatusEvent) {
	s.mu.Lock()
	if s.finished {
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending, ev)
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()
	s.signal()
}

func (s *Subscription) signal() {
	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			finished := s.finished
			s.mu.Unlock()
			if finished {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.stop:
				return
			}
		}
		ev := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}
