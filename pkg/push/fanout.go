package push

import "sync"

// subscriberBuffer bounds each subscriber's queue. Notifications are refresh
// hints superseded by later ones, so a slow client only needs a handful.
const subscriberBuffer = 4

// fanOut broadcasts one user's messages to every live session of that user.
type fanOut struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]chan MessageType
}

func newFanOut() *fanOut {
	return &fanOut{subs: make(map[uint64]chan MessageType)}
}

// subscribeWithLimit attaches a new subscriber unless the fan-out already has
// limit live subscribers. Check and attach happen under one lock so two
// concurrent admissions cannot both take the last slot.
func (f *fanOut) subscribeWithLimit(limit int) (*Subscriber, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.subs) >= limit {
		return nil, ErrLimitExceeded
	}
	f.nextID++
	ch := make(chan MessageType, subscriberBuffer)
	f.subs[f.nextID] = ch
	return &Subscriber{id: f.nextID, ch: ch, owner: f}, nil
}

// publish delivers msg to every subscriber without blocking. When a
// subscriber's queue is full the oldest queued message is dropped to make
// room, so the newest hint survives.
func (f *fanOut) publish(msg MessageType) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ch := range f.subs {
		select {
		case ch <- msg:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- msg:
			default:
			}
		}
	}
}

func (f *fanOut) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subs)
}

// Subscriber is one session's receiving end of a user fan-out.
type Subscriber struct {
	id    uint64
	ch    chan MessageType
	owner *fanOut
}

// Ch returns the receive channel. It is never closed; a session simply stops
// reading when it tears down.
func (s *Subscriber) Ch() <-chan MessageType {
	return s.ch
}

// Close detaches the subscriber from its fan-out. The fan-out entry itself
// stays registered even when the last subscriber leaves.
func (s *Subscriber) Close() {
	s.owner.mu.Lock()
	delete(s.owner.subs, s.id)
	s.owner.mu.Unlock()
}
