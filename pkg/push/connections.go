package push

import (
	"errors"
	"sync"
)

// UserConnectionLimit caps concurrent sessions per user so a single account
// cannot eat all the server's resources.
const UserConnectionLimit = 64

// ErrLimitExceeded is returned by Subscribe when a user is at the connection
// cap. Its text is written verbatim to the rejected client.
var ErrLimitExceeded = errors.New("connection limit exceeded")

// ActiveConnections maps each user to the fan-out feeding that user's live
// sessions. Entries are created on first subscribe and kept around after the
// last subscriber leaves; a stale empty fan-out is cheaper than the
// bookkeeping to reap it safely.
type ActiveConnections struct {
	mu    sync.RWMutex
	users map[string]*fanOut
}

// NewActiveConnections creates an empty registry.
func NewActiveConnections() *ActiveConnections {
	return &ActiveConnections{users: make(map[string]*fanOut)}
}

// Subscribe attaches a new session to the user's fan-out, creating the
// fan-out on first use. Fails with ErrLimitExceeded when the user already
// has UserConnectionLimit live subscribers.
func (a *ActiveConnections) Subscribe(user string) (*Subscriber, error) {
	a.mu.RLock()
	f := a.users[user]
	a.mu.RUnlock()

	if f == nil {
		a.mu.Lock()
		if f = a.users[user]; f == nil {
			f = newFanOut()
			a.users[user] = f
		}
		a.mu.Unlock()
	}
	return f.subscribeWithLimit(UserConnectionLimit)
}

// Publish sends msg to every live session of user. Users without an entry
// are a silent no-op; a hint for an offline user carries no value.
func (a *ActiveConnections) Publish(user string, msg MessageType) {
	a.mu.RLock()
	f := a.users[user]
	a.mu.RUnlock()

	if f != nil {
		f.publish(msg)
	}
}

// SubscriberCount reports the live sessions for user.
func (a *ActiveConnections) SubscriberCount(user string) int {
	a.mu.RLock()
	f := a.users[user]
	a.mu.RUnlock()

	if f == nil {
		return 0
	}
	return f.count()
}
