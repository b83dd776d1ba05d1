package push

import "sync"

// ResetBroadcast is a payload-free broadcast used to close every live
// session at once, e.g. for a configuration reload. Signalling closes the
// current generation's channel and arms a fresh one, so sessions started
// after a reset wait for the next signal.
type ResetBroadcast struct {
	mu sync.Mutex
	ch chan struct{}
}

// NewResetBroadcast creates an armed broadcast.
func NewResetBroadcast() *ResetBroadcast {
	return &ResetBroadcast{ch: make(chan struct{})}
}

// Watch returns the channel that closes on the next Signal. Callers must
// fetch a fresh channel after it fires.
func (r *ResetBroadcast) Watch() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ch
}

// Signal wakes every current watcher.
func (r *ResetBroadcast) Signal() {
	r.mu.Lock()
	defer r.mu.Unlock()
	close(r.ch)
	r.ch = make(chan struct{})
}
