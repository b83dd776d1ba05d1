package push

import (
	"sync"
	"time"
)

// preAuthTTL bounds how long a minted token may wait for its socket.
const preAuthTTL = 15 * time.Second

type preAuthEntry struct {
	created time.Time
	user    string
}

// PreAuthCache holds the single-use login tokens the companion app mints for
// credential-less socket authentication. The dispatcher inserts, handshakes
// consume, and every consume attempt culls expired entries first.
type PreAuthCache struct {
	mu      sync.Mutex
	entries map[string]preAuthEntry
}

// NewPreAuthCache creates an empty cache.
func NewPreAuthCache() *PreAuthCache {
	return &PreAuthCache{entries: make(map[string]preAuthEntry)}
}

// Insert stores token for user, stamped now. Re-inserting a token refreshes
// its timestamp and owner.
func (p *PreAuthCache) Insert(token, user string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[token] = preAuthEntry{created: time.Now(), user: user}
}

// Consume removes and returns the user for token if the entry is younger
// than 15 seconds. Tokens are single-use: a hit deletes the entry, so a
// second consume of the same token misses.
func (p *PreAuthCache) Consume(token string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	cutoff := time.Now().Add(-preAuthTTL)
	for t, e := range p.entries {
		if e.created.Before(cutoff) {
			delete(p.entries, t)
		}
	}

	e, ok := p.entries[token]
	if !ok {
		return "", false
	}
	delete(p.entries, token)
	return e.user, true
}

// Len reports the number of cached tokens, expired ones included.
func (p *PreAuthCache) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}
