package parallel

import (
	"sync"
	"time"
)

// Memo deduplicates identical calls issued by sibling branches of one lookup
// scope. The first caller for a key runs the function; concurrent callers
// for the same key wait for that result; later callers reuse it until the
// TTL expires.
type Memo struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]*memoEntry
}

type memoEntry struct {
	ready     chan struct{}
	value     interface{}
	err       error
	expiresAt time.Time
}

// NewMemo creates a memoization cache with the given entry TTL.
func NewMemo(ttl time.Duration) *Memo {
	return &Memo{
		ttl:     ttl,
		entries: make(map[string]*memoEntry),
	}
}

// Do returns the cached result for key, running fn at most once per TTL
// window. Errors are cached too: a failed region-map fetch should not be
// retried by every sibling branch in the same scope.
func (m *Memo) Do(key string, fn func() (interface{}, error)) (interface{}, error) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if ok {
		select {
		case <-e.ready:
			if time.Now().Before(e.expiresAt) {
				m.mu.Unlock()
				return e.value, e.err
			}
			// Expired, replace below.
		default:
			// In flight: wait outside the lock.
			m.mu.Unlock()
			<-e.ready
			return e.value, e.err
		}
	}
	e = &memoEntry{ready: make(chan struct{})}
	m.entries[key] = e
	m.mu.Unlock()

	e.value, e.err = fn()
	e.expiresAt = time.Now().Add(m.ttl)
	close(e.ready)
	return e.value, e.err
}
