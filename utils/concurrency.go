package utils

import (
	"strings"
	"sync"
)

// Limiter bounds the number of concurrent holders.
type Limiter struct {
	semaphore chan struct{}
}

// NewLimiter creates a Limiter admitting at most n holders (minimum 1).
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{semaphore: make(chan struct{}, n)}
}

// TryAcquire takes a slot without blocking.
func (l *Limiter) TryAcquire() bool {
	select {
	case l.semaphore <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees a slot taken by TryAcquire.
func (l *Limiter) Release() { <-l.semaphore }

// InFlight returns the number of held slots.
func (l *Limiter) InFlight() int { return len(l.semaphore) }

// KeySet is a thread-safe set of composite keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// JoinKey builds a composite key from parts. Parts are separated by a unit
// separator so ("a,b","c") and ("a","b,c") differ.
func JoinKey(parts ...string) string {
	return strings.Join(parts, "\x1f")
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}
