package forksearch

import (
	"sync"
	"sync/atomic"
)

// CancellationToken is a shared, monotonic stop flag observed cooperatively
// by every branch of a run. It is never reset.
type CancellationToken struct {
	set   atomic.Bool
	mu    sync.Mutex
	cause error
}

// NewCancellationToken returns an unset token.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Signal sets the token and records cause. Only the first call has an effect;
// it returns true for that call and false for every later one.
func (token *CancellationToken) Signal(cause error) bool {
	token.mu.Lock()
	defer token.mu.Unlock()
	if token.set.Load() {
		return false
	}
	token.cause = cause
	token.set.Store(true)
	return true
}

// IsSet reports whether Signal has been called. It never blocks.
func (token *CancellationToken) IsSet() bool {
	return token.set.Load()
}

// Cause returns the error passed to the first Signal, or nil while unset.
func (token *CancellationToken) Cause() error {
	token.mu.Lock()
	defer token.mu.Unlock()
	return token.cause
}
