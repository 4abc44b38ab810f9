// Package runlock guarantees at most one sync run at a time, either within a
// process or across processes sharing a redis instance.
package runlock

import (
	"context"
	"errors"
	"sync"
)

// DefaultKey names the sync run lock.
const DefaultKey = "wavewarz:sync"

// ErrLocked is returned by TryAcquire while another holder has the lock.
var ErrLocked = errors.New("sync run already in progress")

// Lock is a non-blocking mutual exclusion guard. The returned release func is
// safe to call more than once.
type Lock interface {
	TryAcquire(ctx context.Context) (release func(), err error)
}

// Local is an in-process lock.
type Local struct {
	mu sync.Mutex
}

// NewLocal creates an in-process lock.
func NewLocal() *Local {
	return &Local{}
}

// TryAcquire implements Lock.
func (l *Local) TryAcquire(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !l.mu.TryLock() {
		return nil, ErrLocked
	}
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}
