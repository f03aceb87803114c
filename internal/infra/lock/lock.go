// Package lock serializes token refreshes and batch runs, in-process or across
// instances through Redis.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// LocalLocker is an in-process Locker for single-instance deployments and tests.
// The ttl argument is ignored: a held lock lasts until released.
type LocalLocker struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{held: make(map[string]chan struct{})}
}

func (l *LocalLocker) TryAcquire(_ context.Context, key string, _ time.Duration) (func(), bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, busy := l.held[key]; busy {
		return nil, false, nil
	}
	done := make(chan struct{})
	l.held[key] = done
	return l.releaser(key, done), true, nil
}

// Acquire blocks until the key is free or ctx is done.
func (l *LocalLocker) Acquire(ctx context.Context, key string, _ time.Duration) (func(), error) {
	for {
		l.mu.Lock()
		done, busy := l.held[key]
		if !busy {
			done = make(chan struct{})
			l.held[key] = done
			l.mu.Unlock()
			return l.releaser(key, done), nil
		}
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, eris.Wrapf(ctx.Err(), "lock: wait for %s", key)
		case <-done:
		}
	}
}

func (l *LocalLocker) releaser(key string, done chan struct{}) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			if l.held[key] == done {
				delete(l.held, key)
			}
			l.mu.Unlock()
			close(done)
		})
	}
}
