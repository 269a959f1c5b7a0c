package usecase

import (
	"context"
	"sync"
)

// keyedMutex provides per-evidence-ID exclusion inside one process.
// Cross-process exclusion is the job store's responsibility; this only
// shortcuts races between a synchronous call and a worker in the same
// binary.
type keyedMutex struct {
	mu   sync.Mutex
	held map[string]chan struct{}
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{held: make(map[string]chan struct{})}
}

func (k *keyedMutex) TryAcquire(key string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if _, ok := k.held[key]; ok {
		return false
	}
	k.held[key] = make(chan struct{})
	return true
}

// Acquire blocks until the key is free or the context ends. A claimed job
// that arrives while the previous run for the same evidence is unwinding
// waits here instead of failing.
func (k *keyedMutex) Acquire(ctx context.Context, key string) error {
	for {
		k.mu.Lock()
		released, ok := k.held[key]
		if !ok {
			k.held[key] = make(chan struct{})
			k.mu.Unlock()
			return nil
		}
		k.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-released:
		}
	}
}

func (k *keyedMutex) Release(key string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if released, ok := k.held[key]; ok {
		delete(k.held, key)
		close(released)
	}
}
