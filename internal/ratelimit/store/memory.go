package store

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// maxCASRetries is the maximum number of CAS retry attempts to prevent
// infinite spinning under high contention.
const maxCASRetries = 100

// DefaultSweepInterval is the sweep cadence used by NewMemoryStore.
const DefaultSweepInterval = time.Minute

// window is an immutable counter snapshot. Updates swap the whole
// record via CompareAndSwap so admission checks stay race free.
type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore implements Store using per-process storage.
type MemoryStore struct {
	data   sync.Map
	sweep  *time.Ticker
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewMemoryStore creates a new in-memory store sweeping expired
// windows every DefaultSweepInterval.
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithSweepInterval(DefaultSweepInterval)
}

// NewMemoryStoreWithSweepInterval creates a new in-memory store with a
// custom sweep cadence.
func NewMemoryStoreWithSweepInterval(interval time.Duration) *MemoryStore {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s := &MemoryStore{
		sweep: time.NewTicker(interval),
		done:  make(chan struct{}),
	}

	go s.sweepLoop()

	return s
}

// Take implements Store.
func (s *MemoryStore) Take(ctx context.Context, key string, limit int64, windowSize time.Duration) (*TakeResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	now := time.Now()

	if limit <= 0 {
		return &TakeResult{Allowed: false, Remaining: 0, ResetAt: now.Add(windowSize)}, nil
	}

	for retries := 0; retries < maxCASRetries; retries++ {
		value, ok := s.data.Load(key)
		if !ok {
			// First request anchors the window.
			fresh := &window{count: 1, resetAt: now.Add(windowSize)}
			if actual, loaded := s.data.LoadOrStore(key, fresh); loaded {
				value = actual
			} else {
				return &TakeResult{Allowed: true, Remaining: limit - 1, ResetAt: fresh.resetAt}, nil
			}
		}

		w := value.(*window)

		if !now.Before(w.resetAt) {
			// Window elapsed; this request anchors a new one.
			fresh := &window{count: 1, resetAt: now.Add(windowSize)}
			if s.data.CompareAndSwap(key, w, fresh) {
				return &TakeResult{Allowed: true, Remaining: limit - 1, ResetAt: fresh.resetAt}, nil
			}
			// CAS failed, retry
			continue
		}

		if w.count >= limit {
			return &TakeResult{Allowed: false, Remaining: 0, ResetAt: w.resetAt}, nil
		}

		next := &window{count: w.count + 1, resetAt: w.resetAt}
		if s.data.CompareAndSwap(key, w, next) {
			return &TakeResult{Allowed: true, Remaining: limit - next.count, ResetAt: next.resetAt}, nil
		}
		// CAS failed, retry
	}

	return nil, fmt.Errorf("take failed: max retries (%d) exceeded", maxCASRetries)
}

// Count implements Store.
func (s *MemoryStore) Count(ctx context.Context, key string) (int64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	value, ok := s.data.Load(key)
	if !ok {
		return 0, &ErrKeyNotFound{Key: key}
	}

	w := value.(*window)

	if !time.Now().Before(w.resetAt) {
		s.data.Delete(key)
		return 0, &ErrKeyNotFound{Key: key}
	}

	return w.count, nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.data.Delete(key)
	return nil
}

// Sweep implements Store.
func (s *MemoryStore) Sweep(ctx context.Context) (int, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	default:
	}

	return s.sweepExpired(), nil
}

// Close implements Store. Close is idempotent.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	s.sweep.Stop()
	close(s.done)

	return nil
}

// sweepLoop periodically removes expired windows.
func (s *MemoryStore) sweepLoop() {
	for {
		select {
		case <-s.sweep.C:
			s.sweepExpired()
		case <-s.done:
			return
		}
	}
}

// sweepExpired removes all expired windows and returns the count removed.
func (s *MemoryStore) sweepExpired() int {
	now := time.Now()
	removed := 0

	s.data.Range(func(key, value interface{}) bool {
		w := value.(*window)
		if !now.Before(w.resetAt) {
			s.data.Delete(key)
			removed++
		}
		return true
	})

	return removed
}

// Size returns the number of tracked windows, expired ones included.
func (s *MemoryStore) Size() int {
	count := 0
	s.data.Range(func(key, value interface{}) bool {
		count++
		return true
	})
	return count
}
