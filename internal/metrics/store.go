// Package metrics tracks per-method call statistics for the mesh
// client. A Store keeps in-process snapshots with bounded duration
// samples; Collectors export the same traffic to Prometheus.
package metrics

import (
	"math"
	"sort"
	"sync"
	"time"
)

// DefaultSampleCap is the per-method duration sample capacity.
const DefaultSampleCap = 1000

// Snapshot is a point-in-time view of one method's statistics.
type Snapshot struct {
	// Requests is the total number of recorded calls.
	Requests int64

	// Errors is the number of calls that completed with an error.
	Errors int64

	// ErrorRate is Errors divided by Requests, zero when idle.
	ErrorRate float64

	// AvgDuration is the mean over the retained duration samples.
	AvgDuration time.Duration

	// P95Duration is the 95th percentile over the retained samples.
	P95Duration time.Duration

	// P99Duration is the 99th percentile over the retained samples.
	P99Duration time.Duration
}

// methodRecord accumulates counts and a FIFO-bounded duration ring.
// Counts cover the full lifetime; durations cover the last sampleCap
// calls.
type methodRecord struct {
	requests  int64
	errors    int64
	durations []time.Duration
	next      int
}

// Store collects per-method call statistics. All methods are safe for
// concurrent use.
type Store struct {
	mu        sync.RWMutex
	methods   map[string]*methodRecord
	sampleCap int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithSampleCap overrides the per-method duration sample capacity.
func WithSampleCap(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.sampleCap = n
		}
	}
}

// NewStore creates an empty statistics store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		methods:   make(map[string]*methodRecord),
		sampleCap: DefaultSampleCap,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Record adds one completed call. Failed calls count toward the error
// rate and their durations are sampled like any other.
func (s *Store) Record(fullMethod string, duration time.Duration, callErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.methods[fullMethod]
	if !ok {
		rec = &methodRecord{durations: make([]time.Duration, 0, s.sampleCap)}
		s.methods[fullMethod] = rec
	}

	rec.requests++
	if callErr != nil {
		rec.errors++
	}

	if len(rec.durations) < s.sampleCap {
		rec.durations = append(rec.durations, duration)
		return
	}

	// Ring is full: overwrite the oldest sample.
	rec.durations[rec.next] = duration
	rec.next = (rec.next + 1) % s.sampleCap
}

// Snapshot returns the statistics for one method. Unknown methods
// yield a zero snapshot.
func (s *Store) Snapshot(fullMethod string) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.methods[fullMethod]
	if !ok {
		return Snapshot{}
	}

	return rec.snapshot()
}

// Snapshots returns the statistics for every recorded method.
func (s *Store) Snapshots() map[string]Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]Snapshot, len(s.methods))
	for method, rec := range s.methods {
		out[method] = rec.snapshot()
	}

	return out
}

// Reset discards all recorded statistics.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.methods = make(map[string]*methodRecord)
}

func (r *methodRecord) snapshot() Snapshot {
	snap := Snapshot{
		Requests: r.requests,
		Errors:   r.errors,
	}

	if r.requests > 0 {
		snap.ErrorRate = float64(r.errors) / float64(r.requests)
	}

	if len(r.durations) == 0 {
		return snap
	}

	var total time.Duration
	for _, d := range r.durations {
		total += d
	}
	snap.AvgDuration = total / time.Duration(len(r.durations))
	snap.P95Duration = percentile(r.durations, 0.95)
	snap.P99Duration = percentile(r.durations, 0.99)

	return snap
}

// percentile computes the p-th percentile over samples using the
// nearest-rank method on a sorted copy. Empty input yields zero.
func percentile(samples []time.Duration, p float64) time.Duration {
	if len(samples) == 0 {
		return 0
	}

	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(math.Ceil(float64(len(sorted))*p)) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}

	return sorted[idx]
}
