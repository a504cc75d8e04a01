package metrics

import "sync"

// TimeBucketStore keeps the most recent time buckets in a ring buffer.
//
// The store is bounded: once full, the oldest bucket is overwritten.
type TimeBucketStore struct {
	mu         sync.RWMutex
	buckets    []*TimeBucket
	head       int // next write position
	count      int
	maxBuckets int
}

// NewTimeBucketStore creates a store retaining at most maxBuckets buckets.
// For a 1-hour run with 1-second buckets, use 3600.
func NewTimeBucketStore(maxBuckets int) *TimeBucketStore {
	if maxBuckets <= 0 {
		maxBuckets = 3600
	}
	return &TimeBucketStore{
		buckets:    make([]*TimeBucket, maxBuckets),
		maxBuckets: maxBuckets,
	}
}

// Add appends a bucket, evicting the oldest when the store is full.
func (s *TimeBucketStore) Add(b *TimeBucket) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buckets[s.head] = b
	s.head = (s.head + 1) % s.maxBuckets
	if s.count < s.maxBuckets {
		s.count++
	}
}

// GetBuckets returns all buckets in chronological order.
func (s *TimeBucketStore) GetBuckets() []*TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}

	result := make([]*TimeBucket, s.count)
	start := 0
	if s.count == s.maxBuckets {
		start = s.head
	}
	for i := 0; i < s.count; i++ {
		result[i] = s.buckets[(start+i)%s.maxBuckets]
	}
	return result
}

// GetBucketsForPhase returns the buckets emitted during phase.
func (s *TimeBucketStore) GetBucketsForPhase(phase Phase) []*TimeBucket {
	var result []*TimeBucket
	for _, b := range s.GetBuckets() {
		if b.Phase == phase {
			result = append(result, b)
		}
	}
	return result
}

// GetLatestBucket returns the most recent bucket, or nil if none.
func (s *TimeBucketStore) GetLatestBucket() *TimeBucket {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.count == 0 {
		return nil
	}
	return s.buckets[(s.head-1+s.maxBuckets)%s.maxBuckets]
}

// Count returns the current number of buckets stored.
func (s *TimeBucketStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.count
}

// SteadyStateRPS returns the mean interval RPS across steady-phase buckets
// and how many buckets contributed.
func (s *TimeBucketStore) SteadyStateRPS() (float64, int) {
	steady := s.GetBucketsForPhase(PhaseSteady)
	if len(steady) == 0 {
		return 0, 0
	}

	var sum float64
	for _, b := range steady {
		sum += b.IntervalRPS
	}
	return sum / float64(len(steady)), len(steady)
}
