// Package replay provides fixed-capacity experience storage for policy
// training, with uniform or prioritized sampling injected as a strategy.
package replay

import (
	"fmt"
	"math/rand"
	"time"

	"omnifuzz.local/fuzz/rl"
)

// Sampler decides how a batch is drawn from the stored records. The two
// sampling laws (uniform without replacement, prioritized with replacement
// plus importance weights) are deliberately separate injected policies
// rather than type-embedded behavior, so the weighting semantics are part
// of the constructor contract.
type Sampler interface {
	// OnAdd is told the slot index a new record just landed in.
	OnAdd(index int)
	// Sample draws up to batchSize records and returns them with their slot
	// indices. When fewer than batchSize records exist, all of them are
	// returned.
	Sample(records []*rl.Experience, batchSize int, rng *rand.Rand) ([]*rl.Experience, []int)
	// UpdatePriorities refreshes per-slot priorities after a training step.
	UpdatePriorities(indices []int, priorities []float64) error
}

// Store is a fixed-capacity ring buffer of transition records. Once the
// capacity is reached, new records overwrite the oldest slot.
type Store struct {
	capacity int
	records  []*rl.Experience
	cursor   int
	sampler  Sampler
	rng      *rand.Rand
}

// NewStore creates a uniformly sampled store.
func NewStore(capacity int) *Store {
	return NewStoreWithSampler(capacity, UniformSampler{})
}

// NewPrioritizedStore creates a store with proportional prioritized sampling.
func NewPrioritizedStore(capacity int, alpha, beta float64) *Store {
	return NewStoreWithSampler(capacity, NewPrioritizedSampler(capacity, alpha, beta))
}

// NewStoreWithSampler creates a store with an explicit sampling strategy.
func NewStoreWithSampler(capacity int, sampler Sampler) *Store {
	if capacity <= 0 {
		panic("replay: capacity must be positive")
	}
	return &Store{
		capacity: capacity,
		records:  make([]*rl.Experience, 0, capacity),
		sampler:  sampler,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Seed fixes the sampling RNG, for reproducible runs and tests.
func (s *Store) Seed(seed int64) {
	s.rng = rand.New(rand.NewSource(seed))
}

// Add inserts a record at the write cursor. Below capacity the buffer grows;
// at capacity the slot under the cursor is overwritten. The cursor always
// advances by one modulo capacity.
func (s *Store) Add(exp *rl.Experience) {
	idx := s.cursor
	if len(s.records) < s.capacity {
		s.records = append(s.records, exp)
	} else {
		s.records[idx] = exp
	}
	s.sampler.OnAdd(idx)
	s.cursor = (s.cursor + 1) % s.capacity
}

// Sample draws a batch according to the store's strategy. The returned
// indices identify the sampled slots for later priority updates.
func (s *Store) Sample(batchSize int) ([]*rl.Experience, []int) {
	return s.sampler.Sample(s.records, batchSize, s.rng)
}

// UpdatePriorities forwards new priorities to the sampling strategy.
func (s *Store) UpdatePriorities(indices []int, priorities []float64) error {
	if len(indices) != len(priorities) {
		return fmt.Errorf("replay: %d indices but %d priorities", len(indices), len(priorities))
	}
	for _, idx := range indices {
		if idx < 0 || idx >= len(s.records) {
			return fmt.Errorf("replay: index %d out of range (stored %d)", idx, len(s.records))
		}
	}
	return s.sampler.UpdatePriorities(indices, priorities)
}

// Len returns the number of stored records.
func (s *Store) Len() int { return len(s.records) }

// Capacity returns the fixed capacity.
func (s *Store) Capacity() int { return s.capacity }

// Record returns the record in a given slot, for inspection.
func (s *Store) Record(i int) *rl.Experience { return s.records[i] }

// Clear drops all records and rewinds the cursor.
func (s *Store) Clear() {
	s.records = s.records[:0]
	s.cursor = 0
}
