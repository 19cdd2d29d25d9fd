package replay

import (
	"fmt"
	"math"
	"math/rand"

	"omnifuzz.local/fuzz/rl"
)

// UniformSampler draws batches uniformly at random without replacement.
type UniformSampler struct{}

// OnAdd is a no-op: uniform sampling carries no per-slot state.
func (UniformSampler) OnAdd(int) {}

// Sample returns all records when fewer than batchSize exist, otherwise a
// uniform draw of batchSize distinct records.
func (UniformSampler) Sample(records []*rl.Experience, batchSize int, rng *rand.Rand) ([]*rl.Experience, []int) {
	n := len(records)
	if n < batchSize {
		samples := make([]*rl.Experience, n)
		indices := make([]int, n)
		for i, exp := range records {
			samples[i] = exp
			indices[i] = i
		}
		return samples, indices
	}

	perm := rng.Perm(n)[:batchSize]
	samples := make([]*rl.Experience, batchSize)
	for i, idx := range perm {
		samples[i] = records[idx]
	}
	return samples, perm
}

// UpdatePriorities is a no-op for uniform sampling.
func (UniformSampler) UpdatePriorities([]int, []float64) error { return nil }

// PrioritizedSampler draws with replacement, proportionally to stored
// priorities raised to alpha, and attaches importance-sampling weights
// (N*p)^-beta normalized so the largest sampled weight is 1.
type PrioritizedSampler struct {
	alpha       float64
	beta        float64
	priorities  []float64
	maxPriority float64
}

// NewPrioritizedSampler creates a sampler for a buffer of the given capacity.
// Non-positive alpha and beta fall back to the usual 0.6 / 0.4 defaults.
func NewPrioritizedSampler(capacity int, alpha, beta float64) *PrioritizedSampler {
	if alpha <= 0 {
		alpha = 0.6
	}
	if beta <= 0 {
		beta = 0.4
	}
	return &PrioritizedSampler{
		alpha:       alpha,
		beta:        beta,
		priorities:  make([]float64, capacity),
		maxPriority: 1.0,
	}
}

// OnAdd gives the new record the current maximum priority. This optimistic
// initialization guarantees fresh records are eligible for sampling before
// their true error is known.
func (p *PrioritizedSampler) OnAdd(index int) {
	p.priorities[index] = p.maxPriority
}

// Sample draws batchSize slot indices with replacement according to the
// normalized priority distribution and annotates each sampled record with
// its importance weight. When fewer than batchSize records exist, all are
// returned with weight 1.
func (p *PrioritizedSampler) Sample(records []*rl.Experience, batchSize int, rng *rand.Rand) ([]*rl.Experience, []int) {
	n := len(records)
	if n < batchSize {
		samples := make([]*rl.Experience, n)
		indices := make([]int, n)
		for i, exp := range records {
			exp.Weight = 1.0
			samples[i] = exp
			indices[i] = i
		}
		return samples, indices
	}

	probs := make([]float64, n)
	var sum float64
	for i := 0; i < n; i++ {
		probs[i] = math.Pow(p.priorities[i], p.alpha)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}

	indices := make([]int, batchSize)
	weights := make([]float64, batchSize)
	maxWeight := 0.0
	for i := 0; i < batchSize; i++ {
		idx := drawIndex(probs, rng)
		indices[i] = idx
		weights[i] = math.Pow(float64(n)*probs[idx], -p.beta)
		if weights[i] > maxWeight {
			maxWeight = weights[i]
		}
	}

	samples := make([]*rl.Experience, batchSize)
	for i, idx := range indices {
		records[idx].Weight = weights[i] / maxWeight
		samples[i] = records[idx]
	}
	return samples, indices
}

// UpdatePriorities overwrites slot priorities and keeps the running maximum
// current. Negative priorities are rejected.
func (p *PrioritizedSampler) UpdatePriorities(indices []int, priorities []float64) error {
	for i, priority := range priorities {
		if priority < 0 {
			return fmt.Errorf("replay: priority %g at position %d is negative", priority, i)
		}
	}
	for i, idx := range indices {
		p.priorities[idx] = priorities[i]
		if priorities[i] > p.maxPriority {
			p.maxPriority = priorities[i]
		}
	}
	return nil
}

func drawIndex(probs []float64, rng *rand.Rand) int {
	r := rng.Float64()
	var cumulative float64
	for i, prob := range probs {
		cumulative += prob
		if r <= cumulative {
			return i
		}
	}
	return len(probs) - 1
}
