package replay

import (
	"math"
	"testing"

	"omnifuzz.local/fuzz/rl"
)

func expWithReward(r float64) *rl.Experience {
	return &rl.Experience{Reward: r}
}

func TestStore_GrowsUntilCapacity(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 3; i++ {
		s.Add(expWithReward(float64(i)))
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d, want 3", s.Len())
	}
	if s.Capacity() != 4 {
		t.Fatalf("capacity = %d, want 4", s.Capacity())
	}
}

func TestStore_OverwritesOldestAtCapacity(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 5; i++ {
		s.Add(expWithReward(float64(i)))
	}
	if s.Len() != 4 {
		t.Fatalf("len = %d, want 4", s.Len())
	}
	// The fifth record lands on slot 0, the oldest.
	if got := s.Record(0).Reward; got != 4 {
		t.Errorf("slot 0 holds reward %v, want 4", got)
	}
	if got := s.Record(1).Reward; got != 1 {
		t.Errorf("slot 1 holds reward %v, want 1", got)
	}
}

func TestStore_PanicsOnNonPositiveCapacity(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for capacity 0")
		}
	}()
	NewStore(0)
}

func TestUniformSample_ReturnsAllBelowBatchSize(t *testing.T) {
	s := NewStore(10)
	s.Seed(1)
	for i := 0; i < 3; i++ {
		s.Add(expWithReward(float64(i)))
	}
	samples, indices := s.Sample(8)
	if len(samples) != 3 || len(indices) != 3 {
		t.Fatalf("got %d samples, want all 3", len(samples))
	}
}

func TestUniformSample_DrawsDistinctRecords(t *testing.T) {
	s := NewStore(20)
	s.Seed(1)
	for i := 0; i < 20; i++ {
		s.Add(expWithReward(float64(i)))
	}
	_, indices := s.Sample(8)
	if len(indices) != 8 {
		t.Fatalf("got %d indices, want 8", len(indices))
	}
	seen := make(map[int]struct{})
	for _, idx := range indices {
		if _, dup := seen[idx]; dup {
			t.Fatalf("uniform sampling drew slot %d twice", idx)
		}
		seen[idx] = struct{}{}
	}
}

func TestPrioritizedSample_WeightsNormalized(t *testing.T) {
	s := NewPrioritizedStore(64, 0.6, 0.4)
	s.Seed(3)
	for i := 0; i < 40; i++ {
		s.Add(expWithReward(float64(i)))
	}

	// Skew the priorities so the weights are not all equal.
	if err := s.UpdatePriorities([]int{0, 1, 2}, []float64{5, 0.2, 3}); err != nil {
		t.Fatalf("UpdatePriorities: %v", err)
	}

	samples, indices := s.Sample(16)
	if len(samples) != 16 || len(indices) != 16 {
		t.Fatalf("got %d samples, want 16", len(samples))
	}

	sawMax := false
	for _, exp := range samples {
		w := exp.SampleWeight()
		if w <= 0 || w > 1 {
			t.Fatalf("importance weight %v outside (0,1]", w)
		}
		if math.Abs(w-1) < 1e-12 {
			sawMax = true
		}
	}
	if !sawMax {
		t.Errorf("no sampled weight equals 1 after normalization")
	}
}

func TestPrioritizedSample_FavorsHighPriorities(t *testing.T) {
	s := NewPrioritizedStore(16, 0.6, 0.4)
	s.Seed(7)
	for i := 0; i < 16; i++ {
		s.Add(expWithReward(float64(i)))
	}
	// Slot 3 dominates; everything else is nearly never drawn.
	priorities := make([]float64, 16)
	indices := make([]int, 16)
	for i := range priorities {
		indices[i] = i
		priorities[i] = 0.001
	}
	priorities[3] = 100
	if err := s.UpdatePriorities(indices, priorities); err != nil {
		t.Fatalf("UpdatePriorities: %v", err)
	}

	hits := 0
	for round := 0; round < 20; round++ {
		_, sampled := s.Sample(8)
		for _, idx := range sampled {
			if idx == 3 {
				hits++
			}
		}
	}
	if hits < 100 { // out of 160 draws
		t.Errorf("dominant slot drawn %d/160 times", hits)
	}
}

func TestPrioritizedSample_BelowBatchGetsWeightOne(t *testing.T) {
	s := NewPrioritizedStore(16, 0.6, 0.4)
	s.Seed(3)
	for i := 0; i < 4; i++ {
		s.Add(expWithReward(float64(i)))
	}
	samples, _ := s.Sample(8)
	if len(samples) != 4 {
		t.Fatalf("got %d samples, want all 4", len(samples))
	}
	for _, exp := range samples {
		if exp.SampleWeight() != 1 {
			t.Errorf("weight = %v, want 1 for undersized buffer", exp.SampleWeight())
		}
	}
}

func TestUpdatePriorities_Validation(t *testing.T) {
	s := NewPrioritizedStore(8, 0.6, 0.4)
	s.Add(expWithReward(1))

	if err := s.UpdatePriorities([]int{0}, []float64{1, 2}); err == nil {
		t.Errorf("expected error for count mismatch")
	}
	if err := s.UpdatePriorities([]int{5}, []float64{1}); err == nil {
		t.Errorf("expected error for out-of-range index")
	}
	if err := s.UpdatePriorities([]int{0}, []float64{-1}); err == nil {
		t.Errorf("expected error for negative priority")
	}
	if err := s.UpdatePriorities([]int{0}, []float64{2.5}); err != nil {
		t.Errorf("UpdatePriorities: %v", err)
	}
}

func TestNewRecordsGetMaxPriority(t *testing.T) {
	p := NewPrioritizedSampler(8, 0.6, 0.4)
	p.OnAdd(0)
	if err := p.UpdatePriorities([]int{0}, []float64{10}); err != nil {
		t.Fatalf("UpdatePriorities: %v", err)
	}
	// A fresh record inherits the running maximum, keeping it competitive.
	p.OnAdd(1)
	if p.priorities[1] != 10 {
		t.Errorf("new record priority = %v, want the running max 10", p.priorities[1])
	}
}

func TestClear_RewindsCursor(t *testing.T) {
	s := NewStore(4)
	for i := 0; i < 4; i++ {
		s.Add(expWithReward(float64(i)))
	}
	s.Clear()
	if s.Len() != 0 {
		t.Fatalf("len after clear = %d", s.Len())
	}
	s.Add(expWithReward(9))
	if got := s.Record(0).Reward; got != 9 {
		t.Errorf("first record after clear has reward %v, want 9", got)
	}
}
