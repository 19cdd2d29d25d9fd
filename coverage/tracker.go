// Package coverage accumulates execution feedback from fuzzed targets:
// which basic blocks and functions ran, and how deep each execution path
// went.
package coverage

import "hash/fnv"

// Execution summarizes what one recorded run contributed.
type Execution struct {
	NewBlocks    int
	NewFunctions int
	NewPath      bool
	PathDepth    int
}

// Stats is a snapshot of accumulated coverage.
type Stats struct {
	BlocksCovered    int
	FunctionsCovered int
	UniquePaths      int
	MaxDepth         int
}

// Tracker deduplicates coverage across a campaign. It is not safe for
// concurrent use; the environment owns it and records from its own step.
type Tracker struct {
	blocks    map[string]struct{}
	functions map[string]struct{}
	paths     map[uint64]struct{}
	depths    map[int]int
	maxDepth  int
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		blocks:    make(map[string]struct{}),
		functions: make(map[string]struct{}),
		paths:     make(map[uint64]struct{}),
		depths:    make(map[int]int),
	}
}

// RecordExecution folds one run's coverage into the tracker and reports what
// was new. The path depth is the length of the execution sequence.
func (t *Tracker) RecordExecution(blocks, functions, sequence []string) Execution {
	var exec Execution
	for _, b := range blocks {
		if _, seen := t.blocks[b]; !seen {
			t.blocks[b] = struct{}{}
			exec.NewBlocks++
		}
	}
	for _, f := range functions {
		if _, seen := t.functions[f]; !seen {
			t.functions[f] = struct{}{}
			exec.NewFunctions++
		}
	}

	hash := hashPath(sequence)
	if _, seen := t.paths[hash]; !seen {
		t.paths[hash] = struct{}{}
		exec.NewPath = true
	}

	exec.PathDepth = len(sequence)
	t.depths[exec.PathDepth]++
	if exec.PathDepth > t.maxDepth {
		t.maxDepth = exec.PathDepth
	}
	return exec
}

// Stats returns the current coverage snapshot.
func (t *Tracker) Stats() Stats {
	return Stats{
		BlocksCovered:    len(t.blocks),
		FunctionsCovered: len(t.functions),
		UniquePaths:      len(t.paths),
		MaxDepth:         t.maxDepth,
	}
}

// Reset clears all accumulated coverage.
func (t *Tracker) Reset() {
	t.blocks = make(map[string]struct{})
	t.functions = make(map[string]struct{})
	t.paths = make(map[uint64]struct{})
	t.depths = make(map[int]int)
	t.maxDepth = 0
}

func hashPath(sequence []string) uint64 {
	h := fnv.New64a()
	for i, s := range sequence {
		if i > 0 {
			h.Write([]byte{'-', '>'})
		}
		h.Write([]byte(s))
	}
	return h.Sum64()
}
