package rl

import "fmt"

// NetworkSnapshot is the serializable form of a network's parameters. The
// trainer persists one snapshot per agent policy and one for the shared
// critic; the on-disk encoding is owned by the caller.
type NetworkSnapshot struct {
	Sizes   []int    `json:"sizes"`
	Weights []Matrix `json:"weights"`
	Biases  []Vector `json:"biases"`
}

func snapshotMLP(net *MLP) NetworkSnapshot {
	snap := NetworkSnapshot{
		Sizes:   append([]int(nil), net.Sizes...),
		Weights: make([]Matrix, len(net.Weights)),
		Biases:  make([]Vector, len(net.Biases)),
	}
	for l := range net.Weights {
		snap.Weights[l] = make(Matrix, len(net.Weights[l]))
		for i := range net.Weights[l] {
			snap.Weights[l][i] = append(Vector(nil), net.Weights[l][i]...)
		}
		snap.Biases[l] = append(Vector(nil), net.Biases[l]...)
	}
	return snap
}

func restoreMLP(net *MLP, snap NetworkSnapshot) error {
	if len(snap.Sizes) != len(net.Sizes) {
		return fmt.Errorf("snapshot has %d layers, network has %d", len(snap.Sizes), len(net.Sizes))
	}
	for i, size := range snap.Sizes {
		if size != net.Sizes[i] {
			return fmt.Errorf("snapshot layer %d has size %d, network declares %d", i, size, net.Sizes[i])
		}
	}
	for l := range net.Weights {
		for i := range net.Weights[l] {
			copy(net.Weights[l][i], snap.Weights[l][i])
		}
		copy(net.Biases[l], snap.Biases[l])
	}
	return nil
}

// Snapshot captures the agent's policy parameters.
func (a *PolicyAgent) Snapshot() NetworkSnapshot {
	return snapshotMLP(a.policy.net)
}

// Restore overwrites the policy parameters from a snapshot. The snapshot
// must match the agent's declared dimensions.
func (a *PolicyAgent) Restore(snap NetworkSnapshot) error {
	if err := restoreMLP(a.policy.net, snap); err != nil {
		return fmt.Errorf("field %q: %w", a.fieldName, err)
	}
	return nil
}

// Snapshot captures the critic's parameters.
func (v *ValueNetwork) Snapshot() NetworkSnapshot {
	return snapshotMLP(v.net)
}

// Restore overwrites the critic's parameters from a snapshot.
func (v *ValueNetwork) Restore(snap NetworkSnapshot) error {
	return restoreMLP(v.net, snap)
}
