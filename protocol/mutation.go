// Package protocol describes industrial-protocol message layouts and the
// byte-level mutation vocabulary agents choose from.
package protocol

import "fmt"

// MutationKind is the closed set of field mutation operations. The ordering
// is part of the action encoding: action index i always maps to the i-th
// kind, and an action space larger than the vocabulary is a configuration
// error rather than a wrap-around.
type MutationKind int

const (
	KindFieldFlip MutationKind = iota
	KindFieldDelete
	KindFieldDuplicate
	KindFieldTruncate
	KindFieldPad
	KindInvalidFlag
	KindFieldReorder
	KindSemantic

	numMutationKinds
)

// NumMutationKinds is the size of the mutation vocabulary.
const NumMutationKinds = int(numMutationKinds)

// String returns the wire-stable name of the mutation kind.
func (k MutationKind) String() string {
	switch k {
	case KindFieldFlip:
		return "field_flipping"
	case KindFieldDelete:
		return "field_deletion"
	case KindFieldDuplicate:
		return "field_duplication"
	case KindFieldTruncate:
		return "field_truncation"
	case KindFieldPad:
		return "field_padding"
	case KindInvalidFlag:
		return "invalid_flag_injection"
	case KindFieldReorder:
		return "fields_reordering"
	case KindSemantic:
		return "semantic_mutation"
	default:
		return fmt.Sprintf("mutation_kind(%d)", int(k))
	}
}

// KindForAction maps a discrete action index from an action space of size
// actionDim to a mutation kind. The match is exhaustive and bounds-checked:
// indices outside [0, actionDim) and action spaces larger than the
// vocabulary both fail instead of aliasing.
func KindForAction(actionIdx, actionDim int) (MutationKind, error) {
	if actionDim <= 0 || actionDim > NumMutationKinds {
		return 0, fmt.Errorf("action space size %d must be in [1, %d]", actionDim, NumMutationKinds)
	}
	if actionIdx < 0 || actionIdx >= actionDim {
		return 0, fmt.Errorf("action index %d out of range for action space of %d", actionIdx, actionDim)
	}
	switch actionIdx {
	case 0:
		return KindFieldFlip, nil
	case 1:
		return KindFieldDelete, nil
	case 2:
		return KindFieldDuplicate, nil
	case 3:
		return KindFieldTruncate, nil
	case 4:
		return KindFieldPad, nil
	case 5:
		return KindInvalidFlag, nil
	case 6:
		return KindFieldReorder, nil
	case 7:
		return KindSemantic, nil
	default:
		return 0, fmt.Errorf("no mutation kind for action index %d", actionIdx)
	}
}
