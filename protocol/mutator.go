package protocol

import (
	"encoding/binary"
	"fmt"
	"math/rand"
)

// Mutator applies agent-chosen mutation kinds to a protocol message.
type Mutator struct {
	spec *Spec
	rng  *rand.Rand
}

// NewMutator creates a mutator for a spec. The RNG is injected so runs can
// be reproduced.
func NewMutator(spec *Spec, rng *rand.Rand) *Mutator {
	return &Mutator{spec: spec, rng: rng}
}

// MutateMessage applies each field's chosen action to a copy of msg. Fields
// not present in actions are left alone; unknown field names are ignored.
// Invalid action indices are configuration errors and fail the whole call.
func (m *Mutator) MutateMessage(msg []byte, actions map[string]int) ([]byte, error) {
	mutated := append([]byte(nil), msg...)

	for _, f := range m.spec.Fields {
		actionIdx, ok := actions[f.Name]
		if !ok {
			continue
		}
		kind, err := KindForAction(actionIdx, f.ActionDim)
		if err != nil {
			return nil, fmt.Errorf("protocol %q field %q: %w", m.spec.Name, f.Name, err)
		}
		mutated = m.apply(mutated, f, kind)
	}
	return mutated, nil
}

func (m *Mutator) apply(msg []byte, f FieldSpec, kind MutationKind) []byte {
	start, end := fieldBounds(f, len(msg))

	switch kind {
	case KindFieldFlip:
		for i := start; i < end; i++ {
			if m.rng.Float64() < 0.3 {
				msg[i] ^= 0xFF
			}
		}

	case KindFieldDelete:
		// Zero-fill rather than shrink, so downstream offsets stay put.
		for i := start; i < end; i++ {
			msg[i] = 0x00
		}

	case KindFieldDuplicate:
		if start < end {
			msg = append(msg, msg[start:end]...)
		}

	case KindFieldTruncate:
		if len(msg) >= 2 {
			low := len(msg) / 2
			high := len(msg) * 9 / 10
			if high <= low {
				high = low + 1
			}
			msg = msg[:low+m.rng.Intn(high-low)]
		}

	case KindFieldPad:
		padding := make([]byte, 1+m.rng.Intn(100))
		m.rng.Read(padding)
		msg = append(msg, padding...)

	case KindInvalidFlag:
		if f.IsFlag {
			invalid := []byte{0xFF, 0x00, 0x7F}[m.rng.Intn(3)]
			for i := start; i < end; i++ {
				msg[i] = invalid
			}
		}

	case KindFieldReorder:
		if len(msg) >= 2 {
			i := m.rng.Intn(len(msg))
			j := m.rng.Intn(len(msg))
			msg[i], msg[j] = msg[j], msg[i]
		}

	case KindSemantic:
		if f.IsNumeric && end > start {
			boundary := []uint32{0, 1, 0x7FFFFFFF, 0x80000000, 0xFFFFFFFF}[m.rng.Intn(5)]
			var buf [4]byte
			binary.BigEndian.PutUint32(buf[:], boundary)
			// Write as many of the low-order bytes as the field holds.
			width := end - start
			if width > 4 {
				width = 4
			}
			copy(msg[start:start+width], buf[4-width:])
		}
	}
	return msg
}
