package protocol

import (
	"bytes"
	"math/rand"
	"testing"
)

func TestKindForAction_ExhaustiveMapping(t *testing.T) {
	want := []MutationKind{
		KindFieldFlip, KindFieldDelete, KindFieldDuplicate, KindFieldTruncate,
		KindFieldPad, KindInvalidFlag, KindFieldReorder, KindSemantic,
	}
	for i, kind := range want {
		got, err := KindForAction(i, NumMutationKinds)
		if err != nil {
			t.Fatalf("KindForAction(%d): %v", i, err)
		}
		if got != kind {
			t.Errorf("action %d mapped to %s, want %s", i, got, kind)
		}
	}
}

func TestKindForAction_Bounds(t *testing.T) {
	if _, err := KindForAction(0, 0); err == nil {
		t.Errorf("expected error for empty action space")
	}
	if _, err := KindForAction(0, NumMutationKinds+1); err == nil {
		t.Errorf("expected error for oversized action space")
	}
	if _, err := KindForAction(5, 5); err == nil {
		t.Errorf("expected error for index at the action space boundary")
	}
	if _, err := KindForAction(-1, 8); err == nil {
		t.Errorf("expected error for negative index")
	}
	// A small action space reaches only the leading kinds.
	if kind, err := KindForAction(2, 3); err != nil || kind != KindFieldDuplicate {
		t.Errorf("KindForAction(2, 3) = %v, %v", kind, err)
	}
}

func TestBuiltinSpecsValidate(t *testing.T) {
	for _, name := range []string{"modbus_tcp", "ethernet_ip", "siemens_s7"} {
		spec, err := Builtin(name)
		if err != nil {
			t.Fatalf("Builtin(%s): %v", name, err)
		}
		if err := spec.Validate(); err != nil {
			t.Errorf("%s: %v", name, err)
		}
	}
	if _, err := Builtin("dnp3"); err == nil {
		t.Errorf("expected error for unknown protocol")
	}
}

func TestParseMessage_SlicesFields(t *testing.T) {
	spec := ModbusTCP()
	fields := spec.ParseMessage(spec.Template)

	if got := fields["transaction_id"]; !bytes.Equal(got, []byte{0x00, 0x01}) {
		t.Errorf("transaction_id = %x", got)
	}
	if got := fields["function_code"]; !bytes.Equal(got, []byte{0x03}) {
		t.Errorf("function_code = %x", got)
	}
	// The open-ended data field runs to the end of the message.
	if got := fields["data"]; len(got) != len(spec.Template)-8 {
		t.Errorf("data field has %d bytes, want %d", len(got), len(spec.Template)-8)
	}

	// A truncated message drops fields that fall outside it.
	short := spec.ParseMessage(spec.Template[:6])
	if _, ok := short["function_code"]; ok {
		t.Errorf("function_code parsed from a 6-byte frame")
	}
	if _, ok := short["length"]; !ok {
		t.Errorf("length missing from a 6-byte frame")
	}
}

func TestMutator_DeleteZeroFillsFieldOnly(t *testing.T) {
	spec := ModbusTCP()
	m := NewMutator(spec, rand.New(rand.NewSource(1)))

	deleteAction := int(KindFieldDelete)
	mutated, err := m.MutateMessage(spec.Template, map[string]int{"transaction_id": deleteAction})
	if err != nil {
		t.Fatalf("MutateMessage: %v", err)
	}
	if mutated[0] != 0 || mutated[1] != 0 {
		t.Errorf("transaction_id not zeroed: %x", mutated[:2])
	}
	if !bytes.Equal(mutated[2:], spec.Template[2:]) {
		t.Errorf("bytes outside the field changed: %x", mutated)
	}
	// The input message is never mutated in place.
	if !bytes.Equal(spec.Template, ModbusTCP().Template) {
		t.Errorf("template mutated in place")
	}
}

func TestMutator_PadGrowsMessage(t *testing.T) {
	spec := ModbusTCP()
	m := NewMutator(spec, rand.New(rand.NewSource(1)))

	mutated, err := m.MutateMessage(spec.Template, map[string]int{"data": int(KindFieldPad)})
	if err != nil {
		t.Fatalf("MutateMessage: %v", err)
	}
	if len(mutated) <= len(spec.Template) {
		t.Errorf("padding did not grow the message: %d bytes", len(mutated))
	}
}

func TestMutator_InvalidFlagNeedsFlagField(t *testing.T) {
	spec := ModbusTCP()
	m := NewMutator(spec, rand.New(rand.NewSource(1)))

	flagAction := int(KindInvalidFlag)
	mutated, err := m.MutateMessage(spec.Template, map[string]int{"function_code": flagAction})
	if err != nil {
		t.Fatalf("MutateMessage: %v", err)
	}
	switch mutated[7] {
	case 0xFF, 0x00, 0x7F:
	default:
		t.Errorf("function_code = %#x, want an invalid flag value", mutated[7])
	}

	// Non-flag fields ignore the same action.
	mutated, err = m.MutateMessage(spec.Template, map[string]int{"unit_id": flagAction})
	if err != nil {
		t.Fatalf("MutateMessage: %v", err)
	}
	if !bytes.Equal(mutated, spec.Template) {
		t.Errorf("invalid flag mutated a non-flag field")
	}
}

func TestMutator_SemanticWritesBoundaryValue(t *testing.T) {
	spec := ModbusTCP()
	m := NewMutator(spec, rand.New(rand.NewSource(1)))

	mutated, err := m.MutateMessage(spec.Template, map[string]int{"length": int(KindSemantic)})
	if err != nil {
		t.Fatalf("MutateMessage: %v", err)
	}
	if len(mutated) != len(spec.Template) {
		t.Fatalf("semantic mutation changed the length: %d", len(mutated))
	}
	if !bytes.Equal(mutated[:4], spec.Template[:4]) || !bytes.Equal(mutated[6:], spec.Template[6:]) {
		t.Errorf("semantic mutation escaped the length field: %x", mutated)
	}
}

func TestMutator_RejectsInvalidAction(t *testing.T) {
	spec := ModbusTCP()
	m := NewMutator(spec, rand.New(rand.NewSource(1)))
	if _, err := m.MutateMessage(spec.Template, map[string]int{"unit_id": 8}); err == nil {
		t.Errorf("expected error for action index outside the space")
	}
}

func TestBuildActionPrior_ShapesFollowFieldKind(t *testing.T) {
	spec := ModbusTCP()
	flagField, _ := spec.Field("function_code")
	numField, _ := spec.Field("length")

	flagPrior := BuildActionPrior(flagField)
	if len(flagPrior) != flagField.ActionDim {
		t.Fatalf("prior length %d, want %d", len(flagPrior), flagField.ActionDim)
	}
	if flagPrior[int(KindInvalidFlag)] <= flagPrior[int(KindFieldFlip)] {
		t.Errorf("flag field does not favor invalid flag injection: %v", flagPrior)
	}

	numPrior := BuildActionPrior(numField)
	if numPrior[int(KindSemantic)] <= numPrior[int(KindFieldFlip)] {
		t.Errorf("numeric field does not favor semantic mutation: %v", numPrior)
	}
}
