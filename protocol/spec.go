package protocol

import "fmt"

// FieldSpec describes one field of a protocol message: where it lives in the
// template frame and how its agent observes and acts on it.
type FieldSpec struct {
	Name      string
	Offset    int // byte offset in the template message
	Length    int // field length in bytes; 0 means "rest of message"
	StateDim  int // observation dimensionality the field's agent declares
	ActionDim int // size of the field's discrete action space
	IsFlag    bool
	IsNumeric bool
}

// Spec is an ordered, immutable description of a protocol's fields plus a
// valid template message to mutate from. The field order is fixed and
// defines the agent order everywhere downstream.
type Spec struct {
	Name      string
	Fields    []FieldSpec
	Template  []byte
	MinLength int
	Port      int
}

// Field looks up a field spec by name.
func (s *Spec) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// FieldConfigs returns the (name, state dim, action dim) triples in
// declaration order, the shape agent populations are built from.
func (s *Spec) FieldConfigs() []FieldSpec {
	return s.Fields
}

// Validate checks the spec is internally consistent: fields fit the
// template, dimensions are positive, and every action space fits the
// mutation vocabulary.
func (s *Spec) Validate() error {
	if len(s.Fields) == 0 {
		return fmt.Errorf("protocol %q declares no fields", s.Name)
	}
	if len(s.Template) < s.MinLength {
		return fmt.Errorf("protocol %q template is %d bytes, minimum is %d", s.Name, len(s.Template), s.MinLength)
	}
	for _, f := range s.Fields {
		if f.StateDim <= 0 || f.ActionDim <= 0 {
			return fmt.Errorf("field %q: non-positive dimensions", f.Name)
		}
		if f.ActionDim > NumMutationKinds {
			return fmt.Errorf("field %q: action space %d exceeds mutation vocabulary %d", f.Name, f.ActionDim, NumMutationKinds)
		}
		if f.Length > 0 && f.Offset+f.Length > len(s.Template) {
			return fmt.Errorf("field %q spans [%d,%d) beyond %d-byte template", f.Name, f.Offset, f.Offset+f.Length, len(s.Template))
		}
	}
	return nil
}

// fieldBounds resolves a field's byte range within a concrete message.
func fieldBounds(f FieldSpec, msgLen int) (int, int) {
	start := f.Offset
	if start > msgLen {
		start = msgLen
	}
	end := msgLen
	if f.Length > 0 {
		end = f.Offset + f.Length
		if end > msgLen {
			end = msgLen
		}
	}
	return start, end
}

// ParseMessage slices a message into its per-field byte ranges. Fields that
// fall entirely outside the message are omitted.
func (s *Spec) ParseMessage(msg []byte) map[string][]byte {
	fields := make(map[string][]byte, len(s.Fields))
	for _, f := range s.Fields {
		start, end := fieldBounds(f, len(msg))
		if start >= end {
			continue
		}
		fields[f.Name] = append([]byte(nil), msg[start:end]...)
	}
	return fields
}

// ModbusTCP describes a Modbus TCP request frame: the 7-byte MBAP header
// (transaction id, protocol id, length, unit id) followed by the function
// code and PDU data. The template is a valid Read Holding Registers request.
func ModbusTCP() *Spec {
	return &Spec{
		Name: "modbus_tcp",
		Fields: []FieldSpec{
			{Name: "transaction_id", Offset: 0, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "protocol_id", Offset: 2, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "length", Offset: 4, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "unit_id", Offset: 6, Length: 1, StateDim: 8, ActionDim: 8},
			{Name: "function_code", Offset: 7, Length: 1, StateDim: 8, ActionDim: 8, IsFlag: true},
			{Name: "data", Offset: 8, Length: 0, StateDim: 8, ActionDim: 8},
		},
		// Read Holding Registers, unit 1, start 0, count 10.
		Template:  []byte{0x00, 0x01, 0x00, 0x00, 0x00, 0x06, 0x01, 0x03, 0x00, 0x00, 0x00, 0x0A},
		MinLength: 8,
		Port:      502,
	}
}

// EtherNetIP describes the 24-byte EtherNet/IP encapsulation header followed
// by command-specific data. The template is a List Identity request.
func EtherNetIP() *Spec {
	return &Spec{
		Name: "ethernet_ip",
		Fields: []FieldSpec{
			{Name: "command", Offset: 0, Length: 2, StateDim: 8, ActionDim: 8, IsFlag: true},
			{Name: "length", Offset: 2, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "session_handle", Offset: 4, Length: 4, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "status", Offset: 8, Length: 4, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "sender_context", Offset: 12, Length: 8, StateDim: 8, ActionDim: 8},
			{Name: "options", Offset: 20, Length: 4, StateDim: 8, ActionDim: 8, IsNumeric: true},
		},
		Template: []byte{
			0x00, 0x63, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
			0x00, 0x00, 0x00, 0x00,
		},
		MinLength: 24,
		Port:      44818,
	}
}

// SiemensS7 describes the S7comm PDU header: message type (ROSCTR),
// reserved bytes, PDU reference and the parameter/data lengths, followed by
// the parameter block. The template is a Setup Communication request.
func SiemensS7() *Spec {
	return &Spec{
		Name: "siemens_s7",
		Fields: []FieldSpec{
			{Name: "rosctr", Offset: 0, Length: 1, StateDim: 8, ActionDim: 8, IsFlag: true},
			{Name: "reserved", Offset: 1, Length: 1, StateDim: 8, ActionDim: 8},
			{Name: "pdu_reference", Offset: 2, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "parameter_length", Offset: 4, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "data_length", Offset: 6, Length: 2, StateDim: 8, ActionDim: 8, IsNumeric: true},
			{Name: "parameter", Offset: 8, Length: 0, StateDim: 8, ActionDim: 8},
		},
		Template: []byte{
			0x01, 0x00, 0x00, 0x01, 0x00, 0x08, 0x00, 0x00,
			0xF0, 0x00, 0x00, 0x01, 0x00, 0x01, 0x01, 0xE0,
		},
		MinLength: 8,
		Port:      102,
	}
}

// Builtin resolves a protocol name to its built-in spec.
func Builtin(name string) (*Spec, error) {
	switch name {
	case "modbus_tcp":
		return ModbusTCP(), nil
	case "ethernet_ip":
		return EtherNetIP(), nil
	case "siemens_s7":
		return SiemensS7(), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
}
