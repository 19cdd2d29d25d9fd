package env

import (
	"fmt"
	"math/rand"

	"omnifuzz.local/fuzz/protocol"
)

// SimDevice is an in-process model of an industrial endpoint. It parses
// incoming frames against the protocol spec, answers well-formed requests,
// rejects malformed ones, and crashes on the classic failure shapes: frames
// grown far past the template size and numeric fields saturated to all-ones.
// After a crash the next exchange succeeds again, modeling a watchdog
// restart.
type SimDevice struct {
	spec *protocol.Spec
	rng  *rand.Rand

	crashes int

	blocks    []string
	functions []string
	sequence  []string
}

// NewSimDevice creates a simulated device for one protocol.
func NewSimDevice(spec *protocol.Spec, rng *rand.Rand) *SimDevice {
	return &SimDevice{spec: spec, rng: rng}
}

// Crashes reports how many times the device has gone down.
func (d *SimDevice) Crashes() int { return d.crashes }

// LastTrace returns the execution trace of the most recent exchange.
func (d *SimDevice) LastTrace() (blocks, functions, sequence []string) {
	return d.blocks, d.functions, d.sequence
}

// Exchange runs msg through the simulated protocol stack.
func (d *SimDevice) Exchange(msg []byte) ([]byte, error) {
	d.blocks = d.blocks[:0]
	d.functions = d.functions[:0]
	d.sequence = d.sequence[:0]

	d.enter("recv", "rx_loop")

	if len(msg) < d.spec.MinLength {
		d.enter("reject_short", "frame_check")
		return d.errorResponse(0x01), nil
	}
	if len(msg) > len(d.spec.Template)*3 {
		d.enter("copy_frame", "frame_check")
		d.crashes++
		return nil, fmt.Errorf("%s: frame of %d bytes overran receive buffer: %w",
			d.spec.Name, len(msg), ErrDeviceCrash)
	}

	fields := d.spec.ParseMessage(msg)
	for _, f := range d.spec.Fields {
		raw, ok := fields[f.Name]
		if !ok {
			continue
		}
		d.enter("parse_"+f.Name, "field_decode")

		if f.IsNumeric && len(raw) >= 2 && allOnes(raw) {
			d.crashes++
			return nil, fmt.Errorf("%s: field %s saturated: %w", d.spec.Name, f.Name, ErrDeviceCrash)
		}
		if f.IsFlag && (raw[0] == 0xFF || raw[0] == 0x7F) {
			d.enter("reject_flag", "dispatch")
			return d.errorResponse(raw[0]), nil
		}
	}

	d.enter("dispatch", "dispatch")
	d.enter("handle", "handler")
	return d.okResponse(msg), nil
}

// Close is a no-op for the simulated device.
func (d *SimDevice) Close() error { return nil }

func (d *SimDevice) enter(block, function string) {
	qualified := d.spec.Name + "/" + block
	d.blocks = append(d.blocks, qualified)
	d.functions = append(d.functions, d.spec.Name+"/"+function)
	d.sequence = append(d.sequence, qualified)
}

// okResponse echoes the request header with a short payload, the way most
// request/response field devices answer.
func (d *SimDevice) okResponse(msg []byte) []byte {
	n := d.spec.MinLength
	if n > len(msg) {
		n = len(msg)
	}
	resp := append([]byte(nil), msg[:n]...)
	return append(resp, 0x00, byte(1+d.rng.Intn(4)))
}

// errorResponse is the device's exception frame: a recognizable marker plus
// the rejected code.
func (d *SimDevice) errorResponse(code byte) []byte {
	return []byte{0xEE, code}
}

func allOnes(raw []byte) bool {
	for _, b := range raw {
		if b != 0xFF {
			return false
		}
	}
	return true
}
