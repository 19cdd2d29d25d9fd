// Package env is the fuzzing environment: it turns agent actions into
// mutated protocol messages, delivers them to target devices, and reports
// what happened as observations, rewards and findings.
package env

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrDeviceCrash marks an exchange that took the target down.
var ErrDeviceCrash = errors.New("device crashed")

// Device is one fuzzing target. Exchange delivers a message and returns the
// device's response; a crash surfaces as an error wrapping ErrDeviceCrash.
type Device interface {
	Exchange(msg []byte) ([]byte, error)
	Close() error
}

// Traced is implemented by devices that expose the execution trace of their
// last exchange, used for coverage feedback.
type Traced interface {
	LastTrace() (blocks, functions, sequence []string)
}

// DeviceLink fuzzes a real device over TCP. Each exchange uses a fresh
// connection so a crashed target shows up as a dial or read failure instead
// of poisoning later steps.
type DeviceLink struct {
	addr    string
	timeout time.Duration
}

// NewDeviceLink creates a link to host:port with the given per-exchange
// timeout.
func NewDeviceLink(host string, port int, timeout time.Duration) *DeviceLink {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeviceLink{
		addr:    net.JoinHostPort(host, fmt.Sprintf("%d", port)),
		timeout: timeout,
	}
}

// Exchange sends msg and reads one response. Connection refusal after a
// previously working target counts as a crash at the classification layer;
// here it is just an error.
func (l *DeviceLink) Exchange(msg []byte) ([]byte, error) {
	conn, err := net.DialTimeout("tcp", l.addr, l.timeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", l.addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(l.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set deadline: %w", err)
	}
	if _, err := conn.Write(msg); err != nil {
		return nil, fmt.Errorf("write %s: %w", l.addr, err)
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", l.addr, err)
	}
	return buf[:n], nil
}

// Close is a no-op; links hold no persistent connection.
func (l *DeviceLink) Close() error { return nil }
