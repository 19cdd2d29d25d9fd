package env

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"omnifuzz.local/fuzz/coverage"
	"omnifuzz.local/fuzz/protocol"
	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
	"omnifuzz.local/fuzz/trainer"
)

// FindingSink receives vulnerabilities as they are discovered, together with
// the message that triggered them.
type FindingSink interface {
	RecordVulnerability(v reward.Vulnerability, message []byte) error
}

// Config configures a PowerIoTEnv.
type Config struct {
	// Devices maps protocol name to target. Every protocol in Specs must
	// have one.
	Devices map[string]Device
	// Specs maps protocol name to its message layout.
	Specs map[string]*protocol.Spec
	// Sink persists findings; nil disables persistence.
	Sink FindingSink
	// Seed fixes the mutation RNG; zero seeds from the clock.
	Seed int64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// protocolState is one protocol's slice of the environment.
type protocolState struct {
	spec    *protocol.Spec
	device  Device
	mutator *protocol.Mutator
	tracker *coverage.Tracker
	message []byte
}

// PowerIoTEnv drives one or more protocol targets. Each step it mutates the
// current message per the chosen actions, exchanges it with the device,
// classifies the result, and folds execution feedback into coverage.
type PowerIoTEnv struct {
	states map[string]*protocolState
	sink   FindingSink
	logger *slog.Logger
	rng    *rand.Rand
}

// New builds the environment. Every spec must have a matching device.
func New(cfg Config) (*PowerIoTEnv, error) {
	if len(cfg.Specs) == 0 {
		return nil, fmt.Errorf("no protocols configured")
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	e := &PowerIoTEnv{
		states: make(map[string]*protocolState, len(cfg.Specs)),
		sink:   cfg.Sink,
		logger: logger,
		rng:    rand.New(rand.NewSource(seed)),
	}
	for name, spec := range cfg.Specs {
		if err := spec.Validate(); err != nil {
			return nil, err
		}
		device, ok := cfg.Devices[name]
		if !ok {
			return nil, fmt.Errorf("protocol %q has no device", name)
		}
		e.states[name] = &protocolState{
			spec:    spec,
			device:  device,
			mutator: protocol.NewMutator(spec, rand.New(rand.NewSource(e.rng.Int63()))),
			tracker: coverage.NewTracker(),
			message: append([]byte(nil), spec.Template...),
		}
	}
	return e, nil
}

// Close closes every device.
func (e *PowerIoTEnv) Close() error {
	var firstErr error
	for _, st := range e.states {
		if err := st.device.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// CoverageStats returns a protocol's accumulated coverage snapshot.
func (e *PowerIoTEnv) CoverageStats(protocolName string) coverage.Stats {
	if st, ok := e.states[protocolName]; ok {
		return st.tracker.Stats()
	}
	return coverage.Stats{}
}

// Reset starts a new episode: every protocol's message returns to its
// template and initial observations are computed from it.
func (e *PowerIoTEnv) Reset() (map[string]trainer.Observations, error) {
	observations := make(map[string]trainer.Observations, len(e.states))
	for name, st := range e.states {
		st.message = append(st.message[:0], st.spec.Template...)
		observations[name] = e.observe(st)
	}
	return observations, nil
}

// Step applies one round of actions across all protocols. Mutation failures
// are configuration errors and abort the step; device crashes are findings,
// not errors.
func (e *PowerIoTEnv) Step(actions map[string]trainer.Actions) (map[string]trainer.Observations, float64, bool, *trainer.StepInfo, error) {
	observations := make(map[string]trainer.Observations, len(e.states))
	outcome := reward.Outcome{ExecutionDepth: make(map[string]float64)}
	var envReward float64
	types := make(map[string]struct{})

	for name, st := range e.states {
		mutated, err := st.mutator.MutateMessage(st.message, map[string]int(actions[name]))
		if err != nil {
			return nil, 0, false, nil, err
		}

		resp, exchErr := st.device.Exchange(mutated)
		exec := e.recordCoverage(st, resp, exchErr)

		vulns := e.classify(name, st, mutated, resp, exchErr, exec)
		for _, v := range vulns {
			outcome.Vulnerabilities = append(outcome.Vulnerabilities, v)
			types[v.Type] = struct{}{}
			e.logger.Info("vulnerability found",
				"protocol", name, "type", v.Type, "severity", string(v.Severity))
			if e.sink != nil {
				if err := e.sink.RecordVulnerability(v, mutated); err != nil {
					e.logger.Warn("recording finding failed", "error", err)
				}
			}
		}

		depth := float64(exec.PathDepth)
		for _, f := range st.spec.Fields {
			outcome.ExecutionDepth[f.Name] = depth
		}

		envReward += 0.1*float64(exec.NewBlocks) + 0.05*float64(exec.NewFunctions)
		if exec.NewPath {
			envReward += 0.5
		}

		if errors.Is(exchErr, ErrDeviceCrash) {
			// The watchdog restarts the device; start the next message from
			// the template again.
			st.message = append(st.message[:0], st.spec.Template...)
		} else {
			st.message = mutated
		}
		observations[name] = e.observe(st)
	}

	for t := range types {
		outcome.VulnerabilityTypes = append(outcome.VulnerabilityTypes, t)
	}

	info := &trainer.StepInfo{Outcome: outcome, Coverage: envReward}
	return observations, envReward, false, info, nil
}

// recordCoverage folds the device's trace into the protocol's tracker. For
// devices that expose no trace, a synthetic one is derived from how far the
// exchange got.
func (e *PowerIoTEnv) recordCoverage(st *protocolState, resp []byte, exchErr error) coverage.Execution {
	if traced, ok := st.device.(Traced); ok {
		blocks, functions, sequence := traced.LastTrace()
		return st.tracker.RecordExecution(blocks, functions, sequence)
	}

	// Network targets are opaque; approximate depth from the outcome.
	sequence := []string{st.spec.Name + "/send"}
	if exchErr == nil {
		sequence = append(sequence, st.spec.Name+"/response")
		if len(resp) >= st.spec.MinLength {
			sequence = append(sequence, st.spec.Name+"/full_frame")
		}
	}
	return st.tracker.RecordExecution(sequence, nil, sequence)
}

// classify maps an exchange result to zero or more findings.
func (e *PowerIoTEnv) classify(protocolName string, st *protocolState, sent, resp []byte, exchErr error, exec coverage.Execution) []reward.Vulnerability {
	switch {
	case errors.Is(exchErr, ErrDeviceCrash):
		return []reward.Vulnerability{{
			ID:       uuid.NewString(),
			Protocol: protocolName,
			Type:     "crash",
			Severity: reward.SeverityCritical,
			Detail:   exchErr.Error(),
		}}

	case exchErr != nil:
		// Refused connections and timeouts on a live campaign mean the
		// target stopped answering.
		return []reward.Vulnerability{{
			ID:       uuid.NewString(),
			Protocol: protocolName,
			Type:     "unresponsive",
			Severity: reward.SeverityMajor,
			Detail:   exchErr.Error(),
		}}

	case len(resp) >= 1 && resp[0] == 0xEE:
		// An exception frame is expected behavior, only notable when a new
		// path produced it.
		if exec.NewPath {
			return []reward.Vulnerability{{
				ID:       uuid.NewString(),
				Protocol: protocolName,
				Type:     "error_response",
				Severity: reward.SeverityMinor,
				Detail:   fmt.Sprintf("exception frame for %d-byte request", len(sent)),
			}}
		}
		return nil

	case len(resp) > 0 && len(resp) < st.spec.MinLength && len(sent) >= st.spec.MinLength:
		return []reward.Vulnerability{{
			ID:       uuid.NewString(),
			Protocol: protocolName,
			Type:     "truncated_response",
			Severity: reward.SeverityGeneral,
			Detail:   fmt.Sprintf("%d-byte response to %d-byte request", len(resp), len(sent)),
		}}
	}
	return nil
}

// observe builds per-field observation vectors from the protocol's current
// message. Each field gets a fixed-size feature vector padded with zeros up
// to its declared state dimension.
func (e *PowerIoTEnv) observe(st *protocolState) trainer.Observations {
	fields := st.spec.ParseMessage(st.message)
	observations := make(trainer.Observations, len(st.spec.Fields))
	for _, f := range st.spec.Fields {
		raw, ok := fields[f.Name]
		if !ok {
			continue
		}
		observations[f.Name] = fieldFeatures(raw, len(st.message), len(st.spec.Template), f.StateDim)
	}
	return observations
}

// fieldFeatures summarizes a field's bytes as normalized features: length
// ratio against the template, byte statistics, and the leading bytes.
func fieldFeatures(raw []byte, msgLen, templateLen, stateDim int) rl.Vector {
	features := make(rl.Vector, stateDim)
	if len(raw) == 0 || stateDim == 0 {
		return features
	}

	var sum, minB, maxB, zeros float64
	minB = 255
	for _, b := range raw {
		v := float64(b)
		sum += v
		if v < minB {
			minB = v
		}
		if v > maxB {
			maxB = v
		}
		if b == 0 {
			zeros++
		}
	}

	base := []float64{
		float64(msgLen) / float64(templateLen),
		float64(len(raw)) / float64(msgLen),
		sum / float64(len(raw)) / 255.0,
		minB / 255.0,
		maxB / 255.0,
		zeros / float64(len(raw)),
	}
	for i := 0; i < stateDim && i < len(base); i++ {
		features[i] = base[i]
	}
	for i := len(base); i < stateDim; i++ {
		j := i - len(base)
		if j < len(raw) {
			features[i] = float64(raw[j]) / 255.0
		}
	}
	return features
}
