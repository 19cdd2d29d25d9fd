package trainer

import (
	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
)

// Observations maps field names to observation vectors for one protocol.
type Observations map[string]rl.Vector

// Actions maps field names to chosen action indices for one protocol.
type Actions map[string]int

// StepInfo is the side-channel report an environment step produces alongside
// the transition: the raw material for reward shaping and statistics.
type StepInfo struct {
	Outcome  reward.Outcome
	Coverage float64
}

// Environment is the external fuzzing collaborator: it mutates messages
// according to the chosen actions, exercises the targets, and reports what
// happened. Step failures are fatal to training and must not be swallowed.
type Environment interface {
	// Reset starts a new episode and returns initial per-protocol
	// observations.
	Reset() (map[string]Observations, error)
	// Step applies one round of per-protocol actions and advances the
	// environment. It returns the next observations, the environment's own
	// scalar reward, a done flag, and the step report.
	Step(actions map[string]Actions) (map[string]Observations, float64, bool, *StepInfo, error)
}
