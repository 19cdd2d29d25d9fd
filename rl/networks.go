package rl

// PolicyNetwork maps a per-field observation to a probability distribution
// over that field's mutation actions. Hidden layers are 64 and 32 wide.
type PolicyNetwork struct {
	net *MLP
}

// NewPolicyNetwork creates a policy network for the given dimensions.
func NewPolicyNetwork(stateDim, actionDim int) *PolicyNetwork {
	return &PolicyNetwork{net: NewMLP(stateDim, 64, 32, actionDim)}
}

// Probs returns the action distribution for obs.
func (p *PolicyNetwork) Probs(obs Vector) Vector {
	return Softmax(p.net.Output(obs))
}

// forwardForTraining exposes the layer activations needed for backprop.
func (p *PolicyNetwork) forwardForTraining(obs Vector) []Vector {
	return p.net.Forward(obs)
}

// ValueNetwork is the shared critic: it scores a joint (global observation,
// global action) pair with a single baseline value. One instance exists per
// protocol and is shared by reference across all of that protocol's agents,
// so Value must stay side-effect free; training it goes through FitCritic on
// the owning AgentArray, never through individual agents.
type ValueNetwork struct {
	net       *MLP
	stateDim  int
	actionDim int
}

// NewValueNetwork creates a critic for the given global dimensions.
// Hidden layers are 128 and 64 wide.
func NewValueNetwork(globalStateDim, globalActionDim int) *ValueNetwork {
	return &ValueNetwork{
		net:       NewMLP(globalStateDim+globalActionDim, 128, 64, 1),
		stateDim:  globalStateDim,
		actionDim: globalActionDim,
	}
}

// Value evaluates the baseline for the joint observation and action vectors.
// Absent fields contribute zero features: the inputs are copied into a buffer
// of the declared global dimensionality, truncating anything beyond it.
func (v *ValueNetwork) Value(globalObs, globalActions Vector) float64 {
	input := make(Vector, v.stateDim+v.actionDim)
	copy(input[:v.stateDim], globalObs)
	copy(input[v.stateDim:], globalActions)
	return v.net.Output(input)[0]
}

func (v *ValueNetwork) joinInput(globalObs, globalActions Vector) Vector {
	input := make(Vector, v.stateDim+v.actionDim)
	copy(input[:v.stateDim], globalObs)
	copy(input[v.stateDim:], globalActions)
	return input
}
