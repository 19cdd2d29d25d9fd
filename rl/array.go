package rl

import (
	"fmt"
	"math/rand"
	"time"
)

// FieldConfig declares one protocol field's observation and action space.
type FieldConfig struct {
	Name      string
	StateDim  int
	ActionDim int
}

// ArrayConfig configures an AgentArray.
type ArrayConfig struct {
	Protocol string
	Fields   []FieldConfig

	// PolicyLearningRate defaults to 0.01.
	PolicyLearningRate float64

	// TrainCritic enables the array-owned critic regression step. When it is
	// false the shared critic keeps its initial parameters and acts as a
	// fixed random baseline.
	TrainCritic        bool
	CriticLearningRate float64

	// Seed fixes the sampling RNG; zero seeds from the clock.
	Seed int64
}

// AgentArray owns one protocol's agent population: exactly one PolicyAgent
// per declared field, in declaration order, plus the shared critic they all
// borrow. The field order is fixed for the array's lifetime and defines the
// concatenation order of every global vector.
type AgentArray struct {
	protocol string
	agents   []*PolicyAgent
	byField  map[string]*PolicyAgent
	critic   *ValueNetwork

	trainCritic     bool
	criticOptimizer *AdamOptimizer
}

// NewAgentArray builds the agent population for one protocol. The shared
// critic's global state dimension is the sum of the field state dims and its
// global action dimension is the field count (one discrete action per field).
func NewAgentArray(cfg ArrayConfig) (*AgentArray, error) {
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("protocol %q declares no fields", cfg.Protocol)
	}
	if cfg.PolicyLearningRate <= 0 {
		cfg.PolicyLearningRate = 0.01
	}
	if cfg.CriticLearningRate <= 0 {
		cfg.CriticLearningRate = 0.001
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	globalStateDim := 0
	for _, f := range cfg.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("protocol %q has a field with an empty name", cfg.Protocol)
		}
		if f.StateDim <= 0 || f.ActionDim <= 0 {
			return nil, fmt.Errorf("field %q: state dim %d and action dim %d must be positive", f.Name, f.StateDim, f.ActionDim)
		}
		globalStateDim += f.StateDim
	}

	critic := NewValueNetwork(globalStateDim, len(cfg.Fields))

	arr := &AgentArray{
		protocol:    cfg.Protocol,
		agents:      make([]*PolicyAgent, 0, len(cfg.Fields)),
		byField:     make(map[string]*PolicyAgent, len(cfg.Fields)),
		critic:      critic,
		trainCritic: cfg.TrainCritic,
	}
	if cfg.TrainCritic {
		arr.criticOptimizer = NewAdamOptimizer(critic.net, cfg.CriticLearningRate)
	}

	for _, f := range cfg.Fields {
		if _, dup := arr.byField[f.Name]; dup {
			return nil, fmt.Errorf("protocol %q declares field %q twice", cfg.Protocol, f.Name)
		}
		agent := NewPolicyAgent(f.Name, f.StateDim, f.ActionDim, critic, cfg.PolicyLearningRate, rng)
		arr.agents = append(arr.agents, agent)
		arr.byField[f.Name] = agent
	}
	return arr, nil
}

// Protocol returns the protocol name this array serves.
func (arr *AgentArray) Protocol() string { return arr.protocol }

// Agents returns the agent population in declaration order.
func (arr *AgentArray) Agents() []*PolicyAgent { return arr.agents }

// Agent looks up the agent for a field, or nil.
func (arr *AgentArray) Agent(field string) *PolicyAgent { return arr.byField[field] }

// Critic returns the shared value network.
func (arr *AgentArray) Critic() *ValueNetwork { return arr.critic }

// SelectActions asks every agent whose field is present in observations to
// choose a mutation action. Fields absent from the input are skipped and get
// no action. Dimension mismatches propagate.
func (arr *AgentArray) SelectActions(observations map[string]Vector) (map[string]int, error) {
	actions := make(map[string]int, len(observations))
	for _, agent := range arr.agents {
		obs, ok := observations[agent.fieldName]
		if !ok {
			continue
		}
		action, err := agent.SelectAction(obs)
		if err != nil {
			return nil, fmt.Errorf("protocol %q: %w", arr.protocol, err)
		}
		actions[agent.fieldName] = action
	}
	return actions, nil
}

// GetGlobalObservation concatenates the observations of every agent whose
// field is present, in agent declaration order. Absent fields are skipped
// without padding; an empty vector is returned when nothing is present.
func (arr *AgentArray) GetGlobalObservation(observations map[string]Vector) Vector {
	global := Vector{}
	for _, agent := range arr.agents {
		if obs, ok := observations[agent.fieldName]; ok {
			global = append(global, obs...)
		}
	}
	return global
}

// GetGlobalActions encodes the per-field action choices as a vector in agent
// declaration order, skipping absent fields.
func (arr *AgentArray) GetGlobalActions(actions map[string]int) Vector {
	global := Vector{}
	for _, agent := range arr.agents {
		if action, ok := actions[agent.fieldName]; ok {
			global = append(global, float64(action))
		}
	}
	return global
}

// UpdatePolicies gives each agent the subset of experiences that carry an
// observation for its field. Agents with no matching experiences are left
// untouched.
func (arr *AgentArray) UpdatePolicies(experiences []*Experience, globalReward float64) {
	for _, agent := range arr.agents {
		fieldExperiences := make([]*Experience, 0, len(experiences))
		for _, exp := range experiences {
			if _, ok := exp.Observations[agent.fieldName]; ok {
				fieldExperiences = append(fieldExperiences, exp)
			}
		}
		if len(fieldExperiences) > 0 {
			agent.UpdatePolicy(fieldExperiences, globalReward)
		}
	}
	if arr.trainCritic {
		arr.FitCritic(experiences, globalReward)
	}
}

// FitCritic regresses the shared critic toward the observed global reward
// over the batch. The critic is written only here, by the array that owns
// it, and only when TrainCritic was enabled; agents themselves never train
// it. Calling FitCritic on an array without critic training is a no-op.
func (arr *AgentArray) FitCritic(experiences []*Experience, globalReward float64) {
	if arr.criticOptimizer == nil || len(experiences) == 0 {
		return
	}
	grads := NewGradients(arr.critic.net)
	for _, exp := range experiences {
		input := arr.critic.joinInput(exp.GlobalObservation, exp.GlobalActions)
		acts := arr.critic.net.Forward(input)
		value := acts[len(acts)-1][0]
		// d(0.5*(v - r)^2)/dv
		arr.critic.net.Backward(acts, Vector{value - globalReward}, grads)
	}
	arr.criticOptimizer.Step(grads)
}
