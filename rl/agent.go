package rl

import (
	"fmt"
	"math/rand"
)

// PolicyAgent decides how to mutate exactly one protocol field. It owns its
// policy network and optimizer; the critic is borrowed from the protocol's
// AgentArray and is only ever read here.
type PolicyAgent struct {
	fieldName string
	stateDim  int
	actionDim int

	policy    *PolicyNetwork
	optimizer *AdamOptimizer
	critic    *ValueNetwork // shared, not owned

	prior Vector // optional logit bias, see SetActionPrior
	rng   *rand.Rand
}

// NewPolicyAgent creates an agent for one field. The critic is the protocol's
// shared value network.
func NewPolicyAgent(fieldName string, stateDim, actionDim int, critic *ValueNetwork, learningRate float64, rng *rand.Rand) *PolicyAgent {
	policy := NewPolicyNetwork(stateDim, actionDim)
	return &PolicyAgent{
		fieldName: fieldName,
		stateDim:  stateDim,
		actionDim: actionDim,
		policy:    policy,
		optimizer: NewAdamOptimizer(policy.net, learningRate),
		critic:    critic,
		rng:       rng,
	}
}

// FieldName returns the field this agent is responsible for.
func (a *PolicyAgent) FieldName() string { return a.fieldName }

// ActionDim returns the size of the agent's action space.
func (a *PolicyAgent) ActionDim() int { return a.actionDim }

// StateDim returns the declared observation dimensionality.
func (a *PolicyAgent) StateDim() int { return a.stateDim }

// SetActionPrior biases the policy logits with a fixed per-action score,
// nudging early exploration toward mutations that historically pay off for
// this kind of field. A nil prior disables the bias.
func (a *PolicyAgent) SetActionPrior(prior Vector) error {
	if prior != nil && len(prior) != a.actionDim {
		return fmt.Errorf("action prior length %d does not match action space %d for field %q", len(prior), a.actionDim, a.fieldName)
	}
	a.prior = prior
	return nil
}

// SelectAction samples a single mutation action from the policy distribution
// over obs. This is an inference step: no gradient state is recorded. The
// policy is stochastic, so repeated calls may return different actions.
func (a *PolicyAgent) SelectAction(obs Vector) (int, error) {
	if len(obs) != a.stateDim {
		return 0, fmt.Errorf("field %q: observation has %d dims, agent declares %d", a.fieldName, len(obs), a.stateDim)
	}
	logits := a.policy.net.Output(obs)
	if a.prior != nil {
		logits = AddVec(logits, a.prior)
	}
	return SampleCategorical(Softmax(logits), a.rng), nil
}

// UpdatePolicy performs one REINFORCE-with-baseline step over the batch.
// For each experience the advantage is globalReward minus the shared
// critic's value of the joint state and action; the policy-gradient loss
// -log pi(a|s) * advantage is accumulated over the whole batch and applied
// as a single optimizer step. Only this agent's policy parameters move; the
// critic is read with its current parameters and never written.
func (a *PolicyAgent) UpdatePolicy(experiences []*Experience, globalReward float64) {
	if len(experiences) == 0 {
		return
	}

	grads := NewGradients(a.policy.net)
	for _, exp := range experiences {
		obs, ok := exp.Observations[a.fieldName]
		if !ok {
			continue
		}
		action, ok := exp.Actions[a.fieldName]
		if !ok || action < 0 || action >= a.actionDim {
			continue
		}

		baseline := a.critic.Value(exp.GlobalObservation, exp.GlobalActions)
		advantage := (globalReward - baseline) * exp.SampleWeight()

		acts := a.policy.forwardForTraining(obs)
		probs := Softmax(acts[len(acts)-1])

		// d(-log pi(a)) / d logit_i = pi_i - 1{i == a}
		dLogits := make(Vector, a.actionDim)
		for i := range dLogits {
			dLogits[i] = probs[i] * advantage
		}
		dLogits[action] -= advantage

		a.policy.net.Backward(acts, dLogits, grads)
	}

	a.optimizer.Step(grads)
}
