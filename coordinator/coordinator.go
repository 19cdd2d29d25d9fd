// Package coordinator runs several protocols' agent populations inside one
// logical training step: action selection fans out to one worker per
// protocol, joins at a barrier before the environment advances, and the
// policy updates fan out and join the same way.
package coordinator

import (
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
	"omnifuzz.local/fuzz/trainer"
)

// EpisodeResult summarizes one coordinated episode.
type EpisodeResult struct {
	Episode             int
	TotalReward         float64
	Steps               int
	Vulnerabilities     []reward.Vulnerability
	ProtocolPerformance map[string]float64
}

// Coordinator owns the agent arrays of every active protocol and the
// aggregate statistics of the run. Statistics are only ever mutated from
// the coordinating goroutine, once per completed episode; the per-protocol
// workers never touch them.
type Coordinator struct {
	arrays   map[string]*rl.AgentArray
	maxSteps int
	logger   *slog.Logger

	messagesProcessed    int
	vulnerabilitiesFound int
	performance          map[string][]float64
}

// New creates a coordinator over the given per-protocol agent arrays.
func New(arrays map[string]*rl.AgentArray) *Coordinator {
	return &Coordinator{
		arrays:      arrays,
		maxSteps:    1000,
		logger:      slog.Default(),
		performance: make(map[string][]float64),
	}
}

// SetMaxSteps overrides the per-episode step cap.
func (c *Coordinator) SetMaxSteps(n int) {
	if n > 0 {
		c.maxSteps = n
	}
}

// CoordinateTraining runs numEpisodes coordinated episodes against env.
// A failure inside any protocol's worker aborts the episode and propagates.
func (c *Coordinator) CoordinateTraining(env trainer.Environment, numEpisodes int) ([]EpisodeResult, error) {
	c.logger.Info("starting coordinated training", "protocols", len(c.arrays), "episodes", numEpisodes)

	results := make([]EpisodeResult, 0, numEpisodes)
	for episode := 0; episode < numEpisodes; episode++ {
		result, err := c.runEpisode(env, episode)
		if err != nil {
			return results, fmt.Errorf("coordinated episode %d: %w", episode+1, err)
		}
		results = append(results, result)

		// All statistics mutation happens here, on the coordinating
		// goroutine, after the episode's workers have joined.
		c.messagesProcessed += result.Steps
		c.vulnerabilitiesFound += len(result.Vulnerabilities)
		for protocol, perf := range result.ProtocolPerformance {
			c.performance[protocol] = append(c.performance[protocol], perf)
		}

		if (episode+1)%10 == 0 {
			c.logger.Info("coordination progress",
				"episode", episode+1,
				"reward", result.TotalReward,
				"vulnerabilities", len(result.Vulnerabilities),
			)
		}
	}
	return results, nil
}

func (c *Coordinator) runEpisode(env trainer.Environment, episodeIdx int) (EpisodeResult, error) {
	observations, err := env.Reset()
	if err != nil {
		return EpisodeResult{}, fmt.Errorf("environment reset: %w", err)
	}

	result := EpisodeResult{
		Episode:             episodeIdx,
		ProtocolPerformance: make(map[string]float64),
	}
	perProtocolVulns := make(map[string]int)

	for {
		actions, err := c.parallelActionSelection(observations)
		if err != nil {
			return EpisodeResult{}, err
		}

		nextObservations, stepReward, done, info, err := env.Step(actions)
		if err != nil {
			return EpisodeResult{}, fmt.Errorf("environment step: %w", err)
		}

		if err := c.parallelAgentUpdate(observations, actions, stepReward, nextObservations); err != nil {
			return EpisodeResult{}, err
		}

		result.TotalReward += stepReward
		result.Steps++
		if info != nil {
			result.Vulnerabilities = append(result.Vulnerabilities, info.Outcome.Vulnerabilities...)
			for _, v := range info.Outcome.Vulnerabilities {
				perProtocolVulns[v.Protocol]++
			}
		}

		observations = nextObservations
		if done || result.Steps >= c.maxSteps {
			break
		}
	}

	// Findings per step is the per-protocol performance measure.
	for protocol := range c.arrays {
		result.ProtocolPerformance[protocol] = float64(perProtocolVulns[protocol]) / float64(result.Steps)
	}
	return result, nil
}

// parallelActionSelection runs one worker per protocol present in the
// observations. Workers write into disjoint slots; the merge happens only
// after every worker has joined, so the final action map never races.
func (c *Coordinator) parallelActionSelection(observations map[string]trainer.Observations) (map[string]trainer.Actions, error) {
	protocols := make([]string, 0, len(observations))
	for protocol := range observations {
		if _, ok := c.arrays[protocol]; ok {
			protocols = append(protocols, protocol)
		}
	}

	selected := make([]trainer.Actions, len(protocols))
	var g errgroup.Group
	for i, protocol := range protocols {
		g.Go(func() error {
			actions, err := c.arrays[protocol].SelectActions(observations[protocol])
			if err != nil {
				return fmt.Errorf("protocol %q action selection: %w", protocol, err)
			}
			selected[i] = actions
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := make(map[string]trainer.Actions, len(protocols))
	for i, protocol := range protocols {
		merged[protocol] = selected[i]
	}
	return merged, nil
}

// parallelAgentUpdate fans the policy update out to one worker per protocol
// and joins before the next step's selection can begin. Each worker builds
// its protocol-scoped slice of the joint transition.
func (c *Coordinator) parallelAgentUpdate(observations map[string]trainer.Observations, actions map[string]trainer.Actions, stepReward float64, nextObservations map[string]trainer.Observations) error {
	var g errgroup.Group
	for protocol, array := range c.arrays {
		obs, okNow := observations[protocol]
		nextObs, okNext := nextObservations[protocol]
		if !okNow || !okNext {
			continue
		}
		g.Go(func() error {
			protocolActions := actions[protocol]
			if protocolActions == nil {
				protocolActions = trainer.Actions{}
			}
			exp := &rl.Experience{
				Observations:          obs,
				Actions:               protocolActions,
				Reward:                stepReward,
				NextObservations:      nextObs,
				GlobalObservation:     array.GetGlobalObservation(obs),
				GlobalNextObservation: array.GetGlobalObservation(nextObs),
				GlobalActions:         array.GetGlobalActions(protocolActions),
			}
			array.UpdatePolicies([]*rl.Experience{exp}, stepReward)
			return nil
		})
	}
	return g.Wait()
}
