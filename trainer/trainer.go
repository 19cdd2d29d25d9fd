// Package trainer runs the per-protocol episode loop: select actions, step
// the environment, store transitions, and periodically update the agent
// populations from replayed experience.
package trainer

import (
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"omnifuzz.local/fuzz/replay"
	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
)

// Config tunes the training loop. Zero values fall back to the defaults
// noted on each field.
type Config struct {
	BufferSize          int     // replay capacity per protocol (default 10000)
	BatchSize           int     // update batch size (default 32)
	UpdateEvery         int     // policy update cadence in steps (default 10)
	MaxSteps            int     // step cap per episode (default 1000)
	EarlyStoppingWindow int     // episodes without improvement before stopping (default 20)
	PrioritizedReplay   bool    // use prioritized instead of uniform sampling
	Alpha               float64 // prioritization exponent
	Beta                float64 // importance-sampling exponent
}

func (c *Config) applyDefaults() {
	if c.BufferSize <= 0 {
		c.BufferSize = 10000
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.UpdateEvery <= 0 {
		c.UpdateEvery = 10
	}
	if c.MaxSteps <= 0 {
		c.MaxSteps = 1000
	}
	if c.EarlyStoppingWindow <= 0 {
		c.EarlyStoppingWindow = 20
	}
}

// Summary is the result of a training run.
type Summary struct {
	FinalReward          float64
	MaxReward            float64
	MeanReward           float64
	TotalVulnerabilities int
	MeanCoverage         float64
	Episodes             int
}

type episodeStats struct {
	totalReward     float64
	steps           int
	vulnerabilities int
	avgCoverage     float64
}

// Trainer drives training for one or more protocols' agent populations
// against a shared environment.
type Trainer struct {
	arrays map[string]*rl.AgentArray
	env    Environment
	calc   *reward.Calculator
	cfg    Config
	logger *slog.Logger

	stores map[string]*replay.Store

	episodeRewards  []float64
	vulnerabilities []int
	coverageScores  []float64
}

// New creates a trainer. Each protocol gets its own experience store.
func New(arrays map[string]*rl.AgentArray, env Environment, calc *reward.Calculator, cfg Config) *Trainer {
	cfg.applyDefaults()
	stores := make(map[string]*replay.Store, len(arrays))
	for protocol := range arrays {
		if cfg.PrioritizedReplay {
			stores[protocol] = replay.NewPrioritizedStore(cfg.BufferSize, cfg.Alpha, cfg.Beta)
		} else {
			stores[protocol] = replay.NewStore(cfg.BufferSize)
		}
	}
	return &Trainer{
		arrays: arrays,
		env:    env,
		calc:   calc,
		cfg:    cfg,
		logger: slog.Default(),
		stores: stores,
	}
}

// Store exposes a protocol's experience store, mainly for inspection.
func (t *Trainer) Store(protocol string) *replay.Store { return t.stores[protocol] }

// Train runs the episode loop until numEpisodes complete or early stopping
// triggers. Environment failures abort training and propagate.
func (t *Trainer) Train(numEpisodes int) (*Summary, error) {
	t.logger.Info("starting training", "episodes", numEpisodes, "protocols", len(t.arrays))

	for episode := 0; episode < numEpisodes; episode++ {
		stats, err := t.runEpisode()
		if err != nil {
			return nil, fmt.Errorf("episode %d: %w", episode+1, err)
		}

		t.episodeRewards = append(t.episodeRewards, stats.totalReward)
		t.vulnerabilities = append(t.vulnerabilities, stats.vulnerabilities)
		t.coverageScores = append(t.coverageScores, stats.avgCoverage)

		if (episode+1)%10 == 0 {
			t.logger.Info("training progress",
				"episode", episode+1,
				"reward", stats.totalReward,
				"vulnerabilities", stats.vulnerabilities,
				"coverage", stats.avgCoverage,
			)
		}

		if t.shouldStopEarly(stats.totalReward) {
			t.logger.Info("early stopping", "episode", episode+1)
			break
		}
	}

	return t.compileSummary(), nil
}

func (t *Trainer) runEpisode() (episodeStats, error) {
	observations, err := t.env.Reset()
	if err != nil {
		return episodeStats{}, fmt.Errorf("environment reset: %w", err)
	}
	t.calc.ResetDiversityTracking()

	var stats episodeStats
	for {
		// Every protocol with observations this step selects in lockstep.
		actions := make(map[string]Actions, len(t.arrays))
		for protocol, array := range t.arrays {
			obs, ok := observations[protocol]
			if !ok {
				continue
			}
			selected, err := array.SelectActions(obs)
			if err != nil {
				return episodeStats{}, err
			}
			actions[protocol] = selected
		}

		nextObservations, envReward, done, info, err := t.env.Step(actions)
		if err != nil {
			return episodeStats{}, fmt.Errorf("environment step: %w", err)
		}

		globalReward := envReward
		if info != nil {
			globalReward = t.calc.CalculateReward(info.Outcome)
			stats.vulnerabilities += len(info.Outcome.Vulnerabilities)
			stats.avgCoverage = averageDepth(info.Outcome.ExecutionDepth)
		}

		t.storeExperiences(observations, actions, globalReward, nextObservations, done)

		if stats.steps%t.cfg.UpdateEvery == 0 {
			t.updateAgents(globalReward)
		}

		stats.totalReward += globalReward
		stats.steps++
		observations = nextObservations

		if done || stats.steps >= t.cfg.MaxSteps {
			break
		}
	}
	return stats, nil
}

// storeExperiences builds one transition record per protocol present in both
// the current and next observations, with global vectors concatenated in
// that protocol's agent order.
func (t *Trainer) storeExperiences(observations map[string]Observations, actions map[string]Actions, globalReward float64, nextObservations map[string]Observations, done bool) {
	for protocol, array := range t.arrays {
		obs, okNow := observations[protocol]
		nextObs, okNext := nextObservations[protocol]
		if !okNow || !okNext {
			continue
		}
		protocolActions := actions[protocol]
		if protocolActions == nil {
			protocolActions = Actions{}
		}

		exp := &rl.Experience{
			Observations:          obs,
			Actions:               protocolActions,
			Reward:                globalReward,
			NextObservations:      nextObs,
			GlobalObservation:     array.GetGlobalObservation(obs),
			GlobalNextObservation: array.GetGlobalObservation(nextObs),
			GlobalActions:         array.GetGlobalActions(protocolActions),
			Done:                  done,
		}
		t.stores[protocol].Add(exp)
	}
}

func (t *Trainer) updateAgents(globalReward float64) {
	for protocol, array := range t.arrays {
		store := t.stores[protocol]
		if store.Len() < t.cfg.BatchSize {
			continue
		}
		batch, _ := store.Sample(t.cfg.BatchSize)
		array.UpdatePolicies(batch, globalReward)
	}
}

// shouldStopEarly reports whether the most recent window of episodes shows
// no improvement over its oldest entry and the current episode does not
// beat it either. The current episode's reward is already appended.
func (t *Trainer) shouldStopEarly(currentReward float64) bool {
	window := t.cfg.EarlyStoppingWindow
	if len(t.episodeRewards) < window {
		return false
	}
	recent := t.episodeRewards[len(t.episodeRewards)-window:]
	best := recent[0]
	for _, r := range recent {
		if r > best {
			best = r
		}
	}
	return best == recent[0] && currentReward <= recent[0]
}

func (t *Trainer) compileSummary() *Summary {
	s := &Summary{Episodes: len(t.episodeRewards)}
	if len(t.episodeRewards) == 0 {
		return s
	}
	s.FinalReward = t.episodeRewards[len(t.episodeRewards)-1]
	s.MeanReward = stat.Mean(t.episodeRewards, nil)
	s.MaxReward = t.episodeRewards[0]
	for _, r := range t.episodeRewards {
		if r > s.MaxReward {
			s.MaxReward = r
		}
	}
	for _, v := range t.vulnerabilities {
		s.TotalVulnerabilities += v
	}
	if len(t.coverageScores) > 0 {
		s.MeanCoverage = stat.Mean(t.coverageScores, nil)
	}
	return s
}

func averageDepth(depths map[string]float64) float64 {
	if len(depths) == 0 {
		return 0
	}
	var total float64
	for _, d := range depths {
		total += d
	}
	return total / float64(len(depths))
}
