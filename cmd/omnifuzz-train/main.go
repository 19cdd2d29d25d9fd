package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/fatih/color"

	"omnifuzz.local/fuzz/config"
	"omnifuzz.local/fuzz/env"
	"omnifuzz.local/fuzz/findings"
	"omnifuzz.local/fuzz/protocol"
	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
	"omnifuzz.local/fuzz/trainer"
)

var (
	flagConfig   = flag.String("config", "", "path to YAML config (empty: built-in defaults)")
	flagEpisodes = flag.Int("episodes", 0, "override the configured episode count")
	flagModels   = flag.String("models", "models", "directory for model checkpoints")
	flagResume   = flag.Bool("resume", false, "load checkpoints from the models directory before training")
	flagSeed     = flag.Int64("seed", 0, "RNG seed (0: seed from the clock)")
)

func main() {
	flag.Parse()

	cfg := config.Default()
	if *flagConfig != "" {
		loaded, err := config.Load(*flagConfig)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		cfg = loaded
	}
	episodes := cfg.Training.Episodes
	if *flagEpisodes > 0 {
		episodes = *flagEpisodes
	}

	store, err := findings.Open(cfg.Findings.Path)
	if err != nil {
		log.Fatalf("open findings db: %v", err)
	}
	defer store.Close()

	specs, devices, err := buildTargets(cfg, *flagSeed)
	if err != nil {
		log.Fatalf("build targets: %v", err)
	}

	environment, err := env.New(env.Config{
		Devices: devices,
		Specs:   specs,
		Sink:    store,
		Seed:    *flagSeed,
	})
	if err != nil {
		log.Fatalf("build environment: %v", err)
	}
	defer environment.Close()

	arrays, err := buildArrays(cfg, specs, *flagSeed)
	if err != nil {
		log.Fatalf("build agents: %v", err)
	}

	calc, err := reward.NewCalculator(severityScores(cfg), rewardWeights(cfg))
	if err != nil {
		log.Fatalf("reward config: %v", err)
	}

	t := trainer.New(arrays, environment, calc, trainer.Config{
		BufferSize:          cfg.Training.BufferSize,
		BatchSize:           cfg.Training.BatchSize,
		UpdateEvery:         cfg.Training.UpdateEvery,
		MaxSteps:            cfg.Training.MaxSteps,
		EarlyStoppingWindow: cfg.Training.EarlyStoppingWindow,
		PrioritizedReplay:   cfg.Training.PrioritizedReplay,
		Alpha:               cfg.Training.Alpha,
		Beta:                cfg.Training.Beta,
	})

	if *flagResume {
		if err := t.LoadModels(*flagModels); err != nil {
			log.Fatalf("load models: %v", err)
		}
	}

	fmt.Printf("[train] %d protocols, %d episodes\n", len(arrays), episodes)
	summary, err := t.Train(episodes)
	if err != nil {
		log.Fatalf("training: %v", err)
	}

	if err := t.SaveModels(*flagModels); err != nil {
		log.Fatalf("save models: %v", err)
	}

	bold := color.New(color.Bold)
	bold.Println("training complete")
	fmt.Printf("  episodes:        %d\n", summary.Episodes)
	fmt.Printf("  mean reward:     %.3f\n", summary.MeanReward)
	fmt.Printf("  max reward:      %.3f\n", summary.MaxReward)
	fmt.Printf("  final reward:    %.3f\n", summary.FinalReward)
	fmt.Printf("  mean coverage:   %.3f\n", summary.MeanCoverage)
	if summary.TotalVulnerabilities > 0 {
		color.Red("  vulnerabilities: %d", summary.TotalVulnerabilities)
	} else {
		fmt.Println("  vulnerabilities: 0")
	}
}

func buildTargets(cfg *config.Config, seed int64) (map[string]*protocol.Spec, map[string]env.Device, error) {
	specs := make(map[string]*protocol.Spec, len(cfg.Target.Protocols))
	devices := make(map[string]env.Device, len(cfg.Target.Protocols))
	rng := rand.New(rand.NewSource(seed + 1))

	for _, target := range cfg.Target.Protocols {
		spec, err := protocol.Builtin(target.Name)
		if err != nil {
			return nil, nil, err
		}
		port := target.Port
		if port == 0 {
			port = spec.Port
		}
		specs[target.Name] = spec

		if cfg.Target.Simulate {
			devices[target.Name] = env.NewSimDevice(spec, rand.New(rand.NewSource(rng.Int63())))
		} else {
			devices[target.Name] = env.NewDeviceLink(cfg.Target.IP, port, target.TimeoutDuration)
		}
	}
	return specs, devices, nil
}

func buildArrays(cfg *config.Config, specs map[string]*protocol.Spec, seed int64) (map[string]*rl.AgentArray, error) {
	arrays := make(map[string]*rl.AgentArray, len(specs))
	for name, spec := range specs {
		fields := make([]rl.FieldConfig, 0, len(spec.Fields))
		for _, f := range spec.FieldConfigs() {
			fields = append(fields, rl.FieldConfig{Name: f.Name, StateDim: f.StateDim, ActionDim: f.ActionDim})
		}
		array, err := rl.NewAgentArray(rl.ArrayConfig{
			Protocol:           name,
			Fields:             fields,
			PolicyLearningRate: cfg.Training.LearningRate,
			TrainCritic:        cfg.Training.TrainCritic,
			Seed:               seed,
		})
		if err != nil {
			return nil, err
		}

		// Bias each field's initial policy toward the mutations its shape
		// responds to.
		for _, f := range spec.FieldConfigs() {
			if err := array.Agent(f.Name).SetActionPrior(rl.Vector(protocol.BuildActionPrior(f))); err != nil {
				return nil, err
			}
		}
		arrays[name] = array
	}
	return arrays, nil
}

func rewardWeights(cfg *config.Config) reward.Weights {
	return reward.Weights{
		Vulnerability: cfg.Rewards.Weights["vulnerability"],
		Depth:         cfg.Rewards.Weights["depth"],
		Diversity:     cfg.Rewards.Weights["diversity"],
	}
}

func severityScores(cfg *config.Config) map[reward.Severity]float64 {
	if len(cfg.Rewards.VulnerabilityScores) == 0 {
		return nil
	}
	scores := make(map[reward.Severity]float64, len(cfg.Rewards.VulnerabilityScores))
	for name, score := range cfg.Rewards.VulnerabilityScores {
		scores[reward.Severity(name)] = score
	}
	return scores
}
