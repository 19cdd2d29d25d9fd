package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"

	"github.com/fatih/color"

	"omnifuzz.local/fuzz/config"
	"omnifuzz.local/fuzz/coordinator"
	"omnifuzz.local/fuzz/env"
	"omnifuzz.local/fuzz/evaluation"
	"omnifuzz.local/fuzz/findings"
	"omnifuzz.local/fuzz/protocol"
	"omnifuzz.local/fuzz/rl"
)

var (
	flagConfig   = flag.String("config", "", "path to YAML config (empty: built-in defaults)")
	flagEpisodes = flag.Int("episodes", 0, "override the configured episode count")
	flagSeed     = flag.Int64("seed", 0, "RNG seed (0: seed from the clock)")
)

// omnifuzz-run drives all configured protocols concurrently through the
// coordinator and prints the campaign evaluation.
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

	specs := make(map[string]*protocol.Spec, len(cfg.Target.Protocols))
	devices := make(map[string]env.Device, len(cfg.Target.Protocols))
	rng := rand.New(rand.NewSource(*flagSeed + 1))
	for _, target := range cfg.Target.Protocols {
		spec, err := protocol.Builtin(target.Name)
		if err != nil {
			log.Fatalf("protocol %q: %v", target.Name, err)
		}
		specs[target.Name] = spec
		if cfg.Target.Simulate {
			devices[target.Name] = env.NewSimDevice(spec, rand.New(rand.NewSource(rng.Int63())))
		} else {
			port := target.Port
			if port == 0 {
				port = spec.Port
			}
			devices[target.Name] = env.NewDeviceLink(cfg.Target.IP, port, target.TimeoutDuration)
		}
	}

	environment, err := env.New(env.Config{Devices: devices, Specs: specs, Sink: store, Seed: *flagSeed})
	if err != nil {
		log.Fatalf("build environment: %v", err)
	}
	defer environment.Close()

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
			Seed:               *flagSeed,
		})
		if err != nil {
			log.Fatalf("build agents for %s: %v", name, err)
		}
		for _, f := range spec.FieldConfigs() {
			if err := array.Agent(f.Name).SetActionPrior(rl.Vector(protocol.BuildActionPrior(f))); err != nil {
				log.Fatalf("action prior for %s/%s: %v", name, f.Name, err)
			}
		}
		arrays[name] = array
	}

	coord := coordinator.New(arrays)
	coord.SetMaxSteps(cfg.Training.MaxSteps)

	fmt.Printf("[run] coordinating %d protocols over %d episodes\n", len(arrays), episodes)
	results, err := coord.CoordinateTraining(environment, episodes)
	if err != nil {
		log.Fatalf("coordinated run: %v", err)
	}

	for _, result := range results {
		if err := store.RecordEpisode(findings.EpisodeRecord{
			Episode:         result.Episode,
			TotalReward:     result.TotalReward,
			Steps:           result.Steps,
			Vulnerabilities: len(result.Vulnerabilities),
		}); err != nil {
			log.Fatalf("record episode: %v", err)
		}
	}

	bold := color.New(color.Bold)
	bold.Println("campaign evaluation")
	fmt.Print(evaluation.Evaluate(results))

	insights := coord.Insights()
	bold.Println("coordination insights")
	fmt.Printf("  messages:   %d\n", insights.TotalMessages)
	fmt.Printf("  findings:   %d\n", insights.TotalVulnerabilities)
	fmt.Printf("  efficiency: %.5f findings/message\n", insights.CoordinationEfficiency)
	for name, p := range insights.Protocols {
		line := fmt.Sprintf("  %-14s perf %.4f  stability %.3f  %s", name+":", p.AveragePerformance, p.Stability, p.Trend)
		switch p.Trend {
		case "improving":
			color.Green(line)
		case "declining":
			color.Yellow(line)
		default:
			fmt.Println(line)
		}
	}
}
