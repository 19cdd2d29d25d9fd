package coordinator

import (
	"fmt"
	"testing"

	"omnifuzz.local/fuzz/reward"
	"omnifuzz.local/fuzz/rl"
	"omnifuzz.local/fuzz/trainer"
)

// twoProtocolEnv serves two protocols with fixed-length episodes. Protocol
// p1 yields one finding on the second step of every episode.
type twoProtocolEnv struct {
	stepInEp int
	failStep int
	steps    int
}

func (e *twoProtocolEnv) observations() map[string]trainer.Observations {
	return map[string]trainer.Observations{
		"p1": {"x": rl.Vector{0.1, 0.2, 0.3, 0.4}},
		"p2": {"y": rl.Vector{0.5, 0.4, 0.3, 0.2, 0.1}},
	}
}

func (e *twoProtocolEnv) Reset() (map[string]trainer.Observations, error) {
	e.stepInEp = 0
	return e.observations(), nil
}

func (e *twoProtocolEnv) Step(actions map[string]trainer.Actions) (map[string]trainer.Observations, float64, bool, *trainer.StepInfo, error) {
	e.stepInEp++
	e.steps++
	if e.failStep > 0 && e.steps >= e.failStep {
		return nil, 0, false, nil, fmt.Errorf("link dropped")
	}

	// Both protocols must have acted this step.
	if _, ok := actions["p1"]["x"]; !ok {
		return nil, 0, false, nil, fmt.Errorf("no action for p1/x")
	}
	if _, ok := actions["p2"]["y"]; !ok {
		return nil, 0, false, nil, fmt.Errorf("no action for p2/y")
	}

	info := &trainer.StepInfo{}
	if e.stepInEp == 2 {
		info.Outcome.Vulnerabilities = []reward.Vulnerability{
			{Protocol: "p1", Type: "crash", Severity: reward.SeverityCritical},
		}
	}
	return e.observations(), 1.0, e.stepInEp >= 4, info, nil
}

func twoArrays(t *testing.T) map[string]*rl.AgentArray {
	t.Helper()
	arrays := make(map[string]*rl.AgentArray, 2)
	configs := []rl.ArrayConfig{
		{Protocol: "p1", Fields: []rl.FieldConfig{{Name: "x", StateDim: 4, ActionDim: 3}}, Seed: 5},
		{Protocol: "p2", Fields: []rl.FieldConfig{{Name: "y", StateDim: 5, ActionDim: 2}}, Seed: 6},
	}
	for _, cfg := range configs {
		arr, err := rl.NewAgentArray(cfg)
		if err != nil {
			t.Fatalf("NewAgentArray(%s): %v", cfg.Protocol, err)
		}
		arrays[cfg.Protocol] = arr
	}
	return arrays
}

func TestCoordinateTraining_RunsAllProtocolsInLockstep(t *testing.T) {
	env := &twoProtocolEnv{}
	coord := New(twoArrays(t))

	results, err := coord.CoordinateTraining(env, 6)
	if err != nil {
		t.Fatalf("CoordinateTraining: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}

	for i, result := range results {
		if result.Episode != i {
			t.Errorf("result %d carries episode %d", i, result.Episode)
		}
		if result.Steps != 4 {
			t.Errorf("episode %d ran %d steps, want 4", i, result.Steps)
		}
		if len(result.Vulnerabilities) != 1 {
			t.Errorf("episode %d found %d vulnerabilities, want 1", i, len(result.Vulnerabilities))
		}
		if got := result.ProtocolPerformance["p1"]; got != 0.25 {
			t.Errorf("p1 performance = %v, want 0.25", got)
		}
		if got := result.ProtocolPerformance["p2"]; got != 0 {
			t.Errorf("p2 performance = %v, want 0", got)
		}
	}
}

func TestInsights_AggregateStatistics(t *testing.T) {
	env := &twoProtocolEnv{}
	coord := New(twoArrays(t))

	if _, err := coord.CoordinateTraining(env, 6); err != nil {
		t.Fatalf("CoordinateTraining: %v", err)
	}

	insights := coord.Insights()
	if insights.TotalMessages != 24 {
		t.Errorf("messages = %d, want 24", insights.TotalMessages)
	}
	if insights.TotalVulnerabilities != 6 {
		t.Errorf("vulnerabilities = %d, want 6", insights.TotalVulnerabilities)
	}
	if insights.CoordinationEfficiency != 0.25 {
		t.Errorf("efficiency = %v, want 0.25", insights.CoordinationEfficiency)
	}

	p1, ok := insights.Protocols["p1"]
	if !ok {
		t.Fatalf("no insight for p1")
	}
	if p1.AveragePerformance != 0.25 {
		t.Errorf("p1 average = %v, want 0.25", p1.AveragePerformance)
	}
	// Identical episodes mean zero variance and a flat trend.
	if p1.Stability != 1 {
		t.Errorf("p1 stability = %v, want 1", p1.Stability)
	}
	if p1.Trend != "stable" {
		t.Errorf("p1 trend = %q, want stable", p1.Trend)
	}
}

func TestCoordinateTraining_WorkerFailureAborts(t *testing.T) {
	env := &twoProtocolEnv{failStep: 10}
	coord := New(twoArrays(t))

	results, err := coord.CoordinateTraining(env, 6)
	if err == nil {
		t.Fatalf("expected an environment failure to abort the run")
	}
	// Completed episodes survive the abort.
	if len(results) != 2 {
		t.Errorf("kept %d completed episodes, want 2", len(results))
	}
}

func TestSetMaxSteps_CapsEpisodes(t *testing.T) {
	env := &twoProtocolEnv{}
	coord := New(twoArrays(t))
	coord.SetMaxSteps(2)

	results, err := coord.CoordinateTraining(env, 1)
	if err != nil {
		t.Fatalf("CoordinateTraining: %v", err)
	}
	if results[0].Steps != 2 {
		t.Errorf("episode ran %d steps, want the 2-step cap", results[0].Steps)
	}
}
