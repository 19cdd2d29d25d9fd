package reward

import (
	"math"
	"testing"
)

func TestCalculateReward_CombinesObjectives(t *testing.T) {
	calc, err := NewCalculator(map[Severity]float64{
		SeverityCritical: 4.0,
		SeverityMajor:    3.0,
		SeverityMinor:    2.0,
	}, Weights{Vulnerability: 0.5, Depth: 0.25, Diversity: 0.25})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	outcome := Outcome{
		Vulnerabilities: []Vulnerability{
			{Severity: SeverityCritical},
			{Severity: SeverityMajor},
			{Severity: SeverityMinor},
		},
		ExecutionDepth:     map[string]float64{"a": 150, "b": 80, "c": 200},
		VulnerabilityTypes: []string{"crash", "hang", "leak"},
	}

	// vuln: 0.5 * (4*3 + 3*2 + 2) = 10
	// depth: 0.25 * mean(150, 80, 200) = 35.8333
	// diversity: 0.25 * 3 = 0.75
	got := calc.CalculateReward(outcome)
	if math.Abs(got-46.583) > 1e-3 {
		t.Errorf("reward = %v, want 46.583", got)
	}
}

func TestCalculateReward_EmptyOutcome(t *testing.T) {
	calc, err := NewCalculator(nil, Weights{Vulnerability: 1, Depth: 1, Diversity: 1})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	if got := calc.CalculateReward(Outcome{}); got != 0 {
		t.Errorf("empty outcome reward = %v, want 0", got)
	}
}

func TestDiversity_MonotoneWithinEpisode(t *testing.T) {
	calc, err := NewCalculator(nil, Weights{Diversity: 1})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}

	r1 := calc.CalculateReward(Outcome{VulnerabilityTypes: []string{"crash"}})
	r2 := calc.CalculateReward(Outcome{VulnerabilityTypes: []string{"crash"}})
	r3 := calc.CalculateReward(Outcome{VulnerabilityTypes: []string{"hang"}})

	if r1 != 1 {
		t.Errorf("first step diversity = %v, want 1", r1)
	}
	if r2 != 1 {
		t.Errorf("repeated type grew diversity: %v", r2)
	}
	if r3 != 2 {
		t.Errorf("new type diversity = %v, want 2", r3)
	}
	if calc.DiversityCount() != 2 {
		t.Errorf("diversity count = %d, want 2", calc.DiversityCount())
	}

	calc.ResetDiversityTracking()
	if calc.DiversityCount() != 0 {
		t.Errorf("diversity survived a reset: %d", calc.DiversityCount())
	}
	if got := calc.CalculateReward(Outcome{VulnerabilityTypes: []string{"leak"}}); got != 1 {
		t.Errorf("diversity after reset = %v, want 1", got)
	}
}

func TestNewCalculator_RejectsNegativeWeights(t *testing.T) {
	if _, err := NewCalculator(nil, Weights{Vulnerability: -0.1}); err == nil {
		t.Errorf("expected error for negative weight")
	}
}

func TestSeverityMultipliers(t *testing.T) {
	calc, err := NewCalculator(nil, Weights{Vulnerability: 1})
	if err != nil {
		t.Fatalf("NewCalculator: %v", err)
	}
	cases := []struct {
		severity Severity
		want     float64
	}{
		{SeverityCritical, 12}, // 4 * 3
		{SeverityMajor, 6},     // 3 * 2
		{SeverityMinor, 2},
		{SeverityGeneral, 1},
		{SeverityNone, 0},
	}
	for _, tc := range cases {
		got := calc.CalculateReward(Outcome{Vulnerabilities: []Vulnerability{{Severity: tc.severity}}})
		if got != tc.want {
			t.Errorf("severity %s scored %v, want %v", tc.severity, got, tc.want)
		}
	}
}
