// Package reward turns fuzzing-step outcomes into the scalar training signal
// shared by all agents of a protocol.
package reward

import "fmt"

// Severity classifies a discovered vulnerability.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
	SeverityGeneral  Severity = "general"
	SeverityNone     Severity = "none"
)

// Vulnerability is one finding reported by the fuzzing environment.
type Vulnerability struct {
	ID       string
	Protocol string
	Type     string
	Severity Severity
	Detail   string
}

// Outcome is the report one environment step produces for reward shaping.
type Outcome struct {
	// Vulnerabilities discovered during this step.
	Vulnerabilities []Vulnerability
	// ExecutionDepth maps each agent (field) to the execution depth its
	// mutated message reached in the target.
	ExecutionDepth map[string]float64
	// VulnerabilityTypes lists the distinct vulnerability-type labels
	// observed this step.
	VulnerabilityTypes []string
}

// Weights balances the three reward objectives. All weights must be
// non-negative.
type Weights struct {
	Vulnerability float64
	Depth         float64
	Diversity     float64
}

// DefaultBaseScores is the severity score table used when the configuration
// does not override it.
func DefaultBaseScores() map[Severity]float64 {
	return map[Severity]float64{
		SeverityCritical: 4.0,
		SeverityMajor:    3.0,
		SeverityMinor:    2.0,
		SeverityGeneral:  1.0,
		SeverityNone:     0.0,
	}
}

// Calculator computes the multi-objective reward. It carries one piece of
// per-episode running state: the set of distinct vulnerability types seen so
// far this episode, which only grows until ResetDiversityTracking is called
// at the next episode boundary.
type Calculator struct {
	baseScores map[Severity]float64
	weights    Weights
	discovered map[string]struct{}
}

// NewCalculator validates the configuration and returns a calculator.
func NewCalculator(baseScores map[Severity]float64, weights Weights) (*Calculator, error) {
	if weights.Vulnerability < 0 || weights.Depth < 0 || weights.Diversity < 0 {
		return nil, fmt.Errorf("reward weights must be non-negative, got %+v", weights)
	}
	if baseScores == nil {
		baseScores = DefaultBaseScores()
	}
	return &Calculator{
		baseScores: baseScores,
		weights:    weights,
		discovered: make(map[string]struct{}),
	}, nil
}

// CalculateReward combines the vulnerability, depth and diversity terms into
// one scalar. Critical findings score triple and major findings double their
// base score; the depth term is the mean execution depth across agents; the
// diversity term is the number of distinct vulnerability types seen so far
// this episode, after folding in this step's labels.
func (c *Calculator) CalculateReward(outcome Outcome) float64 {
	vulnTerm := c.vulnerabilityTerm(outcome.Vulnerabilities)
	depthTerm := depthTerm(outcome.ExecutionDepth)
	diversityTerm := c.diversityTerm(outcome.VulnerabilityTypes)

	return c.weights.Vulnerability*vulnTerm +
		c.weights.Depth*depthTerm +
		c.weights.Diversity*diversityTerm
}

func (c *Calculator) vulnerabilityTerm(vulns []Vulnerability) float64 {
	var total float64
	for _, v := range vulns {
		score := c.baseScores[v.Severity]
		switch v.Severity {
		case SeverityCritical:
			score *= 3
		case SeverityMajor:
			score *= 2
		}
		total += score
	}
	return total
}

func depthTerm(depths map[string]float64) float64 {
	if len(depths) == 0 {
		return 0
	}
	var total float64
	for _, d := range depths {
		total += d
	}
	return total / float64(len(depths))
}

func (c *Calculator) diversityTerm(types []string) float64 {
	for _, t := range types {
		c.discovered[t] = struct{}{}
	}
	return float64(len(c.discovered))
}

// DiversityCount reports the running number of distinct vulnerability types
// this episode.
func (c *Calculator) DiversityCount() int { return len(c.discovered) }

// ResetDiversityTracking clears the per-episode type set. Call exactly once
// at each episode start, never mid-episode.
func (c *Calculator) ResetDiversityTracking() {
	c.discovered = make(map[string]struct{})
}
