package coordinator

import (
	"gonum.org/v1/gonum/stat"
)

// ProtocolInsight summarizes one protocol's performance history.
type ProtocolInsight struct {
	AveragePerformance float64
	Stability          float64 // 1/(1+variance); 1 means perfectly steady
	Trend              string  // "improving", "declining" or "stable"
}

// Insights aggregates the run's coordination statistics.
type Insights struct {
	TotalMessages          int
	TotalVulnerabilities   int
	CoordinationEfficiency float64 // findings per processed message
	Protocols              map[string]ProtocolInsight
}

// Insights computes aggregate statistics from the completed episodes so far.
func (c *Coordinator) Insights() Insights {
	insights := Insights{
		TotalMessages:        c.messagesProcessed,
		TotalVulnerabilities: c.vulnerabilitiesFound,
		Protocols:            make(map[string]ProtocolInsight, len(c.performance)),
	}
	if c.messagesProcessed > 0 {
		insights.CoordinationEfficiency = float64(c.vulnerabilitiesFound) / float64(c.messagesProcessed)
	}

	for protocol, history := range c.performance {
		if len(history) == 0 {
			continue
		}
		variance := 0.0
		if len(history) > 1 {
			variance = stat.Variance(history, nil)
		}
		insights.Protocols[protocol] = ProtocolInsight{
			AveragePerformance: stat.Mean(history, nil),
			Stability:          1.0 / (1.0 + variance),
			Trend:              performanceTrend(history),
		}
	}
	return insights
}

// performanceTrend fits a line through the last ten episodes and classifies
// the slope.
func performanceTrend(history []float64) string {
	recent := history
	if len(recent) > 10 {
		recent = recent[len(recent)-10:]
	}
	if len(recent) < 2 {
		return "stable"
	}

	xs := make([]float64, len(recent))
	for i := range xs {
		xs[i] = float64(i)
	}
	_, slope := stat.LinearRegression(xs, recent, nil, false)

	switch {
	case slope > 0.01:
		return "improving"
	case slope < -0.01:
		return "declining"
	default:
		return "stable"
	}
}
