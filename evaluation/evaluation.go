// Package evaluation summarizes a finished campaign: reward statistics,
// finding tallies, and how long the agents needed to produce their first
// result.
package evaluation

import (
	"fmt"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"omnifuzz.local/fuzz/coordinator"
	"omnifuzz.local/fuzz/reward"
)

// Report is the campaign evaluation.
type Report struct {
	Episodes        int
	TotalSteps      int
	RewardMean      float64
	RewardStdDev    float64
	RewardBest      float64
	Vulnerabilities int
	BySeverity      map[reward.Severity]int
	ByProtocol      map[string]int
	// FirstFindingEpisode is the 1-based episode of the first finding, or 0
	// when the campaign found nothing.
	FirstFindingEpisode int
	// LearningGain compares the mean reward of the last quarter of episodes
	// against the first quarter.
	LearningGain float64
}

// Evaluate computes the report from coordinated episode results.
func Evaluate(results []coordinator.EpisodeResult) Report {
	report := Report{
		Episodes:   len(results),
		BySeverity: make(map[reward.Severity]int),
		ByProtocol: make(map[string]int),
	}
	if len(results) == 0 {
		return report
	}

	rewards := make([]float64, len(results))
	for i, r := range results {
		rewards[i] = r.TotalReward
		report.TotalSteps += r.Steps
		report.Vulnerabilities += len(r.Vulnerabilities)
		for _, v := range r.Vulnerabilities {
			report.BySeverity[v.Severity]++
			report.ByProtocol[v.Protocol]++
		}
		if report.FirstFindingEpisode == 0 && len(r.Vulnerabilities) > 0 {
			report.FirstFindingEpisode = i + 1
		}
	}

	report.RewardMean = stat.Mean(rewards, nil)
	if len(rewards) > 1 {
		report.RewardStdDev = stat.StdDev(rewards, nil)
	}
	report.RewardBest = rewards[0]
	for _, r := range rewards {
		if r > report.RewardBest {
			report.RewardBest = r
		}
	}
	report.LearningGain = learningGain(rewards)
	return report
}

// learningGain is last-quarter mean minus first-quarter mean; positive means
// the policies improved over the campaign.
func learningGain(rewards []float64) float64 {
	quarter := len(rewards) / 4
	if quarter == 0 {
		return 0
	}
	early := stat.Mean(rewards[:quarter], nil)
	late := stat.Mean(rewards[len(rewards)-quarter:], nil)
	return late - early
}

// String renders the report as a plain-text summary.
func (r Report) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "episodes:            %d\n", r.Episodes)
	fmt.Fprintf(&b, "total steps:         %d\n", r.TotalSteps)
	fmt.Fprintf(&b, "reward mean/stddev:  %.3f / %.3f\n", r.RewardMean, r.RewardStdDev)
	fmt.Fprintf(&b, "reward best:         %.3f\n", r.RewardBest)
	fmt.Fprintf(&b, "learning gain:       %+.3f\n", r.LearningGain)
	fmt.Fprintf(&b, "vulnerabilities:     %d\n", r.Vulnerabilities)
	if r.FirstFindingEpisode > 0 {
		fmt.Fprintf(&b, "first finding:       episode %d\n", r.FirstFindingEpisode)
	}

	for _, sev := range []reward.Severity{reward.SeverityCritical, reward.SeverityMajor, reward.SeverityMinor, reward.SeverityGeneral} {
		if n := r.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "  %-10s %d\n", string(sev)+":", n)
		}
	}

	protocols := make([]string, 0, len(r.ByProtocol))
	for p := range r.ByProtocol {
		protocols = append(protocols, p)
	}
	sort.Strings(protocols)
	for _, p := range protocols {
		fmt.Fprintf(&b, "  %-14s %d\n", p+":", r.ByProtocol[p])
	}
	return b.String()
}
