package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"log"

	"github.com/fatih/color"

	"omnifuzz.local/fuzz/findings"
	"omnifuzz.local/fuzz/reward"
)

var (
	flagDB       = flag.String("db", "findings.db", "path to the findings database")
	flagProtocol = flag.String("protocol", "", "only show findings for this protocol")
	flagLimit    = flag.Int("limit", 20, "maximum findings to list (<=0 lists all)")
)

// omnifuzz-eval inspects a findings database produced by a previous campaign.
func main() {
	flag.Parse()

	store, err := findings.Open(*flagDB)
	if err != nil {
		log.Fatalf("open findings db: %v", err)
	}
	defer store.Close()

	counts, err := store.CountBySeverity()
	if err != nil {
		log.Fatalf("count findings: %v", err)
	}

	bold := color.New(color.Bold)
	bold.Printf("findings in %s\n", *flagDB)
	total := 0
	for _, n := range counts {
		total += n
	}
	fmt.Printf("  total:    %d\n", total)
	printSeverity(color.New(color.FgRed, color.Bold), "critical", counts[reward.SeverityCritical])
	printSeverity(color.New(color.FgRed), "major", counts[reward.SeverityMajor])
	printSeverity(color.New(color.FgYellow), "minor", counts[reward.SeverityMinor])
	printSeverity(color.New(color.FgWhite), "general", counts[reward.SeverityGeneral])

	all, err := store.Vulnerabilities(*flagProtocol)
	if err != nil {
		log.Fatalf("list findings: %v", err)
	}
	if *flagLimit > 0 && len(all) > *flagLimit {
		all = all[:*flagLimit]
	}
	if len(all) > 0 {
		bold.Println("recent findings")
		for _, f := range all {
			fmt.Printf("  %s  %-12s %-20s %-8s %s\n",
				f.FoundAt.Format("2006-01-02 15:04:05"),
				f.Protocol, f.Type, string(f.Severity),
				truncate(hex.EncodeToString(f.Message), 48))
		}
	}

	episodes, err := store.Episodes()
	if err != nil {
		log.Fatalf("list episodes: %v", err)
	}
	if len(episodes) > 0 {
		var steps, vulns int
		var rewardSum float64
		for _, e := range episodes {
			steps += e.Steps
			vulns += e.Vulnerabilities
			rewardSum += e.TotalReward
		}
		bold.Println("episode history")
		fmt.Printf("  episodes:    %d\n", len(episodes))
		fmt.Printf("  steps:       %d\n", steps)
		fmt.Printf("  mean reward: %.3f\n", rewardSum/float64(len(episodes)))
		fmt.Printf("  findings:    %d\n", vulns)
	}
}

func printSeverity(c *color.Color, label string, n int) {
	if n == 0 {
		return
	}
	c.Printf("  %-9s %d\n", label+":", n)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
