// Command apicheck replays a list of requests against two portal deployments
// and reports where their responses diverge.
package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

func main() {
	var (
		baseline  endpoint
		candidate endpoint
		targets   string
		ignore    string
		timeout   time.Duration
	)

	flag.StringVar(&baseline.Base, "baseline", "http://localhost:8080", "baseline deployment URL")
	flag.StringVar(&candidate.Base, "candidate", "http://localhost:8081", "candidate deployment URL")
	flag.StringVar(&baseline.Token, "baseline-token", os.Getenv("APICHECK_BASELINE_TOKEN"), "bearer token for the baseline")
	flag.StringVar(&candidate.Token, "candidate-token", os.Getenv("APICHECK_CANDIDATE_TOKEN"), "bearer token for the candidate")
	flag.StringVar(&targets, "targets", filepath.Join("scripts", "apicheck", "targets.json"), "path to the JSON targets file")
	flag.StringVar(&ignore, "ignore", "meta.processing_time_ms,meta.cache_hit,data.expires_at", "comma separated JSON paths left out of the comparison")
	flag.DurationVar(&timeout, "timeout", 5*time.Second, "HTTP client timeout")
	flag.Parse()

	list, err := loadTargets(targets)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	var ignored []string
	for _, path := range strings.Split(ignore, ",") {
		if path = strings.TrimSpace(path); path != "" {
			ignored = append(ignored, path)
		}
	}

	client := &http.Client{
		Timeout: timeout,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	var (
		results  []comparison
		breaking int
		optional int
	)
	for _, t := range list {
		res := compareTarget(client, baseline, candidate, t, ignored)
		if res.failed() {
			if t.Critical {
				breaking++
			} else {
				optional++
			}
		}
		results = append(results, res)
	}

	printReport(results)
	fmt.Printf("Breaking diffs: %d, Optional diffs: %d\n", breaking, optional)
	if breaking > 0 {
		os.Exit(1)
	}
}

func printReport(results []comparison) {
	fmt.Println("API Check Report")
	fmt.Println("================")
	for _, res := range results {
		status := "OK"
		if res.Error != nil {
			status = "ERROR"
		} else if res.failed() {
			status = "DIFF"
		}
		fmt.Printf("[%s] %s %s\n", status, res.Target.Method, res.Target.Path)
		if res.Error != nil {
			fmt.Printf("  Error: %v\n", res.Error)
			continue
		}
		fmt.Printf("  Baseline: %d (%s) | Candidate: %d (%s) | Critical: %t\n",
			res.BaselineStatus, res.DurationBaseline, res.CandidateStatus, res.DurationCandidate, res.Target.Critical)
		if res.Diff != "" {
			fmt.Println(res.Diff)
		}
	}
}
