package main

import (
	"fmt"
	"path/filepath"
	"strings"
)

// printRunReport prints the operator summary for one batch run: ingest counts,
// rule-table health, the Final Status frequency table, the per-zone funnel
// totals, and every diagnostic that needs a human decision.
func printRunReport(load TrackerLoad, rules *RuleTable, res Resolution, reports []ZoneReport, cfg RunConfig) {
	fmt.Println("Sample Dispatch Status Rollup")
	fmt.Println(strings.Repeat("=", 38))
	fmt.Printf("Input: %s\n", filepath.Base(cfg.TrackerPath))
	fmt.Printf("As of: %s\n", cfg.AsOf.Format("2006-01-02"))
	fmt.Printf("Rows: %d total | %d kept | %d dropped | %d outside %s\n",
		load.TotalRows, len(load.Rows), load.DroppedRows, load.FilteredRows, cfg.ZBMPrefix)
	fmt.Printf("Requests: %d distinct across %d zones\n", len(res.ByRequest), len(reports))
	fmt.Printf("Policies: fallback=%s rto=%s\n", res.Policy, cfg.RTO)

	if rules.Degraded {
		fmt.Printf("\nWARNING: rule table unavailable (%v)\n", rules.DegradedErr)
		fmt.Println("Every request resolved by passthrough; treat Final Status values as raw.")
	} else {
		fmt.Printf("\nRules: %d combinations from %s (sheet %q)\n", rules.Len(), filepath.Base(rules.Source), rules.Sheet)
		if rules.Overwrites > 0 {
			fmt.Printf("Rule overwrites during load: %d (last entry wins)\n", rules.Overwrites)
		}
	}

	fmt.Println("\nFinal Status frequency")
	fmt.Println(strings.Repeat("-", 38))
	for _, line := range res.frequencyLines() {
		fmt.Println(line)
	}

	fmt.Println("\nZone funnel")
	fmt.Println(strings.Repeat("-", 38))
	for _, report := range reports {
		total := report.Total
		fmt.Printf("%s %s | areas %d | requests %d | raised %d | delivered %d | in transit %d | rto %d\n",
			report.ZBMCode,
			report.ZBMName,
			len(report.Rows),
			total.UniqueRequests,
			total.Funnel.Raised(),
			total.Funnel.Delivered,
			total.Funnel.InTransit,
			total.Funnel.RTO,
		)
	}

	printMismatches(reports)
	printUnresolved(res)
}

func printMismatches(reports []ZoneReport) {
	count := 0
	for _, report := range reports {
		count += len(report.Mismatches)
	}
	if count == 0 {
		return
	}

	fmt.Printf("\nFunnel mismatches: %d\n", count)
	fmt.Println(strings.Repeat("-", 38))
	for _, report := range reports {
		for _, mismatch := range report.Mismatches {
			line := fmt.Sprintf("%s | %s | raised %d vs %d distinct requests",
				mismatch.ZBMCode, mismatch.AreaLabel, mismatch.Raised, mismatch.DistinctRequests)
			if len(mismatch.Uncovered) > 0 {
				line += " | uncovered: " + strings.Join(mismatch.Uncovered, ", ")
			}
			fmt.Println(line)
		}
	}
}

func printUnresolved(res Resolution) {
	if len(res.Unresolved) == 0 {
		return
	}

	fmt.Printf("\nRequests without a matching rule: %d\n", len(res.Unresolved))
	fmt.Println(strings.Repeat("-", 38))
	shown := res.Unresolved
	const maxShown = 20
	truncated := 0
	if len(shown) > maxShown {
		truncated = len(shown) - maxShown
		shown = shown[:maxShown]
	}
	for _, resolution := range shown {
		fmt.Printf("%s | statuses: %s\n", resolution.RequestID, strings.Join(resolution.StatusSet, ", "))
	}
	if truncated > 0 {
		fmt.Printf("... and %d more\n", truncated)
	}
}
