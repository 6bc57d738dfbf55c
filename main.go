package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"
)

const (
	defaultZBMPrefix   = "ZN"
	defaultSenderName  = "Umesh Pawar"
	defaultSenderEmail = "samples.dispatch@abbott.com"
)

func main() {
	inputPath := flag.String("input", "", "Path to dispatch tracker (.csv, .xlsx or .xlsm)")
	rulesPath := flag.String("rules", "", "Path to rule workbook with the Final Answer sheet")
	overridesPath := flag.String("overrides", "", "Optional YAML rule override file")
	outDir := flag.String("outdir", ".", "Directory that receives the generated outputs")
	prefix := flag.String("prefix", defaultZBMPrefix, "ZBM territory code prefix to include")
	asOf := flag.String("as-of", "", "Run date for subjects and folder names (YYYY-MM-DD)")
	fallback := flag.String("fallback", string(FallbackStrict), "Fallback for uncovered status sets (strict, most-common, passthrough)")
	rtoPolicy := flag.String("rto-policy", string(RTOByFinalStatus), "RTO counting policy (final-status, reason)")

	writeReports := flag.Bool("reports", true, "Write per-ZBM summary workbooks")
	writeConsolidated := flag.Bool("consolidated", false, "Write per-ZBM consolidated data workbooks")
	writeHierarchy := flag.Bool("hierarchy", false, "Write the ZBM/ABM/TBM drill-down CSV and workbook")
	writeEmails := flag.Bool("emails", false, "Write review-only email drafts")
	emailFormat := flag.String("email-format", "eml", "Draft format (eml, html)")
	senderName := flag.String("sender-name", defaultSenderName, "Sender display name on drafts")
	senderEmail := flag.String("sender-email", defaultSenderEmail, "Sender address on drafts")

	dbEnabled := flag.Bool("db", false, "Store run in Postgres (requires DISPATCH_ROLLUP_DB_URL or DATABASE_URL)")
	dbSchema := flag.String("db-schema", "dispatch_rollup", "Postgres schema for rollup tables")
	dbTag := flag.String("db-tag", "", "Optional label for this run")
	flag.Parse()

	asOfDate := time.Now()
	if *asOf != "" {
		parsed, err := time.Parse("2006-01-02", *asOf)
		if err != nil {
			exitWithError(fmt.Errorf("invalid -as-of date: %w", err))
		}
		asOfDate = parsed
	}

	fallbackPolicy, err := parseFallbackPolicy(*fallback)
	if err != nil {
		exitWithError(err)
	}
	rto, err := parseRTOPolicy(*rtoPolicy)
	if err != nil {
		exitWithError(err)
	}
	if *emailFormat != "eml" && *emailFormat != "html" {
		exitWithError(fmt.Errorf("invalid -email-format value: %s (want eml or html)", *emailFormat))
	}

	cfg, err := newRunConfig(*inputPath, *rulesPath, *overridesPath, *outDir, *prefix,
		asOfDate, fallbackPolicy, rto, *senderName, *senderEmail)
	if err != nil {
		exitWithError(err)
	}

	load, err := loadTracker(cfg.TrackerPath, cfg.ZBMPrefix)
	if err != nil {
		exitWithError(err)
	}
	if len(load.Rows) == 0 {
		exitWithError(fmt.Errorf("no rows left after cleaning and %s filter", cfg.ZBMPrefix))
	}

	rules := loadRuleTable(cfg.RulesPath, cfg.OverridesPath)
	res := resolveRequests(load.Rows, rules, cfg.Fallback)
	reports := buildZoneReports(load.Rows, res, cfg.RTO)

	printRunReport(load, rules, res, reports, cfg)

	if *writeReports {
		for _, report := range reports {
			path, err := writeSummaryWorkbook(report, cfg)
			if err != nil {
				exitWithError(fmt.Errorf("summary for %s: %w", report.ZBMCode, err))
			}
			fmt.Printf("\nSummary saved to %s", path)
		}
		fmt.Println()
	}

	if *writeConsolidated {
		byZBM := rowsByZBM(load.Rows)
		for _, report := range reports {
			path, err := writeConsolidatedWorkbook(report.ZBMCode, report.ZBMName, byZBM[report.ZBMCode], res, cfg)
			if err != nil {
				exitWithError(fmt.Errorf("consolidated for %s: %w", report.ZBMCode, err))
			}
			fmt.Printf("Consolidated data saved to %s\n", path)
		}
	}

	if *writeHierarchy {
		hierarchy := buildHierarchyRows(load.Rows, res, cfg.RTO)
		csvPath, workbookPath, err := writeHierarchyExports(hierarchy, cfg)
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("Hierarchy summary saved to %s and %s\n", csvPath, workbookPath)
	}

	if *writeEmails {
		sink, err := newDraftSink(*emailFormat, cfg)
		if err != nil {
			exitWithError(err)
		}
		writeDrafts(reports, sink, cfg)
	}

	if *dbEnabled {
		dbURL := dbURLFromEnv()
		if dbURL == "" {
			exitWithError(errors.New("database URL missing; set DISPATCH_ROLLUP_DB_URL or DATABASE_URL"))
		}
		record := RunRecord{
			AsOf:            cfg.AsOf,
			InputFile:       cfg.TrackerPath,
			TotalRows:       load.TotalRows,
			DistinctZBMs:    len(reports),
			DistinctReqs:    len(res.ByRequest),
			UnresolvedCount: len(res.Unresolved),
			DegradedRules:   rules.Degraded,
			FallbackPolicy:  cfg.Fallback,
			RTOPolicy:       cfg.RTO,
		}
		runID, err := storeRunInDB(record, reports, res.Unresolved, DBConfig{URL: dbURL, Schema: *dbSchema, Tag: *dbTag})
		if err != nil {
			exitWithError(err)
		}
		fmt.Printf("\nStored run in Postgres (run_id=%s)\n", runID)
	}
}

func newDraftSink(format string, cfg RunConfig) (DraftSink, error) {
	if format == "html" {
		return newHTMLDraftSink(cfg.draftsDir())
	}
	return newEMLDraftSink(cfg.draftsDir(), cfg.SenderName, cfg.SenderEmail)
}

// writeDrafts prepares one draft per ZBM. A ZBM whose draft fails is reported
// and skipped so the remaining zones still get theirs.
func writeDrafts(reports []ZoneReport, sink DraftSink, cfg RunConfig) {
	written := 0
	for _, report := range reports {
		if report.ZBMEmail == "" {
			fmt.Printf("Skipping draft for %s: no ZBM email on file\n", report.ZBMCode)
			continue
		}
		payload, err := buildEmailPayload(report, cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Draft for %s failed: %v\n", report.ZBMCode, err)
			continue
		}

		if summary := findLatestSummary(cfg.OutputRoot, report.ZBMCode, report.ZBMName); summary != "" {
			payload.Attachments = append(payload.Attachments, summary)
		} else {
			fmt.Printf("Warning: no summary workbook found to attach for %s\n", report.ZBMCode)
		}
		if consolidated := findLatestConsolidated(cfg.OutputRoot, report.ZBMCode, report.ZBMName); consolidated != "" {
			payload.Attachments = append(payload.Attachments, consolidated)
		}

		path, err := sink.WriteDraft(payload)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Draft for %s failed: %v\n", report.ZBMCode, err)
			continue
		}
		written++
		fmt.Printf("Draft saved to %s\n", path)
	}
	fmt.Printf("Email drafts written: %d of %d zones\n", written, len(reports))
}

func rowsByZBM(rows []TrackerRow) map[string][]TrackerRow {
	byZBM := map[string][]TrackerRow{}
	for _, row := range rows {
		byZBM[row.ZBMCode] = append(byZBM[row.ZBMCode], row)
	}
	for _, group := range byZBM {
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].ABMCode != group[j].ABMCode {
				return group[i].ABMCode < group[j].ABMCode
			}
			return group[i].RequestID < group[j].RequestID
		})
	}
	return byZBM
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(1)
}
