package main

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RunConfig carries everything one batch run needs. Paths, timestamp and
// policies are fixed up front; nothing in the engine reads ambient state.
type RunConfig struct {
	TrackerPath   string
	RulesPath     string
	OverridesPath string
	OutputRoot    string

	ZBMPrefix string
	AsOf      time.Time
	Timestamp string // YYYYMMDD_HHMMSS, shared by every output of the run

	Fallback FallbackPolicy
	RTO      RTOPolicy

	SenderName  string
	SenderEmail string
}

func newRunConfig(trackerPath, rulesPath, overridesPath, outputRoot, prefix string, asOf time.Time,
	fallback FallbackPolicy, rto RTOPolicy, senderName, senderEmail string) (RunConfig, error) {
	if trackerPath == "" {
		return RunConfig{}, errors.New("-input is required")
	}
	if outputRoot == "" {
		outputRoot = "."
	}
	return RunConfig{
		TrackerPath:   trackerPath,
		RulesPath:     rulesPath,
		OverridesPath: overridesPath,
		OutputRoot:    outputRoot,
		ZBMPrefix:     prefix,
		AsOf:          asOf,
		Timestamp:     asOf.Format("20060102_150405"),
		Fallback:      fallback,
		RTO:           rto,
		SenderName:    senderName,
		SenderEmail:   senderEmail,
	}, nil
}

func (c RunConfig) reportsDir() string {
	return filepath.Join(c.OutputRoot, "ZBM_Reports_"+c.Timestamp)
}

func (c RunConfig) consolidatedDir() string {
	return filepath.Join(c.OutputRoot, "ZBM_Consolidated_Files_"+c.Timestamp)
}

func (c RunConfig) draftsDir() string {
	return filepath.Join(c.OutputRoot, "ZBM_Email_Drafts_"+c.Timestamp)
}

func (c RunConfig) hierarchyBase() string {
	return filepath.Join(c.OutputRoot, "hierarchical_zbm_summary_"+c.Timestamp)
}

// subjectDate is the long-form date used in draft subjects and bodies.
func (c RunConfig) subjectDate() string {
	return c.AsOf.Format("January 2, 2006")
}

func (c RunConfig) subject() string {
	return fmt.Sprintf("Sample Direct Dispatch to Doctors - Request Status as of %s", c.subjectDate())
}

// safeName makes a manager name usable inside a filename.
func safeName(name string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "_", "\\", "_")
	return replacer.Replace(strings.TrimSpace(name))
}
