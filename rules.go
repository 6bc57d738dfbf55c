package main

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"
	"gopkg.in/yaml.v3"
)

// normalizeStatus canonicalizes a raw status label for rule matching: trim,
// casefold, collapse runs of interior whitespace. Idempotent.
func normalizeStatus(value string) string {
	return strings.Join(strings.Fields(strings.ToLower(value)), " ")
}

// statusKey builds the lookup key for a set of raw statuses: normalize each,
// drop empties, dedupe, sort. The same function is used when loading rules and
// when resolving a request, so formatting differences never cause a miss.
func statusKey(statuses []string) []string {
	seen := map[string]bool{}
	key := make([]string, 0, len(statuses))
	for _, status := range statuses {
		normalized := normalizeStatus(status)
		if normalized == "" || seen[normalized] {
			continue
		}
		seen[normalized] = true
		key = append(key, normalized)
	}
	sort.Strings(key)
	return key
}

// keySeparator never appears in a normalized status, so joined keys are unambiguous.
const keySeparator = "\x1f"

// RuleTable maps a sorted, deduplicated set of normalized statuses to the
// canonical Final Status for requests that observed exactly that set.
// Later definitions for an identical key win; Overwrites counts how often that
// happened so conflicting rule sources are visible to the operator.
type RuleTable struct {
	entries    map[string]string
	Source     string
	Sheet      string
	Overwrites int

	// Degraded is set when the external rule source could not be loaded.
	// The resolver then treats each raw status as its own Final Status.
	Degraded    bool
	DegradedErr error
}

func newRuleTable() *RuleTable {
	return &RuleTable{entries: map[string]string{}}
}

func (t *RuleTable) put(statuses []string, finalStatus string) {
	key := strings.Join(statusKey(statuses), keySeparator)
	if key == "" {
		return
	}
	if _, exists := t.entries[key]; exists {
		t.Overwrites++
	}
	t.entries[key] = finalStatus
}

// Lookup returns the Final Status for the exact status set, order-independent.
func (t *RuleTable) Lookup(statuses []string) (string, bool) {
	value, ok := t.entries[strings.Join(statusKey(statuses), keySeparator)]
	return value, ok
}

func (t *RuleTable) Len() int {
	return len(t.entries)
}

// finalAnswerColumn is the designated value column in the rule sheet; every
// other non-empty cell in a rule row is part of the status-set key.
const finalAnswerColumn = "Final Answer"

// builtinOverrides are combinations the loaded rule sheet was repeatedly found
// to be missing during validation. They are layered after the sheet and before
// the override file, all with last-write-wins semantics.
var builtinOverrides = []RuleOverride{
	{Statuses: []string{"Action pending / In Process", "Delivered"}, FinalStatus: "Delivered"},
	{Statuses: []string{"Action pending / In Process", "Dispatched & In Transit"}, FinalStatus: "Dispatched & In Transit"},
	{Statuses: []string{"Action pending / In Process", "Dispatch Pending"}, FinalStatus: "Dispatch Pending"},
	{Statuses: []string{"Action pending / In Process", "Out of stock"}, FinalStatus: "Out of stock"},
	{Statuses: []string{"Action pending / In Process", "Return"}, FinalStatus: "Return"},
	{Statuses: []string{"Delivered", "Return"}, FinalStatus: "Delivered"},
	{Statuses: []string{"Dispatch Pending", "Delivered"}, FinalStatus: "Delivered"},
	{Statuses: []string{"Dispatch Pending", "Dispatched & In Transit"}, FinalStatus: "Dispatched & In Transit"},
	{Statuses: []string{"Dispatch Pending", "Return"}, FinalStatus: "Return"},
	{Statuses: []string{"Dispatched & In Transit", "Return"}, FinalStatus: "Dispatched & In Transit"},
	{Statuses: []string{"Out of stock", "Return"}, FinalStatus: "Out of stock"},
	{Statuses: []string{"Request Raised", "Action pending / In Process"}, FinalStatus: "Action pending / In Process"},
	{Statuses: []string{"Request Raised", "Delivered"}, FinalStatus: "Delivered"},
	{Statuses: []string{"Request Raised", "Dispatch Pending"}, FinalStatus: "Dispatch Pending"},
	{Statuses: []string{"Request Raised", "Dispatched & In Transit"}, FinalStatus: "Dispatched & In Transit"},
	{Statuses: []string{"Request Raised", "Out of stock"}, FinalStatus: "Out of stock"},
	{Statuses: []string{"Request Raised", "Return"}, FinalStatus: "Return"},
	{Statuses: []string{"Not permitted"}, FinalStatus: "Not permitted"},
	{Statuses: []string{"Delivered", "Out of stock", "Return"}, FinalStatus: "Delivered"},
	{Statuses: []string{"Action pending / In Process", "Dispatch Pending", "Out of stock"}, FinalStatus: "Dispatch Pending"},
	{Statuses: []string{"Dispatch Pending", "Not permitted"}, FinalStatus: "Not permitted"},
}

// RuleOverride is one entry of the versioned override file layered on top of
// the loaded rule sheet.
type RuleOverride struct {
	Statuses    []string `yaml:"statuses"`
	FinalStatus string   `yaml:"final_status"`
}

type overrideFile struct {
	Version   int            `yaml:"version"`
	Overrides []RuleOverride `yaml:"overrides"`
}

// loadRuleTable builds the rule table from the rules workbook plus the built-in
// override set plus an optional override file, merged in that order with
// last-write-wins semantics. A workbook that cannot be read or lacks the
// Final Answer column yields a degraded table rather than a fatal error.
func loadRuleTable(rulesPath string, overridesPath string) *RuleTable {
	table := newRuleTable()
	table.Source = rulesPath

	if err := loadRuleSheet(table, rulesPath); err != nil {
		table.Degraded = true
		table.DegradedErr = err
		return table
	}

	for _, override := range builtinOverrides {
		table.put(override.Statuses, override.FinalStatus)
	}

	if overridesPath != "" {
		if err := loadRuleOverrides(table, overridesPath); err != nil {
			// Override file problems are not recoverable by identity mapping:
			// the base table is intact, so degrade the same way the rule sheet
			// would and let the operator decide.
			table.Degraded = true
			table.DegradedErr = fmt.Errorf("override file %s: %w", overridesPath, err)
		}
	}
	return table
}

func loadRuleSheet(table *RuleTable, path string) error {
	workbook, err := excelize.OpenFile(path)
	if err != nil {
		return fmt.Errorf("open rules workbook: %w", err)
	}
	defer workbook.Close()

	sheet := pickRuleSheet(workbook.GetSheetList())
	if sheet == "" {
		return errors.New("rules workbook has no sheets")
	}
	table.Sheet = sheet

	rows, err := workbook.GetRows(sheet)
	if err != nil {
		return fmt.Errorf("read rules sheet %s: %w", sheet, err)
	}
	if len(rows) == 0 {
		return fmt.Errorf("rules sheet %s is empty", sheet)
	}

	answerIdx := -1
	for idx, header := range rows[0] {
		if normalizeStatus(header) == normalizeStatus(finalAnswerColumn) {
			answerIdx = idx
			break
		}
	}
	if answerIdx < 0 {
		return fmt.Errorf("rules sheet %s has no %q column", sheet, finalAnswerColumn)
	}

	for _, row := range rows[1:] {
		if answerIdx >= len(row) {
			continue
		}
		finalStatus := strings.TrimSpace(row[answerIdx])
		if finalStatus == "" {
			continue
		}
		statuses := make([]string, 0, len(row))
		for idx, cell := range row {
			if idx == answerIdx {
				continue
			}
			if strings.TrimSpace(cell) != "" {
				statuses = append(statuses, cell)
			}
		}
		if len(statuses) > 0 {
			table.put(statuses, finalStatus)
		}
	}
	if table.Len() == 0 {
		return fmt.Errorf("rules sheet %s produced no usable rules", sheet)
	}
	return nil
}

// pickRuleSheet prefers a sheet whose name mentions rules, then the legacy
// Sheet2 layout, then the first sheet.
func pickRuleSheet(sheets []string) string {
	for _, sheet := range sheets {
		if strings.Contains(strings.ToLower(sheet), "rule") {
			return sheet
		}
	}
	for _, sheet := range sheets {
		if strings.EqualFold(sheet, "Sheet2") {
			return sheet
		}
	}
	if len(sheets) > 0 {
		return sheets[0]
	}
	return ""
}

func loadRuleOverrides(table *RuleTable, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var file overrideFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}
	for idx, override := range file.Overrides {
		if len(override.Statuses) == 0 || strings.TrimSpace(override.FinalStatus) == "" {
			return fmt.Errorf("override %d is missing statuses or final_status", idx+1)
		}
		table.put(override.Statuses, override.FinalStatus)
	}
	return nil
}
