package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"
)

func testConfig(t *testing.T) RunConfig {
	t.Helper()
	asOf := time.Date(2025, time.March, 15, 10, 30, 0, 0, time.UTC)
	cfg, err := newRunConfig("tracker.csv", "", "", t.TempDir(), "ZN",
		asOf, FallbackStrict, RTOByFinalStatus, "Umesh Pawar", "samples@example.com")
	if err != nil {
		t.Fatalf("newRunConfig: %v", err)
	}
	return cfg
}

func testZoneReport() ZoneReport {
	rowA := TerritorySummaryRow{
		AreaLabel:      "AB01 and Pune HQ",
		ABMCode:        "AB01",
		ABMName:        "Area One",
		ABMEmail:       "ab01@example.com",
		UniqueTBMs:     2,
		UniqueHCPs:     4,
		UniqueRequests: 3,
		Funnel:         FunnelCounts{Delivered: 2, InTransit: 1},
	}
	rowB := TerritorySummaryRow{
		AreaLabel:      "AB02 and Nagpur HQ",
		ABMCode:        "AB02",
		ABMName:        "Area Two",
		ABMEmail:       "ab02@example.com",
		UniqueTBMs:     1,
		UniqueHCPs:     5,
		UniqueRequests: 5,
		Funnel:         FunnelCounts{Delivered: 3, PendingDispatch: 1, RTO: 1},
		RTOReasons:     RTOReasonCounts{IncompleteAddress: 1},
	}
	total := TerritorySummaryRow{
		AreaLabel:      "TOTAL",
		UniqueTBMs:     3,
		UniqueHCPs:     9,
		UniqueRequests: 8,
		Funnel:         FunnelCounts{Delivered: 5, InTransit: 1, PendingDispatch: 1, RTO: 1},
		RTOReasons:     RTOReasonCounts{IncompleteAddress: 1},
	}
	return ZoneReport{
		ZBMCode:   "ZN01",
		ZBMName:   "Rajesh Kumar",
		ZBMEmail:  "zn01@example.com",
		ABMEmails: []string{"ab01@example.com", "ab02@example.com"},
		Rows:      []TerritorySummaryRow{rowA, rowB},
		Total:     total,
	}
}

func TestSummaryCellsSchema(t *testing.T) {
	cells := summaryCells(testZoneReport().Rows[1])
	if len(cells) != len(summaryTemplateColumns) {
		t.Fatalf("got %d cells, want %d", len(cells), len(summaryTemplateColumns))
	}
	byColumn := map[string]string{}
	for _, cell := range cells {
		byColumn[cell.Column] = cell.Value
	}
	if byColumn["# Requests Raised (A+B+C)"] != "5" {
		t.Fatalf("raised = %q", byColumn["# Requests Raised (A+B+C)"])
	}
	if byColumn["Sent to HUB (C) (D+E+F)"] != "5" {
		t.Fatalf("sent to hub = %q", byColumn["Sent to HUB (C) (D+E+F)"])
	}
	if byColumn["Incomplete Address"] != "1" {
		t.Fatalf("incomplete address = %q", byColumn["Incomplete Address"])
	}
}

func TestWriteSummaryWorkbook(t *testing.T) {
	cfg := testConfig(t)
	report := testZoneReport()

	path, err := writeSummaryWorkbook(report, cfg)
	if err != nil {
		t.Fatalf("writeSummaryWorkbook: %v", err)
	}
	wantName := "ZBM_Summary_ZN01_Rajesh_Kumar_20250315_103000.xlsx"
	if filepath.Base(path) != wantName {
		t.Fatalf("filename = %s, want %s", filepath.Base(path), wantName)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	if got, _ := f.GetCellValue(summarySheet, "B1"); got != "Area Name" {
		t.Fatalf("B1 = %q", got)
	}
	if got, _ := f.GetCellValue(summarySheet, "B3"); got != "AB01 and Pune HQ" {
		t.Fatalf("B3 = %q", got)
	}
	// Raised for the first area: 2 delivered + 1 in transit.
	if got, _ := f.GetCellValue(summarySheet, "F3"); got != "3" {
		t.Fatalf("F3 = %q", got)
	}
	if got, _ := f.GetCellValue(summarySheet, "B5"); got != "TOTAL" {
		t.Fatalf("B5 = %q", got)
	}
	if got, _ := f.GetCellValue(summarySheet, "C5"); got != "" {
		t.Fatalf("total row keeps ABM name blank, got %q", got)
	}
	if got, _ := f.GetCellValue(summarySheet, "F5"); got != "8" {
		t.Fatalf("F5 = %q", got)
	}
}

func TestWriteConsolidatedWorkbook(t *testing.T) {
	cfg := testConfig(t)
	rows := []TrackerRow{
		trackerRow("R2", "AB02", "Delivered"),
		trackerRow("R1", "AB01", "Dispatch Pending"),
	}
	rows[1].Detail = map[string]string{"SKU": "SKU-5"}
	res := passthroughResolution(rows)

	path, err := writeConsolidatedWorkbook("ZN01", "Rajesh Kumar", rows, res, cfg)
	if err != nil {
		t.Fatalf("writeConsolidatedWorkbook: %v", err)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()

	const sheet = "Consolidated Data"
	if got, _ := f.GetCellValue(sheet, "A1"); got != "Assigned Request Ids" {
		t.Fatalf("A1 = %q", got)
	}
	// Rows come back sorted by ABM code, so R1 lands first.
	if got, _ := f.GetCellValue(sheet, "A2"); got != "R1" {
		t.Fatalf("A2 = %q", got)
	}
	cell, err := excelize.CoordinatesToCellName(6, 2)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	if got, _ := f.GetCellValue(sheet, cell); got != "SKU-5" {
		t.Fatalf("SKU cell = %q", got)
	}
	cell, err = excelize.CoordinatesToCellName(20, 2)
	if err != nil {
		t.Fatalf("cell name: %v", err)
	}
	if got, _ := f.GetCellValue(sheet, cell); got != "Dispatch Pending" {
		t.Fatalf("final status cell = %q", got)
	}
}

func TestWriteHierarchyExports(t *testing.T) {
	cfg := testConfig(t)
	rows := []TrackerRow{
		trackerRow("R1", "AB01", "Delivered"),
		trackerRow("R2", "AB02", "Delivered"),
	}
	hierarchy := buildHierarchyRows(rows, passthroughResolution(rows), RTOByFinalStatus)

	csvPath, xlsxPath, err := writeHierarchyExports(hierarchy, cfg)
	if err != nil {
		t.Fatalf("writeHierarchyExports: %v", err)
	}

	file, err := os.Open(csvPath)
	if err != nil {
		t.Fatalf("open CSV: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read CSV: %v", err)
	}
	if len(records) != 6 {
		t.Fatalf("CSV rows = %d, want header + 5", len(records))
	}
	if records[0][0] != "Level" || records[1][0] != "ZBM" {
		t.Fatalf("CSV header/first row = %v / %v", records[0], records[1])
	}

	f, err := excelize.OpenFile(xlsxPath)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	for _, want := range []string{"Hierarchical_Summary", "ZBM_Level", "ABM_Level", "TBM_Level"} {
		found := false
		for _, sheet := range sheets {
			if sheet == want {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing sheet %s in %v", want, sheets)
		}
	}
	if got, _ := f.GetCellValue("ZBM_Level", "A2"); got != "ZBM" {
		t.Fatalf("ZBM_Level A2 = %q", got)
	}
	if got, _ := f.GetCellValue("ZBM_Level", "A3"); got != "" {
		t.Fatalf("ZBM_Level should hold exactly one row, A3 = %q", got)
	}
}

func TestRunConfigNames(t *testing.T) {
	cfg := testConfig(t)
	if cfg.Timestamp != "20250315_103000" {
		t.Fatalf("timestamp = %s", cfg.Timestamp)
	}
	if !strings.HasSuffix(cfg.reportsDir(), "ZBM_Reports_20250315_103000") {
		t.Fatalf("reportsDir = %s", cfg.reportsDir())
	}
	if got := cfg.subject(); got != "Sample Direct Dispatch to Doctors - Request Status as of March 15, 2025" {
		t.Fatalf("subject = %q", got)
	}
	if got := safeName("Rajesh Kumar/North"); got != "Rajesh_Kumar_North" {
		t.Fatalf("safeName = %q", got)
	}
}

func TestNewRunConfigRequiresInput(t *testing.T) {
	_, err := newRunConfig("", "", "", "", "ZN", time.Now(), FallbackStrict, RTOByFinalStatus, "", "")
	if err == nil {
		t.Fatal("expected error without an input path")
	}
}
