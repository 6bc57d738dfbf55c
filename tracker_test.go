package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const trackerHeader = "ZBM Terr Code,ZBM Name,ZBM EMAIL_ID,ABM Terr Code,ABM Name,ABM EMAIL_ID,TBM HQ,TBM EMAIL_ID,Doctor: Customer Code,Assigned Request Ids,Request Status,Rto Reason,ABM HQ"

func writeTrackerCSV(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tracker.csv")
	content := strings.Join(lines, "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write tracker: %v", err)
	}
	return path
}

func TestLoadTrackerReadsRows(t *testing.T) {
	path := writeTrackerCSV(t,
		trackerHeader,
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP1,REQ-1,Delivered,,Pune HQ",
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP2,REQ-2,Dispatch Pending,Incomplete Address,Pune HQ",
	)

	load, err := loadTracker(path, "ZN")
	if err != nil {
		t.Fatalf("loadTracker: %v", err)
	}
	if load.TotalRows != 2 || len(load.Rows) != 2 {
		t.Fatalf("counts: total %d kept %d", load.TotalRows, len(load.Rows))
	}
	row := load.Rows[1]
	if row.RequestID != "REQ-2" || row.RTOReason != "Incomplete Address" || row.ABMHQ != "Pune HQ" {
		t.Fatalf("row = %+v", row)
	}
}

func TestLoadTrackerListsAllMissingColumns(t *testing.T) {
	path := writeTrackerCSV(t,
		"ZBM Terr Code,ZBM Name,ABM Terr Code,ABM Name,TBM HQ,TBM EMAIL_ID,Doctor: Customer Code,Request Status",
		"ZN01,North Zone,AB01,Area One,Pune,tbm@example.com,HCP1,Delivered",
	)

	_, err := loadTracker(path, "ZN")
	if err == nil {
		t.Fatal("expected schema error")
	}
	for _, column := range []string{"ZBM EMAIL_ID", "ABM EMAIL_ID", "Assigned Request Ids"} {
		if !strings.Contains(err.Error(), column) {
			t.Fatalf("error %q does not name missing column %s", err, column)
		}
	}
}

func TestLoadTrackerDropsAndFilters(t *testing.T) {
	path := writeTrackerCSV(t,
		trackerHeader,
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP1,REQ-1,Delivered,,",
		",North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP2,REQ-2,Delivered,,",
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP3,,Delivered,,",
		"XX99,Other Zone,other@example.com,AB05,Area Five,abm5@example.com,Delhi,tbm5@example.com,HCP4,REQ-4,Delivered,,",
	)

	load, err := loadTracker(path, "ZN")
	if err != nil {
		t.Fatalf("loadTracker: %v", err)
	}
	if len(load.Rows) != 1 {
		t.Fatalf("kept %d rows", len(load.Rows))
	}
	if load.DroppedRows != 2 {
		t.Fatalf("DroppedRows = %d", load.DroppedRows)
	}
	if load.FilteredRows != 1 {
		t.Fatalf("FilteredRows = %d", load.FilteredRows)
	}
}

func TestLoadTrackerResolvesHeaderAliases(t *testing.T) {
	path := writeTrackerCSV(t,
		"ZBM Territory Code,ZBM Name,ZBM Email,ABM Territory Code,ABM Name,ABM Email,TBM HQ,TBM Email,Doctor Customer Code,Request ID,Request Status",
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP1,REQ-1,Delivered",
	)

	load, err := loadTracker(path, "ZN")
	if err != nil {
		t.Fatalf("loadTracker with aliased headers: %v", err)
	}
	if len(load.Rows) != 1 || load.Rows[0].RequestID != "REQ-1" {
		t.Fatalf("rows = %+v", load.Rows)
	}
}

func TestLoadTrackerCapturesDetailColumns(t *testing.T) {
	path := writeTrackerCSV(t,
		trackerHeader+",SKU,Docket Number",
		"ZN01,North Zone,zbm@example.com,AB01,Area One,abm@example.com,Pune,tbm@example.com,HCP1,REQ-1,Delivered,,Pune HQ,SKU-9,DOC-77",
	)

	load, err := loadTracker(path, "ZN")
	if err != nil {
		t.Fatalf("loadTracker: %v", err)
	}
	row := load.Rows[0]
	if row.Detail["SKU"] != "SKU-9" || row.Detail["Docket Number"] != "DOC-77" {
		t.Fatalf("detail = %v", row.Detail)
	}
}

func TestLoadTrackerMissingFile(t *testing.T) {
	if _, err := loadTracker(filepath.Join(t.TempDir(), "absent.csv"), "ZN"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
