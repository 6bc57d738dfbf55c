package main

import (
	"strings"
	"testing"
)

func trackerRow(requestID, abmCode, status string) TrackerRow {
	return TrackerRow{
		RequestID: requestID,
		ZBMCode:   "ZN01",
		ZBMName:   "North Zone",
		ZBMEmail:  "zbm.north@example.com",
		ABMCode:   abmCode,
		ABMName:   "Area " + abmCode,
		ABMEmail:  strings.ToLower(abmCode) + "@example.com",
		ABMHQ:     abmCode + " HQ",
		TBMHQ:     "Pune",
		TBMEmail:  "tbm." + strings.ToLower(abmCode) + "@example.com",
		HCPCode:   "HCP-" + requestID,
		RawStatus: status,
	}
}

func passthroughResolution(rows []TrackerRow) Resolution {
	return resolveRequests(rows, newRuleTable(), FallbackPassthrough)
}

func TestFunnelDerivedTotals(t *testing.T) {
	funnel := FunnelCounts{
		Cancelled:        1,
		PendingHO:        2,
		PendingInvoicing: 3,
		PendingDispatch:  4,
		Delivered:        5,
		InTransit:        6,
		RTO:              7,
	}
	if got := funnel.Dispatched(); got != 18 {
		t.Fatalf("Dispatched = %d", got)
	}
	if got := funnel.SentToHub(); got != 25 {
		t.Fatalf("SentToHub = %d", got)
	}
	if got := funnel.Raised(); got != 28 {
		t.Fatalf("Raised = %d", got)
	}
}

func TestClassifyPendingInvoicingClaimsFirst(t *testing.T) {
	resolution := RequestResolution{FinalStatus: "Delivered", PendingInvoicing: true}
	if got := classifyRequest(resolution, RTOByFinalStatus); got != bucketPendingInvoicing {
		t.Fatalf("flagged request classified as %v", got)
	}
}

func TestClassifyFinalStatusBuckets(t *testing.T) {
	cases := []struct {
		status string
		want   funnelBucket
	}{
		{"Out of stock", bucketCancelled},
		{"On Hold", bucketCancelled},
		{"Not permitted", bucketCancelled},
		{"Action pending / In Process", bucketPendingHO},
		{"Dispatch Pending", bucketPendingDispatch},
		{"Delivered", bucketDelivered},
		{"Dispatched & In Transit", bucketInTransit},
		{"RTO", bucketRTO},
		{"Something Unexpected", bucketNone},
	}
	for _, tc := range cases {
		got := classifyRequest(RequestResolution{FinalStatus: tc.status}, RTOByFinalStatus)
		if got != tc.want {
			t.Fatalf("classify(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}

func TestClassifyRTOByReasonPolicy(t *testing.T) {
	resolution := RequestResolution{FinalStatus: "Delivered", HasRTOReason: true}
	if got := classifyRequest(resolution, RTOByReason); got != bucketRTO {
		t.Fatalf("reason policy classified as %v", got)
	}
	if got := classifyRequest(resolution, RTOByFinalStatus); got != bucketDelivered {
		t.Fatalf("final-status policy classified as %v", got)
	}
	// Under the reason policy an RTO final status without a reason stays out.
	noReason := RequestResolution{FinalStatus: "RTO"}
	if got := classifyRequest(noReason, RTOByReason); got != bucketNone {
		t.Fatalf("reasonless RTO under reason policy = %v", got)
	}
}

func TestSummarizeGroupTiesOut(t *testing.T) {
	rows := []TrackerRow{
		trackerRow("R1", "AB01", "Delivered"),
		trackerRow("R1", "AB01", "Delivered"),
		trackerRow("R2", "AB01", "Dispatch Pending"),
		trackerRow("R3", "AB01", "Out of stock"),
	}
	summary := summarizeGroup(rows, passthroughResolution(rows), RTOByFinalStatus)

	if summary.UniqueRequests != 3 {
		t.Fatalf("UniqueRequests = %d", summary.UniqueRequests)
	}
	if summary.Funnel.Raised() != summary.UniqueRequests {
		t.Fatalf("Raised %d != distinct requests %d", summary.Funnel.Raised(), summary.UniqueRequests)
	}
	if summary.Funnel.Delivered != 1 || summary.Funnel.PendingDispatch != 1 || summary.Funnel.Cancelled != 1 {
		t.Fatalf("unexpected funnel: %+v", summary.Funnel)
	}
}

func TestSummarizeGroupCountsRTOReasonsPerRequest(t *testing.T) {
	rows := []TrackerRow{
		trackerRow("R1", "AB01", "RTO"),
		trackerRow("R1", "AB01", "RTO"),
		trackerRow("R2", "AB01", "RTO"),
	}
	rows[0].RTOReason = "Incomplete Address - gate locked"
	rows[1].RTOReason = "incomplete address"
	rows[2].RTOReason = "Doctor Refused to Accept the parcel"

	table := singleRuleTable("RTO", "RTO")
	res := resolveRequests(rows, table, FallbackStrict)
	summary := summarizeGroup(rows, res, RTOByFinalStatus)

	if summary.RTOReasons.IncompleteAddress != 1 {
		t.Fatalf("IncompleteAddress = %d, want 1 (per request, not per row)", summary.RTOReasons.IncompleteAddress)
	}
	if summary.RTOReasons.RefusedToAccept != 1 {
		t.Fatalf("RefusedToAccept = %d", summary.RTOReasons.RefusedToAccept)
	}
	if summary.Funnel.RTO != 2 {
		t.Fatalf("RTO count = %d", summary.Funnel.RTO)
	}
}

func TestBuildZoneReportsOrderingAndTotals(t *testing.T) {
	rows := []TrackerRow{
		trackerRow("R1", "AB02", "Delivered"),
		trackerRow("R2", "AB02", "Delivered"),
		trackerRow("R3", "AB02", "Delivered"),
		trackerRow("R4", "AB01", "Delivered"),
		trackerRow("R5", "AB01", "Delivered"),
		trackerRow("R6", "AB01", "Delivered"),
		trackerRow("R7", "AB01", "Delivered"),
		trackerRow("R8", "AB01", "Delivered"),
	}
	reports := buildZoneReports(rows, passthroughResolution(rows), RTOByFinalStatus)

	if len(reports) != 1 {
		t.Fatalf("expected 1 zone, got %d", len(reports))
	}
	report := reports[0]
	if len(report.Rows) != 2 {
		t.Fatalf("expected 2 area rows, got %d", len(report.Rows))
	}
	if report.Rows[0].ABMCode != "AB01" || report.Rows[1].ABMCode != "AB02" {
		t.Fatalf("rows not in ascending code order: %s, %s", report.Rows[0].ABMCode, report.Rows[1].ABMCode)
	}
	if report.Rows[0].AreaLabel != "AB01 and AB01 HQ" {
		t.Fatalf("area label = %q", report.Rows[0].AreaLabel)
	}
	if report.Total.UniqueRequests != 8 {
		t.Fatalf("total UniqueRequests = %d", report.Total.UniqueRequests)
	}
	if report.Total.Funnel.Delivered != 8 || report.Total.Funnel.Raised() != 8 {
		t.Fatalf("total funnel = %+v", report.Total.Funnel)
	}
	if len(report.Mismatches) != 0 {
		t.Fatalf("unexpected mismatches: %+v", report.Mismatches)
	}
	if len(report.ABMEmails) != 2 || report.ABMEmails[0] != "ab01@example.com" {
		t.Fatalf("cc list = %v", report.ABMEmails)
	}
}

func TestBuildZoneReportsSurfacesUncoveredStatuses(t *testing.T) {
	rows := []TrackerRow{
		trackerRow("R1", "AB01", "Delivered"),
		trackerRow("R2", "AB01", "Vanished"),
	}
	reports := buildZoneReports(rows, passthroughResolution(rows), RTOByFinalStatus)

	report := reports[0]
	if len(report.Mismatches) != 1 {
		t.Fatalf("expected 1 mismatch, got %d", len(report.Mismatches))
	}
	mismatch := report.Mismatches[0]
	if mismatch.DistinctRequests != 2 || mismatch.Raised != 1 {
		t.Fatalf("mismatch counts = %+v", mismatch)
	}
	if len(mismatch.Uncovered) != 1 || mismatch.Uncovered[0] != "Vanished" {
		t.Fatalf("uncovered statuses = %v", mismatch.Uncovered)
	}
}

func TestAreaLabelFallsBackToTBMHQ(t *testing.T) {
	rows := []TrackerRow{{ABMCode: "AB09", TBMHQ: "Nagpur"}}
	if got := areaLabel("AB09", rows); got != "AB09 and Nagpur" {
		t.Fatalf("areaLabel = %q", got)
	}
	if got := areaLabel("AB09", []TrackerRow{{ABMCode: "AB09"}}); got != "AB09" {
		t.Fatalf("areaLabel without HQ = %q", got)
	}
}

func TestBuildHierarchyRowsLevels(t *testing.T) {
	rows := []TrackerRow{
		trackerRow("R1", "AB01", "Delivered"),
		trackerRow("R2", "AB02", "Delivered"),
	}
	hierarchy := buildHierarchyRows(rows, passthroughResolution(rows), RTOByFinalStatus)

	if len(hierarchy) != 5 {
		t.Fatalf("expected ZBM + 2 ABM + 2 TBM rows, got %d", len(hierarchy))
	}
	if hierarchy[0].Level != "ZBM" || hierarchy[0].UniqueRequests != 2 {
		t.Fatalf("zone row = %+v", hierarchy[0])
	}
	if hierarchy[1].Level != "ABM" || hierarchy[1].ABMCode != "AB01" {
		t.Fatalf("first area row = %+v", hierarchy[1])
	}
	if hierarchy[2].Level != "TBM" || hierarchy[2].UniqueTBMs != 1 {
		t.Fatalf("first territory row = %+v", hierarchy[2])
	}
}
