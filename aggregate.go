package main

import (
	"fmt"
	"sort"
	"strings"
)

// RTOPolicy selects how the RTO counter (I) is computed. The two variants are
// not equivalent when a request carries a return reason but a different Final
// Status; a run uses exactly one and never mixes them.
type RTOPolicy string

const (
	// RTOByFinalStatus counts requests whose Final Status is RTO.
	RTOByFinalStatus RTOPolicy = "final-status"
	// RTOByReason counts requests with any return-reason text.
	RTOByReason RTOPolicy = "reason"
)

func parseRTOPolicy(value string) (RTOPolicy, error) {
	switch RTOPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case RTOByFinalStatus:
		return RTOByFinalStatus, nil
	case RTOByReason:
		return RTOByReason, nil
	}
	return "", fmt.Errorf("invalid -rto-policy value: %s (want final-status or reason)", value)
}

// FunnelCounts are the seven base counters of the reconciled funnel. The
// derived totals tie out by construction:
//
//	Dispatched (F) = Delivered (G) + InTransit (H) + RTO (I)
//	SentToHub  (C) = PendingInvoicing (D) + PendingDispatch (E) + F
//	Raised         = Cancelled (A) + PendingHO (B) + C
type FunnelCounts struct {
	Cancelled        int // A: Out of stock / On hold / Not permitted
	PendingHO        int // B: Action pending / In Process at HO
	PendingInvoicing int // D
	PendingDispatch  int // E
	Delivered        int // G
	InTransit        int // H
	RTO              int // I
}

func (f FunnelCounts) Dispatched() int {
	return f.Delivered + f.InTransit + f.RTO
}

func (f FunnelCounts) SentToHub() int {
	return f.PendingInvoicing + f.PendingDispatch + f.Dispatched()
}

func (f FunnelCounts) Raised() int {
	return f.Cancelled + f.PendingHO + f.SentToHub()
}

func (f *FunnelCounts) add(other FunnelCounts) {
	f.Cancelled += other.Cancelled
	f.PendingHO += other.PendingHO
	f.PendingInvoicing += other.PendingInvoicing
	f.PendingDispatch += other.PendingDispatch
	f.Delivered += other.Delivered
	f.InTransit += other.InTransit
	f.RTO += other.RTO
}

// RTOReasonCounts are informational sub-counts of RTO by reason category,
// matched case-insensitively on substrings. They need not sum to I.
type RTOReasonCounts struct {
	IncompleteAddress int
	NonContactable    int
	RefusedToAccept   int
	HoldDelivery      int
}

func (r *RTOReasonCounts) add(other RTOReasonCounts) {
	r.IncompleteAddress += other.IncompleteAddress
	r.NonContactable += other.NonContactable
	r.RefusedToAccept += other.RefusedToAccept
	r.HoldDelivery += other.HoldDelivery
}

var rtoReasonPhrases = []struct {
	phrase string
	count  func(*RTOReasonCounts)
}{
	{"incomplete address", func(c *RTOReasonCounts) { c.IncompleteAddress++ }},
	{"non contactable", func(c *RTOReasonCounts) { c.NonContactable++ }},
	{"refused to accept", func(c *RTOReasonCounts) { c.RefusedToAccept++ }},
	{"hold delivery", func(c *RTOReasonCounts) { c.HoldDelivery++ }},
}

// TerritorySummaryRow is one aggregated line per ABM under one ZBM, in the
// fixed report template order.
type TerritorySummaryRow struct {
	AreaLabel string
	ABMCode   string
	ABMName   string
	ABMEmail  string

	UniqueTBMs     int
	UniqueHCPs     int
	UniqueRequests int

	Funnel     FunnelCounts
	RTOReasons RTOReasonCounts
}

// FunnelMismatch records a group whose funnel identity failed to tie out
// against its distinct request count, with the Final Status values no counter
// covers. Surfaced, never silently absorbed.
type FunnelMismatch struct {
	ZBMCode          string
	AreaLabel        string
	DistinctRequests int
	Raised           int
	Uncovered        []string
}

// ZoneReport is the ordered per-ZBM table: one row per ABM in ascending
// territory-code order, then a total row of column-wise sums.
type ZoneReport struct {
	ZBMCode  string
	ZBMName  string
	ZBMEmail string
	// ABMEmails are the CC recipients, deduplicated, in ABM-code order.
	ABMEmails []string

	Rows       []TerritorySummaryRow
	Total      TerritorySummaryRow
	Mismatches []FunnelMismatch
}

// funnel bucket identifiers, in claim order. The pending-invoicing flag claims
// a request before any Final Status bucket so the partition stays exact.
type funnelBucket int

const (
	bucketNone funnelBucket = iota
	bucketCancelled
	bucketPendingHO
	bucketPendingInvoicing
	bucketPendingDispatch
	bucketDelivered
	bucketInTransit
	bucketRTO
)

func classifyRequest(res RequestResolution, policy RTOPolicy) funnelBucket {
	if res.PendingInvoicing {
		return bucketPendingInvoicing
	}
	if policy == RTOByReason && res.HasRTOReason {
		return bucketRTO
	}
	switch normalizeStatus(res.FinalStatus) {
	case "out of stock", "on hold", "not permitted":
		return bucketCancelled
	case pendingInvoicingStatus:
		return bucketPendingHO
	case "dispatch pending":
		return bucketPendingDispatch
	case "delivered":
		return bucketDelivered
	case "dispatched & in transit":
		return bucketInTransit
	case "rto":
		if policy == RTOByFinalStatus {
			return bucketRTO
		}
	}
	return bucketNone
}

// groupSummary aggregates one arbitrary row subset over its distinct request
// ids. Reused at ZBM, ABM and TBM level.
type groupSummary struct {
	UniqueTBMs       int
	UniqueHCPs       int
	UniqueRequests   int
	Funnel           FunnelCounts
	RTOReasons       RTOReasonCounts
	UncoveredStatus  []string
	uncoveredPresent bool
}

func summarizeGroup(rows []TrackerRow, res Resolution, policy RTOPolicy) groupSummary {
	summary := groupSummary{}

	tbms := map[string]bool{}
	hcps := map[string]bool{}
	requests := map[string]bool{}
	uncovered := map[string]bool{}
	reasonSeen := map[string]map[string]bool{}

	for _, row := range rows {
		if row.TBMEmail != "" {
			tbms[row.TBMEmail] = true
		}
		if row.HCPCode != "" {
			hcps[row.HCPCode] = true
		}

		if row.RTOReason != "" {
			reason := strings.ToLower(row.RTOReason)
			for _, category := range rtoReasonPhrases {
				if strings.Contains(reason, category.phrase) {
					seen := reasonSeen[category.phrase]
					if seen == nil {
						seen = map[string]bool{}
						reasonSeen[category.phrase] = seen
					}
					seen[row.RequestID] = true
				}
			}
		}

		if requests[row.RequestID] {
			continue
		}
		requests[row.RequestID] = true

		resolution, ok := res.ByRequest[row.RequestID]
		if !ok {
			uncovered["(unresolved request)"] = true
			continue
		}
		switch classifyRequest(resolution, policy) {
		case bucketCancelled:
			summary.Funnel.Cancelled++
		case bucketPendingHO:
			summary.Funnel.PendingHO++
		case bucketPendingInvoicing:
			summary.Funnel.PendingInvoicing++
		case bucketPendingDispatch:
			summary.Funnel.PendingDispatch++
		case bucketDelivered:
			summary.Funnel.Delivered++
		case bucketInTransit:
			summary.Funnel.InTransit++
		case bucketRTO:
			summary.Funnel.RTO++
		default:
			uncovered[resolution.FinalStatus] = true
		}
	}

	summary.UniqueTBMs = len(tbms)
	summary.UniqueHCPs = len(hcps)
	summary.UniqueRequests = len(requests)

	for _, category := range rtoReasonPhrases {
		for range reasonSeen[category.phrase] {
			category.count(&summary.RTOReasons)
		}
	}

	for status := range uncovered {
		summary.UncoveredStatus = append(summary.UncoveredStatus, status)
	}
	sort.Strings(summary.UncoveredStatus)
	summary.uncoveredPresent = len(summary.UncoveredStatus) > 0
	return summary
}

// buildZoneReports groups the joined rows by ZBM then ABM, both in ascending
// territory-code order. That ordering determines row order in every output
// report and email table.
func buildZoneReports(rows []TrackerRow, res Resolution, policy RTOPolicy) []ZoneReport {
	byZBM := map[string][]TrackerRow{}
	zbmCodes := []string{}
	for _, row := range rows {
		if _, ok := byZBM[row.ZBMCode]; !ok {
			zbmCodes = append(zbmCodes, row.ZBMCode)
		}
		byZBM[row.ZBMCode] = append(byZBM[row.ZBMCode], row)
	}
	sort.Strings(zbmCodes)

	reports := make([]ZoneReport, 0, len(zbmCodes))
	for _, zbmCode := range zbmCodes {
		zbmRows := byZBM[zbmCode]
		report := ZoneReport{
			ZBMCode:  zbmCode,
			ZBMName:  zbmRows[0].ZBMName,
			ZBMEmail: zbmRows[0].ZBMEmail,
		}

		byABM := map[string][]TrackerRow{}
		abmCodes := []string{}
		for _, row := range zbmRows {
			if _, ok := byABM[row.ABMCode]; !ok {
				abmCodes = append(abmCodes, row.ABMCode)
			}
			byABM[row.ABMCode] = append(byABM[row.ABMCode], row)
		}
		sort.Strings(abmCodes)

		ccSeen := map[string]bool{}
		report.Total = TerritorySummaryRow{AreaLabel: "TOTAL"}
		for _, abmCode := range abmCodes {
			abmRows := byABM[abmCode]
			summary := summarizeGroup(abmRows, res, policy)

			row := TerritorySummaryRow{
				AreaLabel:      areaLabel(abmCode, abmRows),
				ABMCode:        abmCode,
				ABMName:        abmRows[0].ABMName,
				ABMEmail:       abmRows[0].ABMEmail,
				UniqueTBMs:     summary.UniqueTBMs,
				UniqueHCPs:     summary.UniqueHCPs,
				UniqueRequests: summary.UniqueRequests,
				Funnel:         summary.Funnel,
				RTOReasons:     summary.RTOReasons,
			}
			report.Rows = append(report.Rows, row)

			if row.ABMEmail != "" && !ccSeen[row.ABMEmail] {
				ccSeen[row.ABMEmail] = true
				report.ABMEmails = append(report.ABMEmails, row.ABMEmail)
			}

			if summary.Funnel.Raised() != summary.UniqueRequests || summary.uncoveredPresent {
				report.Mismatches = append(report.Mismatches, FunnelMismatch{
					ZBMCode:          zbmCode,
					AreaLabel:        row.AreaLabel,
					DistinctRequests: summary.UniqueRequests,
					Raised:           summary.Funnel.Raised(),
					Uncovered:        summary.UncoveredStatus,
				})
			}

			report.Total.UniqueTBMs += row.UniqueTBMs
			report.Total.UniqueHCPs += row.UniqueHCPs
			report.Total.UniqueRequests += row.UniqueRequests
			report.Total.Funnel.add(row.Funnel)
			report.Total.RTOReasons.add(row.RTOReasons)
		}
		reports = append(reports, report)
	}
	return reports
}

// areaLabel joins the territory code with a headquarters string, preferring
// the ABM-level HQ and falling back to the first TBM HQ seen in the group.
func areaLabel(abmCode string, rows []TrackerRow) string {
	hq := ""
	for _, row := range rows {
		if row.ABMHQ != "" {
			hq = row.ABMHQ
			break
		}
	}
	if hq == "" {
		for _, row := range rows {
			if row.TBMHQ != "" {
				hq = row.TBMHQ
				break
			}
		}
	}
	if hq == "" {
		return abmCode
	}
	return fmt.Sprintf("%s and %s", abmCode, hq)
}

// HierarchyRow is one line of the ZBM -> ABM -> TBM drill-down export.
type HierarchyRow struct {
	Level    string
	ZBMCode  string
	ZBMName  string
	ZBMEmail string
	ABMCode  string
	ABMName  string
	ABMEmail string
	TBMHQ    string
	TBMEmail string

	UniqueTBMs     int
	UniqueHCPs     int
	UniqueRequests int
	Funnel         FunnelCounts
}

// buildHierarchyRows emits one summary row per ZBM, per ABM under it, and per
// TBM under each ABM, in the same ascending-code order as the zone reports.
func buildHierarchyRows(rows []TrackerRow, res Resolution, policy RTOPolicy) []HierarchyRow {
	byZBM := map[string][]TrackerRow{}
	zbmCodes := []string{}
	for _, row := range rows {
		if _, ok := byZBM[row.ZBMCode]; !ok {
			zbmCodes = append(zbmCodes, row.ZBMCode)
		}
		byZBM[row.ZBMCode] = append(byZBM[row.ZBMCode], row)
	}
	sort.Strings(zbmCodes)

	var out []HierarchyRow
	for _, zbmCode := range zbmCodes {
		zbmRows := byZBM[zbmCode]
		zbmSummary := summarizeGroup(zbmRows, res, policy)
		out = append(out, HierarchyRow{
			Level:          "ZBM",
			ZBMCode:        zbmCode,
			ZBMName:        zbmRows[0].ZBMName,
			ZBMEmail:       zbmRows[0].ZBMEmail,
			UniqueTBMs:     zbmSummary.UniqueTBMs,
			UniqueHCPs:     zbmSummary.UniqueHCPs,
			UniqueRequests: zbmSummary.UniqueRequests,
			Funnel:         zbmSummary.Funnel,
		})

		byABM := map[string][]TrackerRow{}
		abmCodes := []string{}
		for _, row := range zbmRows {
			if _, ok := byABM[row.ABMCode]; !ok {
				abmCodes = append(abmCodes, row.ABMCode)
			}
			byABM[row.ABMCode] = append(byABM[row.ABMCode], row)
		}
		sort.Strings(abmCodes)

		for _, abmCode := range abmCodes {
			abmRows := byABM[abmCode]
			abmSummary := summarizeGroup(abmRows, res, policy)
			out = append(out, HierarchyRow{
				Level:          "ABM",
				ZBMCode:        zbmCode,
				ZBMName:        zbmRows[0].ZBMName,
				ZBMEmail:       zbmRows[0].ZBMEmail,
				ABMCode:        abmCode,
				ABMName:        abmRows[0].ABMName,
				ABMEmail:       abmRows[0].ABMEmail,
				UniqueTBMs:     abmSummary.UniqueTBMs,
				UniqueHCPs:     abmSummary.UniqueHCPs,
				UniqueRequests: abmSummary.UniqueRequests,
				Funnel:         abmSummary.Funnel,
			})

			byTBM := map[string][]TrackerRow{}
			tbmKeys := []string{}
			for _, row := range abmRows {
				key := row.TBMHQ + keySeparator + row.TBMEmail
				if _, ok := byTBM[key]; !ok {
					tbmKeys = append(tbmKeys, key)
				}
				byTBM[key] = append(byTBM[key], row)
			}
			sort.Strings(tbmKeys)

			for _, tbmKey := range tbmKeys {
				tbmRows := byTBM[tbmKey]
				tbmSummary := summarizeGroup(tbmRows, res, policy)
				out = append(out, HierarchyRow{
					Level:          "TBM",
					ZBMCode:        zbmCode,
					ZBMName:        zbmRows[0].ZBMName,
					ZBMEmail:       zbmRows[0].ZBMEmail,
					ABMCode:        abmCode,
					ABMName:        abmRows[0].ABMName,
					ABMEmail:       abmRows[0].ABMEmail,
					TBMHQ:          tbmRows[0].TBMHQ,
					TBMEmail:       tbmRows[0].TBMEmail,
					UniqueTBMs:     1,
					UniqueHCPs:     tbmSummary.UniqueHCPs,
					UniqueRequests: tbmSummary.UniqueRequests,
					Funnel:         tbmSummary.Funnel,
				})
			}
		}
	}
	return out
}
