package main

import (
	"fmt"
	"sort"
	"strings"
)

// StatusNoMatchingRule marks a request whose status combination has no rule
// entry under the strict policy. It is reported, never silently coerced.
const StatusNoMatchingRule = "No matching rule"

// pendingInvoicingStatus is the normalized literal that flags a request as
// pending for invoicing. Exact-match on the normalized status set, not a rule
// lookup.
const pendingInvoicingStatus = "action pending / in process"

// FallbackPolicy decides the Final Status when a request's status combination
// has no rule entry.
type FallbackPolicy string

const (
	// FallbackStrict resolves to StatusNoMatchingRule and reports the request.
	FallbackStrict FallbackPolicy = "strict"
	// FallbackMostCommon resolves to the most frequent raw status across the
	// request's rows. Can mask rule-table gaps; opt-in only.
	FallbackMostCommon FallbackPolicy = "most-common"
	// FallbackPassthrough resolves to the last observed raw status.
	FallbackPassthrough FallbackPolicy = "passthrough"
)

func parseFallbackPolicy(value string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(value))) {
	case FallbackStrict:
		return FallbackStrict, nil
	case FallbackMostCommon:
		return FallbackMostCommon, nil
	case FallbackPassthrough:
		return FallbackPassthrough, nil
	}
	return "", fmt.Errorf("invalid -fallback value: %s (want strict, most-common or passthrough)", value)
}

// RequestResolution is the single reconciled outcome for one request id.
type RequestResolution struct {
	RequestID        string
	StatusSet        []string // normalized, deduplicated, sorted
	FinalStatus      string
	PendingInvoicing bool
	Unresolved       bool
	HasRTOReason     bool
}

// Resolution holds one entry per distinct request id plus run-level
// diagnostics for the operator report.
type Resolution struct {
	ByRequest map[string]RequestResolution
	// Unresolved lists requests that hit the strict sentinel, in request-id order.
	Unresolved []RequestResolution
	// Frequency counts resolved Final Status values across all requests.
	Frequency map[string]int
	Policy    FallbackPolicy
	Degraded  bool
}

// resolveRequests collects every raw status recorded for each request id,
// normalizes and dedupes the set, and assigns one Final Status per request via
// the rule table. With a degraded rule table every request falls through to
// passthrough resolution regardless of policy, and that is flagged on the
// result.
func resolveRequests(rows []TrackerRow, rules *RuleTable, policy FallbackPolicy) Resolution {
	type requestEvents struct {
		statuses []string // raw, in row order, duplicates kept for most-common
		reason   bool
	}

	order := []string{}
	events := map[string]*requestEvents{}
	for _, row := range rows {
		req, ok := events[row.RequestID]
		if !ok {
			req = &requestEvents{}
			events[row.RequestID] = req
			order = append(order, row.RequestID)
		}
		if row.RawStatus != "" {
			req.statuses = append(req.statuses, row.RawStatus)
		}
		if row.RTOReason != "" {
			req.reason = true
		}
	}

	result := Resolution{
		ByRequest: make(map[string]RequestResolution, len(events)),
		Frequency: map[string]int{},
		Policy:    policy,
		Degraded:  rules.Degraded,
	}

	for _, requestID := range order {
		req := events[requestID]
		key := statusKey(req.statuses)

		resolution := RequestResolution{
			RequestID:    requestID,
			StatusSet:    key,
			HasRTOReason: req.reason,
		}
		for _, status := range key {
			if status == pendingInvoicingStatus {
				resolution.PendingInvoicing = true
				break
			}
		}

		switch {
		case rules.Degraded:
			resolution.FinalStatus = lastStatus(req.statuses)
		default:
			if finalStatus, ok := rules.Lookup(key); ok {
				resolution.FinalStatus = finalStatus
			} else {
				resolution.FinalStatus = applyFallback(policy, req.statuses)
				if resolution.FinalStatus == StatusNoMatchingRule {
					resolution.Unresolved = true
				}
			}
		}

		result.ByRequest[requestID] = resolution
		result.Frequency[resolution.FinalStatus]++
		if resolution.Unresolved {
			result.Unresolved = append(result.Unresolved, resolution)
		}
	}

	sort.Slice(result.Unresolved, func(i, j int) bool {
		return result.Unresolved[i].RequestID < result.Unresolved[j].RequestID
	})
	return result
}

func applyFallback(policy FallbackPolicy, rawStatuses []string) string {
	switch policy {
	case FallbackMostCommon:
		return mostCommonStatus(rawStatuses)
	case FallbackPassthrough:
		return lastStatus(rawStatuses)
	default:
		return StatusNoMatchingRule
	}
}

// mostCommonStatus counts raw occurrences (not the deduped set); ties break on
// the lexicographically smaller normalized status for determinism.
func mostCommonStatus(rawStatuses []string) string {
	if len(rawStatuses) == 0 {
		return StatusNoMatchingRule
	}
	counts := map[string]int{}
	display := map[string]string{}
	for _, status := range rawStatuses {
		normalized := normalizeStatus(status)
		counts[normalized]++
		if _, ok := display[normalized]; !ok {
			display[normalized] = strings.TrimSpace(status)
		}
	}
	best := ""
	for normalized := range counts {
		if best == "" {
			best = normalized
			continue
		}
		if counts[normalized] > counts[best] ||
			(counts[normalized] == counts[best] && normalized < best) {
			best = normalized
		}
	}
	return display[best]
}

func lastStatus(rawStatuses []string) string {
	for i := len(rawStatuses) - 1; i >= 0; i-- {
		if trimmed := strings.TrimSpace(rawStatuses[i]); trimmed != "" {
			return trimmed
		}
	}
	return StatusNoMatchingRule
}

// frequencyLines renders the Final Status frequency table in descending count
// order for the operator report.
func (r Resolution) frequencyLines() []string {
	statuses := make([]string, 0, len(r.Frequency))
	for status := range r.Frequency {
		statuses = append(statuses, status)
	}
	sort.Slice(statuses, func(i, j int) bool {
		if r.Frequency[statuses[i]] != r.Frequency[statuses[j]] {
			return r.Frequency[statuses[i]] > r.Frequency[statuses[j]]
		}
		return statuses[i] < statuses[j]
	})
	lines := make([]string, 0, len(statuses))
	for _, status := range statuses {
		lines = append(lines, fmt.Sprintf("%s: %d", status, r.Frequency[status]))
	}
	return lines
}
