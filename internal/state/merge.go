package state

import "github.com/erp-dms/dms-assistant/internal/analysis"

// MergeSummary appends incoming to existing, dropping any item whose
// normalized question is already present in existing or earlier in
// incoming. Neither input is modified.
func MergeSummary(existing, incoming []analysis.SummaryItem) []analysis.SummaryItem {
	out := make([]analysis.SummaryItem, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, it := range existing {
		seen[it.Key()] = struct{}{}
		out = append(out, it)
	}
	for _, it := range incoming {
		k := it.Key()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it)
	}
	return out
}
