package ledger

import "strings"

// ApplyPatch merges a parser patch into the current criteria.
//
// A patch without any populated field leaves current untouched. Otherwise the
// period is sticky (kept when the patch omits it) while subject code, keyword
// and category are replaced by the patch values, so omitted ones are cleared.
// Multi-turn chat filtering relies on this asymmetry.
func ApplyPatch(current Criteria, patch Patch) (Criteria, bool) {
	if !patch.Actionable() {
		return current, false
	}
	next := Criteria{
		Period:      current.Period,
		SubjectCode: strings.TrimSpace(patch.SubjectCode),
		Keyword:     strings.TrimSpace(patch.Keyword),
	}
	if period := strings.TrimSpace(patch.Period); period != "" {
		next.Period = period
	}
	next.Category, _ = ParseCategory(patch.Category)
	return next, true
}
