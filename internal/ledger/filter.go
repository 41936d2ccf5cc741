package ledger

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize strips whitespace and periods and lower-cases the remainder so that
// code-like tokens compare equal regardless of formatting ("55.02 " == "5502").
func Normalize(text string) string {
	return normalizeWith(cases.Lower(language.Und), text)
}

func normalizeWith(lower cases.Caser, text string) string {
	if text == "" {
		return ""
	}
	stripped := strings.Map(func(r rune) rune {
		if r == '.' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, text)
	return lower.String(stripped)
}

// matcher holds the per-call state for evaluating one criteria snapshot.
// cases.Caser is stateful, so each matcher owns its own.
type matcher struct {
	criteria Criteria
	cfg      CategoryConfig
	lower    cases.Caser
	subject  string
	terms    []string
}

func newMatcher(criteria Criteria, cfg CategoryConfig) *matcher {
	m := &matcher{criteria: criteria, cfg: cfg, lower: cases.Lower(language.Und)}
	if criteria.SubjectCode != "" {
		m.subject = normalizeWith(m.lower, criteria.SubjectCode)
	}
	if criteria.Keyword != "" {
		for _, term := range strings.Fields(criteria.Keyword) {
			m.terms = append(m.terms, normalizeWith(m.lower, term))
		}
	}
	return m
}

// Matches reports whether row satisfies every populated criterion.
func Matches(row Row, criteria Criteria, cfg CategoryConfig) bool {
	return newMatcher(criteria, cfg).match(row)
}

// FilterRows returns the rows matching criteria in their original order. The
// input slice is never modified.
func FilterRows(rows []Row, criteria Criteria, cfg CategoryConfig) []Row {
	m := newMatcher(criteria, cfg)
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if m.match(row) {
			out = append(out, row)
		}
	}
	return out
}

func (m *matcher) match(row Row) bool {
	return m.matchPeriod(row) && m.matchSubject(row) && m.matchCategory(row) && m.matchKeyword(row)
}

func (m *matcher) matchPeriod(row Row) bool {
	period := m.criteria.Period
	if period == "" {
		return true
	}
	return row.Period == period || strings.HasPrefix(row.Period, period)
}

func (m *matcher) matchSubject(row Row) bool {
	if m.criteria.SubjectCode == "" {
		return true
	}
	return strings.Contains(normalizeWith(m.lower, row.SubjectCode), m.subject)
}

func (m *matcher) matchCategory(row Row) bool {
	switch m.criteria.Category {
	case CategoryNone:
		return true
	case CategoryIncome:
		return hasAnyPrefix(row.SubjectCode, m.cfg.IncomeSubjectCodes)
	case CategoryCost:
		return hasAnyPrefix(row.SubjectCode, m.cfg.CostSubjectCodes)
	default:
		return false
	}
}

func (m *matcher) matchKeyword(row Row) bool {
	keyword := strings.TrimSpace(m.criteria.Keyword)
	if keyword == "" {
		return true
	}
	corpus := normalizeWith(m.lower, searchCorpus(row, m.cfg))
	allTerms := true
	for _, term := range m.terms {
		if !strings.Contains(corpus, term) {
			allTerms = false
			break
		}
	}
	if allTerms {
		return true
	}
	return strings.Contains(amountText(row), keyword)
}

func searchCorpus(row Row, cfg CategoryConfig) string {
	var b strings.Builder
	b.WriteString(row.Summary)
	b.WriteString(row.VoucherNo)
	b.WriteString(row.Counterparty)
	b.WriteString(row.SubjectName)
	b.WriteString(DepartmentName(row, cfg))
	return b.String()
}

// DepartmentName resolves the display name of the row's department: the row's
// own name, then the configured mapping, then empty.
func DepartmentName(row Row, cfg CategoryConfig) string {
	if row.DepartmentName != "" {
		return row.DepartmentName
	}
	if name, ok := cfg.Departments[row.Department]; ok {
		return name
	}
	return ""
}

// amountText renders the nonzero side of the row as an absolute decimal with
// trailing zeros trimmed.
func amountText(row Row) string {
	amount := row.DebitAmount
	if amount.IsZero() {
		amount = row.CreditAmount
	}
	return amount.Abs().String()
}

func hasAnyPrefix(code string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if strings.HasPrefix(code, prefix) {
			return true
		}
	}
	return false
}
