package ledger

import (
	"sort"

	"github.com/shopspring/decimal"
)

// maxStatsSummaries bounds the memo samples handed to the chat responder.
const maxStatsSummaries = 3

// Aggregate sums debit and credit amounts. Zero-valued amounts contribute
// nothing, so rows with absent amounts are safe.
func Aggregate(rows []Row) Totals {
	totals := Totals{Debit: decimal.Zero, Credit: decimal.Zero}
	for _, row := range rows {
		totals.Debit = totals.Debit.Add(row.DebitAmount)
		totals.Credit = totals.Credit.Add(row.CreditAmount)
	}
	return totals
}

// Paginate returns the 1-indexed page window. Pages are not clamped: a page
// outside [1, TotalPages] yields an empty window. Callers reset to page 1
// whenever criteria change.
func Paginate(rows []Row, page, pageSize int) Window {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	total := len(rows)
	totalPages := total / pageSize
	if total%pageSize != 0 {
		totalPages++
	}
	window := Window{Page: page, PageSize: pageSize, Total: total, TotalPages: totalPages, Rows: []Row{}}
	if page < 1 || page > totalPages {
		return window
	}
	start := (page - 1) * pageSize
	end := start + pageSize
	if end > total {
		end = total
	}
	window.Rows = rows[start:end:end]
	return window
}

// BuildView recomputes the full derived view from one criteria snapshot:
// totals cover every matched row, the window only the requested page.
func BuildView(rows []Row, criteria Criteria, cfg CategoryConfig, page, pageSize int) View {
	matched := FilterRows(rows, criteria, cfg)
	totals := Aggregate(matched)
	window := Paginate(matched, page, pageSize)
	return View{
		Criteria:    criteria,
		Rows:        window.Rows,
		TotalDebit:  totals.Debit,
		TotalCredit: totals.Credit,
		Page:        window.Page,
		PageSize:    window.PageSize,
		Total:       window.Total,
		TotalPages:  window.TotalPages,
	}
}

// BuildStats summarises rows for the chat responder.
func BuildStats(rows []Row) Stats {
	totals := Aggregate(rows)
	stats := Stats{
		Count:       len(rows),
		TotalDebit:  totals.Debit.StringFixed(2),
		TotalCredit: totals.Credit.StringFixed(2),
		Summaries:   []string{},
	}
	seen := make(map[string]struct{}, maxStatsSummaries)
	for _, row := range rows {
		if len(stats.Summaries) == maxStatsSummaries {
			break
		}
		if row.Summary == "" {
			continue
		}
		if _, ok := seen[row.Summary]; ok {
			continue
		}
		seen[row.Summary] = struct{}{}
		stats.Summaries = append(stats.Summaries, row.Summary)
	}
	return stats
}

// Periods lists the distinct non-empty periods present in rows, sorted.
func Periods(rows []Row) []string {
	set := make(map[string]struct{})
	for _, row := range rows {
		if row.Period != "" {
			set[row.Period] = struct{}{}
		}
	}
	periods := make([]string, 0, len(set))
	for period := range set {
		periods = append(periods, period)
	}
	sort.Strings(periods)
	return periods
}
