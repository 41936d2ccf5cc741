package assistant

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.5-flash"

func buildParsePrompt(query string, periods []string, cfg ledger.CategoryConfig) string {
	var b strings.Builder
	b.WriteString("You translate a user's question about a general ledger into filter fields.\n\n")
	b.WriteString("Return STRICT JSON only, one object with these optional string fields:\n")
	b.WriteString("- \"period\": an accounting period from the list below, or a year prefix such as \"2024\"\n")
	b.WriteString("- \"subjectCode\": an account (subject) code fragment\n")
	b.WriteString("- \"keyword\": free-text search terms separated by spaces, or an exact amount\n")
	b.WriteString("- \"category\": \"income\" or \"cost\"\n")
	b.WriteString("Omit a field, or leave it empty, when the question does not mention it.\n")
	b.WriteString("Return {} when the question is not a filtering request.\n\n")

	b.WriteString("Known periods: ")
	if len(periods) == 0 {
		b.WriteString("(none)")
	} else {
		b.WriteString(strings.Join(periods, ", "))
	}
	b.WriteString("\n")
	b.WriteString("Income subject code prefixes: ")
	b.WriteString(strings.Join(cfg.IncomeSubjectCodes, ", "))
	b.WriteString("\n")
	b.WriteString("Cost subject code prefixes: ")
	b.WriteString(strings.Join(cfg.CostSubjectCodes, ", "))
	b.WriteString("\n")
	if len(cfg.Departments) > 0 {
		codes := make([]string, 0, len(cfg.Departments))
		for code := range cfg.Departments {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		b.WriteString("Departments:\n")
		for _, code := range codes {
			b.WriteString("- " + code + ": " + cfg.Departments[code] + "\n")
		}
	}
	b.WriteString("\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\n\nDo NOT wrap the response in code fences.\n")
	return b.String()
}

func buildReplyInstruction(stats ledger.Stats) string {
	raw, _ := json.Marshal(stats)
	return "You are a bookkeeping assistant answering questions about a general ledger.\n" +
		"Answer briefly in the language of the user's last message.\n" +
		"Base every figure on the statistics below; do not invent numbers.\n" +
		"Statistics of the rows currently selected (JSON): " + string(raw) + "\n"
}

type complianceRow struct {
	ID          string `json:"id"`
	Period      string `json:"period"`
	Date        string `json:"date"`
	VoucherNo   string `json:"voucherNo"`
	SubjectCode string `json:"subjectCode"`
	SubjectName string `json:"subjectName"`
	Summary     string `json:"summary"`
	Debit       string `json:"debit"`
	Credit      string `json:"credit"`
}

func buildCompliancePrompt(rows []ledger.Row) string {
	sample := make([]complianceRow, 0, len(rows))
	for _, row := range rows {
		sample = append(sample, complianceRow{
			ID:          row.ID,
			Period:      row.Period,
			Date:        row.Date,
			VoucherNo:   row.VoucherNo,
			SubjectCode: row.SubjectCode,
			SubjectName: row.SubjectName,
			Summary:     row.Summary,
			Debit:       row.DebitAmount.StringFixed(2),
			Credit:      row.CreditAmount.StringFixed(2),
		})
	}
	raw, _ := json.Marshal(sample)
	return "You review general ledger lines for bookkeeping compliance problems:\n" +
		"memos that do not fit the account, suspicious round amounts, dates outside the period,\n" +
		"lines carrying both a debit and a credit, and missing memos.\n\n" +
		"Return STRICT JSON only: an array of objects with fields\n" +
		"\"rowId\" (string), \"voucherNo\" (string), \"severity\" (\"HIGH\", \"MEDIUM\" or \"LOW\"), \"message\" (string).\n" +
		"Return [] when nothing is wrong. Do NOT wrap the response in code fences.\n\n" +
		"Rows: " + string(raw) + "\n"
}

// cleanModelJSON strips Markdown fences and any text around the outermost
// JSON value delimited by first and last.
func cleanModelJSON(raw string, first, last byte) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx > 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)
	if start := strings.IndexByte(s, first); start != -1 {
		if end := strings.LastIndexByte(s, last); end > start {
			s = s[start : end+1]
		}
	}
	return strings.TrimSpace(s)
}
