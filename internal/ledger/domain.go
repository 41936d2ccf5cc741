package ledger

import (
	"errors"
	"strings"

	"github.com/shopspring/decimal"
)

// Category is the derived income/cost classification of a row.
type Category string

const (
	CategoryNone   Category = ""
	CategoryIncome Category = "income"
	CategoryCost   Category = "cost"
)

// ParseCategory maps free text onto a known category. Unknown values resolve to
// CategoryNone with ok=false.
func ParseCategory(value string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(value))) {
	case CategoryNone:
		return CategoryNone, true
	case CategoryIncome:
		return CategoryIncome, true
	case CategoryCost:
		return CategoryCost, true
	default:
		return CategoryNone, false
	}
}

// DefaultPageSize is used whenever a caller supplies a non-positive page size.
const DefaultPageSize = 20

// balanceEpsilon is the tolerance for voucher balance checks.
var balanceEpsilon = decimal.New(1, -2)

var (
	// ErrVoucherNotFound indicates no row carries the requested voucher number.
	ErrVoucherNotFound = errors.New("ledger: voucher not found")
	// ErrEntityRequired indicates a missing entity identifier.
	ErrEntityRequired = errors.New("ledger: entity id required")
	// ErrInvalidRow rejects an import containing a malformed row.
	ErrInvalidRow = errors.New("ledger: invalid row")
	// ErrImportUnsupported is returned when the backend is read-only.
	ErrImportUnsupported = errors.New("ledger: backend does not accept imports")
)

// Row is a single general ledger line item.
type Row struct {
	ID               string          `json:"id"`
	Period           string          `json:"period"`
	Date             string          `json:"date"`
	VoucherNo        string          `json:"voucherNo"`
	SubjectCode      string          `json:"subjectCode"`
	SubjectName      string          `json:"subjectName"`
	Department       string          `json:"department"`
	DepartmentName   string          `json:"departmentName"`
	ProjectCode      string          `json:"projectCode"`
	ProjectName      string          `json:"projectName"`
	SubAccountCode   string          `json:"subAccountCode"`
	SubAccountName   string          `json:"subAccountName"`
	Counterparty     string          `json:"counterparty"`
	CounterpartyName string          `json:"counterpartyName"`
	CounterpartyCode string          `json:"counterpartyCode"`
	Summary          string          `json:"summary"`
	DebitAmount      decimal.Decimal `json:"debitAmount"`
	CreditAmount     decimal.Decimal `json:"creditAmount"`
}

// Criteria captures the active filter state. Blank fields are unconstrained.
type Criteria struct {
	Period      string   `json:"period"`
	SubjectCode string   `json:"subjectCode"`
	Keyword     string   `json:"keyword"`
	Category    Category `json:"category"`
}

// IsZero reports whether no field constrains the row set.
func (c Criteria) IsZero() bool {
	return c.Period == "" && c.SubjectCode == "" && c.Keyword == "" && c.Category == CategoryNone
}

// CategoryConfig resolves categories and department display names.
type CategoryConfig struct {
	IncomeSubjectCodes []string          `json:"incomeSubjectCodes"`
	CostSubjectCodes   []string          `json:"costSubjectCodes"`
	Departments        map[string]string `json:"departments"`
}

// Totals holds debit/credit sums.
type Totals struct {
	Debit  decimal.Decimal `json:"totalDebit"`
	Credit decimal.Decimal `json:"totalCredit"`
}

// Window is one page of rows.
type Window struct {
	Rows       []Row `json:"rows"`
	Page       int   `json:"page"`
	PageSize   int   `json:"pageSize"`
	Total      int   `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// View is the derived state rendered by the table and consumed by exporters.
type View struct {
	Criteria    Criteria        `json:"criteria"`
	Rows        []Row           `json:"rows"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	Page        int             `json:"page"`
	PageSize    int             `json:"pageSize"`
	Total       int             `json:"total"`
	TotalPages  int             `json:"totalPages"`
}

// VoucherGroup collects all rows of one journal entry.
type VoucherGroup struct {
	VoucherNo   string          `json:"voucherNo"`
	Rows        []Row           `json:"rows"`
	TotalDebit  decimal.Decimal `json:"totalDebit"`
	TotalCredit decimal.Decimal `json:"totalCredit"`
	IsBalanced  bool            `json:"isBalanced"`
}

// Difference returns debit minus credit.
func (g VoucherGroup) Difference() decimal.Decimal {
	return g.TotalDebit.Sub(g.TotalCredit)
}

// Patch is a partial criteria update produced by the natural-language parser.
// Empty fields are unpopulated.
type Patch struct {
	Period      string `json:"period,omitempty"`
	SubjectCode string `json:"subjectCode,omitempty"`
	Keyword     string `json:"keyword,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Actionable reports whether at least one field is populated.
func (p Patch) Actionable() bool {
	return strings.TrimSpace(p.Period) != "" ||
		strings.TrimSpace(p.SubjectCode) != "" ||
		strings.TrimSpace(p.Keyword) != "" ||
		strings.TrimSpace(p.Category) != ""
}

// Stats is the summary handed to the chat responder.
type Stats struct {
	Count       int      `json:"count"`
	TotalDebit  string   `json:"totalDebit"`
	TotalCredit string   `json:"totalCredit"`
	Summaries   []string `json:"summaries"`
}
