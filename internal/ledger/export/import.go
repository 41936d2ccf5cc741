package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

// ErrMissingColumn is returned when an import sheet lacks a required column.
var ErrMissingColumn = errors.New("export: missing column")

var requiredColumns = []string{"id", "voucherNo", "subjectCode", "debitAmount", "creditAmount"}

// ReadRowsCSV parses an import sheet whose header uses the row field names
// (id, period, date, voucherNo, ...). Unknown columns are ignored and blank
// amounts read as zero.
func ReadRowsCSV(r io.Reader) ([]ledger.Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("export: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrMissingColumn, name)
		}
	}

	rows := make([]ledger.Row, 0)
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("export: read line %d: %w", line, err)
		}
		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}
		debit, err := parseSheetAmount(field("debitAmount"))
		if err != nil {
			return nil, fmt.Errorf("export: line %d debit: %w", line, err)
		}
		credit, err := parseSheetAmount(field("creditAmount"))
		if err != nil {
			return nil, fmt.Errorf("export: line %d credit: %w", line, err)
		}
		rows = append(rows, ledger.Row{
			ID:               field("id"),
			Period:           field("period"),
			Date:             field("date"),
			VoucherNo:        field("voucherNo"),
			SubjectCode:      field("subjectCode"),
			SubjectName:      field("subjectName"),
			Department:       field("department"),
			DepartmentName:   field("departmentName"),
			ProjectCode:      field("projectCode"),
			ProjectName:      field("projectName"),
			SubAccountCode:   field("subAccountCode"),
			SubAccountName:   field("subAccountName"),
			Counterparty:     field("counterparty"),
			CounterpartyName: field("counterpartyName"),
			CounterpartyCode: field("counterpartyCode"),
			Summary:          field("summary"),
			DebitAmount:      debit,
			CreditAmount:     credit,
		})
	}
	return rows, nil
}

func parseSheetAmount(raw string) (decimal.Decimal, error) {
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
