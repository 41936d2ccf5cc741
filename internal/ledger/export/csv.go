package export

import (
	"encoding/csv"
	"io"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

var rowHeader = []string{
	"Period", "Date", "Voucher No", "Subject Code", "Subject Name",
	"Department", "Project", "Sub Account", "Counterparty", "Summary",
	"Debit", "Credit",
}

// WriteRowsCSV serialises the full matched row set followed by a totals line.
// Department names are resolved through cfg when the row carries none.
func WriteRowsCSV(w io.Writer, rows []ledger.Row, cfg ledger.CategoryConfig) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()

	if err := writer.Write(rowHeader); err != nil {
		return err
	}
	for _, row := range rows {
		if err := writer.Write([]string{
			row.Period,
			row.Date,
			row.VoucherNo,
			row.SubjectCode,
			row.SubjectName,
			ledger.DepartmentName(row, cfg),
			firstNonEmpty(row.ProjectName, row.ProjectCode),
			firstNonEmpty(row.SubAccountName, row.SubAccountCode),
			firstNonEmpty(row.CounterpartyName, row.Counterparty),
			row.Summary,
			row.DebitAmount.StringFixed(2),
			row.CreditAmount.StringFixed(2),
		}); err != nil {
			return err
		}
	}
	totals := ledger.Aggregate(rows)
	record := make([]string, len(rowHeader))
	record[0] = "Total"
	record[len(record)-2] = totals.Debit.StringFixed(2)
	record[len(record)-1] = totals.Credit.StringFixed(2)
	if err := writer.Write(record); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
