package export

import (
	"bytes"
	"encoding/csv"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
)

func TestWriteRowsCSV(t *testing.T) {
	rows := []ledger.Row{
		{Period: "2024-01", Date: "2024-01-05", VoucherNo: "V1", SubjectCode: "6602", SubjectName: "管理费用",
			Department: "D01", ProjectCode: "P1", CounterpartyName: "晨光文具", Counterparty: "c1", Summary: "办公用品",
			DebitAmount: decimal.RequireFromString("436.5")},
		{Period: "2024-01", VoucherNo: "V1", SubjectCode: "2202", CreditAmount: decimal.RequireFromString("436.5")},
	}
	cfg := ledger.CategoryConfig{Departments: map[string]string{"D01": "行政部"}}

	var buf bytes.Buffer
	require.NoError(t, WriteRowsCSV(&buf, rows, cfg))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	require.Equal(t, rowHeader, records[0])
	require.Equal(t, "行政部", records[1][5])
	require.Equal(t, "P1", records[1][6])
	require.Equal(t, "晨光文具", records[1][8])
	require.Equal(t, "436.50", records[1][10])
	require.Equal(t, "0.00", records[1][11])
	require.Equal(t, []string{"Total", "", "", "", "", "", "", "", "", "", "436.50", "436.50"}, records[3])
}

func TestWriteRowsCSVEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteRowsCSV(&buf, nil, ledger.CategoryConfig{}))
	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "0.00", records[1][10])
}
