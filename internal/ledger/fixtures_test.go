package ledger

import "github.com/shopspring/decimal"

func amount(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func testConfig() CategoryConfig {
	return CategoryConfig{
		IncomeSubjectCodes: []string{"6001", "6051"},
		CostSubjectCodes:   []string{"51", "6401"},
		Departments:        map[string]string{"D01": "行政部", "D02": "销售部"},
	}
}

func sampleRows() []Row {
	return []Row{
		{ID: "1", Period: "2024-01", VoucherNo: "记-001", SubjectCode: "6602.01", SubjectName: "管理费用", Department: "D01",
			Summary: "差旅费报销", DebitAmount: amount("1280.00")},
		{ID: "2", Period: "2024-01", VoucherNo: "记-001", SubjectCode: "1001", SubjectName: "库存现金", Department: "D01",
			Summary: "差旅费报销", CreditAmount: amount("1280.00")},
		{ID: "3", Period: "2024-02", VoucherNo: "记-002", SubjectCode: "5101", SubjectName: "制造费用", Department: "D02",
			Summary: "设备维修", DebitAmount: amount("999")},
		{ID: "4", Period: "2024-02", VoucherNo: "记-002", SubjectCode: "1002", SubjectName: "银行存款",
			Summary: "设备维修", CreditAmount: amount("999")},
		{ID: "5", Period: "2024-12", VoucherNo: "记-003", SubjectCode: "6001", SubjectName: "主营业务收入",
			Counterparty: "华东租赁", Summary: "租金收入", CreditAmount: amount("58000")},
	}
}

func ids(rows []Row) []string {
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.ID)
	}
	return out
}
