package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
)

// voucherTemplate is one balanced pair of lines repeated across periods.
type voucherTemplate struct {
	summary      string
	debitCode    string
	debitName    string
	creditCode   string
	creditName   string
	department   string
	counterparty string
	amount       string
}

var templates = []voucherTemplate{
	{"差旅费报销 北京出差", "6602", "管理费用", "1001", "库存现金", "D01", "", "1280.00"},
	{"销售收入 租赁合同", "1122", "应收账款", "6001", "主营业务收入", "D02", "华东租赁有限公司", "58000.00"},
	{"办公用品采购", "6602", "管理费用", "2202", "应付账款", "D01", "晨光文具", "436.50"},
	{"设备维修费", "5101", "制造费用", "1002", "银行存款", "D03", "远大设备维修", "3200.00"},
	{"利息收入", "1002", "银行存款", "6603", "财务费用", "D04", "招商银行", "87.35"},
	{"差旅费报销 上海客户拜访", "6601", "销售费用", "1001", "库存现金", "D02", "", "2150.00"},
}

func main() {
	entityID := "demo"
	if len(os.Args) > 1 {
		entityID = os.Args[1]
	}

	ctx := context.Background()
	cfg, err := app.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := app.NewLogger(cfg)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer redisClient.Close()

	repo, closeRepo, err := app.OpenRepository(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("open repository: %v", err)
	}
	defer closeRepo()

	svc, _ := app.NewLedgerService(cfg, repo, redisClient)
	rows := demoRows(cfg.Categories())
	if err := svc.ImportRows(ctx, entityID, rows); err != nil {
		log.Fatalf("seed rows: %v", err)
	}
	fmt.Printf("→ Seeded %d rows into %s\n", len(rows), entityID)
}

// demoRows builds three months of balanced vouchers plus one deliberately
// unbalanced voucher for the scan job to find.
func demoRows(cfg ledger.CategoryConfig) []ledger.Row {
	var rows []ledger.Row
	seq := 0
	for month := 1; month <= 3; month++ {
		period := fmt.Sprintf("2024-%02d", month)
		for i, tpl := range templates {
			seq++
			voucherNo := fmt.Sprintf("记-%02d%03d", month, i+1)
			date := fmt.Sprintf("%s-%02d", period, 3+i*4)
			amount := decimal.RequireFromString(tpl.amount).Mul(decimal.NewFromInt(int64(month)))
			base := ledger.Row{
				Period:         period,
				Date:           date,
				VoucherNo:      voucherNo,
				Department:     tpl.department,
				DepartmentName: cfg.Departments[tpl.department],
				Counterparty:   tpl.counterparty,
				Summary:        tpl.summary,
			}
			debit := base
			debit.ID = "r" + strconv.Itoa(seq) + "-d"
			debit.SubjectCode, debit.SubjectName = tpl.debitCode, tpl.debitName
			debit.DebitAmount = amount
			credit := base
			credit.ID = "r" + strconv.Itoa(seq) + "-c"
			credit.SubjectCode, credit.SubjectName = tpl.creditCode, tpl.creditName
			credit.CreditAmount = amount
			rows = append(rows, debit, credit)
		}
	}
	rows = append(rows,
		ledger.Row{ID: "bad-d", Period: "2024-03", Date: "2024-03-28", VoucherNo: "记-03999", SubjectCode: "6602",
			SubjectName: "管理费用", Summary: "招待费", DebitAmount: decimal.RequireFromString("100.00")},
		ledger.Row{ID: "bad-c", Period: "2024-03", Date: "2024-03-28", VoucherNo: "记-03999", SubjectCode: "1001",
			SubjectName: "库存现金", Summary: "招待费", CreditAmount: decimal.RequireFromString("90.00")},
	)
	return rows
}
