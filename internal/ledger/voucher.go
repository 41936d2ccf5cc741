package ledger

import (
	"slices"
)

// GroupByVoucher collects the rows carrying voucherNo. Debit-bearing rows are
// moved ahead of credit-bearing rows when the two are compared directly; any
// other pair keeps its input order.
func GroupByVoucher(rows []Row, voucherNo string) VoucherGroup {
	selected := make([]Row, 0)
	for _, row := range rows {
		if row.VoucherNo == voucherNo {
			selected = append(selected, row)
		}
	}
	slices.SortStableFunc(selected, compareDebitFirst)
	totals := Aggregate(selected)
	return VoucherGroup{
		VoucherNo:   voucherNo,
		Rows:        selected,
		TotalDebit:  totals.Debit,
		TotalCredit: totals.Credit,
		IsBalanced:  isBalanced(totals),
	}
}

func compareDebitFirst(a, b Row) int {
	if a.DebitAmount.IsPositive() && b.CreditAmount.IsPositive() {
		return -1
	}
	if a.CreditAmount.IsPositive() && b.DebitAmount.IsPositive() {
		return 1
	}
	return 0
}

func isBalanced(totals Totals) bool {
	return totals.Debit.Sub(totals.Credit).Abs().LessThan(balanceEpsilon)
}

// CheckVouchers returns every unbalanced voucher in order of first
// appearance. Rows without a voucher number are ignored.
func CheckVouchers(rows []Row) []VoucherGroup {
	order := make([]string, 0)
	grouped := make(map[string][]Row)
	for _, row := range rows {
		if row.VoucherNo == "" {
			continue
		}
		if _, ok := grouped[row.VoucherNo]; !ok {
			order = append(order, row.VoucherNo)
		}
		grouped[row.VoucherNo] = append(grouped[row.VoucherNo], row)
	}
	unbalanced := make([]VoucherGroup, 0)
	for _, voucherNo := range order {
		group := GroupByVoucher(grouped[voucherNo], voucherNo)
		if !group.IsBalanced {
			unbalanced = append(unbalanced, group)
		}
	}
	return unbalanced
}
