package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/odyssey-erp/odyssey-ledger/internal/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/ledger/export"
)

// RowService is the slice of the ledger service used by the row commands.
type RowService interface {
	ImportRows(ctx context.Context, entityID string, rows []ledger.Row) error
	UnbalancedVouchers(ctx context.Context, entityID string) ([]ledger.VoucherGroup, error)
}

// RowsCLI loads sheets into an entity and reports voucher balance problems.
type RowsCLI struct {
	service RowService
}

// NewRowsCLI constructs the helper.
func NewRowsCLI(service RowService) *RowsCLI {
	return &RowsCLI{service: service}
}

// Import reads an import sheet and replaces the entity's rows with it.
func (c *RowsCLI) Import(ctx context.Context, entityID string, sheet io.Reader) (int, error) {
	rows, err := export.ReadRowsCSV(sheet)
	if err != nil {
		return 0, err
	}
	if err := c.service.ImportRows(ctx, entityID, rows); err != nil {
		return 0, err
	}
	return len(rows), nil
}

// CheckVouchers prints every unbalanced voucher of the entity and returns how
// many were found.
func (c *RowsCLI) CheckVouchers(ctx context.Context, entityID string, out io.Writer) (int, error) {
	groups, err := c.service.UnbalancedVouchers(ctx, entityID)
	if err != nil {
		return 0, err
	}
	if len(groups) == 0 {
		_, err := fmt.Fprintf(out, "all vouchers of %s balance\n", entityID)
		return 0, err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VOUCHER\tDEBIT\tCREDIT\tDIFFERENCE")
	for _, group := range groups {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			group.VoucherNo,
			group.TotalDebit.StringFixed(2),
			group.TotalCredit.StringFixed(2),
			group.Difference().StringFixed(2),
		)
	}
	return len(groups), tw.Flush()
}
