package ledger

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

// Repository loads the immutable row set for an entity.
type Repository interface {
	ListRows(ctx context.Context, entityID string) ([]Row, error)
	ListEntities(ctx context.Context) ([]string, error)
}

// RowWriter replaces the row set of an entity in one transaction.
type RowWriter interface {
	ReplaceRows(ctx context.Context, entityID string, rows []Row) error
}

const (
	pgListRows = `SELECT id, COALESCE(period, ''), COALESCE(entry_date, ''), COALESCE(voucher_no, ''),
	COALESCE(subject_code, ''), COALESCE(subject_name, ''), COALESCE(department, ''), COALESCE(department_name, ''),
	COALESCE(project_code, ''), COALESCE(project_name, ''), COALESCE(sub_account_code, ''), COALESCE(sub_account_name, ''),
	COALESCE(counterparty, ''), COALESCE(counterparty_name, ''), COALESCE(counterparty_code, ''), COALESCE(summary, ''),
	debit_amount::text, credit_amount::text
FROM ledger_rows WHERE entity_id = $1 ORDER BY line_no, id`
	pgListEntities = `SELECT DISTINCT entity_id FROM ledger_rows ORDER BY entity_id`
	pgDeleteRows   = `DELETE FROM ledger_rows WHERE entity_id = $1`
	pgInsertRow    = `INSERT INTO ledger_rows (entity_id, line_no, id, period, entry_date, voucher_no,
	subject_code, subject_name, department, department_name, project_code, project_name,
	sub_account_code, sub_account_name, counterparty, counterparty_name, counterparty_code, summary,
	debit_amount, credit_amount)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19::numeric, $20::numeric)`

	sqliteListRows = `SELECT id, period, entry_date, voucher_no,
	subject_code, subject_name, department, department_name,
	project_code, project_name, sub_account_code, sub_account_name,
	counterparty, counterparty_name, counterparty_code, summary,
	debit_amount, credit_amount
FROM ledger_rows WHERE entity_id = ? ORDER BY line_no, id`
	sqliteListEntities = `SELECT DISTINCT entity_id FROM ledger_rows ORDER BY entity_id`
	sqliteDeleteRows   = `DELETE FROM ledger_rows WHERE entity_id = ?`
	sqliteInsertRow    = `INSERT INTO ledger_rows (entity_id, line_no, id, period, entry_date, voucher_no,
	subject_code, subject_name, department, department_name, project_code, project_name,
	sub_account_code, sub_account_name, counterparty, counterparty_name, counterparty_code, summary,
	debit_amount, credit_amount)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
)

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRow(sc rowScanner) (Row, error) {
	var row Row
	var debit, credit string
	if err := sc.Scan(
		&row.ID, &row.Period, &row.Date, &row.VoucherNo,
		&row.SubjectCode, &row.SubjectName, &row.Department, &row.DepartmentName,
		&row.ProjectCode, &row.ProjectName, &row.SubAccountCode, &row.SubAccountName,
		&row.Counterparty, &row.CounterpartyName, &row.CounterpartyCode, &row.Summary,
		&debit, &credit,
	); err != nil {
		return Row{}, err
	}
	row.DebitAmount = parseAmount(debit)
	row.CreditAmount = parseAmount(credit)
	return row, nil
}

// insertArgs lays out the insert parameters shared by both backends.
func insertArgs(entityID string, lineNo int, row Row) []any {
	return []any{
		entityID, lineNo, row.ID, row.Period, row.Date, row.VoucherNo,
		row.SubjectCode, row.SubjectName, row.Department, row.DepartmentName,
		row.ProjectCode, row.ProjectName, row.SubAccountCode, row.SubAccountName,
		row.Counterparty, row.CounterpartyName, row.CounterpartyCode, row.Summary,
		row.DebitAmount.String(), row.CreditAmount.String(),
	}
}

// parseAmount degrades malformed amounts to zero.
func parseAmount(raw string) decimal.Decimal {
	if raw == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero
	}
	return amount
}

// PostgresRepository reads rows from the ledger_rows table via pgx.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository constructs a Postgres backed repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// ListRows loads every row of the entity in ledger order.
func (r *PostgresRepository) ListRows(ctx context.Context, entityID string) ([]Row, error) {
	if entityID == "" {
		return nil, ErrEntityRequired
	}
	rows, err := r.pool.Query(ctx, pgListRows, entityID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query rows: %w", err)
	}
	defer rows.Close()
	out := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate rows: %w", err)
	}
	return out, nil
}

// ListEntities returns every entity that owns rows.
func (r *PostgresRepository) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, pgListEntities)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entities: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceRows swaps the entity's rows for the given set, keeping their order.
func (r *PostgresRepository) ReplaceRows(ctx context.Context, entityID string, rows []Row) error {
	if entityID == "" {
		return ErrEntityRequired
	}
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, pgDeleteRows, entityID); err != nil {
			return fmt.Errorf("ledger: delete rows: %w", err)
		}
		batch := &pgx.Batch{}
		for i, row := range rows {
			batch.Queue(pgInsertRow, insertArgs(entityID, i, row)...)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("ledger: insert rows: %w", err)
		}
		return nil
	})
}

// SQLiteRepository reads rows from a local SQLite file.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite migrates and opens the database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepository, error) {
	if err := MigrateSQLite(path); err != nil {
		return nil, err
	}
	handle, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: open sqlite: %w", err)
	}
	if err := handle.PingContext(ctx); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("ledger: ping sqlite: %w", err)
	}
	return &SQLiteRepository{db: handle}, nil
}

// NewSQLiteRepository wraps an already opened and migrated database.
func NewSQLiteRepository(handle *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: handle}
}

// Close releases the database handle.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// ListRows loads every row of the entity in ledger order.
func (r *SQLiteRepository) ListRows(ctx context.Context, entityID string) ([]Row, error) {
	if entityID == "" {
		return nil, ErrEntityRequired
	}
	rows, err := r.db.QueryContext(ctx, sqliteListRows, entityID)
	if err != nil {
		return nil, fmt.Errorf("ledger: query rows: %w", err)
	}
	defer rows.Close()
	out := make([]Row, 0)
	for rows.Next() {
		row, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("ledger: scan row: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ledger: iterate rows: %w", err)
	}
	return out, nil
}

// ListEntities returns every entity that owns rows.
func (r *SQLiteRepository) ListEntities(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, sqliteListEntities)
	if err != nil {
		return nil, fmt.Errorf("ledger: query entities: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ReplaceRows swaps the entity's rows for the given set, keeping their order.
func (r *SQLiteRepository) ReplaceRows(ctx context.Context, entityID string, rows []Row) (err error) {
	if entityID == "" {
		return ErrEntityRequired
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, sqliteDeleteRows, entityID); err != nil {
		return fmt.Errorf("ledger: delete rows: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, sqliteInsertRow)
	if err != nil {
		return fmt.Errorf("ledger: prepare insert: %w", err)
	}
	defer stmt.Close()
	for i, row := range rows {
		if _, err = stmt.ExecContext(ctx, insertArgs(entityID, i, row)...); err != nil {
			return fmt.Errorf("ledger: insert row %s: %w", row.ID, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}
