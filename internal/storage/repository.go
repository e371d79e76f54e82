// Package storage persists the ledger in SQLite. It owns the layout of
// accounts, transactions and budgets, and provides the single atomic unit
// the recurring processor relies on: occurrence insert, balance update and
// template advance either all commit or none do.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"ledgerd/internal/core"

	_ "modernc.org/sqlite"
)

// timeLayout is fixed-width so stored UTC timestamps compare correctly as
// text inside SQL predicates.
const timeLayout = "2006-01-02 15:04:05.000000000"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Writers queue instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000; PRAGMA foreign_keys = ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// withTx runs fn inside a transaction: all writes commit together or roll
// back together.
func (r *SQLiteRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func fmtNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.ParseInLocation(timeLayout, s, time.UTC)
}

func parseNullableTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateUser inserts a user.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, email, name) VALUES (?, ?, ?)`,
		u.ID, u.Email, u.Name)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// CreateAccount inserts an account. When the account is flagged default,
// any previous default for the same user is cleared in the same
// transaction so the at-most-one-default invariant holds.
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if a.IsDefault {
			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
				fmtTime(time.Now()), a.UserID); err != nil {
				return fmt.Errorf("clear previous default: %w", err)
			}
		}
		isDefault := 0
		if a.IsDefault {
			isDefault = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO accounts (id, user_id, name, balance_cents, is_default) VALUES (?, ?, ?, ?, ?)`,
			a.ID, a.UserID, a.Name, a.Balance.Cents, isDefault); err != nil {
			return fmt.Errorf("create account: %w", err)
		}
		return nil
	})
}

// SetDefaultAccount makes the given account the user's default, clearing
// the flag on all others atomically.
func (r *SQLiteRepository) SetDefaultAccount(ctx context.Context, userID, accountID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		now := fmtTime(time.Now())
		if _, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 0, updated_at = ? WHERE user_id = ? AND is_default = 1`,
			now, userID); err != nil {
			return fmt.Errorf("clear previous default: %w", err)
		}
		res, err := tx.ExecContext(ctx,
			`UPDATE accounts SET is_default = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
			now, accountID, userID)
		if err != nil {
			return fmt.Errorf("set default: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrNotFound
		}
		return nil
	})
}

// GetAccount returns an account by id.
func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	var (
		a         core.Account
		isDefault int
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, balance_cents, is_default FROM accounts WHERE id = ?`, id).
		Scan(&a.ID, &a.UserID, &a.Name, &a.Balance.Cents, &isDefault)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Account{}, fmt.Errorf("get account: %w", err)
	}
	a.IsDefault = isDefault == 1
	return a, nil
}

// CreateTransaction inserts a ledger entry or recurring template and
// applies its balance delta to the owning account in the same atomic unit.
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("validate transaction: %w", err)
	}
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertTransaction(ctx, tx, t); err != nil {
			return err
		}
		return applyBalanceDelta(ctx, tx, t.AccountID, t.BalanceDelta())
	})
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t core.Transaction) error {
	isRecurring := 0
	var interval any
	if t.IsRecurring {
		isRecurring = 1
		interval = string(t.Interval)
	}
	status := t.Status
	if status == "" {
		status = core.StatusCompleted
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO transactions
		   (id, user_id, account_id, kind, amount_cents, occurred_at, category,
		    description, status, is_recurring, recurring_interval, last_processed, next_due_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.AccountID, string(t.Kind), t.Amount.Cents,
		fmtTime(t.OccurredAt), t.Category, t.Description, string(status),
		isRecurring, interval, fmtNullableTime(t.LastProcessed), fmtNullableTime(t.NextDueDate))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func applyBalanceDelta(ctx context.Context, tx *sql.Tx, accountID string, delta core.Money) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE accounts SET balance_cents = balance_cents + ?, updated_at = ? WHERE id = ?`,
		delta.Cents, fmtTime(time.Now()), accountID)
	if err != nil {
		return fmt.Errorf("update balance: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("account %s: %w", accountID, core.ErrNotFound)
	}
	return nil
}

const transactionColumns = `id, user_id, account_id, kind, amount_cents, occurred_at,
	category, description, status, is_recurring, recurring_interval, last_processed, next_due_date`

func scanTransaction(scan func(dest ...any) error) (core.Transaction, error) {
	var (
		t             core.Transaction
		occurredAt    string
		isRecurring   int
		interval      sql.NullString
		lastProcessed sql.NullString
		nextDue       sql.NullString
	)
	err := scan(&t.ID, &t.UserID, &t.AccountID, (*string)(&t.Kind), &t.Amount.Cents,
		&occurredAt, &t.Category, &t.Description, (*string)(&t.Status),
		&isRecurring, &interval, &lastProcessed, &nextDue)
	if err != nil {
		return core.Transaction{}, err
	}
	t.IsRecurring = isRecurring == 1
	if interval.Valid {
		t.Interval = core.RecurrenceInterval(interval.String)
	}
	if t.OccurredAt, err = parseTime(occurredAt); err != nil {
		return core.Transaction{}, fmt.Errorf("parse occurred_at: %w", err)
	}
	if t.LastProcessed, err = parseNullableTime(lastProcessed); err != nil {
		return core.Transaction{}, fmt.Errorf("parse last_processed: %w", err)
	}
	if t.NextDueDate, err = parseNullableTime(nextDue); err != nil {
		return core.Transaction{}, fmt.Errorf("parse next_due_date: %w", err)
	}
	return t, nil
}

// FindDueRecurringTransactions returns the recurring templates due for
// processing at now: completed, and either never processed or past their
// next due date.
func (r *SQLiteRepository) FindDueRecurringTransactions(ctx context.Context, now time.Time) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+`
		 FROM transactions
		 WHERE is_recurring = 1
		   AND status = 'COMPLETED'
		   AND (last_processed IS NULL OR next_due_date <= ?)
		 ORDER BY next_due_date`,
		fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("query due recurring transactions: %w", err)
	}
	defer rows.Close()

	var due []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		due = append(due, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate due recurring transactions: %w", err)
	}
	return due, nil
}

// GetTransactionWithAccount fetches a transaction scoped to its owning
// user together with the account it posts to. A transaction owned by a
// different user is reported as not found, never leaked.
func (r *SQLiteRepository) GetTransactionWithAccount(ctx context.Context, id, userID string) (core.Transaction, core.Account, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND user_id = ?`,
		id, userID)
	t, err := scanTransaction(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, core.Account{}, core.ErrNotFound
	}
	if err != nil {
		return core.Transaction{}, core.Account{}, fmt.Errorf("get transaction: %w", err)
	}

	account, err := r.GetAccount(ctx, t.AccountID)
	if err != nil {
		return core.Transaction{}, core.Account{}, fmt.Errorf("get transaction account: %w", err)
	}
	return t, account, nil
}

// ApplyRecurringOccurrence executes the all-or-nothing unit for one due
// template: advance the template's schedule, insert the generated
// occurrence and move the account balance. The template advance is
// conditional on the due-ness predicate, so when two workers race on the
// same template exactly one commits; the other observes
// core.ErrAlreadyProcessed and rolls back with no partial state.
func (r *SQLiteRepository) ApplyRecurringOccurrence(ctx context.Context, template core.Transaction, occurrence core.Transaction, now time.Time) error {
	nextDue := core.NextDate(now, template.Interval)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE transactions
			 SET last_processed = ?, next_due_date = ?
			 WHERE id = ? AND user_id = ? AND is_recurring = 1
			   AND (last_processed IS NULL OR next_due_date <= ?)`,
			fmtTime(now), fmtTime(nextDue), template.ID, template.UserID, fmtTime(now))
		if err != nil {
			return fmt.Errorf("advance template: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return core.ErrAlreadyProcessed
		}

		if err := insertTransaction(ctx, tx, occurrence); err != nil {
			return err
		}
		return applyBalanceDelta(ctx, tx, occurrence.AccountID, occurrence.BalanceDelta())
	})
	if err != nil {
		return err
	}

	slog.InfoContext(ctx, "Applied recurring occurrence",
		"template_id", template.ID,
		"occurrence_id", occurrence.ID,
		"account_id", occurrence.AccountID,
		"delta_cents", occurrence.BalanceDelta().Cents,
		"next_due", nextDue.Format(time.RFC3339))
	return nil
}

// ListAccountTransactions returns all ledger rows for an account, newest
// first.
func (r *SQLiteRepository) ListAccountTransactions(ctx context.Context, accountID string) ([]core.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE account_id = ? ORDER BY occurred_at DESC, id`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("list account transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CreateBudget inserts a budget.
func (r *SQLiteRepository) CreateBudget(ctx context.Context, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return fmt.Errorf("validate budget: %w", err)
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO budgets (id, user_id, amount_cents, last_alert_sent) VALUES (?, ?, ?, ?)`,
		b.ID, b.UserID, b.Amount.Cents, fmtNullableTime(b.LastAlertSent))
	if err != nil {
		return fmt.Errorf("create budget: %w", err)
	}
	return nil
}

// BudgetWithAccount pairs a budget with its user's default account and
// the alert recipient.
type BudgetWithAccount struct {
	Budget  core.Budget
	Account core.Account
	User    core.User
}

// FindBudgetsWithDefaultAccounts returns every budget whose owning user
// has a default account. Users without one are skipped at the query
// level, mirroring the evaluator's skip rule.
func (r *SQLiteRepository) FindBudgetsWithDefaultAccounts(ctx context.Context) ([]BudgetWithAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT b.id, b.user_id, b.amount_cents, b.last_alert_sent,
		        a.id, a.user_id, a.name, a.balance_cents,
		        u.id, u.email, u.name
		 FROM budgets b
		 JOIN users u ON u.id = b.user_id
		 JOIN accounts a ON a.user_id = b.user_id AND a.is_default = 1
		 ORDER BY b.id`)
	if err != nil {
		return nil, fmt.Errorf("query budgets with default accounts: %w", err)
	}
	defer rows.Close()

	var out []BudgetWithAccount
	for rows.Next() {
		var (
			bwa       BudgetWithAccount
			lastAlert sql.NullString
		)
		if err := rows.Scan(
			&bwa.Budget.ID, &bwa.Budget.UserID, &bwa.Budget.Amount.Cents, &lastAlert,
			&bwa.Account.ID, &bwa.Account.UserID, &bwa.Account.Name, &bwa.Account.Balance.Cents,
			&bwa.User.ID, &bwa.User.Email, &bwa.User.Name,
		); err != nil {
			return nil, fmt.Errorf("scan budget: %w", err)
		}
		bwa.Account.IsDefault = true
		if bwa.Budget.LastAlertSent, err = parseNullableTime(lastAlert); err != nil {
			return nil, fmt.Errorf("parse last_alert_sent: %w", err)
		}
		out = append(out, bwa)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate budgets: %w", err)
	}
	return out, nil
}

// UpdateBudgetAlertTimestamp records when the alert for a budget was
// last dispatched.
func (r *SQLiteRepository) UpdateBudgetAlertTimestamp(ctx context.Context, budgetID string, sentAt time.Time) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE budgets SET last_alert_sent = ?, updated_at = ? WHERE id = ?`,
		fmtTime(sentAt), fmtTime(time.Now()), budgetID)
	if err != nil {
		return fmt.Errorf("update budget alert timestamp: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("budget %s: %w", budgetID, core.ErrNotFound)
	}
	return nil
}

// SumExpenses totals completed expense amounts for an account in the
// half-open range [from, to).
func (r *SQLiteRepository) SumExpenses(ctx context.Context, accountID string, from, to time.Time) (core.Money, error) {
	var cents int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0)
		 FROM transactions
		 WHERE account_id = ? AND kind = 'EXPENSE' AND status = 'COMPLETED'
		   AND occurred_at >= ? AND occurred_at < ?`,
		accountID, fmtTime(from), fmtTime(to)).Scan(&cents)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: cents}, nil
}

// MonthSummaries aggregates every user's completed ledger activity for
// one calendar month, for the monthly report.
func (r *SQLiteRepository) MonthSummaries(ctx context.Context, year int, month time.Month) ([]ReportRow, error) {
	from := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 1, 0)

	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.name,
		        COALESCE(SUM(CASE WHEN t.kind = 'INCOME' THEN t.amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN t.kind = 'EXPENSE' THEN t.amount_cents ELSE 0 END), 0)
		 FROM users u
		 LEFT JOIN transactions t
		   ON t.user_id = u.id AND t.status = 'COMPLETED'
		  AND t.occurred_at >= ? AND t.occurred_at < ?
		 GROUP BY u.id, u.email, u.name
		 ORDER BY u.id`,
		fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, fmt.Errorf("query month summaries: %w", err)
	}
	defer rows.Close()

	var out []ReportRow
	for rows.Next() {
		row := ReportRow{Summary: core.MonthSummary{Year: year, Month: int(month)}}
		if err := rows.Scan(&row.User.ID, &row.User.Email, &row.User.Name,
			&row.Summary.Income.Cents, &row.Summary.Expenses.Cents); err != nil {
			return nil, fmt.Errorf("scan month summary: %w", err)
		}
		row.Summary.UserID = row.User.ID
		out = append(out, row)
	}
	return out, rows.Err()
}

// ReportRow is one user's slice of the monthly report.
type ReportRow struct {
	User    core.User
	Summary core.MonthSummary
}
