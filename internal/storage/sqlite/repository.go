// Package sqlite is the SQLite storage backend. Amounts are stored as
// decimal strings to keep the arithmetic exact, dates as "YYYY-MM-DD" text.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"expensed/internal/core"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(dbPath string) (*Repository, error) {
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

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) CreateUser(ctx context.Context, u core.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		u.ID, u.Username, u.PasswordHash, u.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: username %q", core.ErrConflict, u.Username)
		}
		return fmt.Errorf("%w: insert user: %v", core.ErrStorage, err)
	}
	return nil
}

func (r *Repository) GetUserByUsername(ctx context.Context, username string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	return scanUser(row)
}

func (r *Repository) GetUserByID(ctx context.Context, id string) (core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func scanUser(row *sql.Row) (core.User, error) {
	var u core.User
	var createdAt string
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, fmt.Errorf("%w: user", core.ErrNotFound)
	}
	if err != nil {
		return core.User{}, fmt.Errorf("%w: scan user: %v", core.ErrStorage, err)
	}
	u.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	return u, nil
}

func (r *Repository) InsertExpense(ctx context.Context, e core.Expense) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (id, owner_id, description, amount, category, date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.OwnerID, e.Description, e.Amount.String(), e.Category,
		e.Date.String(), e.CreatedAt.UTC().Format(time.RFC3339Nano), nullableTime(e.UpdatedAt))
	if err != nil {
		return fmt.Errorf("%w: insert expense: %v", core.ErrStorage, err)
	}
	return nil
}

func (r *Repository) ListExpensesByOwner(ctx context.Context, ownerID string) ([]core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, description, amount, category, date, created_at, updated_at
		 FROM expenses WHERE owner_id = ? ORDER BY created_at, id`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("%w: list expenses: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate expenses: %v", core.ErrStorage, err)
	}
	return expenses, nil
}

func (r *Repository) GetExpenseByOwner(ctx context.Context, ownerID, expenseID string) (core.Expense, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, owner_id, description, amount, category, date, created_at, updated_at
		 FROM expenses WHERE owner_id = ? AND id = ?`, ownerID, expenseID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: get expense: %v", core.ErrStorage, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return core.Expense{}, fmt.Errorf("%w: get expense: %v", core.ErrStorage, err)
		}
		return core.Expense{}, fmt.Errorf("%w: expense", core.ErrNotFound)
	}
	return scanExpense(rows)
}

func (r *Repository) ReplaceExpense(ctx context.Context, e core.Expense) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, category = ?, date = ?, updated_at = ?
		 WHERE owner_id = ? AND id = ?`,
		e.Description, e.Amount.String(), e.Category, e.Date.String(),
		nullableTime(e.UpdatedAt), e.OwnerID, e.ID)
	if err != nil {
		return fmt.Errorf("%w: update expense: %v", core.ErrStorage, err)
	}
	return requireOneRow(res)
}

func (r *Repository) DeleteExpense(ctx context.Context, ownerID, expenseID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM expenses WHERE owner_id = ? AND id = ?`, ownerID, expenseID)
	if err != nil {
		return fmt.Errorf("%w: delete expense: %v", core.ErrStorage, err)
	}
	return requireOneRow(res)
}

func requireOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: rows affected: %v", core.ErrStorage, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: expense", core.ErrNotFound)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var e core.Expense
	var amount, date, createdAt string
	var updatedAt sql.NullString
	if err := row.Scan(&e.ID, &e.OwnerID, &e.Description, &amount, &e.Category, &date, &createdAt, &updatedAt); err != nil {
		return core.Expense{}, fmt.Errorf("%w: scan expense: %v", core.ErrStorage, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: decode amount %q: %v", core.ErrStorage, amount, err)
	}
	e.Amount = amt
	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("%w: decode date %q: %v", core.ErrStorage, date, err)
	}
	e.Date = d
	e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if updatedAt.Valid {
		e.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt.String)
	}
	return e, nil
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func isUniqueViolation(err error) bool {
	// modernc.org/sqlite surfaces constraint failures in the error text.
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
