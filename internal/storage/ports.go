// Package storage defines the persistence ports implemented by the jsonfile
// and sqlite backends.
package storage

import (
	"context"

	"expensed/internal/core"
)

type (
	// UserRepository persists accounts. Usernames are unique and
	// case-sensitive; CreateUser fails with core.ErrConflict on a duplicate.
	UserRepository interface {
		CreateUser(ctx context.Context, u core.User) error
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		GetUserByID(ctx context.Context, id string) (core.User, error)
	}

	// ExpenseRepository persists expense records. Every owner-scoped lookup
	// treats "missing" and "owned by someone else" identically: both return
	// core.ErrNotFound, so callers cannot probe other owners' ids.
	ExpenseRepository interface {
		InsertExpense(ctx context.Context, e core.Expense) error
		ListExpensesByOwner(ctx context.Context, ownerID string) ([]core.Expense, error)
		GetExpenseByOwner(ctx context.Context, ownerID, expenseID string) (core.Expense, error)
		ReplaceExpense(ctx context.Context, e core.Expense) error
		DeleteExpense(ctx context.Context, ownerID, expenseID string) error
	}

	// Repository is the combined backend surface produced by the factory.
	Repository interface {
		UserRepository
		ExpenseRepository
		Close() error
	}
)
