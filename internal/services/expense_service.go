// Package services holds the expense business logic on top of the storage
// ports.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"expensed/internal/amqp"
	"expensed/internal/cache"
	"expensed/internal/core"
	"expensed/internal/log"
	"expensed/internal/storage"
)

// EventPublisher pushes expense events to the export pipeline. Implemented by
// *amqp.Client; nil disables publishing.
type EventPublisher interface {
	PublishExpenseEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error
}

// ExpenseInput carries the caller-supplied fields of a new expense. The owner
// and id are never part of the input.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Category    string
	Date        core.Date
}

type ExpenseService struct {
	expenses  storage.ExpenseRepository
	publisher EventPublisher
	summaries cache.Cache[core.Summary]
	logger    *log.Logger
}

func NewExpenseService(expenses storage.ExpenseRepository, publisher EventPublisher, summaries cache.Cache[core.Summary], logger *log.Logger) *ExpenseService {
	if summaries == nil {
		summaries = cache.NewLRUCache[core.Summary](256, time.Minute)
	}
	if logger == nil {
		logger = log.New(log.DefaultConfig()).WithComponent(log.ComponentExpense)
	}
	return &ExpenseService{
		expenses:  expenses,
		publisher: publisher,
		summaries: summaries,
		logger:    logger,
	}
}

// Create validates the input and stores a new expense owned by ownerID.
func (s *ExpenseService) Create(ctx context.Context, ownerID string, input ExpenseInput) (core.Expense, error) {
	e := core.Expense{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Description: strings.TrimSpace(input.Description),
		Amount:      input.Amount,
		Category:    strings.TrimSpace(input.Category),
		Date:        input.Date,
		CreatedAt:   time.Now().UTC(),
	}
	if e.Date.IsZero() {
		e.Date = core.Today()
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.expenses.InsertExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}

	s.summaries.Delete(ownerID)
	s.publish(ctx, amqp.ActionCreated, e)
	s.logger.InfoContext(ctx, "expense created",
		log.FieldExpenseID, e.ID, log.FieldOwnerID, ownerID)
	return e, nil
}

// List returns the owner's expenses in insertion order. No expenses is an
// empty slice, not an error.
func (s *ExpenseService) List(ctx context.Context, ownerID string) ([]core.Expense, error) {
	expenses, err := s.expenses.ListExpensesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	return expenses, nil
}

// Update applies a partial patch to an owned expense. Foreign ownership and
// non-existence report the same ErrNotFound.
func (s *ExpenseService) Update(ctx context.Context, ownerID, expenseID string, patch core.ExpensePatch) (core.Expense, error) {
	if err := patch.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.expenses.GetExpenseByOwner(ctx, ownerID, expenseID)
	if err != nil {
		return core.Expense{}, err
	}

	patch.Apply(&e)
	e.UpdatedAt = time.Now().UTC()
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	if err := s.expenses.ReplaceExpense(ctx, e); err != nil {
		return core.Expense{}, err
	}

	s.summaries.Delete(ownerID)
	s.publish(ctx, amqp.ActionUpdated, e)
	s.logger.InfoContext(ctx, "expense updated",
		log.FieldExpenseID, e.ID, log.FieldOwnerID, ownerID)
	return e, nil
}

// Delete permanently removes an owned expense.
func (s *ExpenseService) Delete(ctx context.Context, ownerID, expenseID string) error {
	e, err := s.expenses.GetExpenseByOwner(ctx, ownerID, expenseID)
	if err != nil {
		return err
	}
	if err := s.expenses.DeleteExpense(ctx, ownerID, expenseID); err != nil {
		return err
	}

	s.summaries.Delete(ownerID)
	s.publish(ctx, amqp.ActionDeleted, e)
	s.logger.InfoContext(ctx, "expense deleted",
		log.FieldExpenseID, expenseID, log.FieldOwnerID, ownerID)
	return nil
}

// Summarize aggregates the owner's expenses. Results are cached per owner;
// every mutation drops the owner's entry.
func (s *ExpenseService) Summarize(ctx context.Context, ownerID string) (core.Summary, error) {
	if summary, ok := s.summaries.Get(ownerID); ok {
		return summary, nil
	}

	expenses, err := s.expenses.ListExpensesByOwner(ctx, ownerID)
	if err != nil {
		return core.Summary{}, err
	}

	summary := core.Summary{
		Total:      decimal.Zero,
		Count:      len(expenses),
		Categories: make(map[string]decimal.Decimal),
	}
	for _, e := range expenses {
		summary.Total = summary.Total.Add(e.Amount)
		summary.Categories[e.Category] = summary.Categories[e.Category].Add(e.Amount)
	}

	s.summaries.Set(ownerID, summary)
	return summary, nil
}

// publish sends the event best-effort. Export must never fail a request, so
// errors are only logged.
func (s *ExpenseService) publish(ctx context.Context, action string, e core.Expense) {
	if s.publisher == nil {
		return
	}
	msg := amqp.NewExpenseEventMessage(action, e)
	if err := s.publisher.PublishExpenseEvent(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to publish expense event",
			log.FieldAction, action,
			log.FieldExpenseID, e.ID,
			log.FieldError, err.Error())
	}
}
