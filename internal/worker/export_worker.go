// Package worker consumes expense events and exports them to the ledger.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expensed/internal/amqp"
	"expensed/internal/sheets"
)

// ExportWorker appends created expenses to the ledger. The ledger is
// append-only, so update and delete events are acknowledged without a write.
type ExportWorker struct {
	ledger sheets.LedgerAppender
}

func NewExportWorker(ledger sheets.LedgerAppender) *ExportWorker {
	return &ExportWorker{ledger: ledger}
}

// HandleEvent processes a single expense event message.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.ExpenseEventMessage) error {
	switch msg.Action {
	case amqp.ActionCreated:
		ref, err := w.ledger.Append(ctx, msg)
		if err != nil {
			return fmt.Errorf("append to ledger: %w", err)
		}
		slog.InfoContext(ctx, "Exported expense to ledger",
			"expense_id", msg.ID,
			"owner_id", msg.OwnerID,
			"sheets_ref", ref)
		return nil

	case amqp.ActionUpdated, amqp.ActionDeleted:
		slog.InfoContext(ctx, "Skipping non-create event, ledger is append-only",
			"action", msg.Action,
			"expense_id", msg.ID)
		return nil

	default:
		slog.WarnContext(ctx, "Unknown event action, dropping",
			"action", msg.Action,
			"expense_id", msg.ID)
		return nil
	}
}

// Run consumes expense events until ctx is cancelled.
func (w *ExportWorker) Run(ctx context.Context, client *amqp.Client) error {
	return client.ConsumeExpenseEvents(ctx, func(msg *amqp.ExpenseEventMessage) error {
		return w.HandleEvent(ctx, msg)
	})
}
