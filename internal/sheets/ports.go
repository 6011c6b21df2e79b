// Package sheets defines the outbound port for the expense ledger export.
package sheets

import (
	"context"

	"expensed/internal/amqp"
)

// LedgerAppender writes one row per exported expense event.
type LedgerAppender interface {
	Append(ctx context.Context, msg *amqp.ExpenseEventMessage) (rowRef string, err error)
}
