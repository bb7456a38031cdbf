// Package worker contains the consumer side of the materialization event
// pipeline.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"fambudget/internal/amqp"
	"fambudget/internal/core"
	"fambudget/internal/services"
)

// NotificationStore persists notification rows produced from events.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n core.Notification) (int64, error)
}

// NotificationWorker turns materialization events into notification rows.
type NotificationWorker struct {
	store NotificationStore
}

func NewNotificationWorker(store NotificationStore) *NotificationWorker {
	return &NotificationWorker{store: store}
}

// HandleMaterialized processes a single materialization event from AMQP.
func (w *NotificationWorker) HandleMaterialized(ctx context.Context, msg *amqp.MaterializedMessage) error {
	date, err := core.ParseDate(msg.Date)
	if err != nil {
		return fmt.Errorf("parse event date: %w", err)
	}

	t := core.Transaction{
		ID:          msg.TransactionID,
		FamilyID:    msg.FamilyID,
		UserID:      msg.UserID,
		Kind:        core.Kind(msg.Kind),
		Amount:      core.Money{Cents: msg.AmountCents},
		Description: msg.Description,
		Date:        date,
	}

	id, err := w.store.CreateNotification(ctx, core.Notification{
		FamilyID: msg.FamilyID,
		UserID:   msg.UserID,
		Message:  services.MaterializedMessageText(t),
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}

	slog.InfoContext(ctx, "Notification created from materialization event",
		"notification_id", id,
		"transaction_id", msg.TransactionID,
		"rule_id", msg.RuleID,
		"family_id", msg.FamilyID)

	return nil
}
