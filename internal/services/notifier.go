package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"fambudget/internal/amqp"
	"fambudget/internal/core"
)

// Notifier is told about each materialized transaction. Notification delivery
// is best effort: a failed notification never fails the materialization.
type Notifier interface {
	NotifyMaterialized(ctx context.Context, t core.Transaction, ruleID int64) error
}

// AMQPNotifier publishes materialization events to the message broker; the
// notification worker turns them into notification rows.
type AMQPNotifier struct {
	client *amqp.Client
}

func NewAMQPNotifier(client *amqp.Client) *AMQPNotifier {
	return &AMQPNotifier{client: client}
}

func (n *AMQPNotifier) NotifyMaterialized(ctx context.Context, t core.Transaction, ruleID int64) error {
	return n.client.PublishMaterialized(ctx, &amqp.MaterializedMessage{
		TransactionID: t.ID,
		RuleID:        ruleID,
		FamilyID:      t.FamilyID,
		UserID:        t.UserID,
		Kind:          string(t.Kind),
		AmountCents:   t.Amount.Cents,
		Description:   t.Description,
		Date:          t.Date.String(),
		Timestamp:     time.Now(),
	})
}

// NotificationStore persists notification rows.
type NotificationStore interface {
	CreateNotification(ctx context.Context, n core.Notification) (int64, error)
}

// DirectNotifier writes notification rows straight to storage. Used when no
// broker is configured, so processing degrades to a single-process setup
// instead of losing notifications.
type DirectNotifier struct {
	store NotificationStore
}

func NewDirectNotifier(store NotificationStore) *DirectNotifier {
	return &DirectNotifier{store: store}
}

func (n *DirectNotifier) NotifyMaterialized(ctx context.Context, t core.Transaction, ruleID int64) error {
	_, err := n.store.CreateNotification(ctx, core.Notification{
		FamilyID: t.FamilyID,
		UserID:   t.UserID,
		Message:  MaterializedMessageText(t),
	})
	if err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	slog.InfoContext(ctx, "Notification stored directly (no broker)",
		"family_id", t.FamilyID,
		"transaction_id", t.ID)
	return nil
}

// MaterializedMessageText renders the user-facing notification for a
// materialized transaction.
func MaterializedMessageText(t core.Transaction) string {
	return fmt.Sprintf("Recurring %s %q posted for %s (%.2f)",
		t.Kind, t.Description, t.Date.String(), t.Amount.Units())
}
