// Package notify records user-facing order notifications and fans them
// out over RabbitMQ. Notification failures are logged and swallowed;
// they never fail the business operation that triggered them.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/mq"
	"food-order-system/internal/domain"
)

var titles = map[domain.NotificationKind]string{
	domain.NotifyOrderPlaced:     "Your order has been placed",
	domain.NotifyOrderReady:      "Your order is ready",
	domain.NotifyOrderDelivering: "Your order is on its way",
	domain.NotifyOrderCompleted:  "Your order is complete",
	domain.NotifyOrderCancelled:  "Your order was cancelled",
}

type Notifier struct {
	pool *pgxpool.Pool
	mq   *mq.Client
	lg   *logger.Logger
}

func New(pool *pgxpool.Pool, client *mq.Client, lg *logger.Logger) *Notifier {
	return &Notifier{pool: pool, mq: client, lg: lg}
}

// Notify stores the notification and publishes it. Best effort only.
func (n *Notifier) Notify(ctx context.Context, order domain.Order, kind domain.NotificationKind) {
	title, ok := titles[kind]
	if !ok {
		title = string(kind)
	}
	message := fmt.Sprintf("Order #%d: %s", order.ID, title)

	_, err := n.pool.Exec(ctx, `
INSERT INTO notifications (user_id, order_id, kind, title, message, created_at)
VALUES ($1, $2, $3, $4, $5, NOW())`,
		order.UserID, order.ID, string(kind), title, message)
	if err != nil {
		n.lg.Warn("notification_store_failed", err, map[string]any{"order_id": order.ID, "kind": string(kind)})
	}

	body, err := json.Marshal(domain.NotificationMessage{
		UserID:    order.UserID,
		OrderID:   order.ID,
		Kind:      kind,
		Status:    string(order.Status),
		Total:     order.TotalAmount.StringFixed(2),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		n.lg.Warn("notification_encode_failed", err, map[string]any{"order_id": order.ID})
		return
	}
	if err := n.mq.PublishPersistent(ctx, mq.NotificationsExchange, "", body); err != nil {
		n.lg.Warn("notification_publish_failed", err, map[string]any{"order_id": order.ID, "kind": string(kind)})
	}
}
