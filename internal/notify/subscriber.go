package notify

import (
	"context"
	"encoding/json"

	"food-order-system/internal/common/logger"
	"food-order-system/internal/common/mq"
	"food-order-system/internal/domain"
)

// RunSubscriber consumes the notifications queue and logs each message.
// A real deployment would hand these to push/email delivery.
func RunSubscriber(ctx context.Context, client *mq.Client, lg *logger.Logger) error {
	deliveries, err := client.Consume(mq.NotificationsQueue, "notification-subscriber", 1)
	if err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			var msg domain.NotificationMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				lg.Warn("notification_decode_failed", err, nil)
				_ = d.Nack(false, false)
				continue
			}
			lg.Info("notification_received", map[string]any{
				"user_id":  msg.UserID,
				"order_id": msg.OrderID,
				"kind":     string(msg.Kind),
			})
			_ = d.Ack(false)
		}
	}
}
