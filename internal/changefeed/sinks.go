package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"Courier/internal/constants"
	"Courier/internal/formatters"
	"Courier/internal/models"
	"Courier/internal/utils"
)

// Publisher публикует сообщение в exchange (rabbitmq.Client).
type Publisher interface {
	Publish(ctx context.Context, exchange, key string, body []byte, headers map[string]any) error
}

// AMQPSink публикует каждое событие в fanout-exchange row_changes.
type AMQPSink struct {
	pub      Publisher
	exchange string
	timeout  time.Duration
}

// NewAMQPSink создаёт приёмник RabbitMQ.
func NewAMQPSink(pub Publisher) *AMQPSink {
	return &AMQPSink{pub: pub, exchange: constants.CHANGEFEED_EXCHANGE, timeout: 5 * time.Second}
}

// Name реализует Sink.
func (s *AMQPSink) Name() string { return "amqp" }

// Handle реализует Sink.
func (s *AMQPSink) Handle(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	key := strings.ToLower(ev.Table + "." + ev.Op)
	return s.pub.Publish(ctx, s.exchange, key, body, map[string]any{
		"x-tenant-id": ev.TenantID,
		"x-source":    "courier-changefeed",
	})
}

// MessageSender отправляет текст в Telegram-чат (telegram_api.BotClient).
type MessageSender interface {
	SendText(chatID int64, text string) error
}

// ChatDirectory возвращает чат водителей арендатора (tenant.Directory).
type ChatDirectory interface {
	DriverChatID(tenantID string) int64
}

// DeliveryLookup читает заявку арендатора (lifecycle.Engine).
type DeliveryLookup interface {
	Get(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error)
}

// DriverNotifier сообщает в чат водителей арендатора о заявке, ставшей доступной:
// новой или возвращённой в очередь при уходе водителя со смены.
type DriverNotifier struct {
	sender     MessageSender
	chats      ChatDirectory
	deliveries DeliveryLookup
	publicURL  string
}

// NewDriverNotifier создаёт приёмник уведомлений водителям.
func NewDriverNotifier(sender MessageSender, chats ChatDirectory, deliveries DeliveryLookup, publicURL string) *DriverNotifier {
	return &DriverNotifier{sender: sender, chats: chats, deliveries: deliveries, publicURL: publicURL}
}

// Name реализует Sink.
func (n *DriverNotifier) Name() string { return "telegram" }

// Handle реализует Sink.
func (n *DriverNotifier) Handle(ctx context.Context, ev Event) error {
	if ev.Table != "delivery_requests" || ev.Status != constants.STATUS_AVAILABLE {
		return nil
	}
	chatID := n.chats.DriverChatID(ev.TenantID)
	if chatID == 0 {
		return nil
	}

	d, err := n.deliveries.Get(ctx, ev.TenantID, ev.ID)
	if err != nil {
		return fmt.Errorf("заявка %s для уведомления: %w", ev.ID, err)
	}
	// Заявку могли забрать, пока шло уведомление.
	if d.Status != constants.STATUS_AVAILABLE {
		return nil
	}
	link, _ := utils.TrackingLink(n.publicURL, d.ID)
	return n.sender.SendText(chatID, formatters.FormatDeliveryNoticeForDrivers(d, ev.Op != "INSERT", link))
}
