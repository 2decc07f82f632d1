// Package changefeed ретранслирует изменения строк (LISTEN/NOTIFY) внешним наблюдателям.
// Ядро ничего не публикует явно: триггеры базы шлют уведомление на каждую запись.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"Courier/internal/constants"

	"github.com/lib/pq"
)

// Event - полезная нагрузка уведомления notify_row_change().
type Event struct {
	Table    string `json:"table"`
	Op       string `json:"op"`
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`
	Status   string `json:"status,omitempty"`
}

// Sink получает каждое событие. Ошибка логируется, повтор не выполняется.
type Sink interface {
	Name() string
	Handle(ctx context.Context, ev Event) error
}

// Relay раздаёт события всем приёмникам.
type Relay struct {
	sinks []Sink
}

// NewRelay создаёт ретранслятор.
func NewRelay(sinks ...Sink) *Relay {
	return &Relay{sinks: sinks}
}

// Dispatch разбирает полезную нагрузку и передаёт событие каждому приёмнику.
func (r *Relay) Dispatch(ctx context.Context, payload string) error {
	var ev Event
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		return fmt.Errorf("некорректное событие изменения %q: %w", payload, err)
	}
	for _, s := range r.sinks {
		if err := s.Handle(ctx, ev); err != nil {
			log.Printf("Relay: приёмник %s не обработал событие %s/%s %s: %v", s.Name(), ev.Table, ev.Op, ev.ID, err)
		}
	}
	return nil
}

// Run читает уведомления до отмены ctx или закрытия канала.
// nil-уведомление приходит после переподключения слушателя; пропущенные события не восстанавливаются.
func (r *Relay) Run(ctx context.Context, notifications <-chan *pq.Notification) {
	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notifications:
			if !ok {
				log.Println("Relay: канал уведомлений закрыт")
				return
			}
			if n == nil {
				log.Println("Relay: соединение слушателя восстановлено, часть событий могла быть пропущена")
				continue
			}
			if err := r.Dispatch(ctx, n.Extra); err != nil {
				log.Printf("Relay: %v", err)
			}
		}
	}
}

// Listen подписывается на канал row_changes через pq.Listener и запускает Run.
// Блокирует до отмены ctx.
func (r *Relay) Listen(ctx context.Context, databaseURL string) error {
	listener := pq.NewListener(databaseURL, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("Relay: событие слушателя %d: %v", ev, err)
		}
	})
	defer listener.Close()

	if err := listener.Listen(constants.CHANGEFEED_CHANNEL); err != nil {
		return fmt.Errorf("ошибка подписки на канал %s: %w", constants.CHANGEFEED_CHANNEL, err)
	}
	log.Printf("Relay: подписка на канал %s, приёмников: %d", constants.CHANGEFEED_CHANNEL, len(r.sinks))

	// Периодический пинг обнаруживает разрыв соединения без входящих уведомлений.
	go func() {
		ticker := time.NewTicker(90 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := listener.Ping(); err != nil {
					log.Printf("Relay: пинг слушателя: %v", err)
				}
			}
		}
	}()

	r.Run(ctx, listener.Notify)
	return nil
}
