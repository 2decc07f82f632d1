// Package breaker кэширует результат проверки доступности хранилища.
package breaker

import (
	"context"
	"log"
	"sync"
	"time"
)

// ProbeFunc проверяет доступность хранилища (например, db.PingContext).
type ProbeFunc func(ctx context.Context) error

// Breaker возвращает закэшированный результат пробы в течение ttl.
// Проба выполняется вне блокировки; параллельные запросы во время пробы видят прежнее значение.
type Breaker struct {
	probe ProbeFunc
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	available bool
	lastErr   error
	checkedAt time.Time
	probing   bool
}

// New создаёт выключатель. now == nil означает time.Now.
func New(probe ProbeFunc, ttl time.Duration, now func() time.Time) *Breaker {
	if now == nil {
		now = time.Now
	}
	return &Breaker{probe: probe, ttl: ttl, now: now}
}

// Available сообщает, доступно ли хранилище, при необходимости выполняя пробу.
func (b *Breaker) Available(ctx context.Context) bool {
	b.mu.Lock()
	fresh := !b.checkedAt.IsZero() && b.now().Sub(b.checkedAt) < b.ttl
	if fresh || b.probing {
		available := b.available || b.checkedAt.IsZero()
		b.mu.Unlock()
		return available
	}
	b.probing = true
	b.mu.Unlock()

	err := b.probe(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	first := b.checkedAt.IsZero()
	b.probing = false
	// Проба прервана самим вызывающим: о базе ничего не узнали
	if err != nil && ctx.Err() != nil {
		return b.available || first
	}
	b.checkedAt = b.now()
	b.lastErr = err
	if err != nil {
		if b.available || first {
			log.Printf("Breaker: хранилище недоступно: %v", err)
		}
		b.available = false
		return false
	}
	if !b.available && !first {
		log.Println("Breaker: хранилище снова доступно")
	}
	b.available = true
	return true
}

// ReportFailure открывает выключатель на ttl после сбоя операции хранилища.
func (b *Breaker) ReportFailure(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.available {
		log.Printf("Breaker: операция хранилища завершилась сбоем, выключатель открыт на %s: %v", b.ttl, err)
	}
	b.available = false
	b.lastErr = err
	b.checkedAt = b.now()
}

// State возвращает последнее известное состояние без пробы.
func (b *Breaker) State() (available bool, checkedAt time.Time, lastErr error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.available, b.checkedAt, b.lastErr
}
