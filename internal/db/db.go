// Файл: internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // драйвер "pgx" (DB_DRIVER=pgx)
	_ "github.com/lib/pq"              // драйвер "postgres" (по умолчанию)
)

// Store - хранилище PostgreSQL. Все операции фильтруются по арендатору,
// а многополевые изменения выполняются одним условным UPDATE или одной транзакцией.
type Store struct {
	DB  *sql.DB
	now func() time.Time
}

// New оборачивает готовое подключение (в тестах - go-sqlmock).
func New(conn *sql.DB) *Store {
	return &Store{DB: conn, now: time.Now}
}

// Open открывает пул соединений и проверяет подключение.
// driver: "postgres" (lib/pq) или "pgx" (jackc/pgx).
func Open(ctx context.Context, driver, databaseURL string) (*Store, error) {
	conn, err := sql.Open(driver, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	conn.SetMaxOpenConns(50)
	conn.SetMaxIdleConns(20)
	conn.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка проверки соединения с базой данных: %w", err)
	}

	log.Printf("Успешное подключение к базе данных (драйвер %s).", driver)
	return New(conn), nil
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	return s.DB.Close()
}

// Ping проверяет доступность базы (проба для breaker).
func (s *Store) Ping(ctx context.Context) error {
	if err := s.DB.PingContext(ctx); err != nil {
		return classify("ping", err)
	}
	return nil
}

const createTablesSQL = `
        CREATE TABLE IF NOT EXISTS delivery_requests (
            id UUID PRIMARY KEY,
            tenant_id TEXT NOT NULL,
            customer_id TEXT,
            customer_name TEXT NOT NULL DEFAULT '',
            customer_phone TEXT NOT NULL DEFAULT '',
            pickup_address TEXT NOT NULL CHECK (pickup_address <> ''),
            delivery_address TEXT NOT NULL CHECK (delivery_address <> ''),
            payment_method TEXT NOT NULL CHECK (payment_method IN ('cash', 'card', 'invoice')),
            special_instructions TEXT,
            status TEXT NOT NULL DEFAULT 'available'
                CHECK (status IN ('available', 'claimed', 'in_progress', 'completed')),
            claimed_by_driver TEXT,
            claimed_at TIMESTAMPTZ,
            driver_notes TEXT,
            completed_by TEXT,
            completed_at TIMESTAMPTZ,
            used_free_delivery BOOLEAN NOT NULL DEFAULT FALSE,
            payment_status TEXT NOT NULL DEFAULT 'pending',
            payment_reference TEXT,
            invoice_reference TEXT,
            total_amount DOUBLE PRECISION,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            CONSTRAINT delivery_requests_claim_consistency CHECK (
                (status IN ('claimed', 'in_progress')) = (claimed_by_driver IS NOT NULL)
            ),
            CONSTRAINT delivery_requests_customer_or_guest CHECK (
                customer_id IS NOT NULL OR (customer_name <> '' AND customer_phone <> '')
            )
        );
        CREATE TABLE IF NOT EXISTS staff (
            id TEXT NOT NULL,
            tenant_id TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('driver', 'dispatcher', 'admin')),
            display_name TEXT NOT NULL,
            phone TEXT,
            is_on_duty BOOLEAN NOT NULL DEFAULT FALSE,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (tenant_id, id)
        );
        CREATE TABLE IF NOT EXISTS loyalty_accounts (
            customer_id TEXT NOT NULL,
            tenant_id TEXT NOT NULL,
            loyalty_points INTEGER NOT NULL DEFAULT 0 CHECK (loyalty_points >= 0),
            free_delivery_credits INTEGER NOT NULL DEFAULT 0 CHECK (free_delivery_credits >= 0),
            total_deliveries INTEGER NOT NULL DEFAULT 0 CHECK (total_deliveries >= 0),
            updated_at TIMESTAMPTZ NOT NULL,
            PRIMARY KEY (customer_id, tenant_id)
        );
`

const createIndexesSQL = `
        CREATE INDEX IF NOT EXISTS idx_delivery_requests_tenant_status ON delivery_requests(tenant_id, status, created_at);
        CREATE INDEX IF NOT EXISTS idx_delivery_requests_tenant_driver ON delivery_requests(tenant_id, claimed_by_driver);
        CREATE INDEX IF NOT EXISTS idx_delivery_requests_tenant_customer ON delivery_requests(tenant_id, customer_id);
`

// Каждая вставка и изменение строки публикуется в канал row_changes (LISTEN/NOTIFY),
// откуда его забирает changefeed.Relay.
const changeFeedSQL = `
        CREATE OR REPLACE FUNCTION notify_row_change() RETURNS trigger AS $$
        DECLARE
            payload JSONB;
        BEGIN
            payload := jsonb_build_object(
                'table', TG_TABLE_NAME,
                'op', TG_OP,
                'id', COALESCE(to_jsonb(NEW)->>'id', to_jsonb(NEW)->>'customer_id'),
                'tenant_id', NEW.tenant_id,
                'status', to_jsonb(NEW)->>'status'
            );
            PERFORM pg_notify('row_changes', payload::text);
            RETURN NEW;
        END;
        $$ LANGUAGE plpgsql;
        DROP TRIGGER IF EXISTS delivery_requests_notify ON delivery_requests;
        CREATE TRIGGER delivery_requests_notify AFTER INSERT OR UPDATE ON delivery_requests
            FOR EACH ROW EXECUTE FUNCTION notify_row_change();
        DROP TRIGGER IF EXISTS staff_notify ON staff;
        CREATE TRIGGER staff_notify AFTER INSERT OR UPDATE ON staff
            FOR EACH ROW EXECUTE FUNCTION notify_row_change();
        DROP TRIGGER IF EXISTS loyalty_accounts_notify ON loyalty_accounts;
        CREATE TRIGGER loyalty_accounts_notify AFTER INSERT OR UPDATE ON loyalty_accounts
            FOR EACH ROW EXECUTE FUNCTION notify_row_change();
`

// Migrate создаёт таблицы, индексы и триггеры ленты изменений.
func (s *Store) Migrate(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %w", err)
	}
	defer tx.Rollback()

	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	if _, err = tx.ExecContext(ctx, changeFeedSQL); err != nil {
		return fmt.Errorf("ошибка создания триггеров ленты изменений: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции миграции: %w", err)
	}
	log.Println("Таблицы и триггеры созданы или уже существуют.")

	// Индексы создаются по одному, ошибка одного не мешает остальным
	for _, stmt := range strings.Split(strings.TrimSpace(createIndexesSQL), ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, errIdx := s.DB.ExecContext(ctx, stmt); errIdx != nil {
			log.Printf("Ошибка создания индекса (%s): %v", stmt, errIdx)
		}
	}
	log.Println("Миграция базы данных завершена.")
	return nil
}
