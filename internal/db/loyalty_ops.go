package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/loyalty"
	"Courier/internal/models"
)

// GetLoyaltyAccount возвращает баланс клиента у арендатора.
func (s *Store) GetLoyaltyAccount(ctx context.Context, tenantID, customerID string) (*models.LoyaltyAccount, error) {
	acc := models.LoyaltyAccount{CustomerID: customerID, TenantID: tenantID}
	err := s.DB.QueryRowContext(ctx, `
        SELECT loyalty_points, free_delivery_credits, total_deliveries, updated_at
        FROM loyalty_accounts WHERE customer_id = $1 AND tenant_id = $2`,
		customerID, tenantID).Scan(&acc.LoyaltyPoints, &acc.FreeDeliveryCredits, &acc.TotalDeliveries, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("счёт лояльности", customerID)
	}
	if err != nil {
		log.Printf("GetLoyaltyAccount: ошибка чтения баланса клиента %s: %v", customerID, err)
		return nil, classify("get loyalty account", err)
	}
	return &acc, nil
}

// AccrueLoyalty начисляет одну доставку в отдельной транзакции.
func (s *Store) AccrueLoyalty(ctx context.Context, accrual models.Accrual) (*models.LoyaltyAccount, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, classify("begin accrue", err)
	}
	defer tx.Rollback()

	acc, err := accrueTx(ctx, tx, accrual, s.now())
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		log.Printf("AccrueLoyalty: ошибка фиксации транзакции: %v", err)
		return nil, classify("commit accrue", err)
	}
	return acc, nil
}

// accrueTx - чтение-изменение-запись под блокировкой строки (SELECT ... FOR UPDATE).
// Параллельные начисления одному клиенту выполняются последовательно и не теряются.
func accrueTx(ctx context.Context, tx *sql.Tx, accrual models.Accrual, at time.Time) (*models.LoyaltyAccount, error) {
	if _, err := tx.ExecContext(ctx, `
        INSERT INTO loyalty_accounts (customer_id, tenant_id, loyalty_points, free_delivery_credits, total_deliveries, updated_at)
        VALUES ($1, $2, 0, 0, 0, $3)
        ON CONFLICT (customer_id, tenant_id) DO NOTHING`,
		accrual.CustomerID, accrual.TenantID, at); err != nil {
		return nil, classify("create loyalty account", err)
	}

	acc := models.LoyaltyAccount{CustomerID: accrual.CustomerID, TenantID: accrual.TenantID}
	if err := tx.QueryRowContext(ctx, `
        SELECT loyalty_points, free_delivery_credits, total_deliveries
        FROM loyalty_accounts WHERE customer_id = $1 AND tenant_id = $2
        FOR UPDATE`,
		accrual.CustomerID, accrual.TenantID).Scan(&acc.LoyaltyPoints, &acc.FreeDeliveryCredits, &acc.TotalDeliveries); err != nil {
		return nil, classify("lock loyalty account", err)
	}

	acc = loyalty.Apply(acc, accrual.UsedFreeDelivery, accrual.Threshold)
	acc.UpdatedAt = at

	if _, err := tx.ExecContext(ctx, `
        UPDATE loyalty_accounts
        SET loyalty_points = $3, free_delivery_credits = $4, total_deliveries = $5, updated_at = $6
        WHERE customer_id = $1 AND tenant_id = $2`,
		acc.CustomerID, acc.TenantID, acc.LoyaltyPoints, acc.FreeDeliveryCredits, acc.TotalDeliveries, at); err != nil {
		return nil, classify("update loyalty account", err)
	}
	return &acc, nil
}
