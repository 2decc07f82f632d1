// Package loyalty ведёт баланс баллов и бесплатных доставок клиента у арендатора.
package loyalty

import (
	"context"
	"errors"
	"log"
	"strings"

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/models"
)

// Store - операции хранилища, которые нужны леджеру.
// AccrueLoyalty обязан выполнить чтение-изменение-запись атомарно для пары (customer, tenant).
type Store interface {
	GetLoyaltyAccount(ctx context.Context, tenantID, customerID string) (*models.LoyaltyAccount, error)
	AccrueLoyalty(ctx context.Context, accrual models.Accrual) (*models.LoyaltyAccount, error)
}

// ThresholdSource отдаёт порог начисления бесплатной доставки для арендатора.
// Значение < 1 означает "не задан".
type ThresholdSource interface {
	LoyaltyThreshold(tenantID string) int
}

// Apply применяет одно начисление к балансу и возвращает новый баланс.
// Вызывающий код отвечает за атомарность записи результата.
func Apply(account models.LoyaltyAccount, usedFreeDelivery bool, threshold int) models.LoyaltyAccount {
	if threshold < 1 {
		threshold = constants.DEFAULT_LOYALTY_THRESHOLD
	}

	account.TotalDeliveries++
	if usedFreeDelivery {
		if account.FreeDeliveryCredits > 0 {
			account.FreeDeliveryCredits--
		}
		return account
	}

	account.LoyaltyPoints++
	// Цикл нужен только если порог арендатора уменьшили после накопления баллов.
	for account.LoyaltyPoints >= threshold {
		account.FreeDeliveryCredits++
		account.LoyaltyPoints -= threshold
	}
	return account
}

// Ledger - программа лояльности поверх хранилища.
type Ledger struct {
	store            Store
	thresholds       ThresholdSource
	defaultThreshold int
}

// NewLedger создаёт леджер. thresholds может быть nil.
func NewLedger(store Store, thresholds ThresholdSource, defaultThreshold int) *Ledger {
	if defaultThreshold < 1 {
		defaultThreshold = constants.DEFAULT_LOYALTY_THRESHOLD
	}
	return &Ledger{store: store, thresholds: thresholds, defaultThreshold: defaultThreshold}
}

// Threshold возвращает действующий порог для арендатора.
func (l *Ledger) Threshold(tenantID string) int {
	if l.thresholds != nil {
		if t := l.thresholds.LoyaltyThreshold(tenantID); t >= 1 {
			return t
		}
	}
	return l.defaultThreshold
}

// Prepare собирает начисление для завершённой заявки.
// Для гостевых заявок (без customerID) возвращает nil: начислять некому.
func (l *Ledger) Prepare(tenantID, customerID string, usedFreeDelivery bool) *models.Accrual {
	if strings.TrimSpace(customerID) == "" {
		return nil
	}
	return &models.Accrual{
		CustomerID:       customerID,
		TenantID:         tenantID,
		UsedFreeDelivery: usedFreeDelivery,
		Threshold:        l.Threshold(tenantID),
	}
}

// Accrue начисляет одну доставку клиенту.
func (l *Ledger) Accrue(ctx context.Context, tenantID, customerID string, usedFreeDelivery bool) (*models.LoyaltyAccount, error) {
	if tenantID == "" {
		return nil, apperr.Validation("не указан арендатор")
	}
	accrual := l.Prepare(tenantID, customerID, usedFreeDelivery)
	if accrual == nil {
		return nil, apperr.Validation("не указан клиент для начисления")
	}

	account, err := l.store.AccrueLoyalty(ctx, *accrual)
	if err != nil {
		log.Printf("Ledger.Accrue: ошибка начисления клиенту %s (арендатор %s): %v", customerID, tenantID, err)
		return nil, err
	}
	log.Printf("Ledger.Accrue: клиент %s (арендатор %s): баллы=%d, бесплатные=%d, всего=%d",
		customerID, tenantID, account.LoyaltyPoints, account.FreeDeliveryCredits, account.TotalDeliveries)
	return account, nil
}

// account возвращает баланс клиента; отсутствующий счёт считается нулевым.
func (l *Ledger) account(ctx context.Context, tenantID, customerID string) (models.LoyaltyAccount, error) {
	acc, err := l.store.GetLoyaltyAccount(ctx, tenantID, customerID)
	if errors.Is(err, apperr.ErrNotFound) {
		return models.LoyaltyAccount{CustomerID: customerID, TenantID: tenantID}, nil
	}
	if err != nil {
		return models.LoyaltyAccount{}, err
	}
	return *acc, nil
}

// Eligible сообщает, есть ли у клиента бесплатная доставка. Только чтение.
func (l *Ledger) Eligible(ctx context.Context, tenantID, customerID string) (bool, error) {
	if strings.TrimSpace(customerID) == "" {
		return false, nil
	}
	acc, err := l.account(ctx, tenantID, customerID)
	if err != nil {
		return false, err
	}
	return acc.FreeDeliveryCredits > 0, nil
}

// Status возвращает представление баланса для клиента.
func (l *Ledger) Status(ctx context.Context, tenantID, customerID string) (*models.LoyaltyStatus, error) {
	if strings.TrimSpace(customerID) == "" {
		return nil, apperr.Validation("не указан клиент")
	}
	acc, err := l.account(ctx, tenantID, customerID)
	if err != nil {
		return nil, err
	}

	threshold := l.Threshold(tenantID)
	until := threshold - acc.LoyaltyPoints
	if until < 1 {
		until = 1
	}
	return &models.LoyaltyStatus{
		Points:                    acc.LoyaltyPoints,
		Credits:                   acc.FreeDeliveryCredits,
		TotalDeliveries:           acc.TotalDeliveries,
		Eligible:                  acc.FreeDeliveryCredits > 0,
		DeliveriesUntilNextCredit: until,
		Threshold:                 threshold,
	}, nil
}
