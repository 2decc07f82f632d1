// Package lifecycle реализует жизненный цикл заявки на доставку:
// available -> claimed -> in_progress -> completed, и возврат claimed-заявок при уходе водителя со смены.
package lifecycle

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/models"
	"Courier/internal/utils"

	"github.com/google/uuid"
)

// Store - операции хранилища заявок.
// Claim/Advance/Complete - условные записи: при нуле затронутых строк возвращается apperr.ErrConflict.
// CompleteDelivery записывает смену статуса и начисление (если accrual != nil) в одной транзакции.
type Store interface {
	InsertDelivery(ctx context.Context, d *models.DeliveryRequest) (*models.DeliveryRequest, error)
	GetDelivery(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error)
	ListDeliveries(ctx context.Context, tenantID string, f models.DeliveryFilter) ([]models.DeliveryRequest, error)
	ClaimDelivery(ctx context.Context, p models.ClaimParams) (*models.DeliveryRequest, error)
	AdvanceDelivery(ctx context.Context, p models.TransitionParams) (*models.DeliveryRequest, error)
	CompleteDelivery(ctx context.Context, p models.TransitionParams, accrual *models.Accrual) (*models.DeliveryRequest, error)
	ReleaseClaimedByDriver(ctx context.Context, tenantID, driverID string, at time.Time) ([]string, error)
}

// StaffLookup находит сотрудника арендатора.
type StaffLookup interface {
	GetStaff(ctx context.Context, tenantID, staffID string) (*models.StaffMember, error)
}

// Ledger - часть программы лояльности, нужная движку.
type Ledger interface {
	Eligible(ctx context.Context, tenantID, customerID string) (bool, error)
	Prepare(tenantID, customerID string, usedFreeDelivery bool) *models.Accrual
}

// Engine - движок жизненного цикла заявки. Не хранит изменяемого состояния.
type Engine struct {
	store  Store
	staff  StaffLookup
	ledger Ledger
	now    func() time.Time
}

// NewEngine создаёт движок.
func NewEngine(store Store, staff StaffLookup, ledger Ledger) *Engine {
	return &Engine{store: store, staff: staff, ledger: ledger, now: time.Now}
}

// WithClock подменяет часы (для тестов).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// Create проверяет данные и сохраняет заявку в статусе available.
func (e *Engine) Create(ctx context.Context, tenantID string, in models.NewDelivery) (*models.DeliveryRequest, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, apperr.Validation("не указан арендатор")
	}

	customerID := strings.TrimSpace(in.CustomerID)
	name := strings.TrimSpace(in.CustomerName)
	phone := strings.TrimSpace(in.CustomerPhone)
	if customerID == "" && (name == "" || phone == "") {
		return nil, apperr.Validation("нужен либо клиент, либо имя и телефон гостя")
	}
	if phone != "" {
		normalized, err := utils.ValidatePhoneNumber(phone)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		phone = normalized
	}

	pickup := strings.TrimSpace(in.PickupAddress)
	dropoff := strings.TrimSpace(in.DeliveryAddress)
	if pickup == "" || dropoff == "" {
		return nil, apperr.Validation("адреса забора и доставки обязательны")
	}

	method := strings.ToLower(strings.TrimSpace(in.PaymentMethod))
	if !constants.PaymentMethods[method] {
		return nil, apperr.Validation("неизвестный способ оплаты %q", in.PaymentMethod)
	}

	paymentStatus := strings.ToLower(strings.TrimSpace(in.PaymentStatus))
	if paymentStatus == "" {
		paymentStatus = constants.PAYMENT_STATUS_PENDING
	}
	if !constants.PaymentStatuses[paymentStatus] {
		return nil, apperr.Validation("неизвестный статус оплаты %q", in.PaymentStatus)
	}

	if in.UsedFreeDelivery {
		if customerID == "" {
			return nil, apperr.Validation("гостевая заявка не может использовать бесплатную доставку")
		}
		eligible, err := e.ledger.Eligible(ctx, tenantID, customerID)
		if err != nil {
			return nil, err
		}
		if !eligible {
			return nil, apperr.Validation("у клиента нет бесплатных доставок")
		}
	}

	d := &models.DeliveryRequest{
		ID:                  uuid.NewString(),
		TenantID:            tenantID,
		CustomerID:          models.NewNullString(customerID),
		CustomerName:        name,
		CustomerPhone:       phone,
		PickupAddress:       pickup,
		DeliveryAddress:     dropoff,
		PaymentMethod:       method,
		SpecialInstructions: models.NewNullString(strings.TrimSpace(in.SpecialInstructions)),
		Status:              constants.STATUS_AVAILABLE,
		UsedFreeDelivery:    in.UsedFreeDelivery,
		PaymentStatus:       paymentStatus,
		PaymentReference:    models.NewNullString(strings.TrimSpace(in.PaymentReference)),
		InvoiceReference:    models.NewNullString(strings.TrimSpace(in.InvoiceReference)),
		CreatedAt:           e.now(),
	}
	if in.TotalAmount != nil {
		if *in.TotalAmount < 0 {
			return nil, apperr.Validation("сумма заказа не может быть отрицательной")
		}
		d.TotalAmount.Float64 = *in.TotalAmount
		d.TotalAmount.Valid = true
	}

	created, err := e.store.InsertDelivery(ctx, d)
	if err != nil {
		log.Printf("Engine.Create: ошибка сохранения заявки (арендатор %s): %v", tenantID, err)
		return nil, err
	}
	log.Printf("Engine.Create: создана заявка %s (арендатор %s, гость: %t)", created.ID, tenantID, customerID == "")
	return created, nil
}

// Get возвращает заявку арендатора.
func (e *Engine) Get(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error) {
	if !utils.IsValidID(id) {
		return nil, apperr.NotFound("заявка", id)
	}
	return e.store.GetDelivery(ctx, tenantID, id)
}

// ListAvailable возвращает очередь доступных заявок арендатора.
func (e *Engine) ListAvailable(ctx context.Context, tenantID string) ([]models.DeliveryRequest, error) {
	return e.store.ListDeliveries(ctx, tenantID, models.DeliveryFilter{
		Statuses: []string{constants.STATUS_AVAILABLE},
	})
}

// ListForDriver возвращает активные заявки водителя.
func (e *Engine) ListForDriver(ctx context.Context, tenantID, driverID string) ([]models.DeliveryRequest, error) {
	return e.store.ListDeliveries(ctx, tenantID, models.DeliveryFilter{
		Statuses: []string{constants.STATUS_CLAIMED, constants.STATUS_IN_PROGRESS},
		DriverID: driverID,
	})
}

// ListForCustomer возвращает историю заявок клиента.
func (e *Engine) ListForCustomer(ctx context.Context, tenantID, customerID string) ([]models.DeliveryRequest, error) {
	return e.store.ListDeliveries(ctx, tenantID, models.DeliveryFilter{
		CustomerID:  customerID,
		NewestFirst: true,
	})
}

// List возвращает заявки арендатора по произвольному фильтру.
func (e *Engine) List(ctx context.Context, tenantID string, f models.DeliveryFilter) ([]models.DeliveryRequest, error) {
	for _, st := range f.Statuses {
		if _, ok := constants.StatusDisplayMap[st]; !ok {
			return nil, apperr.Validation("неизвестный статус %q", st)
		}
	}
	return e.store.ListDeliveries(ctx, tenantID, f)
}

// Claim закрепляет доступную заявку за водителем на смене.
func (e *Engine) Claim(ctx context.Context, tenantID, driverID, deliveryID string, notes *string) (*models.DeliveryRequest, error) {
	if !utils.IsValidID(deliveryID) {
		return nil, apperr.NotFound("заявка", deliveryID)
	}

	driver, err := e.staff.GetStaff(ctx, tenantID, driverID)
	if err != nil {
		return nil, err
	}
	if !utils.IsRoleOrHigher(driver.Role, constants.ROLE_DRIVER) {
		return nil, apperr.Forbidden("роль %s не может брать заявки", driver.Role)
	}
	if !driver.IsOnDuty {
		return nil, apperr.Forbidden("водитель %s не на смене", driverID)
	}

	claimed, err := e.store.ClaimDelivery(ctx, models.ClaimParams{
		TenantID:   tenantID,
		DeliveryID: deliveryID,
		DriverID:   driverID,
		Notes:      notes,
		At:         e.now(),
	})
	if errors.Is(err, apperr.ErrConflict) {
		// Ноль строк: либо заявки нет у арендатора, либо её уже забрали.
		if _, getErr := e.store.GetDelivery(ctx, tenantID, deliveryID); errors.Is(getErr, apperr.ErrNotFound) {
			return nil, getErr
		}
		log.Printf("Engine.Claim: водитель %s не успел забрать заявку %s", driverID, deliveryID)
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	log.Printf("Engine.Claim: заявка %s закреплена за водителем %s", deliveryID, driverID)
	return claimed, nil
}

// nextStatus - единственный допустимый следующий статус для водителя.
var nextStatus = map[string]string{
	constants.STATUS_CLAIMED:     constants.STATUS_IN_PROGRESS,
	constants.STATUS_IN_PROGRESS: constants.STATUS_COMPLETED,
}

// Advance переводит заявку на следующий этап или пересохраняет заметки без смены статуса.
// Действовать может только водитель, за которым закреплена заявка.
func (e *Engine) Advance(ctx context.Context, tenantID, driverID, deliveryID, newStatus string, notes *string) (*models.DeliveryRequest, error) {
	if !utils.IsValidID(deliveryID) {
		return nil, apperr.NotFound("заявка", deliveryID)
	}
	current, err := e.store.GetDelivery(ctx, tenantID, deliveryID)
	if err != nil {
		return nil, err
	}

	if !current.ClaimedByDriver.Valid {
		// Завершённую чужую заявку нельзя трогать так же, как и активную.
		if current.Status == constants.STATUS_COMPLETED && current.CompletedBy.Valid && current.CompletedBy.String != driverID {
			return nil, apperr.Forbidden("заявка %s выполнена другим водителем", deliveryID)
		}
		return nil, apperr.InvalidTransition(current.Status, newStatus)
	}
	if current.ClaimedByDriver.String != driverID {
		return nil, apperr.Forbidden("заявка %s закреплена за другим водителем", deliveryID)
	}

	if newStatus == "" {
		newStatus = current.Status
	}
	if newStatus != current.Status && nextStatus[current.Status] != newStatus {
		return nil, apperr.InvalidTransition(current.Status, newStatus)
	}

	params := models.TransitionParams{
		TenantID:   tenantID,
		DeliveryID: deliveryID,
		DriverID:   driverID,
		FromStatus: current.Status,
		ToStatus:   newStatus,
		Notes:      notes,
		At:         e.now(),
	}

	var updated *models.DeliveryRequest
	if newStatus == constants.STATUS_COMPLETED {
		accrual := e.ledger.Prepare(tenantID, current.CustomerID.String, current.UsedFreeDelivery)
		updated, err = e.store.CompleteDelivery(ctx, params, accrual)
	} else {
		updated, err = e.store.AdvanceDelivery(ctx, params)
	}
	if err != nil {
		log.Printf("Engine.Advance: ошибка перехода %s -> %s для заявки %s: %v", current.Status, newStatus, deliveryID, err)
		return nil, err
	}
	log.Printf("Engine.Advance: заявка %s: %s -> %s (водитель %s)", deliveryID, current.Status, newStatus, driverID)
	return updated, nil
}

// ReleaseOnDutyOff возвращает в очередь claimed-заявки водителя.
// Заявки in_progress остаются за водителем.
func (e *Engine) ReleaseOnDutyOff(ctx context.Context, tenantID, driverID string) ([]string, error) {
	released, err := e.store.ReleaseClaimedByDriver(ctx, tenantID, driverID, e.now())
	if err != nil {
		return nil, err
	}
	if len(released) > 0 {
		log.Printf("Engine.ReleaseOnDutyOff: водитель %s ушёл со смены, возвращено заявок: %d", driverID, len(released))
	}
	return released, nil
}
