package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/lib/pq" // Для pq.Array в фильтре по статусам

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/models"
)

const deliveryColumns = `id, tenant_id, customer_id, customer_name, customer_phone,
        pickup_address, delivery_address, payment_method, special_instructions,
        status, claimed_by_driver, claimed_at, driver_notes, completed_by, completed_at,
        used_free_delivery, payment_status, payment_reference, invoice_reference, total_amount,
        created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDelivery(row rowScanner) (*models.DeliveryRequest, error) {
	var d models.DeliveryRequest
	err := row.Scan(
		&d.ID, &d.TenantID, &d.CustomerID, &d.CustomerName, &d.CustomerPhone,
		&d.PickupAddress, &d.DeliveryAddress, &d.PaymentMethod, &d.SpecialInstructions,
		&d.Status, &d.ClaimedByDriver, &d.ClaimedAt, &d.DriverNotes, &d.CompletedBy, &d.CompletedAt,
		&d.UsedFreeDelivery, &d.PaymentStatus, &d.PaymentReference, &d.InvoiceReference, &d.TotalAmount,
		&d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullableNotes(notes *string) sql.NullString {
	if notes == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *notes, Valid: true}
}

// InsertDelivery сохраняет новую заявку.
func (s *Store) InsertDelivery(ctx context.Context, d *models.DeliveryRequest) (*models.DeliveryRequest, error) {
	now := s.now()
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
        INSERT INTO delivery_requests (
            id, tenant_id, customer_id, customer_name, customer_phone,
            pickup_address, delivery_address, payment_method, special_instructions,
            status, used_free_delivery, payment_status, payment_reference, invoice_reference,
            total_amount, created_at, updated_at
        )
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
        RETURNING ` + deliveryColumns

	created, err := scanDelivery(s.DB.QueryRowContext(ctx, query,
		d.ID, d.TenantID, d.CustomerID, d.CustomerName, d.CustomerPhone,
		d.PickupAddress, d.DeliveryAddress, d.PaymentMethod, d.SpecialInstructions,
		d.Status, d.UsedFreeDelivery, d.PaymentStatus, d.PaymentReference, d.InvoiceReference,
		d.TotalAmount, createdAt, now,
	))
	if err != nil {
		log.Printf("InsertDelivery: ошибка вставки заявки %s (арендатор %s): %v", d.ID, d.TenantID, err)
		return nil, classify("insert delivery", err)
	}
	return created, nil
}

// GetDelivery возвращает заявку арендатора; чужая заявка - NotFound.
func (s *Store) GetDelivery(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error) {
	d, err := scanDelivery(s.DB.QueryRowContext(ctx,
		`SELECT `+deliveryColumns+` FROM delivery_requests WHERE id = $1 AND tenant_id = $2`, id, tenantID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("заявка", id)
	}
	if err != nil {
		log.Printf("GetDelivery: ошибка получения заявки %s: %v", id, err)
		return nil, classify("get delivery", err)
	}
	return d, nil
}

// ListDeliveries возвращает заявки арендатора по фильтру.
func (s *Store) ListDeliveries(ctx context.Context, tenantID string, f models.DeliveryFilter) ([]models.DeliveryRequest, error) {
	var (
		conditions = []string{"tenant_id = $1"}
		args       = []any{tenantID}
	)
	if len(f.Statuses) > 0 {
		args = append(args, pq.Array(f.Statuses))
		conditions = append(conditions, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if f.DriverID != "" {
		args = append(args, f.DriverID)
		conditions = append(conditions, fmt.Sprintf("claimed_by_driver = $%d", len(args)))
	}
	if f.CustomerID != "" {
		args = append(args, f.CustomerID)
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", len(args)))
	}

	order := "ASC"
	if f.NewestFirst {
		order = "DESC"
	}
	query := fmt.Sprintf(`SELECT %s FROM delivery_requests WHERE %s ORDER BY created_at %s, id`,
		deliveryColumns, strings.Join(conditions, " AND "), order)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		log.Printf("ListDeliveries: ошибка выборки заявок арендатора %s: %v", tenantID, err)
		return nil, classify("list deliveries", err)
	}
	defer rows.Close()

	var out []models.DeliveryRequest
	for rows.Next() {
		d, errScan := scanDelivery(rows)
		if errScan != nil {
			log.Printf("ListDeliveries: ошибка сканирования строки: %v", errScan)
			return nil, classify("scan delivery", errScan)
		}
		out = append(out, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list deliveries", err)
	}
	return out, nil
}

// ClaimDelivery - условная запись available -> claimed. Ноль строк - Conflict.
func (s *Store) ClaimDelivery(ctx context.Context, p models.ClaimParams) (*models.DeliveryRequest, error) {
	query := `
        UPDATE delivery_requests
        SET status = $3, claimed_by_driver = $4, claimed_at = $5,
            driver_notes = COALESCE($6, driver_notes), updated_at = $5
        WHERE id = $1 AND tenant_id = $2 AND status = $7
        RETURNING ` + deliveryColumns

	d, err := scanDelivery(s.DB.QueryRowContext(ctx, query,
		p.DeliveryID, p.TenantID, constants.STATUS_CLAIMED, p.DriverID, p.At,
		nullableNotes(p.Notes), constants.STATUS_AVAILABLE,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Conflict("заявка %s уже забрана или недоступна", p.DeliveryID)
	}
	if err != nil {
		log.Printf("ClaimDelivery: ошибка закрепления заявки %s за водителем %s: %v", p.DeliveryID, p.DriverID, err)
		return nil, classify("claim delivery", err)
	}
	return d, nil
}

const advanceSQL = `
        UPDATE delivery_requests
        SET status = $5, driver_notes = COALESCE($6, driver_notes), updated_at = $7
        WHERE id = $1 AND tenant_id = $2 AND status = $3 AND claimed_by_driver = $4
        RETURNING `

// AdvanceDelivery - условная запись перехода, не ведущего к завершению.
func (s *Store) AdvanceDelivery(ctx context.Context, p models.TransitionParams) (*models.DeliveryRequest, error) {
	d, err := scanDelivery(s.DB.QueryRowContext(ctx, advanceSQL+deliveryColumns,
		p.DeliveryID, p.TenantID, p.FromStatus, p.DriverID, p.ToStatus, nullableNotes(p.Notes), p.At,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Conflict("заявка %s изменилась параллельно", p.DeliveryID)
	}
	if err != nil {
		log.Printf("AdvanceDelivery: ошибка перехода заявки %s: %v", p.DeliveryID, err)
		return nil, classify("advance delivery", err)
	}
	return d, nil
}

const completeSQL = `
        UPDATE delivery_requests
        SET status = $5, completed_by = claimed_by_driver, completed_at = $6,
            claimed_by_driver = NULL, claimed_at = NULL,
            driver_notes = COALESCE($7, driver_notes), updated_at = $6
        WHERE id = $1 AND tenant_id = $2 AND status = $3 AND claimed_by_driver = $4
        RETURNING `

// CompleteDelivery завершает заявку и начисляет баллы в одной транзакции.
func (s *Store) CompleteDelivery(ctx context.Context, p models.TransitionParams, accrual *models.Accrual) (*models.DeliveryRequest, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("CompleteDelivery: ошибка начала транзакции: %v", err)
		return nil, classify("begin complete", err)
	}
	defer tx.Rollback()

	d, err := scanDelivery(tx.QueryRowContext(ctx, completeSQL+deliveryColumns,
		p.DeliveryID, p.TenantID, p.FromStatus, p.DriverID, constants.STATUS_COMPLETED, p.At, nullableNotes(p.Notes),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Conflict("заявка %s изменилась параллельно", p.DeliveryID)
	}
	if err != nil {
		log.Printf("CompleteDelivery: ошибка завершения заявки %s: %v", p.DeliveryID, err)
		return nil, classify("complete delivery", err)
	}

	if accrual != nil {
		if _, err := accrueTx(ctx, tx, *accrual, p.At); err != nil {
			log.Printf("CompleteDelivery: ошибка начисления баллов по заявке %s: %v", p.DeliveryID, err)
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		log.Printf("CompleteDelivery: ошибка фиксации транзакции: %v", err)
		return nil, classify("commit complete", err)
	}
	return d, nil
}

// ReleaseClaimedByDriver одним UPDATE возвращает в очередь claimed-заявки водителя.
func (s *Store) ReleaseClaimedByDriver(ctx context.Context, tenantID, driverID string, at time.Time) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
        UPDATE delivery_requests
        SET status = $3, claimed_by_driver = NULL, claimed_at = NULL, driver_notes = NULL, updated_at = $4
        WHERE tenant_id = $1 AND claimed_by_driver = $2 AND status = $5
        RETURNING id`,
		tenantID, driverID, constants.STATUS_AVAILABLE, at, constants.STATUS_CLAIMED)
	if err != nil {
		log.Printf("ReleaseClaimedByDriver: ошибка возврата заявок водителя %s: %v", driverID, err)
		return nil, classify("release claimed", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, classify("scan released id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("release claimed", err)
	}
	return ids, nil
}
