package db

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/models"
)

const staffColumns = `id, tenant_id, role, display_name, phone, is_on_duty, created_at, updated_at`

func scanStaff(row rowScanner) (*models.StaffMember, error) {
	var m models.StaffMember
	if err := row.Scan(&m.ID, &m.TenantID, &m.Role, &m.DisplayName, &m.Phone, &m.IsOnDuty, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func staffResult(op, staffID string, m *models.StaffMember, err error) (*models.StaffMember, error) {
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("сотрудник", staffID)
	}
	if err != nil {
		log.Printf("%s: ошибка для сотрудника %s: %v", op, staffID, err)
		return nil, classify(op, err)
	}
	return m, nil
}

// GetStaff возвращает сотрудника арендатора.
func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (*models.StaffMember, error) {
	m, err := scanStaff(s.DB.QueryRowContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 AND id = $2`, tenantID, staffID))
	return staffResult("GetStaff", staffID, m, err)
}

// ListStaff возвращает сотрудников арендатора по имени.
func (s *Store) ListStaff(ctx context.Context, tenantID string) ([]models.StaffMember, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+staffColumns+` FROM staff WHERE tenant_id = $1 ORDER BY display_name, id`, tenantID)
	if err != nil {
		log.Printf("ListStaff: ошибка выборки сотрудников арендатора %s: %v", tenantID, err)
		return nil, classify("list staff", err)
	}
	defer rows.Close()

	var out []models.StaffMember
	for rows.Next() {
		m, errScan := scanStaff(rows)
		if errScan != nil {
			return nil, classify("scan staff", errScan)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list staff", err)
	}
	return out, nil
}

// UpsertStaff добавляет сотрудника или обновляет роль, имя и телефон существующего.
// Флаг смены при повторном приглашении не меняется.
func (s *Store) UpsertStaff(ctx context.Context, m *models.StaffMember) (*models.StaffMember, error) {
	now := s.now()
	saved, err := scanStaff(s.DB.QueryRowContext(ctx, `
        INSERT INTO staff (id, tenant_id, role, display_name, phone, is_on_duty, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, FALSE, $6, $6)
        ON CONFLICT (tenant_id, id) DO UPDATE
        SET role = EXCLUDED.role, display_name = EXCLUDED.display_name,
            phone = EXCLUDED.phone, updated_at = EXCLUDED.updated_at
        RETURNING `+staffColumns,
		m.ID, m.TenantID, m.Role, m.DisplayName, m.Phone, now))
	return staffResult("UpsertStaff", m.ID, saved, err)
}

// SetStaffDuty сохраняет флаг "на смене".
func (s *Store) SetStaffDuty(ctx context.Context, tenantID, staffID string, onDuty bool, at time.Time) (*models.StaffMember, error) {
	m, err := scanStaff(s.DB.QueryRowContext(ctx, `
        UPDATE staff SET is_on_duty = $3, updated_at = $4
        WHERE tenant_id = $1 AND id = $2
        RETURNING `+staffColumns,
		tenantID, staffID, onDuty, at))
	return staffResult("SetStaffDuty", staffID, m, err)
}

// SetStaffRole меняет роль сотрудника.
func (s *Store) SetStaffRole(ctx context.Context, tenantID, staffID, role string, at time.Time) (*models.StaffMember, error) {
	m, err := scanStaff(s.DB.QueryRowContext(ctx, `
        UPDATE staff SET role = $3, updated_at = $4
        WHERE tenant_id = $1 AND id = $2
        RETURNING `+staffColumns,
		tenantID, staffID, role, at))
	return staffResult("SetStaffRole", staffID, m, err)
}
