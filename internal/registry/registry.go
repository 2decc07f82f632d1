// Package registry управляет сотрудниками арендатора и их сменами.
package registry

import (
	"context"
	"log"
	"strings"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/models"
	"Courier/internal/utils"
)

// Store - операции хранилища сотрудников.
type Store interface {
	GetStaff(ctx context.Context, tenantID, staffID string) (*models.StaffMember, error)
	ListStaff(ctx context.Context, tenantID string) ([]models.StaffMember, error)
	UpsertStaff(ctx context.Context, m *models.StaffMember) (*models.StaffMember, error)
	SetStaffDuty(ctx context.Context, tenantID, staffID string, onDuty bool, at time.Time) (*models.StaffMember, error)
	SetStaffRole(ctx context.Context, tenantID, staffID, role string, at time.Time) (*models.StaffMember, error)
}

// Releaser возвращает в очередь claimed-заявки водителя (движок жизненного цикла).
type Releaser interface {
	ReleaseOnDutyOff(ctx context.Context, tenantID, driverID string) ([]string, error)
}

// DutyChange - результат смены флага "на смене".
// ReleaseError заполнен, если флаг сохранён, но вернуть заявки в очередь не удалось.
type DutyChange struct {
	Staff        *models.StaffMember `json:"staff"`
	Released     []string            `json:"released,omitempty"`
	ReleaseError error               `json:"-"`
}

// Registry - реестр сотрудников.
type Registry struct {
	store    Store
	releaser Releaser
	now      func() time.Time
}

// New создаёт реестр.
func New(store Store, releaser Releaser) *Registry {
	return &Registry{store: store, releaser: releaser, now: time.Now}
}

// SetOnDuty сохраняет флаг и при уходе со смены возвращает claimed-заявки водителя в очередь.
// Сбой возврата логируется и отражается в DutyChange, но не отменяет смену флага.
func (r *Registry) SetOnDuty(ctx context.Context, tenantID, staffID string, onDuty bool) (*DutyChange, error) {
	staff, err := r.store.SetStaffDuty(ctx, tenantID, staffID, onDuty, r.now())
	if err != nil {
		log.Printf("Registry.SetOnDuty: ошибка смены статуса сотрудника %s (арендатор %s): %v", staffID, tenantID, err)
		return nil, err
	}
	log.Printf("Registry.SetOnDuty: сотрудник %s (арендатор %s) на смене: %t", staffID, tenantID, onDuty)

	change := &DutyChange{Staff: staff}
	if onDuty || r.releaser == nil {
		return change, nil
	}

	released, err := r.releaser.ReleaseOnDutyOff(ctx, tenantID, staffID)
	if err != nil {
		log.Printf("Registry.SetOnDuty: ОШИБКА возврата заявок водителя %s в очередь (смена закрыта): %v", staffID, err)
		change.ReleaseError = err
		return change, nil
	}
	change.Released = released
	return change, nil
}

// AddStaff добавляет сотрудника или обновляет существующего (приглашение по id внешней авторизации).
func (r *Registry) AddStaff(ctx context.Context, tenantID string, m models.StaffMember) (*models.StaffMember, error) {
	m.ID = strings.TrimSpace(m.ID)
	m.TenantID = tenantID
	m.DisplayName = strings.TrimSpace(m.DisplayName)
	m.Role = strings.ToLower(strings.TrimSpace(m.Role))

	if tenantID == "" || m.ID == "" {
		return nil, apperr.Validation("не указан арендатор или id сотрудника")
	}
	if m.DisplayName == "" {
		return nil, apperr.Validation("не указано имя сотрудника")
	}
	if !utils.IsKnownRole(m.Role) {
		return nil, apperr.Validation("неизвестная роль %q", m.Role)
	}
	if m.Phone.Valid {
		phone, err := utils.ValidatePhoneNumber(m.Phone.String)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		m.Phone = models.NewNullString(phone)
	}

	saved, err := r.store.UpsertStaff(ctx, &m)
	if err != nil {
		log.Printf("Registry.AddStaff: ошибка сохранения сотрудника %s: %v", m.ID, err)
		return nil, err
	}
	log.Printf("Registry.AddStaff: сотрудник %s (%s) добавлен арендатору %s", saved.ID, saved.Role, tenantID)
	return saved, nil
}

// UpdateRole меняет роль сотрудника.
func (r *Registry) UpdateRole(ctx context.Context, tenantID, staffID, role string) (*models.StaffMember, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !utils.IsKnownRole(role) {
		return nil, apperr.Validation("неизвестная роль %q", role)
	}
	return r.store.SetStaffRole(ctx, tenantID, staffID, role, r.now())
}

// Get возвращает сотрудника арендатора.
func (r *Registry) Get(ctx context.Context, tenantID, staffID string) (*models.StaffMember, error) {
	return r.store.GetStaff(ctx, tenantID, staffID)
}

// List возвращает сотрудников арендатора.
func (r *Registry) List(ctx context.Context, tenantID string) ([]models.StaffMember, error) {
	return r.store.ListStaff(ctx, tenantID)
}
