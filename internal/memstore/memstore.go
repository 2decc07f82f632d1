// Package memstore - хранилище в памяти для тестов.
// В рабочем процессе не используется: при недоступности PostgreSQL сервис отвечает 503.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"Courier/internal/apperr"
	"Courier/internal/constants"
	"Courier/internal/loyalty"
	"Courier/internal/models"

	"github.com/google/uuid"
)

type key struct {
	tenantID string
	id       string
}

// Store повторяет семантику условных записей PostgreSQL-хранилища.
// Каждая операция выполняется под одной блокировкой и потому атомарна.
type Store struct {
	mu         sync.Mutex
	deliveries map[string]*models.DeliveryRequest
	seq        map[string]int
	nextSeq    int
	staff      map[key]*models.StaffMember
	loyalty    map[key]*models.LoyaltyAccount

	// ReleaseErr и PingErr позволяют тестам имитировать сбой хранилища.
	ReleaseErr error
	PingErr    error
	Now        func() time.Time
}

// New создаёт пустое хранилище.
func New() *Store {
	return &Store{
		deliveries: make(map[string]*models.DeliveryRequest),
		seq:        make(map[string]int),
		staff:      make(map[key]*models.StaffMember),
		loyalty:    make(map[key]*models.LoyaltyAccount),
		Now:        time.Now,
	}
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// Ping имитирует проверку соединения.
func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.PingErr != nil {
		return apperr.Unavailable("ping", s.PingErr)
	}
	if err := ctx.Err(); err != nil {
		return apperr.Transient("ping", err)
	}
	return nil
}

func copyDelivery(d *models.DeliveryRequest) *models.DeliveryRequest {
	c := *d
	return &c
}

// InsertDelivery сохраняет новую заявку.
func (s *Store) InsertDelivery(ctx context.Context, d *models.DeliveryRequest) (*models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := copyDelivery(d)
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if _, exists := s.deliveries[c.ID]; exists {
		return nil, apperr.Conflict("заявка %s уже существует", c.ID)
	}
	now := s.now()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	s.deliveries[c.ID] = c
	s.nextSeq++
	s.seq[c.ID] = s.nextSeq
	return copyDelivery(c), nil
}

func (s *Store) visible(tenantID, id string) (*models.DeliveryRequest, bool) {
	d, ok := s.deliveries[id]
	if !ok || d.TenantID != tenantID {
		return nil, false
	}
	return d, true
}

// GetDelivery возвращает заявку арендатора.
func (s *Store) GetDelivery(ctx context.Context, tenantID, id string) (*models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.visible(tenantID, id)
	if !ok {
		return nil, apperr.NotFound("заявка", id)
	}
	return copyDelivery(d), nil
}

// ListDeliveries возвращает заявки арендатора по фильтру.
func (s *Store) ListDeliveries(ctx context.Context, tenantID string, f models.DeliveryFilter) ([]models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]bool, len(f.Statuses))
	for _, st := range f.Statuses {
		statuses[st] = true
	}

	var out []models.DeliveryRequest
	for _, d := range s.deliveries {
		if d.TenantID != tenantID {
			continue
		}
		if len(statuses) > 0 && !statuses[d.Status] {
			continue
		}
		if f.DriverID != "" && d.ClaimedByDriver.String != f.DriverID {
			continue
		}
		if f.CustomerID != "" && d.CustomerID.String != f.CustomerID {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		if f.NewestFirst {
			return s.seq[out[i].ID] > s.seq[out[j].ID]
		}
		return s.seq[out[i].ID] < s.seq[out[j].ID]
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// ClaimDelivery - условная запись available -> claimed.
func (s *Store) ClaimDelivery(ctx context.Context, p models.ClaimParams) (*models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.visible(p.TenantID, p.DeliveryID)
	if !ok || d.Status != constants.STATUS_AVAILABLE {
		return nil, apperr.Conflict("заявка %s уже забрана или недоступна", p.DeliveryID)
	}
	d.Status = constants.STATUS_CLAIMED
	d.ClaimedByDriver = models.NewNullString(p.DriverID)
	d.ClaimedAt = models.NewNullTime(p.At)
	if p.Notes != nil {
		d.DriverNotes = models.NewNullString(*p.Notes)
	}
	d.UpdatedAt = p.At
	return copyDelivery(d), nil
}

func (s *Store) guarded(p models.TransitionParams) (*models.DeliveryRequest, error) {
	d, ok := s.visible(p.TenantID, p.DeliveryID)
	if !ok || d.Status != p.FromStatus || d.ClaimedByDriver.String != p.DriverID {
		return nil, apperr.Conflict("заявка %s изменилась параллельно", p.DeliveryID)
	}
	return d, nil
}

// AdvanceDelivery - условная запись перехода, не ведущего к завершению.
func (s *Store) AdvanceDelivery(ctx context.Context, p models.TransitionParams) (*models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.guarded(p)
	if err != nil {
		return nil, err
	}
	d.Status = p.ToStatus
	if p.Notes != nil {
		d.DriverNotes = models.NewNullString(*p.Notes)
	}
	d.UpdatedAt = p.At
	return copyDelivery(d), nil
}

// CompleteDelivery завершает заявку и начисляет баллы как одна операция.
func (s *Store) CompleteDelivery(ctx context.Context, p models.TransitionParams, accrual *models.Accrual) (*models.DeliveryRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.guarded(p)
	if err != nil {
		return nil, err
	}
	if accrual != nil {
		s.accrueLocked(*accrual)
	}

	d.Status = constants.STATUS_COMPLETED
	d.CompletedBy = d.ClaimedByDriver
	d.CompletedAt = models.NewNullTime(p.At)
	d.ClaimedByDriver = models.NullString{}
	d.ClaimedAt = models.NullTime{}
	if p.Notes != nil {
		d.DriverNotes = models.NewNullString(*p.Notes)
	}
	d.UpdatedAt = p.At
	return copyDelivery(d), nil
}

// ReleaseClaimedByDriver возвращает в очередь заявки водителя в статусе claimed.
func (s *Store) ReleaseClaimedByDriver(ctx context.Context, tenantID, driverID string, at time.Time) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ReleaseErr != nil {
		return nil, apperr.Transient("release", s.ReleaseErr)
	}

	var released []string
	for _, d := range s.deliveries {
		if d.TenantID != tenantID || d.Status != constants.STATUS_CLAIMED || d.ClaimedByDriver.String != driverID {
			continue
		}
		d.Status = constants.STATUS_AVAILABLE
		d.ClaimedByDriver = models.NullString{}
		d.ClaimedAt = models.NullTime{}
		d.DriverNotes = models.NullString{}
		d.UpdatedAt = at
		released = append(released, d.ID)
	}
	sort.Strings(released)
	return released, nil
}

// --- Staff ---

func copyStaff(m *models.StaffMember) *models.StaffMember {
	c := *m
	return &c
}

// GetStaff возвращает сотрудника арендатора.
func (s *Store) GetStaff(ctx context.Context, tenantID, staffID string) (*models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[key{tenantID, staffID}]
	if !ok {
		return nil, apperr.NotFound("сотрудник", staffID)
	}
	return copyStaff(m), nil
}

// ListStaff возвращает сотрудников арендатора по имени.
func (s *Store) ListStaff(ctx context.Context, tenantID string) ([]models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.StaffMember
	for k, m := range s.staff {
		if k.tenantID == tenantID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayName == out[j].DisplayName {
			return out[i].ID < out[j].ID
		}
		return out[i].DisplayName < out[j].DisplayName
	})
	return out, nil
}

// UpsertStaff добавляет сотрудника или обновляет роль, имя и телефон существующего.
func (s *Store) UpsertStaff(ctx context.Context, m *models.StaffMember) (*models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	k := key{m.TenantID, m.ID}
	if existing, ok := s.staff[k]; ok {
		existing.Role = m.Role
		existing.DisplayName = m.DisplayName
		existing.Phone = m.Phone
		existing.UpdatedAt = now
		return copyStaff(existing), nil
	}
	c := copyStaff(m)
	c.CreatedAt = now
	c.UpdatedAt = now
	s.staff[k] = c
	return copyStaff(c), nil
}

// SetStaffDuty сохраняет флаг смены.
func (s *Store) SetStaffDuty(ctx context.Context, tenantID, staffID string, onDuty bool, at time.Time) (*models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[key{tenantID, staffID}]
	if !ok {
		return nil, apperr.NotFound("сотрудник", staffID)
	}
	m.IsOnDuty = onDuty
	m.UpdatedAt = at
	return copyStaff(m), nil
}

// SetStaffRole меняет роль сотрудника.
func (s *Store) SetStaffRole(ctx context.Context, tenantID, staffID, role string, at time.Time) (*models.StaffMember, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.staff[key{tenantID, staffID}]
	if !ok {
		return nil, apperr.NotFound("сотрудник", staffID)
	}
	m.Role = role
	m.UpdatedAt = at
	return copyStaff(m), nil
}

// --- Loyalty ---

// GetLoyaltyAccount возвращает баланс клиента у арендатора.
func (s *Store) GetLoyaltyAccount(ctx context.Context, tenantID, customerID string) (*models.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.loyalty[key{tenantID, customerID}]
	if !ok {
		return nil, apperr.NotFound("счёт лояльности", customerID)
	}
	c := *acc
	return &c, nil
}

// AccrueLoyalty начисляет одну доставку.
func (s *Store) AccrueLoyalty(ctx context.Context, accrual models.Accrual) (*models.LoyaltyAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accrueLocked(accrual)
	c := *acc
	return &c, nil
}

func (s *Store) accrueLocked(accrual models.Accrual) *models.LoyaltyAccount {
	k := key{accrual.TenantID, accrual.CustomerID}
	acc, ok := s.loyalty[k]
	if !ok {
		acc = &models.LoyaltyAccount{CustomerID: accrual.CustomerID, TenantID: accrual.TenantID}
		s.loyalty[k] = acc
	}
	*acc = loyalty.Apply(*acc, accrual.UsedFreeDelivery, accrual.Threshold)
	acc.UpdatedAt = s.now()
	return acc
}

// SeedLoyalty задаёт баланс напрямую (только для подготовки тестов).
func (s *Store) SeedLoyalty(acc models.LoyaltyAccount) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := acc
	s.loyalty[key{acc.TenantID, acc.CustomerID}] = &c
}
