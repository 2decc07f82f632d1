package api

import (
	"time"

	"Courier/internal/models"
)

// Этот файл содержит структуры запросов и ответов API.

// StaffListData содержит список сотрудников и общее количество
type StaffListData struct {
	Staff []models.StaffMember `json:"staff"`
	Total int                  `json:"total"`
}

// AddStaffRequest структура для добавления сотрудника (id из сервиса авторизации)
type AddStaffRequest struct {
	ID          string `json:"id"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
	Phone       string `json:"phone,omitempty"`
}

// UpdateRoleRequest структура для запроса изменения роли
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

// DutyRequest структура для выхода на смену / ухода со смены
type DutyRequest struct {
	OnDuty *bool `json:"on_duty"`
}

// DutyResponse - результат смены статуса; Released - заявки, возвращённые в очередь.
type DutyResponse struct {
	Staff        *models.StaffMember `json:"staff"`
	Released     []string            `json:"released"`
	ReleaseError string              `json:"release_error,omitempty"`
}

// ClaimRequest - необязательные заметки водителя при взятии заявки.
type ClaimRequest struct {
	Notes *string `json:"notes,omitempty"`
}

// AdvanceRequest - новый статус и/или заметки водителя.
type AdvanceRequest struct {
	Status string  `json:"status"`
	Notes  *string `json:"notes,omitempty"`
}

// CreatedDeliveryData - созданная заявка и ссылка отслеживания.
type CreatedDeliveryData struct {
	Delivery    *models.DeliveryRequest `json:"delivery"`
	TrackingURL string                  `json:"tracking_url,omitempty"`
}

// DeliveryListData - список заявок и количество.
type DeliveryListData struct {
	Deliveries []models.DeliveryRequest `json:"deliveries"`
	Total      int                      `json:"total"`
}

// TrackingView - публичное представление заявки без данных клиента.
type TrackingView struct {
	ID          string     `json:"id"`
	Status      string     `json:"status"`
	StatusLabel string     `json:"status_label"`
	CreatedAt   time.Time  `json:"created_at"`
	ClaimedAt   *time.Time `json:"claimed_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// HealthData - состояние хранилища для /healthz.
type HealthData struct {
	Store     string     `json:"store"`
	CheckedAt *time.Time `json:"checked_at,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func newTrackingView(d *models.DeliveryRequest, label string) TrackingView {
	v := TrackingView{
		ID:          d.ID,
		Status:      d.Status,
		StatusLabel: label,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
	if d.ClaimedAt.Valid {
		t := d.ClaimedAt.Time
		v.ClaimedAt = &t
	}
	if d.CompletedAt.Valid {
		t := d.CompletedAt.Time
		v.CompletedAt = &t
	}
	return v
}
