package models

import "time"

// StaffMember - сотрудник арендатора (водитель, диспетчер, администратор).
// ID совпадает с идентификатором пользователя во внешнем сервисе авторизации.
type StaffMember struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenant_id"`
	Role        string     `json:"role"`
	DisplayName string     `json:"display_name"`
	Phone       NullString `json:"phone"`
	IsOnDuty    bool       `json:"is_on_duty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
