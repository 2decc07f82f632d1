package models

import "time"

// DeliveryRequest - заявка на доставку внутри одного арендатора.
// ClaimedByDriver заполнен тогда и только тогда, когда Status ∈ {claimed, in_progress}.
type DeliveryRequest struct {
	ID       string `json:"id"`
	TenantID string `json:"tenant_id"`

	CustomerID          NullString `json:"customer_id"` // null для гостевых заявок
	CustomerName        string     `json:"customer_name"`
	CustomerPhone       string     `json:"customer_phone"`
	PickupAddress       string     `json:"pickup_address"`
	DeliveryAddress     string     `json:"delivery_address"`
	PaymentMethod       string     `json:"payment_method"`
	SpecialInstructions NullString `json:"special_instructions"`

	Status          string     `json:"status"`
	ClaimedByDriver NullString `json:"claimed_by_driver"`
	ClaimedAt       NullTime   `json:"claimed_at"`
	DriverNotes     NullString `json:"driver_notes"`
	CompletedBy     NullString `json:"completed_by"`
	CompletedAt     NullTime   `json:"completed_at"`

	UsedFreeDelivery bool `json:"used_free_delivery"`

	// Поля внешнего платёжного сервиса, ядро их только хранит.
	PaymentStatus    string      `json:"payment_status"`
	PaymentReference NullString  `json:"payment_reference"`
	InvoiceReference NullString  `json:"invoice_reference"`
	TotalAmount      NullFloat64 `json:"total_amount"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewDelivery - входные данные для создания заявки.
type NewDelivery struct {
	CustomerID          string   `json:"-"` // берётся из токена, а не из тела запроса
	CustomerName        string   `json:"customer_name"`
	CustomerPhone       string   `json:"customer_phone"`
	PickupAddress       string   `json:"pickup_address"`
	DeliveryAddress     string   `json:"delivery_address"`
	PaymentMethod       string   `json:"payment_method"`
	SpecialInstructions string   `json:"special_instructions,omitempty"`
	UsedFreeDelivery    bool     `json:"used_free_delivery"`
	PaymentStatus       string   `json:"payment_status,omitempty"`
	PaymentReference    string   `json:"payment_reference,omitempty"`
	InvoiceReference    string   `json:"invoice_reference,omitempty"`
	TotalAmount         *float64 `json:"total_amount,omitempty"`
}

// DeliveryFilter ограничивает выборку заявок арендатора.
type DeliveryFilter struct {
	Statuses   []string
	DriverID   string
	CustomerID string
	Limit      int
	// NewestFirst сортирует по убыванию даты создания (история), иначе очередь FIFO.
	NewestFirst bool
}

// ClaimParams - параметры условной записи available -> claimed.
type ClaimParams struct {
	TenantID   string
	DeliveryID string
	DriverID   string
	Notes      *string
	At         time.Time
}

// TransitionParams - параметры условной записи для advance.
// Запись применяется только если заявка всё ещё в FromStatus и закреплена за DriverID.
type TransitionParams struct {
	TenantID   string
	DeliveryID string
	DriverID   string
	FromStatus string
	ToStatus   string
	Notes      *string
	At         time.Time
}
