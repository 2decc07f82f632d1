package models

import "time"

// LoyaltyAccount - баланс программы лояльности клиента у конкретного арендатора.
// Естественный ключ - пара (CustomerID, TenantID).
type LoyaltyAccount struct {
	CustomerID          string    `json:"customer_id"`
	TenantID            string    `json:"tenant_id"`
	LoyaltyPoints       int       `json:"loyalty_points"`
	FreeDeliveryCredits int       `json:"free_delivery_credits"`
	TotalDeliveries     int       `json:"total_deliveries"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Accrual - одно начисление по завершённой доставке.
type Accrual struct {
	CustomerID       string
	TenantID         string
	UsedFreeDelivery bool
	Threshold        int
}

// LoyaltyStatus - представление баланса для клиента.
type LoyaltyStatus struct {
	Points                    int  `json:"points"`
	Credits                   int  `json:"credits"`
	TotalDeliveries           int  `json:"total_deliveries"`
	Eligible                  bool `json:"eligible"`
	DeliveriesUntilNextCredit int  `json:"deliveries_until_next_credit"`
	Threshold                 int  `json:"threshold"`
}
