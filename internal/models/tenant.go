package models

// Tenant - бизнес-аккаунт. Ядро читает его только для настроек.
type Tenant struct {
	ID               string `json:"id" yaml:"id"`
	Subdomain        string `json:"subdomain" yaml:"subdomain"`
	Name             string `json:"name" yaml:"name"`
	LoyaltyThreshold int    `json:"loyalty_threshold" yaml:"loyalty_threshold"`
	DriverChatID     int64  `json:"-" yaml:"driver_chat_id"` // Telegram-чат водителей арендатора
}
