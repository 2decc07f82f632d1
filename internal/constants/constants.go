package constants

// Delivery Statuses
// Статусы заявки на доставку
const (
	STATUS_AVAILABLE   = "available"   // Заявка создана и видна водителям на смене
	STATUS_CLAIMED     = "claimed"     // Водитель забрал заявку, но ещё не начал
	STATUS_IN_PROGRESS = "in_progress" // Водитель в пути
	STATUS_COMPLETED   = "completed"   // Доставка завершена, начислены баллы
)

// Staff Roles
// Роли сотрудников арендатора
const (
	ROLE_DRIVER     = "driver"
	ROLE_DISPATCHER = "dispatcher"
	ROLE_ADMIN      = "admin"
)

// Payment Methods and Statuses
// Способы и статусы оплаты (поля внешнего платёжного сервиса, ядро их не интерпретирует)
const (
	PAYMENT_CASH    = "cash"
	PAYMENT_CARD    = "card"
	PAYMENT_INVOICE = "invoice"

	PAYMENT_STATUS_PENDING = "pending"
	PAYMENT_STATUS_PAID    = "paid"
)

// Change Feed
// Канал LISTEN/NOTIFY и exchange для ретрансляции изменений строк
const (
	CHANGEFEED_CHANNEL  = "row_changes"
	CHANGEFEED_EXCHANGE = "row_changes"
)

// Defaults
const (
	DEFAULT_LOYALTY_THRESHOLD = 10
)

// StatusDisplayMap используется в отчётах и уведомлениях.
var StatusDisplayMap = map[string]string{
	STATUS_AVAILABLE:   "Available",
	STATUS_CLAIMED:     "Claimed",
	STATUS_IN_PROGRESS: "In progress",
	STATUS_COMPLETED:   "Completed",
}

// PaymentMethods перечисляет допустимые способы оплаты.
var PaymentMethods = map[string]bool{
	PAYMENT_CASH:    true,
	PAYMENT_CARD:    true,
	PAYMENT_INVOICE: true,
}

// PaymentStatuses перечисляет допустимые статусы оплаты при создании заявки.
var PaymentStatuses = map[string]bool{
	PAYMENT_STATUS_PENDING: true,
	PAYMENT_STATUS_PAID:    true,
}
