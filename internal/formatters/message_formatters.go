package formatters

import (
	"fmt"
	"strings"

	"Courier/internal/constants"
	"Courier/internal/models"
	"Courier/internal/utils"
)

const (
	separator = "─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─ ─"
)

var paymentDisplayMap = map[string]string{
	constants.PAYMENT_CASH:    "Наличные",
	constants.PAYMENT_CARD:    "Карта",
	constants.PAYMENT_INVOICE: "По счёту",
}

// FormatDeliveryNoticeForDrivers форматирует сообщение в чат водителей о доступной заявке.
// reopened - заявка вернулась в очередь после ухода водителя со смены.
func FormatDeliveryNoticeForDrivers(d *models.DeliveryRequest, reopened bool, trackingLink string) string {
	var sb strings.Builder

	if reopened {
		sb.WriteString("🔁 *ЗАЯВКА СНОВА ДОСТУПНА*\n")
	} else {
		sb.WriteString("🚚 *НОВАЯ ЗАЯВКА НА ДОСТАВКУ*\n")
	}
	sb.WriteString(separator + "\n")

	sb.WriteString(fmt.Sprintf(" •  Откуда: %s\n", utils.EscapeTelegramMarkdown(d.PickupAddress)))
	sb.WriteString(fmt.Sprintf(" •  Куда: %s\n", utils.EscapeTelegramMarkdown(d.DeliveryAddress)))
	if d.SpecialInstructions.Valid {
		sb.WriteString(fmt.Sprintf(" •  Комментарий: %s\n", utils.EscapeTelegramMarkdown(d.SpecialInstructions.String)))
	}

	payment, ok := paymentDisplayMap[d.PaymentMethod]
	if !ok {
		payment = d.PaymentMethod
	}
	if d.UsedFreeDelivery {
		payment += ", бесплатная доставка"
	}
	sb.WriteString(fmt.Sprintf(" •  Оплата: %s\n", utils.EscapeTelegramMarkdown(payment)))
	if d.TotalAmount.Valid {
		sb.WriteString(fmt.Sprintf(" •  Сумма: %.2f\n", d.TotalAmount.Float64))
	}

	if trackingLink != "" {
		sb.WriteString(separator + "\n")
		sb.WriteString(trackingLink)
	}
	return strings.TrimRight(sb.String(), "\n")
}
