package utils

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"Courier/internal/constants"

	"github.com/google/uuid"
)

var (
	nonDigitPlusRegex = regexp.MustCompile(`[^\d+]`)
	nonDigitRegex     = regexp.MustCompile(`[^\d]`)
	e164Regex         = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)
)

// ValidatePhoneNumber проверяет и нормализует номер телефона.
// Российские номера приводятся к +7XXXXXXXXXX, международные должны быть в формате E.164.
// ValidatePhoneNumber checks and normalizes a phone number.
func ValidatePhoneNumber(phone string) (string, error) {
	phone = strings.ReplaceAll(phone, "\\", "")
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("номер телефона не указан")
	}

	cleaned := nonDigitPlusRegex.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleaned, "+") {
		if strings.Count(cleaned, "+") > 1 || !e164Regex.MatchString(cleaned) {
			return "", fmt.Errorf("номер должен быть в формате +<код страны><номер>")
		}
		return cleaned, nil
	}

	// Без '+' считаем номер российским
	// Without '+' assume a Russian number
	digitsOnly := nonDigitRegex.ReplaceAllString(phone, "")
	if len(digitsOnly) == 11 && (digitsOnly[0] == '8' || digitsOnly[0] == '7') {
		return "+7" + digitsOnly[1:], nil
	}
	if len(digitsOnly) == 10 {
		return "+7" + digitsOnly, nil
	}

	return "", fmt.Errorf("неверный формат номера телефона, укажите в формате +7XXXXXXXXXX или 8XXXXXXXXXX")
}

// FormatPhoneNumber форматирует номер телефона для отображения в отчётах.
func FormatPhoneNumber(phone string) string {
	cleanedPhone := nonDigitPlusRegex.ReplaceAllString(phone, "")
	if strings.HasPrefix(cleanedPhone, "+7") && len(cleanedPhone) == 12 {
		return fmt.Sprintf("+7 (%s) %s-%s-%s", cleanedPhone[2:5], cleanedPhone[5:8], cleanedPhone[8:10], cleanedPhone[10:12])
	}
	return phone
}

// IsValidID проверяет, что строка является UUID заявки.
func IsValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// IsRoleOrHigher проверяет, соответствует ли роль сотрудника минимально требуемой роли.
// Иерархия ролей: Driver < Dispatcher < Admin
// IsRoleOrHigher checks if the staff role meets the minimum required role.
func IsRoleOrHigher(userRole string, requiredRole string) bool {
	roleHierarchy := map[string]int{
		constants.ROLE_DRIVER:     1,
		constants.ROLE_DISPATCHER: 2,
		constants.ROLE_ADMIN:      3,
	}

	userLevel, okUser := roleHierarchy[userRole]
	requiredLevel, okRequired := roleHierarchy[requiredRole]

	if !okUser || !okRequired {
		log.Printf("IsRoleOrHigher: неизвестная роль при сравнении: userRole='%s', requiredRole='%s'", userRole, requiredRole)
		return false // Если одна из ролей неизвестна, доступ запрещен / Unknown role means access denied
	}
	return userLevel >= requiredLevel
}

// IsKnownRole сообщает, существует ли такая роль сотрудника.
func IsKnownRole(role string) bool {
	switch role {
	case constants.ROLE_DRIVER, constants.ROLE_DISPATCHER, constants.ROLE_ADMIN:
		return true
	}
	return false
}

// EscapeTelegramMarkdown экранирует специальные символы для Telegram Markdown (старый стиль).
func EscapeTelegramMarkdown(text string) string {
	var replacer = strings.NewReplacer(
		"_", "\\_", "*", "\\*", "`", "\\`", "[", "\\[",
	)
	return replacer.Replace(text)
}
