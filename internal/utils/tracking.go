package utils

import (
	"fmt"
	"log"
	"strings"

	"github.com/skip2/go-qrcode"
)

// TrackingLink возвращает публичную ссылку на страницу отслеживания заявки.
func TrackingLink(baseURL, deliveryID string) (string, error) {
	baseURL = strings.TrimSuffix(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return "", fmt.Errorf("публичный адрес сервиса не настроен")
	}
	if !IsValidID(deliveryID) {
		return "", fmt.Errorf("невалидный ID заявки для ссылки отслеживания: %q", deliveryID)
	}
	return fmt.Sprintf("%s/track/%s", baseURL, deliveryID), nil
}

// GenerateTrackingQRCode генерирует PNG QR-код ссылки отслеживания.
func GenerateTrackingQRCode(baseURL, deliveryID string) ([]byte, error) {
	link, err := TrackingLink(baseURL, deliveryID)
	if err != nil {
		log.Printf("GenerateTrackingQRCode: ошибка генерации ссылки для заявки %s: %v", deliveryID, err)
		return nil, err
	}

	// qrcode.Medium - уровень коррекции ошибок, 256 - размер QR-кода в пикселях.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, 256)
	if err != nil {
		log.Printf("GenerateTrackingQRCode: ошибка кодирования QR-кода для ссылки '%s': %v", link, err)
		return nil, err
	}
	return qrBytes, nil
}
