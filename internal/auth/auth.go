// Package auth проверяет токены внешнего сервиса авторизации.
// Ядру нужен только идентификатор пользователя (claim "sub").
package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// ErrUnauthorized - токен отсутствует, просрочен или подписан не тем ключом.
var ErrUnauthorized = errors.New("unauthorized")

// Verifier проверяет HS256-токены общим секретом.
type Verifier struct {
	secret []byte
}

// NewVerifier создаёт проверяющего. Пустой секрет отклоняет любые токены.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify возвращает идентификатор пользователя из токена.
func (v *Verifier) Verify(token string) (string, error) {
	if len(v.secret) == 0 {
		return "", fmt.Errorf("%w: секрет JWT не настроен", ErrUnauthorized)
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", fmt.Errorf("%w: токен не передан", ErrUnauthorized)
	}

	claims := &jwt.RegisteredClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("%w: в токене нет sub", ErrUnauthorized)
	}
	return claims.Subject, nil
}

// BearerToken достаёт токен из заголовка Authorization.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}
