package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"Courier/internal/apperr"
	"Courier/internal/auth"
	"Courier/internal/breaker"
	"Courier/internal/models"
	"Courier/internal/registry"
	"Courier/internal/tenant"
	"Courier/internal/utils"
)

// UserContextKey - ключ для id пользователя (claim "sub") в контексте запроса.
var UserContextKey = &contextKey{"User"}

// StaffContextKey - ключ для сотрудника арендатора в контексте запроса.
var StaffContextKey = &contextKey{"Staff"}

type contextKey struct {
	name string
}

// StoreAvailableMiddleware отвечает 503, пока выключатель считает хранилище недоступным.
func StoreAvailableMiddleware(b *breaker.Breaker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if b != nil && !b.Available(r.Context()) {
				writeJSONError(w, http.StatusServiceUnavailable, "Storage temporarily unavailable")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AuthMiddleware требует валидный Bearer-токен и кладёт id пользователя в контекст.
func AuthMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := auth.BearerToken(r.Header.Get("Authorization"))
			if token == "" {
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: missing bearer token")
				return
			}
			userID, err := v.Verify(token)
			if err != nil {
				log.Printf("AuthMiddleware: невалидный токен: %v", err)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuthMiddleware пропускает гостей без заголовка, но отклоняет переданный невалидный токен.
func OptionalAuthMiddleware(v *auth.Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			userID, err := v.Verify(auth.BearerToken(header))
			if err != nil {
				log.Printf("OptionalAuthMiddleware: невалидный токен: %v", err)
				writeJSONError(w, http.StatusUnauthorized, "Unauthorized: invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), UserContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RoleMiddleware проверяет, что пользователь - сотрудник арендатора с ролью не ниже requiredRole.
func RoleMiddleware(reg *registry.Registry, b *breaker.Breaker, requiredRole string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, ok := userFromContext(r.Context())
			if !ok {
				writeJSONError(w, http.StatusUnauthorized, "User context not found")
				return
			}
			tenantID, _ := tenant.FromContext(r.Context())

			staff, err := reg.Get(r.Context(), tenantID, userID)
			if err != nil {
				if errors.Is(err, apperr.ErrNotFound) {
					writeJSONError(w, http.StatusForbidden, "Access denied")
					return
				}
				writeAppError(w, b, err)
				return
			}
			if !utils.IsRoleOrHigher(staff.Role, requiredRole) {
				log.Printf("RoleMiddleware: у сотрудника %s роль %s, требуется %s", staff.ID, staff.Role, requiredRole)
				writeJSONError(w, http.StatusForbidden, "Access denied")
				return
			}
			ctx := context.WithValue(r.Context(), StaffContextKey, staff)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func userFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(UserContextKey).(string)
	return id, ok && id != ""
}

func staffFromContext(ctx context.Context) (*models.StaffMember, bool) {
	s, ok := ctx.Value(StaffContextKey).(*models.StaffMember)
	return s, ok && s != nil
}
