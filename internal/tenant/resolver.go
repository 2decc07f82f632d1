package tenant

import (
	"context"
	"encoding/json"
	"log"
	"net"
	"net/http"
	"strings"
)

type contextKey struct {
	name string
}

// TenantContextKey - ключ для id арендатора в контексте запроса.
var TenantContextKey = &contextKey{"Tenant"}

// Resolver определяет арендатора по поддомену заголовка Host.
type Resolver struct {
	dir           *Directory
	baseDomain    string
	defaultTenant string
}

// NewResolver создаёт резолвер. defaultTenant используется, если у хоста нет поддомена.
func NewResolver(dir *Directory, baseDomain, defaultTenant string) *Resolver {
	return &Resolver{
		dir:           dir,
		baseDomain:    strings.ToLower(strings.TrimPrefix(baseDomain, ".")),
		defaultTenant: defaultTenant,
	}
}

// Subdomain выделяет поддомен из Host относительно базового домена.
// "acme.example.com" при базе "example.com" даёт "acme".
func (r *Resolver) Subdomain(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	if r.baseDomain == "" || host == r.baseDomain {
		return ""
	}
	suffix := "." + r.baseDomain
	if !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if sub == "www" || strings.Contains(sub, ".") {
		return ""
	}
	return sub
}

// Resolve возвращает id арендатора для хоста.
func (r *Resolver) Resolve(host string) (string, bool) {
	if sub := r.Subdomain(host); sub != "" {
		t, ok := r.dir.BySubdomain(sub)
		if !ok {
			return "", false
		}
		return t.ID, true
	}
	if r.defaultTenant == "" {
		return "", false
	}
	return r.defaultTenant, true
}

// Middleware кладёт id арендатора в контекст запроса; неизвестный арендатор - 404.
func (r *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		tenantID, ok := r.Resolve(req.Host)
		if !ok {
			log.Printf("Resolver: арендатор не найден для хоста %q", req.Host)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{"status": "error", "message": "Business not found"})
			return
		}
		ctx := context.WithValue(req.Context(), TenantContextKey, tenantID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

// FromContext возвращает id арендатора, определённый для запроса.
func FromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(TenantContextKey).(string)
	return id, ok && id != ""
}
