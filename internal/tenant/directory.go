// Package tenant определяет арендатора запроса и хранит его настройки.
package tenant

import (
	"fmt"
	"log"
	"os"
	"strings"

	"Courier/internal/models"

	"gopkg.in/yaml.v3"
)

// fileFormat - структура YAML-файла настроек арендаторов.
type fileFormat struct {
	Tenants []models.Tenant `yaml:"tenants"`
}

// Directory - справочник арендаторов (только чтение после загрузки).
type Directory struct {
	byID        map[string]models.Tenant
	bySubdomain map[string]models.Tenant
}

// NewDirectory создаёт справочник из списка арендаторов.
func NewDirectory(tenants []models.Tenant) (*Directory, error) {
	d := &Directory{
		byID:        make(map[string]models.Tenant, len(tenants)),
		bySubdomain: make(map[string]models.Tenant, len(tenants)),
	}
	for _, t := range tenants {
		t.ID = strings.TrimSpace(t.ID)
		t.Subdomain = strings.ToLower(strings.TrimSpace(t.Subdomain))
		if t.ID == "" {
			return nil, fmt.Errorf("арендатор без id в настройках")
		}
		if _, dup := d.byID[t.ID]; dup {
			return nil, fmt.Errorf("повторяющийся id арендатора %q", t.ID)
		}
		if t.Subdomain != "" {
			if _, dup := d.bySubdomain[t.Subdomain]; dup {
				return nil, fmt.Errorf("повторяющийся поддомен %q", t.Subdomain)
			}
			d.bySubdomain[t.Subdomain] = t
		}
		d.byID[t.ID] = t
	}
	return d, nil
}

// LoadDirectory читает YAML-файл настроек. Пустой путь даёт пустой справочник.
func LoadDirectory(path string) (*Directory, error) {
	if path == "" {
		log.Println("TENANTS_FILE не задан, справочник арендаторов пуст.")
		return NewDirectory(nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения файла арендаторов %s: %w", path, err)
	}
	return ParseDirectory(raw)
}

// ParseDirectory разбирает YAML с настройками арендаторов.
func ParseDirectory(raw []byte) (*Directory, error) {
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("ошибка разбора YAML арендаторов: %w", err)
	}
	d, err := NewDirectory(f.Tenants)
	if err != nil {
		return nil, err
	}
	log.Printf("Загружено арендаторов: %d", len(f.Tenants))
	return d, nil
}

// ByID возвращает арендатора по id.
func (d *Directory) ByID(id string) (models.Tenant, bool) {
	t, ok := d.byID[id]
	return t, ok
}

// BySubdomain возвращает арендатора по поддомену.
func (d *Directory) BySubdomain(sub string) (models.Tenant, bool) {
	t, ok := d.bySubdomain[strings.ToLower(sub)]
	return t, ok
}

// LoyaltyThreshold реализует loyalty.ThresholdSource. 0 означает "не задан".
func (d *Directory) LoyaltyThreshold(tenantID string) int {
	t, ok := d.ByID(tenantID)
	if !ok {
		return 0
	}
	return t.LoyaltyThreshold
}

// DriverChatID возвращает Telegram-чат водителей арендатора (0, если не задан).
func (d *Directory) DriverChatID(tenantID string) int64 {
	t, ok := d.ByID(tenantID)
	if !ok {
		return 0
	}
	return t.DriverChatID
}
