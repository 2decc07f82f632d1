package config

import (
	"testing"
	"time"
)

func TestLoadConfigParsesDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://courier:pw@db.internal:6432/deliveries?sslmode=disable")
	t.Setenv("DB_DRIVER", "")
	t.Setenv("PORT", "")
	t.Setenv("LOYALTY_THRESHOLD", "abc")
	t.Setenv("STORE_HEALTH_TTL", "45s")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBHost != "db.internal" || cfg.DBPort != "6432" || cfg.DBName != "deliveries" {
		t.Fatalf("db = %s:%s/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if cfg.DBDriver != defaultDBDriver || cfg.Port != defaultPort {
		t.Fatalf("driver=%q port=%q", cfg.DBDriver, cfg.Port)
	}
	if cfg.LoyaltyThreshold != defaultLoyaltyThreshold {
		t.Fatalf("invalid threshold must fall back, got %d", cfg.LoyaltyThreshold)
	}
	if cfg.StoreHealthTTL != 45*time.Second {
		t.Fatalf("ttl = %s", cfg.StoreHealthTTL)
	}
}

func TestLoadConfigDefaultsDBPort(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db.internal/deliveries")
	t.Setenv("DB_DRIVER", "pgx")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.DBPort != "5432" || cfg.DBDriver != "pgx" {
		t.Fatalf("port=%q driver=%q", cfg.DBPort, cfg.DBDriver)
	}
}

func TestLoadConfigRejectsUnknownDriver(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://db.internal/deliveries")
	t.Setenv("DB_DRIVER", "mysql")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for unknown driver")
	}

	t.Setenv("DB_DRIVER", "")
	t.Setenv("DATABASE_URL", "")
	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for missing DATABASE_URL")
	}
}
