package postgres

import (
	"testing"
	"time"

	"github.com/ogurasousui/codex-library-loans/internal/platform/config"
)

func TestBuildPoolConfig(t *testing.T) {
	t.Parallel()

	dbCfg := config.DatabaseConfig{
		Host:            "localhost",
		Port:            15432,
		User:            "user",
		Password:        "pass",
		Name:            "library",
		SSLMode:         "disable",
		MaxOpenConns:    20,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 10 * time.Minute,
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.MaxConns != 20 {
		t.Errorf("expected MaxConns 20, got %d", poolCfg.MaxConns)
	}

	if poolCfg.MinConns != 5 {
		t.Errorf("expected MinConns 5, got %d", poolCfg.MinConns)
	}

	if poolCfg.MaxConnLifetime != 30*time.Minute {
		t.Errorf("unexpected MaxConnLifetime: %v", poolCfg.MaxConnLifetime)
	}

	if poolCfg.MaxConnIdleTime != 10*time.Minute {
		t.Errorf("unexpected MaxConnIdleTime: %v", poolCfg.MaxConnIdleTime)
	}

	if poolCfg.ConnConfig.Database != "library" {
		t.Errorf("expected database library, got %s", poolCfg.ConnConfig.Database)
	}

	if poolCfg.ConnConfig.RuntimeParams["timezone"] != "UTC" {
		t.Errorf("expected session timezone UTC, got %q", poolCfg.ConnConfig.RuntimeParams["timezone"])
	}
}

func TestBuildPoolConfig_EscapedCredentials(t *testing.T) {
	t.Parallel()

	dbCfg := config.DatabaseConfig{
		Host:     "db.local",
		Port:     5432,
		User:     "librarian@campus",
		Password: "p@ss:word/1",
		Name:     "library",
		SSLMode:  "disable",
	}

	poolCfg, err := BuildPoolConfig(dbCfg)
	if err != nil {
		t.Fatalf("BuildPoolConfig returned error: %v", err)
	}

	if poolCfg.ConnConfig.User != "librarian@campus" {
		t.Errorf("unexpected user %q", poolCfg.ConnConfig.User)
	}
	if poolCfg.ConnConfig.Password != "p@ss:word/1" {
		t.Errorf("unexpected password %q", poolCfg.ConnConfig.Password)
	}
	if poolCfg.ConnConfig.Host != "db.local" || poolCfg.ConnConfig.Port != 5432 {
		t.Errorf("unexpected host %s:%d", poolCfg.ConnConfig.Host, poolCfg.ConnConfig.Port)
	}
}
