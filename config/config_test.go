package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("PORT", "")
	t.Setenv("PRESIGN_TTL", "")
	t.Setenv("TX_RETRY_ATTEMPTS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.PresignTTL != 15*time.Minute {
		t.Fatalf("expected 15m presign ttl, got %s", cfg.PresignTTL)
	}
	if cfg.TxRetryAttempts != 2 || cfg.TxRetryBackoff != time.Second {
		t.Fatalf("unexpected retry policy: %d %s", cfg.TxRetryAttempts, cfg.TxRetryBackoff)
	}
}

func TestLoadReportsInvalidValues(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("PRESIGN_TTL", "soon")
	t.Setenv("RATE_LIMIT_BURST", "many")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"JWT_SECRET", "PRESIGN_TTL", "RATE_LIMIT_BURST"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not name %s", err, want)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("CUADRO_TEST_VAR=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	wd, _ := os.Getwd()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(wd)
		_ = os.Unsetenv("CUADRO_TEST_VAR")
	})

	if !LoadDotEnv() {
		t.Fatal("expected .env to be found")
	}
	if got := os.Getenv("CUADRO_TEST_VAR"); got != "from-dotenv" {
		t.Fatalf("expected value from .env, got %q", got)
	}
}
