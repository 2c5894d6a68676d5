package utils

import (
	"crypto/tls"
	"path/filepath"
	"testing"
)

func TestBuildPostgresDSNFromEnv(t *testing.T) {
	t.Setenv("PG_HOST", "db")
	t.Setenv("PG_PORT", "")
	t.Setenv("PG_USER", "")
	t.Setenv("PG_PASSWORD", "secret")
	t.Setenv("PG_DB", "")
	t.Setenv("PG_SSLMODE", "")
	want := "postgres://postgres:secret@db:5432/sentinel?sslmode=disable"
	if got := BuildPostgresDSNFromEnv(); got != want {
		t.Fatalf("dsn = %q, want %q", got, want)
	}
}

func TestDBEnabled(t *testing.T) {
	t.Setenv("DB_ENABLED", "")
	if !DBEnabled() {
		t.Error("default should be enabled")
	}
	t.Setenv("DB_ENABLED", "False")
	if DBEnabled() {
		t.Error("DB_ENABLED=False should disable")
	}
}

func TestOpenRedisFromEnv_Disabled(t *testing.T) {
	t.Setenv("REDIS_ENABLED", "false")
	if c := OpenRedisFromEnv(); c != nil {
		t.Fatal("expected nil client")
	}
}

func TestEnsureSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	cert := filepath.Join(dir, "certs", "server.crt")
	key := filepath.Join(dir, "certs", "server.key")
	if err := EnsureSelfSignedCert(cert, key, "sentinel.local"); err != nil {
		t.Fatal(err)
	}
	if _, err := tls.LoadX509KeyPair(cert, key); err != nil {
		t.Fatalf("load pair: %v", err)
	}
	// 已存在时不重写
	if err := EnsureSelfSignedCert(cert, key, "other"); err != nil {
		t.Fatal(err)
	}
}
