package backend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"iexpense/internal/config"
	"iexpense/internal/kv"
	"iexpense/internal/log"
)

func TestBackendTypeIsValid(t *testing.T) {
	for _, bt := range GetBackendTypes() {
		if !bt.IsValid() {
			t.Fatalf("%s should be valid", bt)
		}
	}
	if BackendType("sheets").IsValid() {
		t.Fatalf("sheets should not be valid")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		ok   bool
	}{
		{"memory", Config{Type: MemoryBackend}, true},
		{"sqlite with path", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, true},
		{"sqlite without path", Config{Type: SQLiteBackend}, false},
		{"redis with address", Config{Type: RedisBackend, RedisAddr: "localhost:6379"}, true},
		{"redis without address", Config{Type: RedisBackend}, false},
		{"unknown", Config{Type: "sheets"}, false},
	}
	for _, tc := range cases {
		if err := tc.cfg.Validate(); (err == nil) != tc.ok {
			t.Fatalf("%s: unexpected result %v", tc.name, err)
		}
	}
}

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatalf("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatalf("expected error for invalid backend")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "sqlite", SQLiteDBPath: "a.db"})
	if err != nil || cfg.Type != SQLiteBackend || cfg.SQLiteDBPath != "a.db" {
		t.Fatalf("unexpected conversion: %+v err=%v", cfg, err)
	}
	cfg, err = FromAppConfig(&config.Config{DataBackend: "redis", RedisAddr: "cache:6379", RedisDB: 2})
	if err != nil || cfg.Type != RedisBackend || cfg.RedisAddr != "cache:6379" || cfg.RedisDB != 2 {
		t.Fatalf("unexpected conversion: %+v err=%v", cfg, err)
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(log.Discard())

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "iexpense.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("create: %v", err)
			}
			defer res.Close()

			if _, err := res.Store.Get(ctx, "Items"); !errors.Is(err, kv.ErrNotFound) {
				t.Fatalf("expected empty store, got %v", err)
			}
			if err := res.Store.Set(ctx, "Items", []byte("[]")); err != nil {
				t.Fatalf("set: %v", err)
			}
		})
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "sheets"}); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}
