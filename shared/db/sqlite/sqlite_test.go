package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func TestNewSQLiteConfig(t *testing.T) {
	tests := []struct {
		name     string
		envValue string
		want     string
	}{
		{
			name:     "env variable",
			envValue: "/tmp/env.db",
			want:     "/tmp/env.db",
		},
		{
			name: "default path",
			want: "./storefront.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SQLITE_DB_PATH", tt.envValue)

			database := NewSQLiteDB(NewSQLiteConfig())

			if database.dbPath != tt.want {
				t.Errorf("dbPath = %v, want %v", database.dbPath, tt.want)
			}
		})
	}
}

func TestSQLiteDB_Connect(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})

	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	if database.DB() == nil {
		t.Error("DB() returned nil after Connect()")
	}

	if err := database.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}

	if err := database.Connect(); err == nil {
		t.Error("Connect() should return error when already connected")
	}
}

func TestSQLiteDB_Close(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")})

	if err := database.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}

	if err := database.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}

	if database.DB() != nil {
		t.Error("DB() should return nil after Close()")
	}

	if err := database.Ping(context.Background()); err == nil {
		t.Error("Ping() should fail after Close()")
	}
}

func TestSQLiteDB_PragmasOnEveryConnection(t *testing.T) {
	database := NewSQLiteDB(&SQLiteConfig{Path: filepath.Join(t.TempDir(), "pragma.db")})
	if err := database.Connect(); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer database.Close()

	ctx := context.Background()

	// hold one connection so the next query needs a second
	held, err := database.DB().Conn(ctx)
	if err != nil {
		t.Fatalf("Conn() error = %v", err)
	}
	defer held.Close()

	var fk, timeout int
	if err := database.DB().QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("foreign_keys query error = %v", err)
	}
	if err := database.DB().QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("busy_timeout query error = %v", err)
	}

	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestDSN(t *testing.T) {
	if got := dsn("a.db"); got[:5] != "a.db?" {
		t.Errorf("dsn() = %q, want a.db?...", got)
	}
	if got := dsn("a.db?mode=ro"); got[:13] != "a.db?mode=ro&" {
		t.Errorf("dsn() = %q, want existing query kept", got)
	}
}
