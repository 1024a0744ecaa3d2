package database

import (
	"strings"
	"testing"
)

func TestDialectSQLite(t *testing.T) {
	dialect := NewSQLiteDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "sqlite3"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "sqlite"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectPostgreSQL(t *testing.T) {
	dialect := NewPostgresDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "postgres"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "postgres"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestDialectMySQL(t *testing.T) {
	dialect := NewMySQLDialect()

	t.Run("DriverName", func(t *testing.T) {
		result := dialect.DriverName()
		expected := "mysql"
		if result != expected {
			t.Errorf("DriverName() = %v, want %v", result, expected)
		}
	})

	t.Run("MigrationsSubdir", func(t *testing.T) {
		result := dialect.MigrationsSubdir()
		expected := "mysql"
		if result != expected {
			t.Errorf("MigrationsSubdir() = %v, want %v", result, expected)
		}
	})
}

func TestRewriteQuery(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		query    string
		expected string
	}{
		{
			name:     "SQLite no change",
			dialect:  NewSQLiteDialect(),
			query:    "SELECT storage_value FROM origin_storage WHERE origin = ?",
			expected: "SELECT storage_value FROM origin_storage WHERE origin = ?",
		},
		{
			name:     "PostgreSQL single placeholder",
			dialect:  NewPostgresDialect(),
			query:    "SELECT storage_value FROM origin_storage WHERE origin = ?",
			expected: "SELECT storage_value FROM origin_storage WHERE origin = $1",
		},
		{
			name:     "PostgreSQL multiple placeholders",
			dialect:  NewPostgresDialect(),
			query:    "DELETE FROM origin_storage WHERE origin = ? AND storage_key = ?",
			expected: "DELETE FROM origin_storage WHERE origin = $1 AND storage_key = $2",
		},
		{
			name:     "MySQL no change",
			dialect:  NewMySQLDialect(),
			query:    "UPDATE origin_storage SET storage_value = ? WHERE origin = ? AND storage_key = ?",
			expected: "UPDATE origin_storage SET storage_value = ? WHERE origin = ? AND storage_key = ?",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.dialect.RewriteQuery(tt.query)
			if result != tt.expected {
				t.Errorf("RewriteQuery() = %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestUpsertStorage(t *testing.T) {
	tests := []struct {
		name     string
		dialect  Dialect
		contains []string
	}{
		{
			name:     "SQLite",
			dialect:  NewSQLiteDialect(),
			contains: []string{"ON CONFLICT (origin, storage_key)", "excluded.storage_value", "VALUES (?, ?, ?,"},
		},
		{
			name:     "PostgreSQL",
			dialect:  NewPostgresDialect(),
			contains: []string{"ON CONFLICT (origin, storage_key)", "EXCLUDED.storage_value"},
		},
		{
			name:     "MySQL",
			dialect:  NewMySQLDialect(),
			contains: []string{"ON DUPLICATE KEY UPDATE", "VALUES(storage_value)"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query := tt.dialect.UpsertStorage()
			for _, want := range tt.contains {
				if !strings.Contains(query, want) {
					t.Errorf("UpsertStorage() = %q, missing %q", query, want)
				}
			}
		})
	}

	rewritten := NewPostgresDialect().RewriteQuery(NewPostgresDialect().UpsertStorage())
	if !strings.Contains(rewritten, "VALUES ($1, $2, $3,") {
		t.Errorf("postgres upsert placeholders not rewritten: %q", rewritten)
	}
}

func TestDialectFor(t *testing.T) {
	tests := []struct {
		dbType  string
		want    string
		wantErr bool
	}{
		{dbType: "", want: "sqlite3"},
		{dbType: "SQLite", want: "sqlite3"},
		{dbType: "postgresql", want: "postgres"},
		{dbType: "mysql", want: "mysql"},
		{dbType: "oracle", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.dbType, func(t *testing.T) {
			dialect, _, err := DialectFor(tt.dbType, "x.db", "dsn")
			if (err != nil) != tt.wantErr {
				t.Fatalf("DialectFor() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil && dialect.DriverName() != tt.want {
				t.Errorf("DriverName() = %v, want %v", dialect.DriverName(), tt.want)
			}
		})
	}
}
