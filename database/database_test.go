package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURL(t *testing.T) {
	tests := []struct {
		url     string
		dialect Dialect
		dsn     string
	}{
		{"postgres://u:p@db:5432/app?sslmode=disable", Postgres, "postgres://u:p@db:5432/app?sslmode=disable"},
		{"mysql://u:p@tcp(db:3306)/app", MySQL, "u:p@tcp(db:3306)/app?parseTime=true"},
		{"mysql://u:p@tcp(db:3306)/app?charset=utf8mb4", MySQL, "u:p@tcp(db:3306)/app?charset=utf8mb4&parseTime=true"},
		{"sqlite://data/app.db", SQLite, "file:data/app.db?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			dialect, dsn, err := ParseURL(tt.url)
			require.NoError(t, err)
			assert.Equal(t, tt.dialect, dialect)
			assert.Equal(t, tt.dsn, dsn)
		})
	}

	_, _, err := ParseURL("redis://localhost")
	assert.Error(t, err)
}

func TestRebind(t *testing.T) {
	query := "UPDATE t SET a = $2, b = $1 WHERE c = $2"
	args := []any{"one", "two"}

	q, a := (&DB{Dialect: Postgres}).Rebind(query, args)
	assert.Equal(t, query, q)
	assert.Equal(t, args, a)

	q, a = (&DB{Dialect: SQLite}).Rebind(query, args)
	assert.Equal(t, "UPDATE t SET a = ?2, b = ?1 WHERE c = ?2", q)
	assert.Equal(t, args, a)

	q, a = (&DB{Dialect: MySQL}).Rebind(query, args)
	assert.Equal(t, "UPDATE t SET a = ?, b = ? WHERE c = ?", q)
	assert.Equal(t, []any{"two", "one", "two"}, a)
}

func TestOpenSQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.db")
	db, err := Open(context.Background(), "sqlite://"+path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.ExecContext(context.Background(), "CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)")
	require.NoError(t, err)
	_, err = db.ExecContext(context.Background(), "INSERT INTO kv (k, v) VALUES ($1, $2)", "a", "b")
	require.NoError(t, err)

	var v string
	require.NoError(t, db.QueryRowContext(context.Background(), "SELECT v FROM kv WHERE k = $1", "a").Scan(&v))
	assert.Equal(t, "b", v)
}
