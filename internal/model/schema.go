package model

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"gowa-broadcast/database"
)

var schemaTables = []string{`
        CREATE TABLE IF NOT EXISTS contacts (
            phone           VARCHAR(32) PRIMARY KEY,
            name            VARCHAR(255) NOT NULL,
            nickname        VARCHAR(255) NOT NULL DEFAULT '',
            title           VARCHAR(255) NOT NULL DEFAULT '',
            is_active       BOOLEAN NOT NULL DEFAULT TRUE,
            last_chat_date  {{ts}} NULL,
            created_at      {{ts}} NOT NULL,
            updated_at      {{ts}} NOT NULL
        )`, `
        CREATE TABLE IF NOT EXISTS templates (
            id              VARCHAR(36) PRIMARY KEY,
            name            VARCHAR(255) NOT NULL UNIQUE,
            content         TEXT NOT NULL,
            is_active       BOOLEAN NOT NULL DEFAULT TRUE,
            created_at      {{ts}} NOT NULL,
            updated_at      {{ts}} NOT NULL
        )`, `
        CREATE TABLE IF NOT EXISTS categories (
            id              VARCHAR(36) PRIMARY KEY,
            name            VARCHAR(255) NOT NULL UNIQUE,
            description     VARCHAR(1024) NOT NULL DEFAULT '',
            is_active       BOOLEAN NOT NULL DEFAULT TRUE,
            created_at      {{ts}} NOT NULL,
            updated_at      {{ts}} NOT NULL
        )`, `
        CREATE TABLE IF NOT EXISTS contact_categories (
            category_id     VARCHAR(36) NOT NULL REFERENCES categories(id),
            phone           VARCHAR(32) NOT NULL REFERENCES contacts(phone),
            created_at      {{ts}} NOT NULL,
            PRIMARY KEY (category_id, phone)
        )`, `
        CREATE TABLE IF NOT EXISTS dispatch_jobs (
            id              VARCHAR(36) PRIMARY KEY,
            state           VARCHAR(16) NOT NULL,
            total           INT NOT NULL DEFAULT 0,
            success         INT NOT NULL DEFAULT 0,
            failure         INT NOT NULL DEFAULT 0,
            template_id     VARCHAR(36) NULL,
            error           TEXT NULL,
            scheduled_at    {{ts}} NOT NULL,
            started_at      {{ts}} NULL,
            finished_at     {{ts}} NULL,
            created_at      {{ts}} NOT NULL
        )`,
}

var schemaIndexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_contacts_is_active ON contacts(is_active)`,
	`CREATE INDEX IF NOT EXISTS idx_contacts_last_chat_date ON contacts(last_chat_date)`,
	`CREATE INDEX IF NOT EXISTS idx_contact_categories_phone ON contact_categories(phone)`,
	`CREATE INDEX IF NOT EXISTS idx_dispatch_jobs_created_at ON dispatch_jobs(created_at)`,
}

// Columns added to contacts after the first release.
var contactColumnUpgrades = []struct{ column, ddl string }{
	{"nickname", `ALTER TABLE contacts ADD COLUMN nickname VARCHAR(255) NOT NULL DEFAULT ''`},
	{"title", `ALTER TABLE contacts ADD COLUMN title VARCHAR(255) NOT NULL DEFAULT ''`},
}

// EnsureSchema creates the application tables when they are missing.
func EnsureSchema(ctx context.Context, db *database.DB) error {
	ts := "TIMESTAMP"
	if db.Dialect == database.MySQL {
		ts = "DATETIME(6)"
	}

	for _, ddl := range schemaTables {
		if _, err := db.ExecContext(ctx, strings.ReplaceAll(ddl, "{{ts}}", ts)); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	for _, up := range contactColumnUpgrades {
		if hasColumn(ctx, db, "contacts", up.column) {
			continue
		}
		if _, err := db.ExecContext(ctx, up.ddl); err != nil {
			return fmt.Errorf("add contacts.%s: %w", up.column, err)
		}
	}

	// mysql has no CREATE INDEX IF NOT EXISTS
	if db.Dialect == database.MySQL {
		return nil
	}
	for _, ddl := range schemaIndexes {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}
	return nil
}

func hasColumn(ctx context.Context, db *database.DB, table, column string) bool {
	var v any
	err := db.QueryRowContext(ctx, `SELECT `+column+` FROM `+table+` WHERE 1 = 0`).Scan(&v)
	return err == nil || errors.Is(err, sql.ErrNoRows)
}
