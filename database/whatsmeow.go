package database

import (
	"context"
	"fmt"

	"go.mau.fi/whatsmeow/store/sqlstore"
	waLog "go.mau.fi/whatsmeow/util/log"
)

// OpenDeviceStore opens the whatsmeow device container. Only postgres and
// sqlite are supported by sqlstore.
func OpenDeviceStore(ctx context.Context, url string, log waLog.Logger) (*sqlstore.Container, error) {
	dialect, dsn, err := ParseURL(url)
	if err != nil {
		return nil, err
	}
	switch dialect {
	case Postgres:
	case SQLite:
		if err := ensureDir(dsn); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("device store does not support %s", dialect)
	}

	container, err := sqlstore.New(ctx, string(dialect), dsn, log)
	if err != nil {
		return nil, fmt.Errorf("open device store: %w", err)
	}
	return container, nil
}
