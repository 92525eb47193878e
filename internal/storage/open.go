package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	logx "tockbot/pkg/logx"
)

// Store is the persistence API used by the app and its modules.
type Store interface {
	// GetPermission returns the effective level for a user in a chat: the
	// higher of the user's global level and their level in that chat.
	// Unknown users are level 0.
	GetPermission(ctx context.Context, userID, chatID int64) (int, error)
	// SetPermission stores a level. chatID 0 sets the user's global level.
	SetPermission(ctx context.Context, userID, chatID int64, level int) error

	AppendAudit(ctx context.Context, e AuditEntry) error
	// PruneAudit deletes audit rows older than the cutoff and reports how
	// many were removed.
	PruneAudit(ctx context.Context, olderThan time.Time) (int64, error)

	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if storage is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
}
