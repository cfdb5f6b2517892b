package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/equinox-erp/equinox/internal/platform/db"
)

// SystemActor is recorded when an entry carries no actor.
const SystemActor = "system"

// AuditLog is one row of audit_logs.
type AuditLog struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	Meta     map[string]any
	At       time.Time
}

// AuditLogger appends entries to audit_logs.
type AuditLogger struct {
	db  db.Querier
	now func() time.Time
}

// NewAuditLogger returns a logger writing through q.
func NewAuditLogger(q db.Querier) *AuditLogger {
	return &AuditLogger{db: q, now: time.Now}
}

func (e AuditLog) check() error {
	var missing []string
	if e.Action == "" {
		missing = append(missing, "action")
	}
	if e.Entity == "" {
		missing = append(missing, "entity")
	}
	if e.EntityID == "" {
		missing = append(missing, "entity_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("audit log missing %v", missing)
	}
	return nil
}

// Record persists entry. Empty Meta is stored as NULL and a zero At as the
// logger's current time.
func (l *AuditLogger) Record(ctx context.Context, entry AuditLog) error {
	if l == nil || l.db == nil {
		return errors.New("audit logger not initialised")
	}
	if err := entry.check(); err != nil {
		return err
	}
	if entry.Actor == "" {
		entry.Actor = SystemActor
	}
	if entry.At.IsZero() {
		entry.At = l.now()
	}
	var meta []byte
	if len(entry.Meta) > 0 {
		var err error
		if meta, err = json.Marshal(entry.Meta); err != nil {
			return fmt.Errorf("encode audit meta: %w", err)
		}
	}
	_, err := l.db.Exec(ctx,
		`INSERT INTO audit_logs (actor, action, entity, entity_id, meta, occurred_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, meta, entry.At.UTC())
	if err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
