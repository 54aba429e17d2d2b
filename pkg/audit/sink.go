// Package audit appends workflow audit records. Appends are best-effort: a
// failed audit write is logged and never fails the primary operation.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"

	"github.com/Ramsey-B/laurel/pkg/database"
	"github.com/Ramsey-B/laurel/pkg/tracing"
)

// Entry is one audit record.
type Entry struct {
	ID         string          `db:"id"`
	ActorID    string          `db:"actor_id"`
	Action     string          `db:"action"`
	EntityKind string          `db:"entity_kind"`
	EntityID   string          `db:"entity_id"`
	Detail     json.RawMessage `db:"detail"`
	CreatedAt  time.Time       `db:"created_at"`
}

// Sink is the capability services depend on.
type Sink interface {
	Append(ctx context.Context, actorID, action, entityKind, entityID string, detail map[string]any)
}

// DBSink persists audit entries to the audit_logs table.
type DBSink struct {
	db     database.DB
	logger ectologger.Logger
}

func NewDBSink(db database.DB, logger ectologger.Logger) *DBSink {
	return &DBSink{db: db, logger: logger}
}

func (s *DBSink) Append(ctx context.Context, actorID, action, entityKind, entityID string, detail map[string]any) {
	ctx, span := tracing.StartSpan(ctx, "audit.DBSink.Append")
	defer span.End()

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).WithField("action", action).Error("Failed to serialize audit detail")
		detailJSON = []byte("{}")
	}

	ib := database.NewInsertBuilder()
	ib.InsertInto("audit_logs")
	ib.Cols("id", "actor_id", "action", "entity_kind", "entity_id", "detail", "created_at")
	ib.Values(uuid.New().String(), actorID, action, entityKind, entityID, detailJSON, time.Now().UTC())

	query, args := ib.Build()
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		s.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"action":      action,
			"entity_kind": entityKind,
			"entity_id":   entityID,
		}).Error("Failed to append audit record")
	}
}

// NopSink drops all entries; used in tests.
type NopSink struct{}

func (NopSink) Append(context.Context, string, string, string, string, map[string]any) {}
