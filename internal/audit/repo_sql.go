package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Hons90/CRM/pkg/utils"
)

// SQLRepo writes events to audit_events. It only ever INSERTs.
type SQLRepo struct {
	db utils.DBTX
}

func NewSQLRepo(db utils.DBTX) *SQLRepo { return &SQLRepo{db: db} }

func (r *SQLRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, type, actor_user_id, actor_role, ip_address, target_type, target_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`
	var actor sql.NullInt64
	if e.ActorUserID > 0 {
		actor = sql.NullInt64{Int64: e.ActorUserID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, string(e.Type), actor, e.ActorRole, e.IPAddress,
		e.TargetType, e.TargetID, e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("audit: insert event: %w", err)
	}
	return nil
}

// Recent returns the newest events first. Internal tooling only.
func (r *SQLRepo) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	const q = `
SELECT id, type, actor_user_id, actor_role, ip_address, target_type, target_id, message, metadata, created_at
FROM audit_events
ORDER BY created_at DESC
LIMIT $1
`
	rows, err := r.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var (
			e       Event
			typ     string
			actor   sql.NullInt64
			created time.Time
		)
		if err := rows.Scan(&e.ID, &typ, &actor, &e.ActorRole, &e.IPAddress, &e.TargetType, &e.TargetID, &e.Message, &e.Metadata, &created); err != nil {
			return nil, fmt.Errorf("audit: scan event: %w", err)
		}
		e.Type = EventType(typ)
		e.ActorUserID = actor.Int64
		e.CreatedAt = created.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
