package audit

import (
	"context"
	"database/sql"
)

// PostgresRepo appends audit events to an append-only table.
//
// Assumed table:
//
//	call_audit (
//	    id            TEXT PRIMARY KEY,
//	    type          TEXT NOT NULL,
//	    room_id       TEXT NOT NULL,
//	    call_id       TEXT NOT NULL,
//	    actor_user_id TEXT,
//	    message       TEXT,
//	    metadata      TEXT,
//	    created_at    TIMESTAMPTZ NOT NULL
//	)
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO call_audit (id, type, room_id, call_id, actor_user_id, message, metadata, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`,
		e.ID, string(e.Type), e.RoomID, e.CallID, e.ActorUserID, e.Message, e.Metadata, e.CreatedAt,
	)
	return err
}
