package calls

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Vivekkumarprince1/backend-vaani/pkg/utils"
	"github.com/google/uuid"
)

// PostgresStore persists call sessions in Postgres via database/sql (pgx
// stdlib driver).
//
// Assumed table:
//
//	call_sessions (
//	    id                  TEXT PRIMARY KEY,
//	    room_id             TEXT NOT NULL,
//	    session_channel     TEXT NOT NULL,
//	    initiator_id        TEXT NOT NULL,
//	    call_type           TEXT NOT NULL,
//	    status              TEXT NOT NULL,
//	    participants        JSONB NOT NULL,
//	    active_participants JSONB NOT NULL,
//	    started_at          TIMESTAMPTZ NOT NULL,
//	    ended_at            TIMESTAMPTZ,
//	    duration_seconds    INT NOT NULL DEFAULT 0,
//	    version             BIGINT NOT NULL,
//	    updated_at          TIMESTAMPTZ NOT NULL
//	)
//
// Concurrency: every write is guarded by `WHERE version = $n`; zero rows
// affected on an existing session means a concurrent writer won, reported as
// ErrWriteConflict so the caller can retry.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const sessionColumns = `id, room_id, session_channel, initiator_id, call_type, status,
participants, active_participants, started_at, ended_at, duration_seconds, version`

func (r *PostgresStore) FindActiveSessionForRoom(ctx context.Context, roomID string) (*CallSession, error) {
	q := `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE room_id = $1 AND status IN ('ringing', 'active')
ORDER BY started_at DESC
LIMIT 1
`
	return r.queryOne(ctx, q, roomID)
}

func (r *PostgresStore) CreateSession(ctx context.Context, s *CallSession) (*CallSession, error) {
	stored := s.Clone()
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	stored.Version = 1

	participants, active, err := marshalSessionJSON(stored)
	if err != nil {
		return nil, err
	}

	// The lookup-before-create in the service is racy across processes; the
	// insert runs in a transaction that re-checks for a live session so two
	// concurrent initiators cannot both create one.
	err = utils.WithTx(ctx, r.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		var existing string
		err := tx.QueryRowContext(ctx, `
SELECT id FROM call_sessions
WHERE room_id = $1 AND status IN ('ringing', 'active')
FOR UPDATE
`, stored.RoomID).Scan(&existing)
		switch {
		case err == nil:
			return fmt.Errorf("room %s already has live session %s: %w", stored.RoomID, existing, ErrWriteConflict)
		case errors.Is(err, sql.ErrNoRows):
			// free to create
		default:
			return err
		}

		_, err = tx.ExecContext(ctx, `
INSERT INTO call_sessions
  (id, room_id, session_channel, initiator_id, call_type, status,
   participants, active_participants, started_at, ended_at, duration_seconds, version, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
`,
			stored.ID, stored.RoomID, stored.SessionChannel, stored.InitiatorID,
			string(stored.CallType), string(stored.Status),
			participants, active,
			stored.StartedAt, nullTime(stored.EndedAt), stored.DurationSeconds,
			stored.Version, stored.StartedAt,
		)
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

func (r *PostgresStore) FindSessionByID(ctx context.Context, id string) (*CallSession, error) {
	q := `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE id = $1
`
	return r.queryOne(ctx, q, id)
}

func (r *PostgresStore) ConditionalUpdateParticipant(ctx context.Context, sessionID, userID string, upd ParticipantUpdate) (*CallSession, error) {
	cur, err := r.FindSessionByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	p := cur.ParticipantByID(userID)
	if p == nil {
		return nil, ErrNotFound
	}
	// Ended is terminal; late writers get the final state back unchanged.
	if cur.Status == StatusEnded {
		return cur, nil
	}
	applyParticipantUpdate(cur, p, userID, upd)
	if err := r.writeGuarded(ctx, cur); err != nil {
		return nil, err
	}
	return cur, nil
}

func (r *PostgresStore) SaveSession(ctx context.Context, s *CallSession) error {
	return r.writeGuarded(ctx, s)
}

func (r *PostgresStore) ListPendingForUser(ctx context.Context, userID string) ([]*CallSession, error) {
	invited, err := json.Marshal([]map[string]string{{"user_id": userID, "status": string(ParticipantInvited)}})
	if err != nil {
		return nil, err
	}
	q := `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE status = 'ringing' AND participants @> $1::jsonb
ORDER BY started_at DESC
`
	return r.queryMany(ctx, q, string(invited))
}

func (r *PostgresStore) ListSessionsForRoom(ctx context.Context, roomID string, from, to time.Time) ([]*CallSession, error) {
	q := `
SELECT ` + sessionColumns + `
FROM call_sessions
WHERE room_id = $1 AND started_at >= $2 AND started_at < $3
ORDER BY started_at DESC
`
	return r.queryMany(ctx, q, roomID, from, to)
}

// writeGuarded performs the version-CAS update and bumps s.Version on success.
func (r *PostgresStore) writeGuarded(ctx context.Context, s *CallSession) error {
	participants, active, err := marshalSessionJSON(s)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE call_sessions
SET status = $2,
    participants = $3,
    active_participants = $4,
    ended_at = $5,
    duration_seconds = $6,
    version = version + 1,
    updated_at = now()
WHERE id = $1 AND version = $7
`,
		s.ID, string(s.Status), participants, active,
		nullTime(s.EndedAt), s.DurationSeconds, s.Version,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var one int
		err := r.db.QueryRowContext(ctx, `SELECT 1 FROM call_sessions WHERE id = $1`, s.ID).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrWriteConflict
	}
	s.Version++
	return nil
}

func (r *PostgresStore) queryOne(ctx context.Context, q string, args ...any) (*CallSession, error) {
	row := r.db.QueryRowContext(ctx, q, args...)
	s, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresStore) queryMany(ctx context.Context, q string, args ...any) ([]*CallSession, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*CallSession, 0)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*CallSession, error) {
	var (
		s            CallSession
		callType     string
		status       string
		participants []byte
		active       []byte
		endedAt      sql.NullTime
	)
	if err := row.Scan(
		&s.ID,
		&s.RoomID,
		&s.SessionChannel,
		&s.InitiatorID,
		&callType,
		&status,
		&participants,
		&active,
		&s.StartedAt,
		&endedAt,
		&s.DurationSeconds,
		&s.Version,
	); err != nil {
		return nil, err
	}
	s.CallType = CallType(callType)
	s.Status = SessionStatus(status)
	if endedAt.Valid {
		t := endedAt.Time
		s.EndedAt = &t
	}
	if err := json.Unmarshal(participants, &s.Participants); err != nil {
		return nil, fmt.Errorf("decode participants for session %s: %w", s.ID, err)
	}
	if err := json.Unmarshal(active, &s.ActiveParticipants); err != nil {
		return nil, fmt.Errorf("decode active participants for session %s: %w", s.ID, err)
	}
	return &s, nil
}

func marshalSessionJSON(s *CallSession) (participants, active []byte, err error) {
	participants, err = json.Marshal(s.Participants)
	if err != nil {
		return nil, nil, err
	}
	if s.ActiveParticipants == nil {
		active = []byte("[]")
	} else if active, err = json.Marshal(s.ActiveParticipants); err != nil {
		return nil, nil, err
	}
	return participants, active, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
