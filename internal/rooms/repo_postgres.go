package rooms

import (
	"context"
	"database/sql"
	"errors"
)

// PostgresDirectory reads rooms from the chat service's tables.
//
// Assumed tables:
//
//	rooms (id TEXT PRIMARY KEY, name TEXT NOT NULL)
//	room_participants (room_id TEXT, user_id TEXT, PRIMARY KEY (room_id, user_id))
type PostgresDirectory struct {
	db *sql.DB
}

func NewPostgresDirectory(db *sql.DB) *PostgresDirectory {
	return &PostgresDirectory{db: db}
}

func (d *PostgresDirectory) RoomByID(ctx context.Context, id string) (Room, error) {
	var r Room
	err := d.db.QueryRowContext(ctx, `SELECT id, name FROM rooms WHERE id = $1`, id).
		Scan(&r.ID, &r.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return Room{}, ErrNotFound
	}
	if err != nil {
		return Room{}, err
	}

	rows, err := d.db.QueryContext(ctx, `
SELECT user_id FROM room_participants WHERE room_id = $1 ORDER BY user_id
`, id)
	if err != nil {
		return Room{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var uid string
		if err := rows.Scan(&uid); err != nil {
			return Room{}, err
		}
		r.ParticipantIDs = append(r.ParticipantIDs, uid)
	}
	return r, rows.Err()
}

func (d *PostgresDirectory) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `
SELECT 1 FROM room_participants WHERE room_id = $1 AND user_id = $2
`, roomID, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "not a member" from "no such room".
		var exists int
		err2 := d.db.QueryRowContext(ctx, `SELECT 1 FROM rooms WHERE id = $1`, roomID).Scan(&exists)
		if errors.Is(err2, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		if err2 != nil {
			return false, err2
		}
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
