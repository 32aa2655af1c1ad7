package main

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

type DatabaseInterface interface {
	ReserveSeats(ctx context.Context, eventID string, seats int) (bool, error)
	CreateReservationLog(ctx context.Context, params CreateReservationLogParams) error
	Close() error
}

type Database struct {
	db      *sql.DB
	queries *Queries
}

func NewDatabase(databaseURL string) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	return &Database{
		db:      db,
		queries: New(db),
	}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) ReserveSeats(ctx context.Context, eventID string, seats int) (bool, error) {
	return d.queries.ReserveSeats(ctx, eventID, seats)
}

func (d *Database) CreateReservationLog(ctx context.Context, params CreateReservationLogParams) error {
	return d.queries.CreateReservationLog(ctx, params)
}

type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

type CreateReservationLogParams struct {
	MessageID string
	EventID   string
	UserID    string
	Seats     int
	Status    string
	CreatedAt time.Time
}

type Event struct {
	ID             int64     `json:"id"`
	EventID        string    `json:"event_id"`
	Name           string    `json:"name"`
	SeatsTotal     int       `json:"seats_total"`
	SeatsAvailable int       `json:"seats_available"`
	CreatedAt      time.Time `json:"created_at"`
}

type ReservationLog struct {
	ID        int64     `json:"id"`
	MessageID string    `json:"message_id"`
	EventID   string    `json:"event_id"`
	UserID    string    `json:"user_id"`
	Seats     int       `json:"seats"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

const reserveSeats = `-- name: ReserveSeats :execrows
UPDATE events
SET seats_available = seats_available - $2
WHERE event_id = $1 AND seats_available >= $2
`

// ReserveSeats decrements the available seat count iff enough seats remain.
// The conditional update is atomic on the database side; the caller-held
// process mutex keeps this instance's updates serialized on top of that.
func (q *Queries) ReserveSeats(ctx context.Context, eventID string, seats int) (bool, error) {
	result, err := q.db.ExecContext(ctx, reserveSeats, eventID, seats)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

const createReservationLog = `-- name: CreateReservationLog :exec
INSERT INTO reservation_logs (message_id, event_id, user_id, seats, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (message_id) DO NOTHING
`

func (q *Queries) CreateReservationLog(ctx context.Context, arg CreateReservationLogParams) error {
	_, err := q.db.ExecContext(ctx, createReservationLog,
		arg.MessageID,
		arg.EventID,
		arg.UserID,
		arg.Seats,
		arg.Status,
		arg.CreatedAt,
	)
	return err
}
