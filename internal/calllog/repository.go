package calllog

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrInvalidEntry = errors.New("calllog: invalid entry")

// Repository is the persistence contract for call log rows.
//
// It MUST be append-only. No Update/Delete methods are provided by design.
type Repository interface {
	// Append inserts one initiated-call row.
	Append(ctx context.Context, e CallLog) error

	// CountForUserSince counts rows for one user with started_at >= since.
	CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// PostgresRepository implements Repository over database/sql.
type PostgresRepository struct {
	db *sql.DB
	// clock is injectable for deterministic tests.
	clock func() time.Time
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, clock: time.Now}
}

func (r *PostgresRepository) Append(ctx context.Context, e CallLog) error {
	if e.UserID == "" {
		return ErrInvalidEntry
	}
	if e.VendorCallID == "" {
		return ErrInvalidEntry
	}
	if e.Status == "" {
		e.Status = StatusInitiated
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = r.clock()
	}

	const q = `
INSERT INTO call_logs (id, user_id, user_email, vendor_call_id, status, started_at)
VALUES ($1,$2,$3,$4,$5,$6)
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID,
		e.UserID,
		e.UserEmail,
		e.VendorCallID,
		e.Status,
		e.StartedAt,
	)
	return err
}

func (r *PostgresRepository) CountForUserSince(ctx context.Context, userID string, since time.Time) (int, error) {
	if userID == "" {
		return 0, ErrInvalidEntry
	}

	const q = `
SELECT COUNT(*)
FROM call_logs
WHERE user_id = $1 AND started_at >= $2
`
	var n int
	if err := r.db.QueryRowContext(ctx, q, userID, since).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
