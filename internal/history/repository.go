// Package history records every completed pair attempt in the
// pair_attempts table so operators can see what was booked and why
// something was refused.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Result values stored for an attempt.
const (
	ResultOK        = "ok"
	ResultRefused   = "refused"
	ResultFailed    = "failed"
	ResultNoConnect = "not_connected"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Attempt is one completed pair sent (or not) to the inventory.
type Attempt struct {
	ID          int64         `json:"id"`
	DeviceID    uint32        `json:"device_id"`
	Prefix      string        `json:"prefix"`
	NID         string        `json:"nid"`
	Location    string        `json:"location,omitempty"`
	Outcome     string        `json:"outcome"`
	Result      string        `json:"result"`
	ExitStatus  *int          `json:"exit_status,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	AttemptedAt time.Time     `json:"attempted_at"`
}

// Filter controls which attempts Recent returns.
type Filter struct {
	NID      string // optional
	DeviceID uint32 // optional, 0 for all
	Result   string // optional
	Limit    int    // default 50, max 500
}

// Repository stores pair attempts.
type Repository interface {
	Record(ctx context.Context, a *Attempt) error
	Recent(ctx context.Context, filter Filter) ([]Attempt, error)
}

// SQLiteRepository stores attempts in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on a migrated history database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Record inserts a. AttemptedAt is set to now if zero; ID is filled in.
func (r *SQLiteRepository) Record(ctx context.Context, a *Attempt) error {
	if a.AttemptedAt.IsZero() {
		a.AttemptedAt = time.Now().UTC()
	}

	var exitStatus any
	if a.ExitStatus != nil {
		exitStatus = *a.ExitStatus
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO pair_attempts
			(device_id, prefix, nid, location, outcome, result, exit_status, error, duration_ms, attempted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.DeviceID, a.Prefix, a.NID, nullableString(a.Location),
		a.Outcome, a.Result, exitStatus, nullableString(a.Error),
		a.Duration.Milliseconds(), a.AttemptedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting pair attempt: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading pair attempt id: %w", err)
	}
	a.ID = id
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Recent returns attempts matching filter, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, filter Filter) ([]Attempt, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}

	var conditions []string
	var args []any

	if filter.NID != "" {
		conditions = append(conditions, "nid = ?")
		args = append(args, filter.NID)
	}
	if filter.DeviceID != 0 {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}
	if filter.Result != "" {
		conditions = append(conditions, "result = ?")
		args = append(args, filter.Result)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, device_id, prefix, nid, location, outcome, result, exit_status, error, duration_ms, attempted_at
		 FROM pair_attempts %s ORDER BY attempted_at DESC, id DESC LIMIT ?`,
		where,
	)
	args = append(args, filter.Limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pair attempts: %w", err)
	}
	defer rows.Close()

	attempts := []Attempt{}
	for rows.Next() {
		var a Attempt
		var location, errText sql.NullString
		var exitStatus sql.NullInt64
		var durationMS int64
		var attemptedAt string

		if err := rows.Scan(&a.ID, &a.DeviceID, &a.Prefix, &a.NID, &location,
			&a.Outcome, &a.Result, &exitStatus, &errText, &durationMS, &attemptedAt); err != nil {
			return nil, fmt.Errorf("scanning pair attempt: %w", err)
		}

		a.Location = location.String
		a.Error = errText.String
		if exitStatus.Valid {
			status := int(exitStatus.Int64)
			a.ExitStatus = &status
		}
		a.Duration = time.Duration(durationMS) * time.Millisecond

		t, err := time.Parse(time.RFC3339Nano, attemptedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing pair attempt timestamp %q: %w", attemptedAt, err)
		}
		a.AttemptedAt = t

		attempts = append(attempts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pair attempts: %w", err)
	}
	return attempts, nil
}
