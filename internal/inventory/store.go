package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/autoscan-core/internal/barcode"
)

const readDateLayout = "2006-01-02 15:04:05"

// Endpoint is one row of the endpoints table.
type Endpoint struct {
	NetworkID      string
	LocationPrefix string
	Location       string
	ReadDate       string
	SocketForm     string
	Voltage        string
	ProductName    string
	ProductID      string
	User           string
	Comment        string
}

// Reserved reports whether someone has claimed the endpoint.
func (e *Endpoint) Reserved() bool {
	return e.User != "" || e.Comment != ""
}

// Store applies scan pairs to the endpoints table.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// NewStore creates a Store over an open inventory database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Apply books identifier into location, or clears its location when
// location is empty. The returned status follows cmd/autoscan's exit codes.
func (s *Store) Apply(ctx context.Context, identifier, location string) (ExitStatus, error) {
	prefix, nid, err := barcode.SplitIdentifier(identifier)
	if err != nil {
		return StatusUsage, fmt.Errorf("%w: %q", err, identifier)
	}

	var loc Location
	if location != "" {
		loc, err = ParseLocation(location)
		if err != nil {
			return StatusBadLocation, err
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return StatusConnectFailure, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // Rollback is no-op after commit

	existing, err := getEndpoint(ctx, tx, nid)
	if err != nil {
		return StatusConnectFailure, err
	}

	if existing != nil && existing.Reserved() {
		return StatusReserved, fmt.Errorf("%w: %s", ErrReserved, nid)
	}

	switch {
	case location == "" && existing == nil:
		return StatusOK, nil
	case location == "":
		_, err = tx.ExecContext(ctx, "UPDATE endpoints SET location = '' WHERE network_id = ?", nid)
	default:
		err = s.upsert(ctx, tx, existing != nil, nid, prefix, loc)
	}
	if err != nil {
		return StatusCommitFailure, fmt.Errorf("writing endpoint %s: %w", nid, err)
	}

	if err := tx.Commit(); err != nil {
		return StatusCommitFailure, fmt.Errorf("committing endpoint %s: %w", nid, err)
	}
	return StatusOK, nil
}

// upsert writes location data, and product data when the label carries a
// product prefix. Unknown prefixes store an empty product.
func (s *Store) upsert(ctx context.Context, tx *sql.Tx, exists bool, nid, prefix string, loc Location) error {
	readDate := s.now().Format(readDateLayout)

	if prefix == "" {
		if exists {
			_, err := tx.ExecContext(ctx, `
				UPDATE endpoints SET location_prefix = ?, location = ?, read_date = ?,
					socket_form = ?, voltage = ?
				WHERE network_id = ?`,
				loc.Prefix, loc.Code, readDate, loc.Form, loc.Voltage, nid)
			return err
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO endpoints (location_prefix, location, read_date, socket_form, voltage, network_id)
			VALUES (?, ?, ?, ?, ?, ?)`,
			loc.Prefix, loc.Code, readDate, loc.Form, loc.Voltage, nid)
		return err
	}

	product, err := barcode.LookupProduct(prefix)
	if err != nil && !errors.Is(err, barcode.ErrUnknownProduct) {
		return err
	}

	if exists {
		_, err := tx.ExecContext(ctx, `
			UPDATE endpoints SET location_prefix = ?, location = ?, read_date = ?,
				socket_form = ?, voltage = ?, product_name = ?, product_id = ?
			WHERE network_id = ?`,
			loc.Prefix, loc.Code, readDate, loc.Form, loc.Voltage, product.Name, product.ID, nid)
		return err
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO endpoints (location_prefix, location, read_date, socket_form, voltage,
			product_name, product_id, network_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		loc.Prefix, loc.Code, readDate, loc.Form, loc.Voltage, product.Name, product.ID, nid)
	return err
}

// Get returns the endpoint for nid, or nil if there is none.
func (s *Store) Get(ctx context.Context, nid string) (*Endpoint, error) {
	return getEndpoint(ctx, s.db, nid)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getEndpoint(ctx context.Context, q rowQuerier, nid string) (*Endpoint, error) {
	var e Endpoint
	var readDate, user, comment sql.NullString

	err := q.QueryRowContext(ctx, `
		SELECT network_id, location_prefix, location, read_date, socket_form, voltage,
			product_name, product_id, user, comment
		FROM endpoints WHERE network_id = ?`, nid,
	).Scan(&e.NetworkID, &e.LocationPrefix, &e.Location, &readDate, &e.SocketForm, &e.Voltage,
		&e.ProductName, &e.ProductID, &user, &comment)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying endpoint %s: %w", nid, err)
	}

	e.ReadDate = readDate.String
	e.User = user.String
	e.Comment = comment.String
	return &e, nil
}
