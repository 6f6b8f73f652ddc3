package node

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Record is the persisted form of a node.
type Record struct {
	Address    string
	Parent     string
	Name       string
	Kind       Kind
	IP         string
	Registered bool
	Drivers    []Driver
}

// Repository persists nodes and their drivers so registration survives a
// bridge restart.
type Repository interface {
	// List returns every stored node, controller first, then by address.
	List(ctx context.Context) ([]Record, error)

	// Create inserts a node and its drivers.
	// Returns ErrNodeExists if the address is taken.
	Create(ctx context.Context, rec Record) error

	// UpdateDetails changes a node's name and IP.
	// Returns ErrNodeNotFound if the node does not exist.
	UpdateDetails(ctx context.Context, address, name, ip string) error

	// SetRegistered stores the add-node acknowledgment flag.
	SetRegistered(ctx context.Context, address string, registered bool) error

	// SaveDrivers upserts driver values.
	SaveDrivers(ctx context.Context, address string, drivers []Driver) error

	// Delete removes a node and its drivers.
	// Returns ErrNodeNotFound if the node does not exist.
	Delete(ctx context.Context, address string) error
}

// SQLiteRepository implements Repository on the nodes and drivers tables.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated connection.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns every stored node with its drivers.
func (r *SQLiteRepository) List(ctx context.Context) ([]Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT address, parent, name, kind, ip, registered
		FROM nodes
		ORDER BY CASE kind WHEN 'controller' THEN 0 ELSE 1 END, address`)
	if err != nil {
		return nil, fmt.Errorf("querying nodes: %w", err)
	}
	defer rows.Close()

	var records []Record
	byAddress := make(map[string]int)
	for rows.Next() {
		var rec Record
		var kind string
		var registered int
		if err := rows.Scan(&rec.Address, &rec.Parent, &rec.Name, &kind, &rec.IP, &registered); err != nil {
			return nil, fmt.Errorf("scanning node: %w", err)
		}
		rec.Kind = Kind(kind)
		rec.Registered = registered != 0
		byAddress[rec.Address] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating nodes: %w", err)
	}

	if err := r.attachDrivers(ctx, records, byAddress); err != nil {
		return nil, err
	}
	return records, nil
}

// attachDrivers loads driver rows in rowid order, which is insertion order.
func (r *SQLiteRepository) attachDrivers(ctx context.Context, records []Record, byAddress map[string]int) error {
	rows, err := r.db.QueryContext(ctx, `SELECT address, name, value, uom FROM drivers ORDER BY rowid`)
	if err != nil {
		return fmt.Errorf("querying drivers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var address string
		var d Driver
		var name string
		if err := rows.Scan(&address, &name, &d.Value, &d.UOM); err != nil {
			return fmt.Errorf("scanning driver: %w", err)
		}
		d.Name = DriverName(name)
		if i, ok := byAddress[address]; ok {
			records[i].Drivers = append(records[i].Drivers, d)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating drivers: %w", err)
	}
	return nil
}

// Create inserts a node and its drivers in one transaction.
func (r *SQLiteRepository) Create(ctx context.Context, rec Record) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO nodes (address, parent, name, kind, ip, registered, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Address, rec.Parent, rec.Name, string(rec.Kind), rec.IP, boolToInt(rec.Registered), now, now,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrNodeExists
		}
		return fmt.Errorf("inserting node: %w", err)
	}

	if err := upsertDrivers(ctx, tx, rec.Address, rec.Drivers, now); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing node: %w", err)
	}
	return nil
}

// UpdateDetails changes a node's name and IP.
func (r *SQLiteRepository) UpdateDetails(ctx context.Context, address, name, ip string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET name = ?, ip = ?, updated_at = ? WHERE address = ?`,
		name, ip, time.Now().UTC().Format(time.RFC3339), address,
	)
	if err != nil {
		return fmt.Errorf("updating node: %w", err)
	}
	return requireAffected(res)
}

// SetRegistered stores the add-node acknowledgment flag.
func (r *SQLiteRepository) SetRegistered(ctx context.Context, address string, registered bool) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE nodes SET registered = ?, updated_at = ? WHERE address = ?`,
		boolToInt(registered), time.Now().UTC().Format(time.RFC3339), address,
	)
	if err != nil {
		return fmt.Errorf("updating registered: %w", err)
	}
	return requireAffected(res)
}

// SaveDrivers upserts driver values.
func (r *SQLiteRepository) SaveDrivers(ctx context.Context, address string, drivers []Driver) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := upsertDrivers(ctx, tx, address, drivers, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing drivers: %w", err)
	}
	return nil
}

// Delete removes a node. Drivers go with it via ON DELETE CASCADE.
func (r *SQLiteRepository) Delete(ctx context.Context, address string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM nodes WHERE address = ?`, address)
	if err != nil {
		return fmt.Errorf("deleting node: %w", err)
	}
	return requireAffected(res)
}

func upsertDrivers(ctx context.Context, tx *sql.Tx, address string, drivers []Driver, now string) error {
	for _, d := range drivers {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO drivers (address, name, value, uom, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (address, name) DO UPDATE SET
				value = excluded.value,
				uom = excluded.uom,
				updated_at = excluded.updated_at`,
			address, string(d.Name), d.Value, int(d.UOM), now,
		)
		if err != nil {
			if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
				return fmt.Errorf("%w: %s", ErrNodeNotFound, address)
			}
			return fmt.Errorf("saving driver %s: %w", d.Name, err)
		}
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNodeNotFound
	}
	return nil
}

// boolToInt converts a boolean to 0/1 for SQLite storage.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// isUniqueConstraintError checks if an error is a SQLite unique constraint violation.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY constraint failed") ||
		errors.Is(err, ErrNodeExists)
}
