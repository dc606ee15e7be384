package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
)

// compile-time check that *DB implements repository.PotRepository
var _ repository.PotRepository = (*DB)(nil)

const potColumns = `id, user_id, title, content, product_name, price,
	maximum_headcount, current_headcount, latitude, longitude,
	address, detail_address, image_key, category, status, version,
	created_at, updated_at`

func scanPot(row interface{ Scan(...any) error }) (*model.Pot, error) {
	var p model.Pot
	err := row.Scan(
		&p.ID, &p.UserID, &p.Title, &p.Content, &p.ProductName, &p.Price,
		&p.MaximumHeadcount, &p.CurrentHeadcount, &p.Latitude, &p.Longitude,
		&p.Address, &p.DetailAddress, &p.ImageKey, &p.Category, &p.Status, &p.Version,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new pot together with the owner's founding membership,
// in one transaction. The owner occupies the first seat from the start, so
// the ledger row and the join-log row are written here rather than through
// Join. The ID (xid: sortable by creation time) and timestamps are generated
// here and written back onto the struct.
func (db *DB) Create(ctx context.Context, pot *model.Pot) error {
	pot.ID = xid.New().String()
	now := time.Now()
	pot.CreatedAt = now
	pot.UpdatedAt = now
	pot.Version = 0

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning create transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pots (`+potColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pot.ID, pot.UserID, pot.Title, pot.Content, pot.ProductName, pot.Price,
		pot.MaximumHeadcount, pot.CurrentHeadcount, pot.Latitude, pot.Longitude,
		pot.Address, pot.DetailAddress, pot.ImageKey, pot.Category, pot.Status, pot.Version,
		pot.CreatedAt, pot.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating pot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pot_members (id, pot_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		xid.New().String(), pot.ID, pot.UserID, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording founding membership: %w", err)
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO pot_join_log (pot_id, user_id, first_joined_at) VALUES (?, ?, ?)`,
		pot.ID, pot.UserID, now,
	)
	if err != nil {
		return fmt.Errorf("sqlite: recording founding join: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing create: %w", err)
	}
	return nil
}

// GetByID retrieves a single pot. Returns apperror.ErrNotFound if absent.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Pot, error) {
	pot, err := scanPot(db.conn.QueryRowContext(ctx,
		`SELECT `+potColumns+` FROM pots WHERE id = ?`, id,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("pot", id)
		}
		return nil, fmt.Errorf("sqlite: getting pot %s: %w", id, err)
	}
	return pot, nil
}

// List retrieves pots newest-first with LIMIT/OFFSET pagination.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Pot, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+potColumns+` FROM pots ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing pots: %w", err)
	}
	defer rows.Close()

	return collectPots(rows, limit)
}

// Count returns the total number of pots, for client page-count math.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM pots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting pots: %w", err)
	}
	return n, nil
}

// FindAll returns every pot matching the filter, unpaginated, ordered by id
// ascending. This is phase 1 of the proximity search: the radius filter and
// pagination happen afterwards in memory, so no LIMIT can be applied here.
// xid ids sort by creation time, so id ASC is a stable creation order.
func (db *DB) FindAll(ctx context.Context, filter repository.PotFilter) ([]model.Pot, error) {
	where, args := buildWhere(filter)

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+potColumns+` FROM pots`+where+` ORDER BY id ASC`, args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: finding pots: %w", err)
	}
	defer rows.Close()

	return collectPots(rows, 16)
}

// buildWhere translates the filter's clauses into a WHERE fragment. The
// clauses are a pure conjunction, so translation order does not matter.
// Keyword matching uses instr(): a plain case-sensitive substring test that
// needs no wildcard escaping. LIKE would be wrong here — SQLite LIKE is
// case-insensitive for ASCII, and the in-memory interpretation
// (strings.Contains) is case-sensitive; the two must agree.
func buildWhere(filter repository.PotFilter) (string, []any) {
	var conds []string
	var args []any

	for _, clause := range filter.Clauses() {
		switch c := clause.(type) {
		case repository.KeywordClause:
			conds = append(conds,
				`(instr(title, ?) > 0 OR instr(content, ?) > 0 OR instr(product_name, ?) > 0)`)
			args = append(args, c.Keyword, c.Keyword, c.Keyword)
		case repository.CategoryClause:
			conds = append(conds, `category = ?`)
			args = append(args, string(c.Category))
		case repository.StatusClause:
			conds = append(conds, `status = ?`)
			args = append(args, string(c.Status))
		}
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func collectPots(rows *sql.Rows, capHint int) ([]model.Pot, error) {
	pots := make([]model.Pot, 0, capHint)
	for rows.Next() {
		p, err := scanPot(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning pot row: %w", err)
		}
		pots = append(pots, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating pots: %w", err)
	}
	return pots, nil
}

// Update persists all mutable fields under an optimistic version check.
//
// The WHERE clause matches both id AND the version the caller loaded. Zero
// rows affected means either the pot is gone (NotFound) or another writer
// bumped the version first (Conflict) — we re-probe to tell them apart.
// On success the struct's Version is advanced to match the row.
func (db *DB) Update(ctx context.Context, pot *model.Pot) error {
	pot.UpdatedAt = time.Now()

	result, err := db.conn.ExecContext(ctx,
		`UPDATE pots
		 SET title = ?, content = ?, product_name = ?, price = ?,
		     maximum_headcount = ?, current_headcount = ?,
		     latitude = ?, longitude = ?, address = ?, detail_address = ?,
		     image_key = ?, category = ?, status = ?,
		     version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		pot.Title, pot.Content, pot.ProductName, pot.Price,
		pot.MaximumHeadcount, pot.CurrentHeadcount,
		pot.Latitude, pot.Longitude, pot.Address, pot.DetailAddress,
		pot.ImageKey, pot.Category, pot.Status,
		pot.UpdatedAt,
		pot.ID, pot.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating pot %s: %w", pot.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists int
		if err := db.conn.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM pots WHERE id = ?`, pot.ID).Scan(&exists); err != nil {
			return fmt.Errorf("sqlite: probing pot %s: %w", pot.ID, err)
		}
		if exists == 0 {
			return apperror.NotFound("pot", pot.ID)
		}
		return apperror.Conflict("pot", pot.ID)
	}

	pot.Version++
	return nil
}

// Delete removes a pot. Memberships, join log, and chat history cascade via
// foreign keys.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx, `DELETE FROM pots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting pot %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("pot", id)
	}
	return nil
}
