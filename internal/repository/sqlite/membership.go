package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
)

// compile-time check that *DB implements repository.MembershipRepository
var _ repository.MembershipRepository = (*DB)(nil)

// Join commits the pot's already-mutated headcount/status together with the
// new ledger row as one transaction.
//
// ATOMICITY UNDER RACE:
// The pot UPDATE carries the optimistic version check (id AND version), so
// two joins racing for the last open seat cannot both commit — the loser's
// UPDATE affects zero rows and the whole transaction rolls back with
// apperror.ErrConflict for the service to retry. The (pot_id, user_id)
// UNIQUE constraint rejects a duplicate membership inside the same
// transaction, so a racing duplicate join can never leave a row behind.
//
// firstJoin is true only when the join-log INSERT actually inserted: the log
// survives leaves, so a rejoin reports false.
func (db *DB) Join(ctx context.Context, pot *model.Pot, userID string) (bool, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("sqlite: beginning join tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx,
		`UPDATE pots
		 SET current_headcount = ?, status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		pot.CurrentHeadcount, pot.Status, now, pot.ID, pot.Version,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: join: updating pot %s: %w", pot.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: join: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return false, db.versionMissReason(ctx, tx, pot.ID)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO pot_members (id, pot_id, user_id, created_at) VALUES (?, ?, ?, ?)`,
		xid.New().String(), pot.ID, userID, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return false, apperror.AlreadyMember(pot.ID, userID)
		}
		return false, fmt.Errorf("sqlite: join: inserting membership: %w", err)
	}

	logResult, err := tx.ExecContext(ctx,
		`INSERT INTO pot_join_log (pot_id, user_id, first_joined_at) VALUES (?, ?, ?)
		 ON CONFLICT (pot_id, user_id) DO NOTHING`,
		pot.ID, userID, now,
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: join: recording join log: %w", err)
	}
	logged, err := logResult.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: join: checking join log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("sqlite: join: committing: %w", err)
	}

	pot.Version++
	pot.UpdatedAt = now
	return logged == 1, nil
}

// Leave removes the ledger row and persists the decremented headcount as one
// transaction, under the same version check as Join.
func (db *DB) Leave(ctx context.Context, pot *model.Pot, userID string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning leave tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()

	result, err := tx.ExecContext(ctx,
		`UPDATE pots
		 SET current_headcount = ?, status = ?, version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		pot.CurrentHeadcount, pot.Status, now, pot.ID, pot.Version,
	)
	if err != nil {
		return fmt.Errorf("sqlite: leave: updating pot %s: %w", pot.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: leave: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return db.versionMissReason(ctx, tx, pot.ID)
	}

	delResult, err := tx.ExecContext(ctx,
		`DELETE FROM pot_members WHERE pot_id = ? AND user_id = ?`,
		pot.ID, userID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: leave: deleting membership: %w", err)
	}
	deleted, err := delResult.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: leave: checking deleted rows: %w", err)
	}
	if deleted == 0 {
		// No row to delete — the whole transaction rolls back, leaving the
		// headcount untouched.
		return apperror.NotAMember(pot.ID, userID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: leave: committing: %w", err)
	}

	pot.Version++
	pot.UpdatedAt = now
	return nil
}

// versionMissReason distinguishes the two causes of a zero-row version-
// checked UPDATE: the pot vanished (NotFound) or a concurrent writer bumped
// the version first (Conflict, retriable). The query MUST run on tx: the
// pool is capped at one connection, so going through db.conn while the
// transaction still holds it would block forever.
func (db *DB) versionMissReason(ctx context.Context, tx *sql.Tx, potID string) error {
	var exists int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pots WHERE id = ?`, potID).Scan(&exists); err != nil {
		return fmt.Errorf("sqlite: checking pot %s: %w", potID, err)
	}
	if exists == 0 {
		return apperror.NotFound("pot", potID)
	}
	return apperror.Conflict("pot", potID)
}

// Exists reports whether a membership row exists for (pot, user).
func (db *DB) Exists(ctx context.Context, potID, userID string) (bool, error) {
	var n int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM pot_members WHERE pot_id = ? AND user_id = ?`,
		potID, userID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking membership: %w", err)
	}
	return n > 0, nil
}

// ListByUser returns all memberships held by a user, oldest first.
func (db *DB) ListByUser(ctx context.Context, userID string) ([]model.Membership, error) {
	return db.listMemberships(ctx,
		`SELECT id, pot_id, user_id, created_at FROM pot_members
		 WHERE user_id = ? ORDER BY created_at ASC`, userID)
}

// ListByPot returns all memberships of a pot, oldest first.
func (db *DB) ListByPot(ctx context.Context, potID string) ([]model.Membership, error) {
	return db.listMemberships(ctx,
		`SELECT id, pot_id, user_id, created_at FROM pot_members
		 WHERE pot_id = ? ORDER BY created_at ASC`, potID)
}

func (db *DB) listMemberships(ctx context.Context, query string, arg any) ([]model.Membership, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing memberships: %w", err)
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		var m model.Membership
		if err := rows.Scan(&m.ID, &m.PotID, &m.UserID, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning membership row: %w", err)
		}
		members = append(members, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating memberships: %w", err)
	}
	return members, nil
}
