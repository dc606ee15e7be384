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

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, email, nickname, password_hash, github_id, avatar_url, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.Nickname, &u.PasswordHash,
		&u.GitHubID, &u.AvatarURL, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Create inserts a new email/password account. The email and nickname UNIQUE
// constraints turn racing duplicate signups into apperror.ErrConflict rather
// than duplicate rows.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID, user.Email, user.Nickname, user.PasswordHash,
		user.GitHubID, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Email)
		}
		return fmt.Errorf("sqlite: inserting user: %w", err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

// GetUserByEmail retrieves a user by email.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

// GetUserByNickname retrieves a user by nickname.
func (db *DB) GetUserByNickname(ctx context.Context, nickname string) (*model.User, error) {
	return db.getUser(ctx, `SELECT `+userColumns+` FROM users WHERE nickname = ?`, nickname)
}

func (db *DB) getUser(ctx context.Context, query, arg string) (*model.User, error) {
	user, err := scanUser(db.conn.QueryRowContext(ctx, query, arg))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", arg)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", arg, err)
	}
	return user, nil
}

// UpsertGitHub inserts or updates an OAuth account keyed on github_id.
//
// First login creates the row (the nickname defaults to the GitHub login,
// suffixed if taken); later logins refresh email and avatar in case they
// changed on GitHub. The existing internal ID always survives.
func (db *DB) UpsertGitHub(ctx context.Context, user *model.User) error {
	var existingID string
	err := db.conn.QueryRowContext(ctx,
		`SELECT id FROM users WHERE github_id = ?`, user.GitHubID,
	).Scan(&existingID)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", user.GitHubID, err)
	}

	if existingID != "" {
		user.ID = existingID
		user.UpdatedAt = time.Now()
		_, err = db.conn.ExecContext(ctx,
			`UPDATE users SET email = ?, avatar_url = ?, updated_at = ? WHERE id = ?`,
			user.Email, user.AvatarURL, user.UpdatedAt, user.ID,
		)
		if err != nil {
			return fmt.Errorf("sqlite: updating user %s: %w", user.ID, err)
		}
		return nil
	}

	now := time.Now()
	user.ID = xid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	// The GitHub login may collide with an existing nickname; fall back to
	// login-githubID, which is unique by construction.
	nickname := user.Nickname
	for attempt := 0; ; attempt++ {
		_, err = db.conn.ExecContext(ctx,
			`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			user.ID, user.Email, nickname, user.PasswordHash,
			user.GitHubID, user.AvatarURL, user.CreatedAt, user.UpdatedAt,
		)
		if err == nil {
			user.Nickname = nickname
			return nil
		}
		if !isUniqueViolation(err) || attempt > 0 {
			return fmt.Errorf("sqlite: inserting user (githubID=%d): %w", user.GitHubID, err)
		}
		nickname = fmt.Sprintf("%s-%d", user.Nickname, user.GitHubID)
	}
}
