// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// Two sign-up paths exist: email/password (PasswordHash set, GitHubID zero)
// and GitHub OAuth (GitHubID set, PasswordHash empty). Either way we generate
// our own internal string ID (xid) so our primary keys are never tied to a
// third party's numbering scheme.
//
// PasswordHash is the bcrypt hash, never the raw password, and is excluded
// from JSON with the "-" tag so it can never leak into a response.
type User struct {
	ID           string    `json:"id"        db:"id"`
	Email        string    `json:"email"     db:"email"`
	Nickname     string    `json:"nickname"  db:"nickname"`
	PasswordHash string    `json:"-"         db:"password_hash"` // empty for OAuth-only accounts
	GitHubID     int64     `json:"-"         db:"github_id"`     // zero for email/password accounts
	AvatarURL    string    `json:"avatarUrl" db:"avatar_url"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt    time.Time `json:"updatedAt" db:"updated_at"`
}
