package model

import "time"

// Membership is one row of the membership ledger: the existence of a row is
// the sole source of truth for "user X joined pot Y". The database enforces
// at most one row per (pot, user) pair.
type Membership struct {
	ID        string    `json:"id"        db:"id"`
	PotID     string    `json:"potId"     db:"pot_id"`
	UserID    string    `json:"userId"    db:"user_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
}
