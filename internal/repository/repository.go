// Package repository defines the persistence interfaces the services depend
// on, plus the composable pot filter they hand to the store. The concrete
// SQLite implementation lives in repository/sqlite; tests use in-memory
// mocks. Services only ever see these interfaces.
package repository

import (
	"context"

	"github.com/subdivision/pot-server/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// PotRepository persists pots.
//
// Create also records the owner's founding membership atomically with the
// pot row: the owner holds the first seat from the moment the pot exists,
// so the membership ledger and the pot can never disagree about it.
//
// FindAll is phase 1 of the proximity search: it returns every pot matching
// the attribute filter, unpaginated, ordered by id ascending. Pagination
// cannot be pushed into the store because the radius filter runs afterwards
// in memory; id order (xid is time-sortable, so effectively creation order)
// gives the search a deterministic result the two-phase filter cannot break.
//
// Update persists all mutable fields with an optimistic version check: it
// fails with apperror.ErrConflict when the row's version no longer matches
// pot.Version, i.e. a concurrent writer got there first.
type PotRepository interface {
	Create(ctx context.Context, pot *model.Pot) error
	GetByID(ctx context.Context, id string) (*model.Pot, error)
	List(ctx context.Context, opts ListOptions) ([]model.Pot, error)
	Count(ctx context.Context) (int, error)
	FindAll(ctx context.Context, filter PotFilter) ([]model.Pot, error)
	Update(ctx context.Context, pot *model.Pot) error
	Delete(ctx context.Context, id string) error
}

// MembershipRepository is the membership ledger. A row's existence is the
// sole source of truth for "user X joined pot Y".
//
// Join and Leave are ATOMIC: the pot's already-mutated headcount/status and
// the ledger insert/delete commit together or not at all, with the same
// version check as PotRepository.Update. Join reports whether this was the
// user's first-ever join of the pot (a rejoin after a leave is not a first
// join), so the caller can decide whether to broadcast a welcome notice.
//
// Duplicate joins fail with apperror.ErrAlreadyMember — enforced by the
// store's (pot_id, user_id) uniqueness constraint, not by a separate
// check-then-insert. Leaves without a row fail with apperror.ErrNotAMember.
type MembershipRepository interface {
	Join(ctx context.Context, pot *model.Pot, userID string) (firstJoin bool, err error)
	Leave(ctx context.Context, pot *model.Pot, userID string) error
	Exists(ctx context.Context, potID, userID string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]model.Membership, error)
	ListByPot(ctx context.Context, potID string) ([]model.Membership, error)
}

// UserRepository persists user accounts for both sign-up paths.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByNickname(ctx context.Context, nickname string) (*model.User, error)
	UpsertGitHub(ctx context.Context, user *model.User) error
}

// ChatMessageRepository persists a pot's chat history.
type ChatMessageRepository interface {
	SaveMessage(ctx context.Context, msg *model.ChatMessage) error
	History(ctx context.Context, potID string) ([]model.ChatMessage, error)
}
