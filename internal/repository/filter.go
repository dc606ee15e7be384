package repository

import (
	"strings"

	"github.com/subdivision/pot-server/internal/model"
)

// PotClause is one optional predicate of a pot search. The three variants
// below are the only ones; they are combined as a pure conjunction, so the
// order clauses were added in never changes the result.
type PotClause interface {
	// Matches evaluates the clause in memory. The SQLite repository
	// translates clauses to WHERE fragments instead; both interpretations
	// must agree (see filter_test.go and the sqlite tests).
	Matches(p *model.Pot) bool
}

// KeywordClause matches pots whose title, content, or product name contains
// the keyword as a case-sensitive substring.
type KeywordClause struct {
	Keyword string
}

func (c KeywordClause) Matches(p *model.Pot) bool {
	return strings.Contains(p.Title, c.Keyword) ||
		strings.Contains(p.Content, c.Keyword) ||
		strings.Contains(p.ProductName, c.Keyword)
}

// CategoryClause matches pots of exactly one category.
type CategoryClause struct {
	Category model.PotCategory
}

func (c CategoryClause) Matches(p *model.Pot) bool {
	return p.Category == c.Category
}

// StatusClause matches pots in exactly one recruiting state.
type StatusClause struct {
	Status model.PotStatus
}

func (c StatusClause) Matches(p *model.Pot) bool {
	return p.Status == c.Status
}

// PotFilter is a conjunction of optional clauses. The zero value matches
// every pot. Build it with the With* methods:
//
//	f := repository.PotFilter{}.
//		WithKeyword("rice").
//		WithStatus(model.StatusRecruiting)
type PotFilter struct {
	clauses []PotClause
}

// WithKeyword adds a keyword clause. A blank (or whitespace-only) keyword is
// treated as absent and contributes no clause — it must not mean "match
// nothing". The keyword itself is not trimmed: substring matching stays
// case- and whitespace-sensitive.
func (f PotFilter) WithKeyword(keyword string) PotFilter {
	if strings.TrimSpace(keyword) == "" {
		return f
	}
	f.clauses = append(f.clauses, KeywordClause{Keyword: keyword})
	return f
}

// WithCategory adds a category equality clause. The empty category is absent.
func (f PotFilter) WithCategory(category model.PotCategory) PotFilter {
	if category == "" {
		return f
	}
	f.clauses = append(f.clauses, CategoryClause{Category: category})
	return f
}

// WithStatus adds a status equality clause. The empty status is absent.
func (f PotFilter) WithStatus(status model.PotStatus) PotFilter {
	if status == "" {
		return f
	}
	f.clauses = append(f.clauses, StatusClause{Status: status})
	return f
}

// Clauses returns the clauses for store-specific translation.
func (f PotFilter) Clauses() []PotClause {
	return f.clauses
}

// Matches reports whether p satisfies every clause. An empty filter is
// implicitly true.
func (f PotFilter) Matches(p *model.Pot) bool {
	for _, c := range f.clauses {
		if !c.Matches(p) {
			return false
		}
	}
	return true
}
