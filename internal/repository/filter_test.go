package repository

import (
	"testing"

	"github.com/subdivision/pot-server/internal/model"
)

func filterTestPot() *model.Pot {
	return &model.Pot{
		ID:          "pot-1",
		Title:       "Splitting a bag of rice",
		Content:     "20kg bag near the station",
		ProductName: "rice 20kg",
		Category:    model.CategoryGrocery,
		Status:      model.StatusRecruiting,
	}
}

func TestPotFilter_EmptyMatchesEverything(t *testing.T) {
	f := PotFilter{}
	if !f.Matches(filterTestPot()) {
		t.Error("empty filter must match every pot")
	}
	if len(f.Clauses()) != 0 {
		t.Errorf("empty filter has %d clauses, want 0", len(f.Clauses()))
	}
}

func TestPotFilter_Keyword(t *testing.T) {
	tests := []struct {
		name    string
		keyword string
		want    bool
	}{
		{"matches title", "bag of", true},
		{"matches content", "station", true},
		{"matches product name", "20kg", true},
		{"case-sensitive", "RICE", false},
		{"no match", "pizza", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := PotFilter{}.WithKeyword(tt.keyword)
			if got := f.Matches(filterTestPot()); got != tt.want {
				t.Errorf("Matches(keyword=%q) = %v, want %v", tt.keyword, got, tt.want)
			}
		})
	}
}

func TestPotFilter_BlankKeywordIsAbsent(t *testing.T) {
	// A blank keyword must contribute no clause, not a match-nothing clause.
	for _, kw := range []string{"", "   ", "\t"} {
		f := PotFilter{}.WithKeyword(kw)
		if len(f.Clauses()) != 0 {
			t.Errorf("WithKeyword(%q) added a clause", kw)
		}
		if !f.Matches(filterTestPot()) {
			t.Errorf("blank keyword %q filtered out a pot", kw)
		}
	}
}

func TestPotFilter_CategoryAndStatus(t *testing.T) {
	pot := filterTestPot()

	f := PotFilter{}.WithCategory(model.CategoryGrocery).WithStatus(model.StatusRecruiting)
	if !f.Matches(pot) {
		t.Error("filter should match pot with same category and status")
	}

	f = PotFilter{}.WithCategory(model.CategoryPizza)
	if f.Matches(pot) {
		t.Error("category mismatch should not match")
	}

	f = PotFilter{}.WithStatus(model.StatusCompleted)
	if f.Matches(pot) {
		t.Error("status mismatch should not match")
	}
}

func TestPotFilter_ConjunctionIsOrderIndependent(t *testing.T) {
	pot := filterTestPot()

	orders := []PotFilter{
		PotFilter{}.WithKeyword("rice").WithCategory(model.CategoryGrocery).WithStatus(model.StatusRecruiting),
		PotFilter{}.WithStatus(model.StatusRecruiting).WithKeyword("rice").WithCategory(model.CategoryGrocery),
		PotFilter{}.WithCategory(model.CategoryGrocery).WithStatus(model.StatusRecruiting).WithKeyword("rice"),
	}
	for i, f := range orders {
		if !f.Matches(pot) {
			t.Errorf("order %d: filter did not match", i)
		}
	}

	// And a failing clause fails regardless of position.
	failing := []PotFilter{
		PotFilter{}.WithKeyword("pizza").WithCategory(model.CategoryGrocery),
		PotFilter{}.WithCategory(model.CategoryGrocery).WithKeyword("pizza"),
	}
	for i, f := range failing {
		if f.Matches(pot) {
			t.Errorf("order %d: filter matched despite failing keyword", i)
		}
	}
}
