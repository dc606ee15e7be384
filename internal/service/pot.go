package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/subdivision/pot-server/internal/apperror"
	"github.com/subdivision/pot-server/internal/geo"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/objectstore"
	"github.com/subdivision/pot-server/internal/repository"
)

// DefaultSearchRadiusKm is the radius callers pass when the client expressed
// no distance preference. Search itself applies RadiusKm literally.
const DefaultSearchRadiusKm float64 = 10

const defaultPageSize = 20

// PotService is the orchestrator for everything pots: lifecycle, membership,
// and proximity search. It is the only component the HTTP/WS layer calls.
//
// Mutations that touch the headcount race against each other on the same pot
// row. The repositories detect a lost update through the row version and
// return apperror.ErrConflict; the service reloads and retries exactly once
// before surfacing the conflict. Business-rule rejections (full pot,
// duplicate join, ...) are never retried — retrying cannot make a caller's
// input valid.
type PotService struct {
	pots    repository.PotRepository
	members repository.MembershipRepository
	store   objectstore.Store
	logger  *slog.Logger
}

func NewPotService(
	pots repository.PotRepository,
	members repository.MembershipRepository,
	store objectstore.Store,
	logger *slog.Logger,
) *PotService {
	return &PotService{
		pots:    pots,
		members: members,
		store:   store,
		logger:  logger,
	}
}

// PotView is a pot as served to clients: the stored image key resolved to a
// time-limited signed URL, plus the viewer-specific joined flag.
type PotView struct {
	model.Pot
	ImageURL string `json:"imageUrl"`
	Joined   bool   `json:"joined"`
}

// SearchQuery is the transient input of Search; it is never persisted.
// Blank keyword and category contribute no filter clause and a blank status
// defaults to RECRUITING. RadiusKm is literal: zero keeps only exact
// coordinate coincidences, so callers without a distance preference pass
// DefaultSearchRadiusKm.
type SearchQuery struct {
	Latitude  float64
	Longitude float64
	RadiusKm  float64
	Keyword   string
	Category  model.PotCategory
	Status    model.PotStatus
	PageIndex int
	PageSize  int
}

// SearchResult is one page of fully filtered pots. Total counts the entire
// filtered-and-radius-restricted set, not just this page, so clients can do
// page-count math.
type SearchResult struct {
	Pots      []PotView `json:"pots"`
	Total     int       `json:"total"`
	PageIndex int       `json:"pageIndex"`
	PageSize  int       `json:"pageSize"`
}

// Create validates the fields, builds the pot with the owner in the first
// seat, and persists it together with the founding membership.
func (s *PotService) Create(ctx context.Context, ownerID string, f model.PotFields) (*PotView, error) {
	if strings.TrimSpace(f.Title) == "" {
		return nil, apperror.ValidationFailed("title", "must not be blank")
	}

	pot, err := model.NewPot(ownerID, f)
	if err != nil {
		return nil, err
	}
	if err := s.pots.Create(ctx, pot); err != nil {
		return nil, fmt.Errorf("service/pot: creating pot: %w", err)
	}

	s.logger.Info("pot created",
		slog.String("potID", pot.ID),
		slog.String("ownerID", ownerID),
		slog.Int("maximumHeadcount", pot.MaximumHeadcount),
	)

	return s.view(ctx, pot, true), nil
}

// GetByID returns one pot. When viewerID is non-empty the view is annotated
// with whether that user holds a membership; anonymous viewers get false.
func (s *PotService) GetByID(ctx context.Context, potID, viewerID string) (*PotView, error) {
	pot, err := s.pots.GetByID(ctx, potID)
	if err != nil {
		return nil, err
	}

	joined := false
	if viewerID != "" {
		joined, err = s.members.Exists(ctx, potID, viewerID)
		if err != nil {
			return nil, fmt.Errorf("service/pot: checking membership: %w", err)
		}
	}
	return s.view(ctx, pot, joined), nil
}

// List returns pots newest-first with offset pagination, for the public
// landing feed.
func (s *PotService) List(ctx context.Context, opts repository.ListOptions) ([]PotView, int, error) {
	pots, err := s.pots.List(ctx, opts)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.pots.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return s.views(ctx, pots), total, nil
}

// ListByUser returns every pot the user holds a membership in, owned pots
// included (the founding membership covers those).
func (s *PotService) ListByUser(ctx context.Context, userID string) ([]PotView, error) {
	memberships, err := s.members.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	views := make([]PotView, 0, len(memberships))
	for _, m := range memberships {
		pot, err := s.pots.GetByID(ctx, m.PotID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				continue // pot deleted since; the cascade will have removed the row
			}
			return nil, err
		}
		views = append(views, *s.view(ctx, pot, true))
	}
	return views, nil
}

// Update overwrites a pot's mutable fields. Owner-only.
//
// Clients echo back the imageUrl they were served, which for an unchanged
// image is a signed URL, not a key. A value that looks like a URL therefore
// means "image unchanged" and must not overwrite the stored key; only a bare
// key counts as a replacement.
func (s *PotService) Update(ctx context.Context, potID, userID string, f model.PotFields) (*PotView, error) {
	apply := func(pot *model.Pot) error {
		if pot.UserID != userID {
			return apperror.Forbidden("only the owner can update a pot")
		}
		imageReplaced := f.ImageKey != "" && !strings.HasPrefix(f.ImageKey, "http")
		return pot.ApplyUpdate(f, imageReplaced)
	}

	pot, err := s.mutate(ctx, potID, apply, func(pot *model.Pot) error {
		return s.pots.Update(ctx, pot)
	})
	if err != nil {
		return nil, err
	}

	joined, err := s.members.Exists(ctx, potID, userID)
	if err != nil {
		return nil, fmt.Errorf("service/pot: checking membership: %w", err)
	}
	return s.view(ctx, pot, joined), nil
}

// Delete removes a pot and everything it owns (memberships, chat history).
// Owner-only.
func (s *PotService) Delete(ctx context.Context, potID, userID string) error {
	pot, err := s.pots.GetByID(ctx, potID)
	if err != nil {
		return err
	}
	if pot.UserID != userID {
		return apperror.Forbidden("only the owner can delete a pot")
	}
	if err := s.pots.Delete(ctx, potID); err != nil {
		return err
	}

	s.logger.Info("pot deleted", slog.String("potID", potID), slog.String("ownerID", userID))
	return nil
}

// Join admits the user into the pot. The returned firstJoin reports whether
// this is the user's first-ever join of this pot — a rejoin after a leave is
// not a first join — so the caller knows whether to broadcast a welcome.
func (s *PotService) Join(ctx context.Context, potID, userID string) (firstJoin bool, err error) {
	// Fast-path duplicate check for a clean error; the ledger's uniqueness
	// constraint still backstops the race this check cannot close.
	already, err := s.members.Exists(ctx, potID, userID)
	if err != nil {
		return false, fmt.Errorf("service/pot: checking membership: %w", err)
	}
	if already {
		return false, apperror.AlreadyMember(potID, userID)
	}

	_, err = s.mutate(ctx, potID,
		func(pot *model.Pot) error { return pot.AddParticipant() },
		func(pot *model.Pot) error {
			var joinErr error
			firstJoin, joinErr = s.members.Join(ctx, pot, userID)
			return joinErr
		},
	)
	if err != nil {
		return false, err
	}

	s.logger.Info("user joined pot",
		slog.String("potID", potID),
		slog.String("userID", userID),
		slog.Bool("firstJoin", firstJoin),
	)
	return firstJoin, nil
}

// Leave releases the user's seat. The owner's seat is permanent; a completed
// pot reopens recruiting when a seat frees up.
func (s *PotService) Leave(ctx context.Context, potID, userID string) error {
	member, err := s.members.Exists(ctx, potID, userID)
	if err != nil {
		return fmt.Errorf("service/pot: checking membership: %w", err)
	}
	if !member {
		return apperror.NotAMember(potID, userID)
	}

	_, err = s.mutate(ctx, potID,
		func(pot *model.Pot) error {
			if pot.UserID == userID {
				return apperror.OwnerCannotLeave(pot.ID)
			}
			return pot.RemoveParticipant()
		},
		func(pot *model.Pot) error { return s.members.Leave(ctx, pot, userID) },
	)
	if err != nil {
		return err
	}

	s.logger.Info("user left pot", slog.String("potID", potID), slog.String("userID", userID))
	return nil
}

// Search runs the two-phase proximity search: the attribute filter narrows
// candidates in the store, the haversine radius filter narrows them again in
// memory, and the surviving list is paginated manually. Store order is id
// ascending (creation order), so the same query always slices the same page.
func (s *PotService) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	// RadiusKm is applied literally: zero keeps only exact coordinate
	// coincidences, negative matches nothing. Callers with no distance
	// preference pass DefaultSearchRadiusKm.
	radius := q.RadiusKm
	status := q.Status
	if status == "" {
		status = model.StatusRecruiting
	}
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	pageIndex := q.PageIndex
	if pageIndex < 0 {
		pageIndex = 0
	}

	filter := repository.PotFilter{}.
		WithKeyword(q.Keyword).
		WithCategory(q.Category).
		WithStatus(status)

	candidates, err := s.pots.FindAll(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("service/pot: fetching search candidates: %w", err)
	}

	nearby := make([]model.Pot, 0, len(candidates))
	for _, pot := range candidates {
		if geo.WithinKm(q.Latitude, q.Longitude, pot.Latitude, pot.Longitude, radius) {
			nearby = append(nearby, pot)
		}
	}

	total := len(nearby)
	start := pageIndex * pageSize
	end := start + pageSize
	if start > total {
		start = total
	}
	if end > total {
		end = total
	}

	return &SearchResult{
		Pots:      s.views(ctx, nearby[start:end]),
		Total:     total,
		PageIndex: pageIndex,
		PageSize:  pageSize,
	}, nil
}

// mutate runs the read-check-mutate-write sequence for one pot with a single
// retry on a version conflict. apply mutates the loaded aggregate; persist
// writes it back under the version check. Only apperror.ErrConflict triggers
// the reload — business-rule errors from apply surface immediately.
func (s *PotService) mutate(
	ctx context.Context,
	potID string,
	apply func(*model.Pot) error,
	persist func(*model.Pot) error,
) (*model.Pot, error) {
	const attempts = 2

	var lastErr error
	for i := 0; i < attempts; i++ {
		pot, err := s.pots.GetByID(ctx, potID)
		if err != nil {
			return nil, err
		}
		if err := apply(pot); err != nil {
			return nil, err
		}

		err = persist(pot)
		if err == nil {
			return pot, nil
		}
		if !errors.Is(err, apperror.ErrConflict) {
			return nil, err
		}
		lastErr = err
		s.logger.Debug("version conflict, retrying",
			slog.String("potID", potID),
			slog.Int("attempt", i+1),
		)
	}
	return nil, lastErr
}

func (s *PotService) view(ctx context.Context, pot *model.Pot, joined bool) *PotView {
	v := &PotView{Pot: *pot, Joined: joined}
	if pot.ImageKey != "" {
		url, err := s.store.SignedURL(ctx, pot.ImageKey)
		if err != nil {
			// A broken image link should not fail the whole response.
			s.logger.Warn("failed to sign image URL",
				slog.String("potID", pot.ID),
				slog.String("error", err.Error()),
			)
		} else {
			v.ImageURL = url
		}
	}
	return v
}

func (s *PotService) views(ctx context.Context, pots []model.Pot) []PotView {
	out := make([]PotView, 0, len(pots))
	for i := range pots {
		out = append(out, *s.view(ctx, &pots[i], false))
	}
	return out
}
