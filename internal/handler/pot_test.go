package handler

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/subdivision/pot-server/internal/auth"
	"github.com/subdivision/pot-server/internal/chat"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/objectstore"
	sqliteRepo "github.com/subdivision/pot-server/internal/repository/sqlite"
	"github.com/subdivision/pot-server/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// recordingBroadcaster captures events instead of pushing them to sockets.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []chat.Event
}

func (r *recordingBroadcaster) Broadcast(potID string, ev chat.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingBroadcaster) recorded() []chat.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]chat.Event(nil), r.events...)
}

// testEnv wires a real in-memory database through the full service stack,
// the same composition the server does, minus the router.
type testEnv struct {
	db      *sqliteRepo.DB
	tokens  *auth.TokenService
	pots    *PotHandler
	rooms   *recordingBroadcaster
	potSvc  *service.PotService
	authSvc *service.AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqliteRepo.New(":memory:")
	if err != nil {
		t.Fatalf("opening test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	tokens, err := auth.NewTokenService("test-secret-at-least-16-chars")
	if err != nil {
		t.Fatalf("creating token service: %v", err)
	}

	potSvc := service.NewPotService(db, db, objectstore.NewMemory(), logger)
	authSvc := service.NewAuthService(db, tokens, auth.NewPasswordServiceForTest(bcrypt.MinCost), logger)

	rooms := &recordingBroadcaster{}
	return &testEnv{
		db:      db,
		tokens:  tokens,
		pots:    NewPotHandler(potSvc, authSvc, rooms, logger),
		rooms:   rooms,
		potSvc:  potSvc,
		authSvc: authSvc,
	}
}

// signup registers a user and returns their ID and a valid token cookie.
func (e *testEnv) signup(t *testing.T, nickname string) (string, *http.Cookie) {
	t.Helper()
	result, err := e.authSvc.Signup(t.Context(), nickname+"@example.com", nickname, "hunter2hunter2")
	if err != nil {
		t.Fatalf("signing up %s: %v", nickname, err)
	}
	return result.User.ID, &http.Cookie{Name: "token", Value: result.Token}
}

// do runs one request through RequireAuth into the given handler.
func do(handler http.HandlerFunc, tokens *auth.TokenService, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	auth.RequireAuth(tokens)(handler).ServeHTTP(rr, req)
	return rr
}

func createBody(title string, maxHeadcount int) string {
	return fmt.Sprintf(`{"title":%q,"maximumHeadcount":%d,"category":"CHICKEN"}`, title, maxHeadcount)
}

func TestHandleCreate(t *testing.T) {
	env := newTestEnv(t)
	_, cookie := env.signup(t, "alice")

	req := httptest.NewRequest(http.MethodPost, "/api/pots", strings.NewReader(createBody("chicken night", 4)))
	req.AddCookie(cookie)
	rr := do(env.pots.HandleCreate, env.tokens, req)

	assert.Equal(t, http.StatusCreated, rr.Code)

	var view service.PotView
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&view))
	assert.Equal(t, "chicken night", view.Title)
	assert.Equal(t, 1, view.CurrentHeadcount)
	assert.Equal(t, model.StatusRecruiting, view.Status)
	assert.True(t, view.Joined, "the creator should be marked joined")
}

func TestHandleCreate_RejectsAnonymous(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodPost, "/api/pots", strings.NewReader(createBody("x", 4)))
	rr := do(env.pots.HandleCreate, env.tokens, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHandleJoin_FirstJoinAnnouncesEnter(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _ := env.signup(t, "alice")
	_, bobCookie := env.signup(t, "bob")

	pot, err := env.potSvc.Create(t.Context(), ownerID, model.PotFields{Title: "pizza run", MaximumHeadcount: 3})
	if err != nil {
		t.Fatalf("creating pot: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/pots/"+pot.ID+"/join", nil)
	req.SetPathValue("id", pot.ID)
	req.AddCookie(bobCookie)
	rr := do(env.pots.HandleJoin, env.tokens, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"firstJoin":true}`, rr.Body.String())

	events := env.rooms.recorded()
	if assert.Len(t, events, 1) {
		assert.Equal(t, chat.EventEnter, events[0].Type)
		assert.Equal(t, pot.ID, events[0].PotID)
		assert.Equal(t, "bob", events[0].SenderNickname)
	}
}

func TestHandleJoin_FullPotConflicts(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _ := env.signup(t, "alice")
	_, bobCookie := env.signup(t, "bob")
	_, carolCookie := env.signup(t, "carol")

	pot, err := env.potSvc.Create(t.Context(), ownerID, model.PotFields{Title: "duo order", MaximumHeadcount: 2})
	if err != nil {
		t.Fatalf("creating pot: %v", err)
	}

	join := func(cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/pots/"+pot.ID+"/join", nil)
		req.SetPathValue("id", pot.ID)
		req.AddCookie(cookie)
		return do(env.pots.HandleJoin, env.tokens, req)
	}

	assert.Equal(t, http.StatusOK, join(bobCookie).Code)

	rr := join(carolCookie)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resp ErrorResponse
	assert.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "capacity_exceeded", resp.Error)
}

func TestHandleSearch_DistanceDefaultsAndPaging(t *testing.T) {
	env := newTestEnv(t)
	ownerID, cookie := env.signup(t, "alice")

	// One pot at the center, one ~556 km east.
	if _, err := env.potSvc.Create(t.Context(), ownerID, model.PotFields{Title: "near", MaximumHeadcount: 4}); err != nil {
		t.Fatalf("creating pot: %v", err)
	}
	if _, err := env.potSvc.Create(t.Context(), ownerID, model.PotFields{Title: "far", MaximumHeadcount: 4, Longitude: 5}); err != nil {
		t.Fatalf("creating pot: %v", err)
	}

	search := func(query string) service.SearchResult {
		req := httptest.NewRequest(http.MethodGet, "/api/pots/search?"+query, nil)
		req.AddCookie(cookie)
		rr := httptest.NewRecorder()
		env.pots.HandleSearch(rr, req)
		assert.Equal(t, http.StatusOK, rr.Code)

		var result service.SearchResult
		assert.NoError(t, json.NewDecoder(rr.Body).Decode(&result))
		return result
	}

	// Absent distance falls back to the 10 km default.
	result := search("lat=0&lon=0")
	assert.Equal(t, 1, result.Total)
	if assert.Len(t, result.Pots, 1) {
		assert.Equal(t, "near", result.Pots[0].Title)
	}

	// A wide explicit distance reaches both.
	assert.Equal(t, 2, search("lat=0&lon=0&distance=1000").Total)

	// Page past the data: empty page, total intact.
	beyond := search("lat=0&lon=0&distance=1000&page=3&size=10")
	assert.Empty(t, beyond.Pots)
	assert.Equal(t, 2, beyond.Total)
}

func TestHandleSearch_RejectsBadDistance(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/api/pots/search?distance=abc", nil)
	rr := httptest.NewRecorder()
	env.pots.HandleSearch(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandleUpdate_NonOwnerForbidden(t *testing.T) {
	env := newTestEnv(t)
	ownerID, _ := env.signup(t, "alice")
	_, bobCookie := env.signup(t, "bob")

	pot, err := env.potSvc.Create(t.Context(), ownerID, model.PotFields{Title: "group buy", MaximumHeadcount: 4})
	if err != nil {
		t.Fatalf("creating pot: %v", err)
	}

	req := httptest.NewRequest(http.MethodPut, "/api/pots/"+pot.ID, strings.NewReader(createBody("hijacked", 4)))
	req.SetPathValue("id", pot.ID)
	req.AddCookie(bobCookie)
	rr := do(env.pots.HandleUpdate, env.tokens, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}
