package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/subdivision/pot-server/internal/auth"
	"github.com/subdivision/pot-server/internal/chat"
	"github.com/subdivision/pot-server/internal/model"
	"github.com/subdivision/pot-server/internal/repository"
	"github.com/subdivision/pot-server/internal/service"
)

// PotHandler exposes the pot lifecycle over HTTP: CRUD, join/leave, and the
// proximity search. All business rules live in the service; this layer only
// parses requests and writes responses.
type PotHandler struct {
	pots   *service.PotService
	auths  *service.AuthService
	rooms  chat.Broadcaster
	logger *slog.Logger
}

func NewPotHandler(pots *service.PotService, auths *service.AuthService, rooms chat.Broadcaster, logger *slog.Logger) *PotHandler {
	return &PotHandler{pots: pots, auths: auths, rooms: rooms, logger: logger}
}

// potRequest is the JSON body of create and update. The imageUrl field
// carries either a fresh upload key or an echoed-back signed URL; the
// service tells them apart.
type potRequest struct {
	Title            string            `json:"title"`
	Content          string            `json:"content"`
	ProductName      string            `json:"productName"`
	Price            int               `json:"price"`
	MaximumHeadcount int               `json:"maximumHeadcount"`
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	Address          string            `json:"address"`
	DetailAddress    string            `json:"detailAddress"`
	ImageURL         string            `json:"imageUrl"`
	Category         model.PotCategory `json:"category"`
}

func (req potRequest) fields() model.PotFields {
	return model.PotFields{
		Title:            req.Title,
		Content:          req.Content,
		ProductName:      req.ProductName,
		Price:            req.Price,
		MaximumHeadcount: req.MaximumHeadcount,
		Latitude:         req.Latitude,
		Longitude:        req.Longitude,
		Address:          req.Address,
		DetailAddress:    req.DetailAddress,
		ImageKey:         req.ImageURL,
		Category:         req.Category,
	}
}

// HandleCreate creates a pot owned by the authenticated user.
//
// HTTP: POST /api/pots (RequireAuth)
func (h *PotHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req potRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	pot, err := h.pots.Create(r.Context(), userID, req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, pot)
}

// HandleGetByID returns one pot. Logged-in viewers (OptionalAuth) get the
// joined flag; anonymous viewers get joined=false.
//
// HTTP: GET /api/pots/{id} (OptionalAuth)
func (h *PotHandler) HandleGetByID(w http.ResponseWriter, r *http.Request) {
	viewerID, _ := auth.UserIDFromContext(r.Context())

	pot, err := h.pots.GetByID(r.Context(), r.PathValue("id"), viewerID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pot)
}

// HandleList returns the public feed, newest first.
//
// HTTP: GET /api/pots?page=0&size=20
func (h *PotHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size <= 0 {
		size = 20
	}
	if page < 0 {
		page = 0
	}

	pots, total, err := h.pots.List(r.Context(), repository.ListOptions{Limit: size, Offset: page * size})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pots": pots, "total": total})
}

// HandleUpdate overwrites a pot's fields. Owner-only.
//
// HTTP: PUT /api/pots/{id} (RequireAuth)
func (h *PotHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	var req potRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	pot, err := h.pots.Update(r.Context(), r.PathValue("id"), userID, req.fields())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pot)
}

// HandleDelete removes a pot and everything it owns. Owner-only.
//
// HTTP: DELETE /api/pots/{id} (RequireAuth)
func (h *PotHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.pots.Delete(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleJoin admits the authenticated user into the pot. A first-time join
// is announced to the pot's chat room so existing members see the arrival.
//
// HTTP: POST /api/pots/{id}/join (RequireAuth)
func (h *PotHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	potID := r.PathValue("id")

	firstJoin, err := h.pots.Join(r.Context(), potID, userID)
	if err != nil {
		writeError(w, err)
		return
	}

	if firstJoin && h.rooms != nil {
		h.announceEnter(r, potID, userID)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"firstJoin": firstJoin})
}

func (h *PotHandler) announceEnter(r *http.Request, potID, userID string) {
	user, err := h.auths.GetUserByID(r.Context(), userID)
	if err != nil {
		h.logger.Warn("Skipping enter announcement", "potId", potID, "error", err)
		return
	}
	h.rooms.Broadcast(potID, chat.Event{
		Type:           chat.EventEnter,
		PotID:          potID,
		SenderID:       userID,
		SenderNickname: user.Nickname,
		Message:        user.Nickname + " joined the pot",
		SentAt:         time.Now().UTC(),
	})
}

// HandleLeave releases the authenticated user's seat.
//
// HTTP: POST /api/pots/{id}/leave (RequireAuth)
func (h *PotHandler) HandleLeave(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	if err := h.pots.Leave(r.Context(), r.PathValue("id"), userID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleMyPots returns every pot the user is a member of, owned included.
//
// HTTP: GET /api/mypage/my-pots (RequireAuth)
func (h *PotHandler) HandleMyPots(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	pots, err := h.pots.ListByUser(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pots)
}

// HandleSearch runs the proximity search.
//
// HTTP: GET /api/pots/search?lat=..&lon=..&distance=..&keyword=..
//	&category=..&status=..&page=0&size=20
//
// An absent distance falls back to the 10 km default; an explicit
// distance of zero or less keeps only exact coordinate coincidences.
// Status defaults to RECRUITING. lat/lon default to 0,0 which is a
// valid, if unhelpful, center.
func (h *PotHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	lat, err := parseFloat(q.Get("lat"))
	if err != nil {
		http.Error(w, "invalid lat", http.StatusBadRequest)
		return
	}
	lon, err := parseFloat(q.Get("lon"))
	if err != nil {
		http.Error(w, "invalid lon", http.StatusBadRequest)
		return
	}
	radius := service.DefaultSearchRadiusKm
	if v := q.Get("distance"); v != "" {
		radius, err = strconv.ParseFloat(v, 64)
		if err != nil {
			http.Error(w, "invalid distance", http.StatusBadRequest)
			return
		}
	}
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("size"))

	result, err := h.pots.Search(r.Context(), service.SearchQuery{
		Latitude:  lat,
		Longitude: lon,
		RadiusKm:  radius,
		Keyword:   q.Get("keyword"),
		Category:  model.PotCategory(q.Get("category")),
		Status:    model.PotStatus(q.Get("status")),
		PageIndex: page,
		PageSize:  size,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
