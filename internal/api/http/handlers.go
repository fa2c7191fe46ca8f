package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"

	"traderboard/internal/domain"
	"traderboard/internal/pubsub"
	"traderboard/internal/service"
	"traderboard/pkg/httputil"
)

// HealthChecker is anything the readiness probe should ping.
type HealthChecker interface {
	Health(ctx context.Context) error
}

type Deps struct {
	Log logger.Logger
	Svc *service.Service

	// pinged by /readiness; nil entries are skipped
	Broadcaster pubsub.Broadcaster
	Checks      map[string]HealthChecker
}

type Handler struct {
	log logger.Logger
	svc *service.Service

	broadcaster pubsub.Broadcaster
	checks      map[string]HealthChecker
}

func NewHandler(d Deps) *Handler {
	if d.Svc == nil {
		panic("rating service cannot be nil")
	}
	return &Handler{
		log:         d.Log,
		svc:         d.Svc,
		broadcaster: d.Broadcaster,
		checks:      d.Checks,
	}
}

func (h *Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	if err := httputil.JSON(w, http.StatusOK, map[string]any{}, nil); err != nil {
		h.log.Errorf("Healthz handler error: %s", err.Error())
	}
}

// Readiness pings every wired dependency.
func (h *Handler) Readiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 15*time.Second)
	defer cancel()

	var unhealthy []string
	for name, c := range h.checks {
		if c == nil {
			continue
		}
		if err := c.Health(ctx); err != nil {
			unhealthy = append(unhealthy, name+": "+err.Error())
		}
	}
	if h.broadcaster != nil {
		if err := h.broadcaster.Health(ctx); err != nil {
			unhealthy = append(unhealthy, "nats: "+err.Error())
		}
	}

	if len(unhealthy) > 0 {
		if err := httputil.Error(w, r, http.StatusServiceUnavailable, "dependencies_unhealthy",
			"dependencies check failed", map[string]any{"errors": strings.Join(unhealthy, "; ")}); err != nil {
			h.log.Errorf("Readiness handler error: %s", err.Error())
		}
		return
	}

	if err := httputil.JSON(w, http.StatusOK, map[string]string{"dependencies": "healthy"}, nil); err != nil {
		h.log.Errorf("Readiness handler error: %s", err.Error())
	}
}

type registerUserRequest struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// RegisterUser enqueues a registration; 202 means accepted, not applied.
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}

	h.svc.OnUserRegistered(domain.UserID(req.ID), req.Name)
	_ = httputil.JSON(w, http.StatusAccepted, map[string]string{"result": "accepted"}, nil)
}

type renameUserRequest struct {
	Name string `json:"name"`
}

func (h *Handler) RenameUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	var req renameUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}

	h.svc.OnUserRenamed(id, req.Name)
	_ = httputil.JSON(w, http.StatusAccepted, map[string]string{"result": "accepted"}, nil)
}

func (h *Handler) ConnectUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	h.svc.OnUserConnected(id)
	_ = httputil.JSON(w, http.StatusAccepted, map[string]string{"result": "accepted"}, nil)
}

func (h *Handler) DisconnectUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	h.svc.OnUserDisconnected(id)
	_ = httputil.JSON(w, http.StatusAccepted, map[string]string{"result": "accepted"}, nil)
}

type dealWonRequest struct {
	TS     int64   `json:"ts"` // unix seconds
	UserID uint64  `json:"user_id"`
	Amount float64 `json:"amount"`
}

func (h *Handler) DealWon(w http.ResponseWriter, r *http.Request) {
	var req dealWonRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "invalid JSON body", nil)
		return
	}
	if req.Amount < 0 {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "amount cannot be negative", nil)
		return
	}

	h.svc.OnUserDealWon(time.Unix(req.TS, 0), domain.UserID(req.UserID), domain.Amount(req.Amount))
	_ = httputil.JSON(w, http.StatusAccepted, map[string]string{"result": "accepted"}, nil)
}

func (h *Handler) UserStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	name, registered := h.svc.UserName(id)
	if !registered {
		_ = httputil.Error(w, r, http.StatusNotFound, "not_found", "user is not registered", nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, map[string]any{
		"id":        id,
		"name":      name,
		"connected": h.svc.IsUserConnected(id),
	}, nil)
}

// UserRating serves an on-demand snapshot from the current week's index.
// Scheduled NATS reports stay the delivery contract.
func (h *Handler) UserRating(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	week := h.svc.CurrentWeek()
	if week == nil {
		_ = httputil.Error(w, r, http.StatusServiceUnavailable, "not_started", "rating service is not started", nil)
		return
	}

	res, ok := week.RatingFor(id)
	if !ok {
		_ = httputil.Error(w, r, http.StatusNotFound, "not_found", "user has no winnings this week", nil)
		return
	}

	_ = httputil.JSON(w, http.StatusOK, res, nil)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (domain.UserID, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		_ = httputil.Error(w, r, http.StatusBadRequest, "bad_request", "invalid user id", map[string]any{"id": raw})
		return 0, false
	}
	return domain.UserID(id), true
}
