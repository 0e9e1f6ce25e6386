/*
handlers.go - HTTP API handlers for goals and achievements

PURPOSE:
  Exposes the goal ledger and the achievement engine via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Goals:
    GET    /api/goals                      List goals in creation order
    POST   /api/goals                      Create goal
    GET    /api/goals/{id}                 Get goal
    DELETE /api/goals/{id}                 Delete goal and its contributions
    GET    /api/goals/{id}/stats           Saved/remaining/needed-per-day

  Contributions:
    POST   /api/goals/{id}/contributions   Add money to a goal
    GET    /api/goals/{id}/contributions   Contribution log, oldest first

  Achievements:
    GET    /api/achievements               Catalog with unlocked flags
    GET    /api/achievements/recent        What the last pass unlocked
    GET    /api/achievements/points        Total points

UNLOCK DELTAS:
  The engine watches the ledger, so by the time Create or Contribute returns
  the evaluation pass has already run. Mutating handlers read the unlocked
  set, apply the mutation, and ask Engine.UnlockedBy which of the new unlocks
  the mutation's before/after snapshots account for. Mutating handlers hold
  one mutex across those three steps.

HEALTH:
  /api/health pings the database when one is configured and answers 503
  while it is unreachable.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Goal not found
  - 409: Duplicate idempotency key
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/nestegg/savings-engine/achievements"
	"github.com/nestegg/savings-engine/goals"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Pinger checks that a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Ledger *goals.Ledger
	Engine *achievements.Engine
	Logger *slog.Logger

	// DB is pinged by Health; nil skips the check.
	DB Pinger

	// Now is the clock used for stats; defaults to time.Now.
	Now func() time.Time

	validate *validator.Validate
	mutateMu sync.Mutex
}

// NewHandler creates a handler over a ledger and the engine watching it.
func NewHandler(ledger *goals.Ledger, engine *achievements.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Ledger:   ledger,
		Engine:   engine,
		Logger:   logger,
		Now:      time.Now,
		validate: validator.New(),
	}
}

// Health reports liveness and database reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.DB != nil {
		if err := h.DB.Ping(r.Context()); err != nil {
			h.Logger.Warn("health check failed", slog.Any("error", err))
			writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// GOAL HANDLERS
// =============================================================================

// ListGoals returns all goals.
func (h *Handler) ListGoals(w http.ResponseWriter, r *http.Request) {
	all := h.Ledger.Goals()
	dtos := make([]GoalDTO, len(all))
	for i, g := range all {
		dtos[i] = toGoalDTO(g)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetGoal returns a single goal.
func (h *Handler) GetGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := goalIDParam(w, r)
	if !ok {
		return
	}

	g, err := h.Ledger.Get(id)
	if err != nil {
		h.writeDomainError(w, "Failed to get goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalDTO(g))
}

// CreateGoal creates a new goal.
func (h *Handler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	var req CreateGoalRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := goals.NewGoal{Title: req.Title, Target: req.TargetAmount}
	if req.Deadline != "" {
		d, err := time.Parse(dateLayout, req.Deadline)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid deadline format (use YYYY-MM-DD)", err)
			return
		}
		in.Deadline = &d
	}

	h.mutateMu.Lock()
	prior := h.Engine.Unlocked()
	g, change, err := h.Ledger.CreateWithChange(r.Context(), in)
	if err != nil {
		h.mutateMu.Unlock()
		h.writeDomainError(w, "Failed to create goal", err)
		return
	}
	unlocked := h.Engine.UnlockedBy(prior, change)
	h.mutateMu.Unlock()

	writeJSON(w, http.StatusCreated, CreateGoalResponse{
		Goal:     toGoalDTO(g),
		Unlocked: toAchievementDTOs(unlocked),
	})
}

// DeleteGoal removes a goal. Achievements stay unlocked.
func (h *Handler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	id, ok := goalIDParam(w, r)
	if !ok {
		return
	}

	if err := h.Ledger.Delete(r.Context(), id); err != nil {
		h.writeDomainError(w, "Failed to delete goal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetStats returns the savings summary of a goal.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	id, ok := goalIDParam(w, r)
	if !ok {
		return
	}

	g, err := h.Ledger.Get(id)
	if err != nil {
		h.writeDomainError(w, "Failed to get goal", err)
		return
	}
	writeJSON(w, http.StatusOK, toStatsDTO(g, goals.ComputeStats(g, h.now())))
}

// =============================================================================
// CONTRIBUTION HANDLERS
// =============================================================================

// Contribute adds money to a goal.
func (h *Handler) Contribute(w http.ResponseWriter, r *http.Request) {
	id, ok := goalIDParam(w, r)
	if !ok {
		return
	}

	var req ContributionRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	h.mutateMu.Lock()
	prior := h.Engine.Unlocked()
	g, change, err := h.Ledger.ContributeWithChange(r.Context(), id, req.Amount, req.IdempotencyKey)
	if err != nil {
		h.mutateMu.Unlock()
		h.writeDomainError(w, "Failed to record contribution", err)
		return
	}
	unlocked := h.Engine.UnlockedBy(prior, change)
	h.mutateMu.Unlock()

	writeJSON(w, http.StatusCreated, ContributionResponse{
		Goal:     toGoalDTO(g),
		Unlocked: toAchievementDTOs(unlocked),
	})
}

// ListContributions returns the contribution log of a goal.
func (h *Handler) ListContributions(w http.ResponseWriter, r *http.Request) {
	id, ok := goalIDParam(w, r)
	if !ok {
		return
	}

	cs, err := h.Ledger.Contributions(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, "Failed to list contributions", err)
		return
	}

	dtos := make([]ContributionDTO, len(cs))
	for i, c := range cs {
		dtos[i] = toContributionDTO(c)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ACHIEVEMENT HANDLERS
// =============================================================================

// ListAchievements returns the full catalog with unlocked flags.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	statuses := h.Engine.Statuses()

	resp := AchievementsResponse{
		Achievements: make([]AchievementDTO, len(statuses)),
		Total:        len(statuses),
	}
	for i, s := range statuses {
		resp.Achievements[i] = toAchievementDTO(s.Definition, s.Unlocked)
		if s.Unlocked {
			resp.UnlockedCount++
			resp.TotalPoints += s.Points
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// RecentAchievements returns what the most recent evaluation pass unlocked.
func (h *Handler) RecentAchievements(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toAchievementDTOs(h.Engine.RecentlyUnlocked()))
}

// Points returns the total points earned.
func (h *Handler) Points(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, PointsResponse{TotalPoints: h.Engine.TotalPoints()})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps ledger errors to a status code.
func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case goals.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case goals.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case goals.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		h.Logger.Error(message, slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

// decode reads and validates a JSON body. It writes the 400 itself.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validator().Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				fields[fe.Field()] = fe.Tag()
			}
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "Validation failed", Details: fields})
			return false
		}
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

func (h *Handler) validator() *validator.Validate {
	if h.validate == nil {
		h.validate = validator.New()
	}
	return h.validate
}

func (h *Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

func goalIDParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid goal id", err)
		return uuid.Nil, false
	}
	return id, true
}
