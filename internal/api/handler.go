// Package api is the thin HTTP adapter over the engine: request decoding,
// result-to-status mapping and JSON responses. No game rules live here.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/combat"
	"github.com/warfront/realm-engine/internal/economy"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/store"
	"github.com/warfront/realm-engine/internal/turn"
)

// defaultReportLimit caps report listings when no limit is given.
const defaultReportLimit = 50

var errAlreadyMember = errors.New("api: leader already belongs to a collective")

// Handler serves the realm HTTP API.
type Handler struct {
	store   store.Store
	engine  *power.Engine
	combat  *combat.Service
	economy *economy.Service
	turns   *turn.Processor
}

// NewHandler creates the HTTP adapter.
func NewHandler(st store.Store, engine *power.Engine, cs *combat.Service, es *economy.Service, tp *turn.Processor) *Handler {
	return &Handler{store: st, engine: engine, combat: cs, economy: es, turns: tp}
}

// Routes mounts every endpoint on r.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/actors", h.CreateActor)
	r.Get("/actors/{actorID}", h.GetActor)
	r.Get("/actors/{actorID}/power", h.GetPower)
	r.Get("/actors/{actorID}/reports", h.ListReports)
	r.Get("/actors/{actorID}/notifications", h.ListNotifications)
	r.Post("/actors/{actorID}/structures/{structure}", h.UpgradeStructure)
	r.Post("/actors/{actorID}/repay", h.RepayLoan)

	r.Post("/collectives", h.CreateCollective)
	r.Get("/collectives/{collectiveID}", h.GetCollective)
	r.Get("/collectives/{collectiveID}/treasury", h.ListTreasury)
	r.Post("/collectives/{collectiveID}/donate", h.Donate)
	r.Post("/collectives/{collectiveID}/loans", h.GrantLoan)
	r.Post("/collectives/{collectiveID}/directive", h.SetDirective)

	r.Post("/battle", h.Attack)
	r.Post("/spy", h.Spy)
	r.Post("/bounties", h.PlaceBounty)
	r.Post("/tick", h.Tick)
}

// --- Request/Response types ---

// CreateActorRequest is the JSON body for POST /actors.
type CreateActorRequest struct {
	Name         string `json:"name"`
	CollectiveID string `json:"collective_id,omitempty"`
}

// CreateCollectiveRequest is the JSON body for POST /collectives.
type CreateCollectiveRequest struct {
	Name     string `json:"name"`
	LeaderID string `json:"leader_id"`
}

// DirectiveBody is the JSON body for POST /collectives/{id}/directive.
type DirectiveBody struct {
	LeaderID        string          `json:"leader_id"`
	Directive       model.Directive `json:"directive"`
	DurationSeconds int64           `json:"duration_seconds"` // 0 = until replaced
}

// PowerResponse is the JSON body returned from GET /actors/{id}/power.
type PowerResponse struct {
	ActorID  string                     `json:"actor_id"`
	Capacity int64                      `json:"capacity"`
	NetWorth float64                    `json:"net_worth"`
	Metrics  map[string]power.Breakdown `json:"metrics"`
	Income   power.Income               `json:"income"`
	Computed time.Time                  `json:"computed_at"`
}

// --- Actors and collectives ---

// CreateActor handles POST /api/v1/actors
func (h *Handler) CreateActor(w http.ResponseWriter, r *http.Request) {
	var req CreateActorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}
	if req.CollectiveID != "" {
		if _, err := h.store.GetCollective(r.Context(), req.CollectiveID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				writeError(w, "collective not found", http.StatusNotFound)
				return
			}
			writeStoreError(w, err)
			return
		}
	}
	tables := h.engine.Tables()
	a := &model.Actor{
		ID:           uuid.New().String(),
		Name:         req.Name,
		CollectiveID: req.CollectiveID,
		Level:        1,
		AttackTurns:  min(tables.Economy.TurnsPerTick*10, tables.Economy.MaxAttackTurns),
		CreatedAt:    time.Now().UTC(),
	}
	a.NetWorth = h.engine.NetWorth(a)
	if err := h.store.CreateActor(r.Context(), a); err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("actor created", "id", a.ID, "name", a.Name)
	writeJSON(w, http.StatusCreated, a)
}

// GetActor handles GET /api/v1/actors/{actorID}
func (h *Handler) GetActor(w http.ResponseWriter, r *http.Request) {
	a, err := h.store.GetActor(r.Context(), chi.URLParam(r, "actorID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// CreateCollective handles POST /api/v1/collectives
func (h *Handler) CreateCollective(w http.ResponseWriter, r *http.Request) {
	var req CreateCollectiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" || req.LeaderID == "" {
		writeError(w, "name and leader_id are required", http.StatusBadRequest)
		return
	}
	c := &model.Collective{
		ID:        uuid.New().String(),
		Name:      req.Name,
		LeaderID:  req.LeaderID,
		Treasury:  decimal.Zero,
		CreatedAt: time.Now().UTC(),
	}
	// The leader joins the collective in the same transaction that creates it.
	err := h.store.WithTx(r.Context(), func(tx store.Tx) error {
		leader, err := tx.LockActor(r.Context(), req.LeaderID)
		if err != nil {
			return err
		}
		if leader.CollectiveID != "" {
			return errAlreadyMember
		}
		if err := tx.InsertCollective(r.Context(), c); err != nil {
			return err
		}
		return tx.SetMembership(r.Context(), leader.ID, c.ID)
	})
	if errors.Is(err, errAlreadyMember) {
		writeError(w, "leader already belongs to a collective", http.StatusConflict)
		return
	}
	if err != nil {
		writeStoreError(w, err)
		return
	}
	slog.Info("collective created", "id", c.ID, "name", c.Name, "leader", c.LeaderID)
	writeJSON(w, http.StatusCreated, c)
}

// GetCollective handles GET /api/v1/collectives/{collectiveID}
func (h *Handler) GetCollective(w http.ResponseWriter, r *http.Request) {
	c, err := h.store.GetCollective(r.Context(), chi.URLParam(r, "collectiveID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// GetPower handles GET /api/v1/actors/{actorID}/power
// Returns every metric with its aggregation breakdown.
func (h *Handler) GetPower(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a, err := h.store.GetActor(ctx, chi.URLParam(r, "actorID"))
	if err != nil {
		writeStoreError(w, err)
		return
	}
	now := time.Now().UTC()
	effects, err := h.store.ActiveEffects(ctx, a.ID, now)
	if err != nil {
		writeError(w, "failed to load effects", http.StatusInternalServerError)
		return
	}
	var coll *model.Collective
	if a.CollectiveID != "" {
		if coll, err = h.store.GetCollective(ctx, a.CollectiveID); err != nil {
			coll = nil
		}
	}

	snap := power.Snapshot{Actor: *a, Effects: effects, Now: now}
	resp := PowerResponse{
		ActorID:  a.ID,
		Capacity: h.engine.Capacity(a),
		NetWorth: h.engine.NetWorth(a),
		Metrics:  make(map[string]power.Breakdown, model.NumMetrics),
		Income:   h.engine.Income(snap, coll),
		Computed: now,
	}
	for m := range model.NumMetrics {
		_, bd := h.engine.Compute(snap, model.Metric(m), coll)
		resp.Metrics[model.Metric(m).String()] = bd
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListReports handles GET /api/v1/actors/{actorID}/reports?limit=N
func (h *Handler) ListReports(w http.ResponseWriter, r *http.Request) {
	limit := defaultReportLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	reports, err := h.store.ListReports(r.Context(), chi.URLParam(r, "actorID"), limit)
	if err != nil {
		writeError(w, "failed to list reports", http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []model.Report{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// ListNotifications handles GET /api/v1/actors/{actorID}/notifications
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	notes, err := h.store.ListNotifications(r.Context(), chi.URLParam(r, "actorID"))
	if err != nil {
		writeError(w, "failed to list notifications", http.StatusInternalServerError)
		return
	}
	if notes == nil {
		notes = []model.Notification{}
	}
	writeJSON(w, http.StatusOK, notes)
}

// ListTreasury handles GET /api/v1/collectives/{collectiveID}/treasury
func (h *Handler) ListTreasury(w http.ResponseWriter, r *http.Request) {
	entries, err := h.store.ListTreasuryEntries(r.Context(), chi.URLParam(r, "collectiveID"))
	if err != nil {
		writeError(w, "failed to list treasury entries", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.TreasuryEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// --- Actions ---

// Attack handles POST /api/v1/battle
func (h *Handler) Attack(w http.ResponseWriter, r *http.Request) {
	var req combat.AttackRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AttackerID == "" || req.Target == "" {
		writeError(w, "attacker_id and target are required", http.StatusBadRequest)
		return
	}
	writeResult(w, h.combat.Attack(r.Context(), req))
}

// Spy handles POST /api/v1/spy
func (h *Handler) Spy(w http.ResponseWriter, r *http.Request) {
	var req combat.SpyRequest
	if !decode(w, r, &req) {
		return
	}
	if req.AttackerID == "" || req.Target == "" {
		writeError(w, "attacker_id and target are required", http.StatusBadRequest)
		return
	}
	writeResult(w, h.combat.Spy(r.Context(), req))
}

// Donate handles POST /api/v1/collectives/{collectiveID}/donate
func (h *Handler) Donate(w http.ResponseWriter, r *http.Request) {
	var req economy.DonateRequest
	if !decode(w, r, &req) {
		return
	}
	req.CollectiveID = chi.URLParam(r, "collectiveID")
	writeResult(w, h.economy.Donate(r.Context(), req))
}

// GrantLoan handles POST /api/v1/collectives/{collectiveID}/loans
func (h *Handler) GrantLoan(w http.ResponseWriter, r *http.Request) {
	var req economy.LoanRequest
	if !decode(w, r, &req) {
		return
	}
	req.CollectiveID = chi.URLParam(r, "collectiveID")
	writeResult(w, h.economy.GrantLoan(r.Context(), req))
}

// RepayLoan handles POST /api/v1/actors/{actorID}/repay
func (h *Handler) RepayLoan(w http.ResponseWriter, r *http.Request) {
	var req economy.RepayRequest
	if !decode(w, r, &req) {
		return
	}
	req.ActorID = chi.URLParam(r, "actorID")
	writeResult(w, h.economy.RepayLoan(r.Context(), req))
}

// SetDirective handles POST /api/v1/collectives/{collectiveID}/directive
func (h *Handler) SetDirective(w http.ResponseWriter, r *http.Request) {
	var body DirectiveBody
	if !decode(w, r, &body) {
		return
	}
	writeResult(w, h.economy.SetDirective(r.Context(), economy.DirectiveRequest{
		CollectiveID: chi.URLParam(r, "collectiveID"),
		LeaderID:     body.LeaderID,
		Directive:    body.Directive,
		Duration:     time.Duration(body.DurationSeconds) * time.Second,
	}))
}

// UpgradeStructure handles POST /api/v1/actors/{actorID}/structures/{structure}
func (h *Handler) UpgradeStructure(w http.ResponseWriter, r *http.Request) {
	st, err := model.ParseStructure(chi.URLParam(r, "structure"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeResult(w, h.economy.UpgradeStructure(r.Context(), economy.UpgradeRequest{
		ActorID:   chi.URLParam(r, "actorID"),
		Structure: st,
	}))
}

// PlaceBounty handles POST /api/v1/bounties
func (h *Handler) PlaceBounty(w http.ResponseWriter, r *http.Request) {
	var req economy.BountyRequest
	if !decode(w, r, &req) {
		return
	}
	writeResult(w, h.economy.PlaceBounty(r.Context(), req))
}

// Tick handles POST /api/v1/tick
// Runs one turn-processor pass synchronously and returns its summary.
func (h *Handler) Tick(w http.ResponseWriter, r *http.Request) {
	sum, err := h.turns.ProcessAll(r.Context())
	switch {
	case errors.Is(err, turn.ErrTickRunning):
		writeError(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		slog.Error("tick request failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, sum)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// --- helpers ---

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return false
	}
	return true
}

// statusFor maps an engine result onto an HTTP status.
func statusFor(res model.Result) int {
	switch res.Status {
	case model.StatusSuccess, model.StatusDeflected:
		return http.StatusOK
	case model.StatusRejected:
		switch res.Code {
		case combat.CodeAttackerNotFound, combat.CodeTargetNotFound,
			economy.CodeActorNotFound, economy.CodeCollectiveNotFound:
			return http.StatusNotFound
		case economy.CodeNotLeader, economy.CodeNotMember:
			return http.StatusForbidden
		case economy.CodeInvalidAmount, economy.CodeInvalidStructure, economy.CodeInvalidDirective:
			return http.StatusBadRequest
		}
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

func writeResult(w http.ResponseWriter, res model.Result) {
	writeJSON(w, statusFor(res), res)
}

func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, "not found", http.StatusNotFound)
	case errors.Is(err, store.ErrAlreadyExists):
		writeError(w, "already exists", http.StatusConflict)
	default:
		slog.Error("store error", "err", err)
		writeError(w, "internal error", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
