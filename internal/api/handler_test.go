package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/warfront/realm-engine/internal/api"
	"github.com/warfront/realm-engine/internal/combat"
	"github.com/warfront/realm-engine/internal/economy"
	"github.com/warfront/realm-engine/internal/model"
	"github.com/warfront/realm-engine/internal/modifier"
	"github.com/warfront/realm-engine/internal/power"
	"github.com/warfront/realm-engine/internal/progression"
	"github.com/warfront/realm-engine/internal/store"
	"github.com/warfront/realm-engine/internal/turn"
)

type constRand float64

func (r constRand) Float64() float64 { return float64(r) }

// newTestEnv wires the full service graph over an in-memory store.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	tables, err := modifier.Load(nil)
	if err != nil {
		t.Fatal(err)
	}
	ms := store.NewMemoryStore()
	engine := power.NewEngine(tables)
	cs := combat.NewService(ms, engine, progression.LoadCurve(nil), combat.LoadConfig(nil), constRand(0.5))
	es := economy.NewService(ms, engine)
	tp := turn.NewProcessor(ms, engine, turn.LoadConfig(nil))

	r := chi.NewRouter()
	r.Route("/api/v1", api.NewHandler(ms, engine, cs, es, tp).Routes)
	return ms, r
}

func seed(t *testing.T, ms *store.MemoryStore) {
	t.Helper()
	ctx := context.Background()
	if err := ms.CreateCollective(ctx, &model.Collective{ID: "north", Name: "North", LeaderID: "att"}); err != nil {
		t.Fatal(err)
	}
	att := &model.Actor{
		ID: "att", Name: "Aurelia", CollectiveID: "north", Gold: 5000, Level: 1, AttackTurns: 10,
		Equipment: []model.ItemStack{{Kind: model.ItemWeapon, Tier: 1, Count: 100}},
	}
	att.Units[model.UnitSoldier] = 100
	att.Structures[model.StructWarHall] = 5
	att.Stats[model.StatStrength] = 10
	def := &model.Actor{ID: "def", Name: "Borin", Gold: 10000, Level: 1, AttackTurns: 10}
	def.Units[model.UnitGuard] = 100
	peasant := &model.Actor{ID: "peasant", Name: "Cato", Level: 1, AttackTurns: 10}
	for _, a := range []*model.Actor{att, def, peasant} {
		if err := ms.CreateActor(ctx, a); err != nil {
			t.Fatal(err)
		}
	}
}

func do(t *testing.T, r chi.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeResult(t *testing.T, w *httptest.ResponseRecorder) model.Result {
	t.Helper()
	var res model.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	return res
}

func TestBattle(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"victory", combat.AttackRequest{AttackerID: "att", Target: "Borin"}, http.StatusOK, ""},
		{"no units", combat.AttackRequest{AttackerID: "peasant", Target: "Borin"}, http.StatusConflict, combat.CodeNoUnits},
		{"unknown target", combat.AttackRequest{AttackerID: "att", Target: "Nobody"}, http.StatusNotFound, combat.CodeTargetNotFound},
		{"self", combat.AttackRequest{AttackerID: "att", Target: "Aurelia"}, http.StatusConflict, combat.CodeSelfTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ms, r := newTestEnv(t)
			seed(t, ms)

			w := do(t, r, http.MethodPost, "/api/v1/battle", tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.wantStatus, w.Body.String())
			}
			res := decodeResult(t, w)
			if res.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", res.Code, tt.wantCode)
			}
			if tt.wantCode == "" && (res.Report == nil || res.Report.Outcome != model.OutcomeVictory) {
				t.Errorf("report = %+v, want victory", res.Report)
			}
		})
	}
}

func TestBattle_BadRequests(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	if w := do(t, r, http.MethodPost, "/api/v1/battle", "{not json"); w.Code != http.StatusBadRequest {
		t.Errorf("malformed body status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/battle", combat.AttackRequest{AttackerID: "att"}); w.Code != http.StatusBadRequest {
		t.Errorf("missing target status = %d", w.Code)
	}
}

func TestSpy_NoSpies(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	w := do(t, r, http.MethodPost, "/api/v1/spy", combat.SpyRequest{AttackerID: "att", Target: "Borin"})
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if res := decodeResult(t, w); res.Code != combat.CodeNoUnits {
		t.Errorf("code = %q", res.Code)
	}
}

func TestGetPower(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	w := do(t, r, http.MethodGet, "/api/v1/actors/att/power", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var resp api.PowerResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	off, ok := resp.Metrics["offense"]
	if !ok {
		t.Fatalf("no offense metric in %v", resp.Metrics)
	}
	if math.Abs(off.Total-2025) > 1e-6 {
		t.Errorf("offense = %v, want 2025", off.Total)
	}
	if off.Effective != 100 || resp.Capacity != 1000 {
		t.Errorf("effective=%d capacity=%d", off.Effective, resp.Capacity)
	}

	if w := do(t, r, http.MethodGet, "/api/v1/actors/ghost/power", nil); w.Code != http.StatusNotFound {
		t.Errorf("unknown actor status = %d", w.Code)
	}
}

func TestReports(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)
	for range 3 {
		do(t, r, http.MethodPost, "/api/v1/battle", combat.AttackRequest{AttackerID: "att", Target: "def"})
	}

	w := do(t, r, http.MethodGet, "/api/v1/actors/def/reports?limit=2", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var reports []model.Report
	if err := json.NewDecoder(w.Body).Decode(&reports); err != nil {
		t.Fatal(err)
	}
	if len(reports) != 2 {
		t.Errorf("reports = %d, want 2", len(reports))
	}

	if w := do(t, r, http.MethodGet, "/api/v1/actors/def/reports?limit=zero", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit status = %d", w.Code)
	}
}

func TestDonateAndTreasury(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	w := do(t, r, http.MethodPost, "/api/v1/collectives/north/donate", map[string]any{"actor_id": "att", "amount": 1000})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	c, _ := ms.GetCollective(context.Background(), "north")
	if !c.Treasury.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("treasury = %s", c.Treasury)
	}

	w = do(t, r, http.MethodGet, "/api/v1/collectives/north/treasury", nil)
	var entries []model.TreasuryEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Kind != economy.KindDonation {
		t.Errorf("entries = %+v", entries)
	}

	w = do(t, r, http.MethodPost, "/api/v1/collectives/north/donate", map[string]any{"actor_id": "def", "amount": 10})
	if w.Code != http.StatusForbidden {
		t.Errorf("non-member donation status = %d", w.Code)
	}
}

func TestPlaceBounty(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	w := do(t, r, http.MethodPost, "/api/v1/bounties", economy.BountyRequest{PlacerID: "att", Target: "Borin", Amount: 300})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	b, err := ms.GetBounty(context.Background(), "def")
	if err != nil || b.Amount != 300 {
		t.Errorf("bounty = %+v, err = %v", b, err)
	}
}

func TestUpgradeStructure(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	if w := do(t, r, http.MethodPost, "/api/v1/actors/att/structures/fortress", nil); w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	a, _ := ms.GetActor(context.Background(), "att")
	if a.Structures[model.StructFortress] != 1 || a.Gold != 4000 {
		t.Errorf("fortress=%d gold=%d", a.Structures[model.StructFortress], a.Gold)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/actors/att/structures/moat", nil); w.Code != http.StatusBadRequest {
		t.Errorf("unknown structure status = %d", w.Code)
	}
}

func TestSetDirective(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	body := map[string]any{"leader_id": "att", "directive": "war", "duration_seconds": 3600}
	if w := do(t, r, http.MethodPost, "/api/v1/collectives/north/directive", body); w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	c, _ := ms.GetCollective(context.Background(), "north")
	if c.Directive != model.DirectiveWar {
		t.Errorf("directive = %s", c.Directive)
	}
}

func TestTick(t *testing.T) {
	ms, r := newTestEnv(t)
	seed(t, ms)

	w := do(t, r, http.MethodPost, "/api/v1/tick", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var sum turn.Summary
	if err := json.NewDecoder(w.Body).Decode(&sum); err != nil {
		t.Fatal(err)
	}
	if sum.ActorsProcessed != 3 || sum.CollectivesProcessed != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestCreateActorAndCollective(t *testing.T) {
	_, r := newTestEnv(t)

	w := do(t, r, http.MethodPost, "/api/v1/actors", api.CreateActorRequest{Name: "Dara"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var a model.Actor
	if err := json.NewDecoder(w.Body).Decode(&a); err != nil {
		t.Fatal(err)
	}
	if a.ID == "" || a.Level != 1 || a.AttackTurns != 10 {
		t.Errorf("actor = %+v", a)
	}

	if w := do(t, r, http.MethodPost, "/api/v1/actors", api.CreateActorRequest{Name: "Dara"}); w.Code != http.StatusConflict {
		t.Errorf("duplicate name status = %d", w.Code)
	}
	w = do(t, r, http.MethodPost, "/api/v1/collectives", api.CreateCollectiveRequest{Name: "South", LeaderID: a.ID})
	if w.Code != http.StatusCreated {
		t.Fatalf("collective status = %d: %s", w.Code, w.Body.String())
	}
	var c model.Collective
	if err := json.NewDecoder(w.Body).Decode(&c); err != nil {
		t.Fatal(err)
	}

	// The founder is a member of the new collective.
	w = do(t, r, http.MethodGet, "/api/v1/actors/"+a.ID, nil)
	var leader model.Actor
	if err := json.NewDecoder(w.Body).Decode(&leader); err != nil {
		t.Fatal(err)
	}
	if leader.CollectiveID != c.ID {
		t.Errorf("leader collective = %q, want %q", leader.CollectiveID, c.ID)
	}

	if w := do(t, r, http.MethodPost, "/api/v1/collectives", api.CreateCollectiveRequest{Name: "East", LeaderID: a.ID}); w.Code != http.StatusConflict {
		t.Errorf("second collective for one leader status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/collectives", api.CreateCollectiveRequest{Name: "West", LeaderID: "nobody"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown leader status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/actors", api.CreateActorRequest{Name: "Edda", CollectiveID: "missing"}); w.Code != http.StatusNotFound {
		t.Errorf("unknown collective status = %d", w.Code)
	}
	if w := do(t, r, http.MethodPost, "/api/v1/actors", api.CreateActorRequest{Name: "Fenn", CollectiveID: c.ID}); w.Code != http.StatusCreated {
		t.Errorf("join existing collective status = %d", w.Code)
	}
}
