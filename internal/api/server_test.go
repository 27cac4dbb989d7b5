// Package api_test provides tests for the HTTP API server.
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/quantdesk/template-backend/internal/api"
	"github.com/quantdesk/template-backend/internal/engine"
	"github.com/quantdesk/template-backend/internal/importer"
	"github.com/quantdesk/template-backend/internal/store"
	"github.com/quantdesk/template-backend/pkg/types"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*api.Server, *store.Store) {
	t.Helper()
	logger := zap.NewNop()

	st, err := store.OpenMemory(logger)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	eng := engine.NewEngine(logger, types.EngineConfig{}, st, st, nil)
	imp := importer.New(logger, st, t.TempDir())
	hub := api.NewHub(logger)
	go hub.Run()

	config := &types.ServerConfig{
		Host:          "localhost",
		Port:          0,
		WebSocketPath: "/ws",
	}

	return api.NewServer(logger, config, st, eng, imp, hub), st
}

func doRequest(t *testing.T, s *api.Server, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/v1/health", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if resp["status"] != "healthy" {
		t.Errorf("Unexpected status: %v", resp["status"])
	}
}

func TestRecommendEndpoint(t *testing.T) {
	s, st := newTestServer(t)

	tmpl := &types.Template{
		Type: types.TemplateTypeFlazh,
		Name: "Morning Scalp",
		Conditions: types.MarketConditions{
			Session:    types.SessionLateMorning,
			Volatility: types.VolatilityMedium,
		},
		Flazh: &types.FlazhParameters{
			FastPeriod: 5, MediumPeriod: 10, SlowPeriod: 15,
			StopLoss: 10, Target: 20, TrailingStop: 5,
			FilterMultiplier: 2.0,
		},
	}
	if err := st.UpsertTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}

	w := doRequest(t, s, "GET", "/api/v1/recommend/flazh?session=LATE_MORNING&volatility=MEDIUM", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var rec types.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if rec.OriginalTemplate == nil || rec.OriginalTemplate.Name != "Morning Scalp" {
		t.Errorf("Unexpected template: %+v", rec.OriginalTemplate)
	}
	if rec.IsFallback {
		t.Error("Stored template matched; recommendation must not be a fallback")
	}
	if rec.Conditions.Session != types.SessionLateMorning {
		t.Errorf("Override session lost: %s", rec.Conditions.Session)
	}
}

func TestRecommendEndpointFallback(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/v1/recommend/atm?session=PRE_CLOSE&volatility=HIGH", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Empty store must still recommend, got %d", w.Code)
	}

	var rec types.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if !rec.IsFallback {
		t.Error("Expected a fallback recommendation from an empty store")
	}
	if rec.OriginalTemplate.ATM == nil {
		t.Error("ATM request must produce ATM parameters")
	}
}

func TestRecommendEndpointRejectsUnknownType(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/v1/recommend/bogus", nil)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown type, got %d", w.Code)
	}
}

func TestRecommendationsPairEndpoint(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "GET", "/api/v1/recommendations?session=LATE_MORNING&volatility=MEDIUM", nil)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var pair types.RecommendationPair
	if err := json.Unmarshal(w.Body.Bytes(), &pair); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if pair.Flazh == nil || pair.ATM == nil {
		t.Fatal("Both families must be populated")
	}
	if pair.Flazh.Conditions.Session != pair.ATM.Conditions.Session {
		t.Error("Pair must share one session")
	}
}

func TestTemplateCRUD(t *testing.T) {
	s, _ := newTestServer(t)

	tmpl := types.Template{
		Type: types.TemplateTypeATM,
		Name: "Bracket Wide",
		Conditions: types.MarketConditions{
			Session:    types.SessionPreClose,
			Volatility: types.VolatilityHigh,
		},
		ATM: &types.ATMParameters{
			StopLoss: 15, Target: 30, TrailingStop: 8,
			CalculationMode: types.CalculationModeTicks,
		},
	}
	body, _ := json.Marshal(tmpl)

	if w := doRequest(t, s, "POST", "/api/v1/templates", body); w.Code != http.StatusOK {
		t.Fatalf("Create failed with %d: %s", w.Code, w.Body.String())
	}

	w := doRequest(t, s, "GET", "/api/v1/templates/atm/Bracket%20Wide", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Get failed with %d", w.Code)
	}
	var got types.Template
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if got.ATM == nil || got.ATM.StopLoss != 15 {
		t.Errorf("Round trip mismatch: %+v", got)
	}

	w = doRequest(t, s, "GET", "/api/v1/templates/atm", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List failed with %d", w.Code)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if listed.Count != 1 {
		t.Errorf("Expected 1 template, got %d", listed.Count)
	}

	if w := doRequest(t, s, "DELETE", "/api/v1/templates/atm/Bracket%20Wide", nil); w.Code != http.StatusNoContent {
		t.Fatalf("Delete failed with %d", w.Code)
	}
	if w := doRequest(t, s, "GET", "/api/v1/templates/atm/Bracket%20Wide", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after delete, got %d", w.Code)
	}
}

func TestUpsertTemplateValidation(t *testing.T) {
	s, _ := newTestServer(t)

	if w := doRequest(t, s, "POST", "/api/v1/templates", []byte("{not json")); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed body, got %d", w.Code)
	}

	body, _ := json.Marshal(types.Template{Type: "BOGUS", Name: "x"})
	if w := doRequest(t, s, "POST", "/api/v1/templates", body); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid type, got %d", w.Code)
	}
}

func TestBacktestIngestFeedsRecommendations(t *testing.T) {
	s, st := newTestServer(t)

	tmpl := &types.Template{
		Type: types.TemplateTypeFlazh,
		Name: "Scalp",
		Conditions: types.MarketConditions{
			Session:    types.SessionLateMorning,
			Volatility: types.VolatilityMedium,
		},
		Flazh: &types.FlazhParameters{
			FastPeriod: 5, MediumPeriod: 10, SlowPeriod: 15,
			StopLoss: 10, Target: 20, TrailingStop: 5,
			FilterMultiplier: 2.0,
		},
	}
	if err := st.UpsertTemplate(context.Background(), tmpl); err != nil {
		t.Fatalf("Seed upsert failed: %v", err)
	}

	record := types.BacktestRecord{
		TemplateType:    types.TemplateTypeFlazh,
		TemplateName:    "Scalp",
		Session:         types.SessionLateMorning,
		VolatilityScore: 5,
		Trades:          20, Wins: 15,
		GrossProfit: 600, GrossLoss: 200,
	}
	body, _ := json.Marshal(record)

	if w := doRequest(t, s, "POST", "/api/v1/backtests", body); w.Code != http.StatusCreated {
		t.Fatalf("Backtest ingest failed with %d", w.Code)
	}

	w := doRequest(t, s, "GET", "/api/v1/recommend/flazh?session=LATE_MORNING&volatility=MEDIUM&volatilityScore=5", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Recommend failed with %d", w.Code)
	}

	var rec types.Recommendation
	if err := json.Unmarshal(w.Body.Bytes(), &rec); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if rec.Performance == nil {
		t.Fatal("Expected performance metrics after backtest ingest")
	}
	if rec.AdjustedTemplate.Name != "Scalp (Enhanced)" {
		t.Errorf("Expected adjusted template, got %q", rec.AdjustedTemplate.Name)
	}
}

func TestJournalEndpoints(t *testing.T) {
	s, _ := newTestServer(t)

	trades := []types.JournalTrade{
		{Symbol: "NQ", Direction: "LONG", PnL: 100},
		{Symbol: "NQ", Direction: "SHORT", PnL: -40},
	}
	for _, trade := range trades {
		body, _ := json.Marshal(trade)
		if w := doRequest(t, s, "POST", "/api/v1/journal/trades", body); w.Code != http.StatusCreated {
			t.Fatalf("AddTrade failed with %d", w.Code)
		}
	}

	w := doRequest(t, s, "GET", "/api/v1/journal/trades", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("List trades failed with %d", w.Code)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if listed.Count != 2 {
		t.Errorf("Expected 2 trades, got %d", listed.Count)
	}

	w = doRequest(t, s, "GET", "/api/v1/journal/summary", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Summary failed with %d", w.Code)
	}
	var summary struct {
		TotalTrades   int `json:"totalTrades"`
		WinningTrades int `json:"winningTrades"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if summary.TotalTrades != 2 || summary.WinningTrades != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
}

func TestImportEndpointEmptyFolder(t *testing.T) {
	s, _ := newTestServer(t)

	w := doRequest(t, s, "POST", "/api/v1/import", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Import of empty folder must succeed, got %d", w.Code)
	}

	var result importer.Result
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Invalid JSON response: %v", err)
	}
	if result.Imported != 0 {
		t.Errorf("Expected 0 imports, got %d", result.Imported)
	}
}
