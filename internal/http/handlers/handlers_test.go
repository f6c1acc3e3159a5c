package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"mediaforge/internal/adapter/memstore"
	"mediaforge/internal/domain"
	"mediaforge/internal/http/handlers"
	"mediaforge/internal/http/httpapi"
	"mediaforge/internal/jobs"
	"mediaforge/internal/ledger"
	"mediaforge/internal/middleware"
	"mediaforge/internal/plancfg"
	"mediaforge/internal/providers/chain"
	"mediaforge/internal/providers/shotplan"
)

const testSecret = "test-secret"

type stubEngine struct {
	result string
	err    error
}

func (s *stubEngine) Execute(ctx context.Context, job domain.Job, report jobs.ProgressFunc) (string, error) {
	report(100, "complete", "done")
	return s.result, s.err
}

type fixture struct {
	server *httptest.Server
	ledger *ledger.Ledger
}

func newFixture(t *testing.T, engine jobs.Engine) *fixture {
	t.Helper()
	jobStore := memstore.NewJobStore()
	ledg := ledger.New(memstore.NewLedgerStore(), zerolog.Nop())
	plans := plancfg.Defaults()

	manager := jobs.NewManager(jobs.ManagerOptions{
		Jobs:       jobStore,
		Ledger:     ledg,
		Plans:      plans,
		Engine:     engine,
		Workers:    2,
		QueueSize:  8,
		JobTimeout: 5 * time.Second,
		Logger:     zerolog.Nop(),
	})
	ctx, cancel := context.WithCancel(context.Background())
	manager.Start(ctx)

	planner := chain.New[shotplan.Request, shotplan.Plan]("shotplan", zerolog.Nop(), 0, shotplan.NewLocalPlanner())
	app := handlers.NewApp(manager, ledg, plans, planner, zerolog.Nop())
	router := httpapi.NewRouter(app, httpapi.RouterOptions{JWTSecret: testSecret})
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		server.Close()
		manager.Shutdown()
		cancel()
	})
	return &fixture{server: server, ledger: ledg}
}

func (f *fixture) request(t *testing.T, method, path, plan string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if plan != "" {
		token, err := middleware.SignToken(testSecret, middleware.Identity{
			UserID: "user-1",
			TeamID: "team-1",
			Plan:   plan,
		}, time.Hour)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func (f *fixture) waitDone(t *testing.T, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		resp := f.request(t, http.MethodGet, "/v1/jobs/"+jobID, "free", nil)
		body := decode(t, resp)
		status, _ := body["status"].(string)
		if domain.JobStatus(status).Terminal() {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never terminal", jobID)
	return nil
}

func TestSubmitAndPoll(t *testing.T) {
	f := newFixture(t, &stubEngine{result: "https://cdn.example/out.png"})
	if err := f.ledger.Charge(context.Background(), "team-1", 50, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/jobs", "free", map[string]any{
		"kind":    "image",
		"payload": map[string]string{"prompt": "a red fox"},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["status"] != "processing" {
		t.Errorf("status = %v", body["status"])
	}
	if body["credits_consumed"].(float64) != 10 {
		t.Errorf("credits_consumed = %v, want 10", body["credits_consumed"])
	}
	jobID, _ := body["id"].(string)
	if jobID == "" {
		t.Fatal("no job id returned")
	}

	final := f.waitDone(t, jobID)
	if final["status"] != "done" {
		t.Fatalf("final = %v", final)
	}
	if final["result_ref"] != "https://cdn.example/out.png" {
		t.Errorf("result_ref = %v", final["result_ref"])
	}
}

func TestSubmitInsufficientCreditsWire(t *testing.T) {
	f := newFixture(t, &stubEngine{})
	if err := f.ledger.Charge(context.Background(), "team-1", 50, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/jobs", "pro", map[string]any{
		"kind":     "video",
		"duration": 5,
		"payload":  map[string]string{"prompt": "waves"},
	})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["error"] != "insufficient_credits" {
		t.Errorf("error = %v", body["error"])
	}
	if body["required"].(float64) != 60 || body["available"].(float64) != 50 {
		t.Errorf("required/available = %v/%v, want 60/50", body["required"], body["available"])
	}
}

func TestSubmitPlanRestrictionWire(t *testing.T) {
	f := newFixture(t, &stubEngine{})
	if err := f.ledger.Charge(context.Background(), "team-1", 1000, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/jobs", "free", map[string]any{
		"kind":     "video",
		"duration": 5,
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "plan_restriction" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestSubmitInvalidKindWire(t *testing.T) {
	f := newFixture(t, &stubEngine{})

	resp := f.request(t, http.MethodPost, "/v1/jobs", "free", map[string]any{"kind": "audio"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "invalid_task_config" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestAuthRequired(t *testing.T) {
	f := newFixture(t, &stubEngine{})

	resp := f.request(t, http.MethodPost, "/v1/jobs", "", map[string]any{"kind": "image"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestJobStatusNotFoundWire(t *testing.T) {
	f := newFixture(t, &stubEngine{})

	resp := f.request(t, http.MethodGet, "/v1/jobs/does-not-exist", "free", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "not_found" {
		t.Errorf("error = %v", body["error"])
	}
}

func TestLongVideoPlanIsFree(t *testing.T) {
	f := newFixture(t, &stubEngine{})
	if err := f.ledger.Charge(context.Background(), "team-1", 500, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/long-videos", "studio", map[string]any{
		"action":        "plan",
		"prompt":        "a day at the beach",
		"total_seconds": 30,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode(t, resp)
	raw, err := json.Marshal(body["shot_plan"])
	if err != nil {
		t.Fatal(err)
	}
	var plan shotplan.Plan
	if err := json.Unmarshal(raw, &plan); err != nil {
		t.Fatalf("shot_plan: %v", err)
	}
	if err := plan.Validate(); err != nil {
		t.Errorf("returned plan invalid: %v", err)
	}
	if plan.TotalSeconds != 30 {
		t.Errorf("total_seconds = %d, want 30", plan.TotalSeconds)
	}

	// Planning charges nothing.
	bal, _ := f.ledger.Balance(context.Background(), "team-1")
	if bal.Credits != 500 {
		t.Errorf("credits = %d after planning, want untouched 500", bal.Credits)
	}
}

func TestLongVideoGenerateChargesForPlan(t *testing.T) {
	segments := `{"segments":["a","b","c"]}`
	f := newFixture(t, &stubEngine{result: segments})
	if err := f.ledger.Charge(context.Background(), "team-1", 500, "grant"); err != nil {
		t.Fatal(err)
	}

	shots := []map[string]any{
		{"id": 1, "prompt": "opening", "duration_s": 10, "camera": "wide"},
		{"id": 2, "prompt": "middle", "duration_s": 10, "camera": "medium"},
		{"id": 3, "prompt": "ending", "duration_s": 10, "camera": "close"},
	}
	resp := f.request(t, http.MethodPost, "/v1/long-videos", "studio", map[string]any{
		"action":    "generate",
		"prompt":    "a day at the beach",
		"shot_plan": map[string]any{"total_seconds": 999, "shots": shots},
	})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	body := decode(t, resp)
	// studio long-video at 10 credits/s over the authoritative 30s sum, not
	// the client's claimed total.
	if body["credits_consumed"].(float64) != 300 {
		t.Errorf("credits_consumed = %v, want 300", body["credits_consumed"])
	}

	final := f.waitDone(t, body["id"].(string))
	if final["status"] != "done" || final["result_ref"] != segments {
		t.Errorf("final = %v", final)
	}
}

func TestLongVideoGenerateRejectsInvalidPlan(t *testing.T) {
	f := newFixture(t, &stubEngine{})
	if err := f.ledger.Charge(context.Background(), "team-1", 500, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/long-videos", "studio", map[string]any{
		"action": "generate",
		"prompt": "x",
		"shot_plan": map[string]any{"shots": []map[string]any{
			{"id": 1, "prompt": "no camera", "duration_s": 10},
		}},
	})
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	if body := decode(t, resp); body["error"] != "invalid_task_config" {
		t.Errorf("error = %v", body["error"])
	}

	bal, _ := f.ledger.Balance(context.Background(), "team-1")
	if bal.Credits != 500 {
		t.Errorf("credits = %d, rejected plan must not charge", bal.Credits)
	}
}

func TestFailedJobSurfacesSanitizedMessage(t *testing.T) {
	f := newFixture(t, &stubEngine{err: errors.New("veo.go:42 nil pointer dereference")})
	if err := f.ledger.Charge(context.Background(), "team-1", 50, "grant"); err != nil {
		t.Fatal(err)
	}

	resp := f.request(t, http.MethodPost, "/v1/jobs", "free", map[string]any{
		"kind":    "image",
		"payload": map[string]string{"prompt": "x"},
	})
	body := decode(t, resp)

	final := f.waitDone(t, body["id"].(string))
	if final["status"] != "failed" {
		t.Fatalf("final = %v", final)
	}
	if final["result_ref"] != "generation failed after trying all available providers" {
		t.Errorf("result_ref = %v, raw provider error must not leak", final["result_ref"])
	}

	// The failed job's reservation came back.
	bal, _ := f.ledger.Balance(context.Background(), "team-1")
	if bal.Credits != 50 {
		t.Errorf("credits = %d, want refunded 50", bal.Credits)
	}
}

func TestCreditsEndpoints(t *testing.T) {
	f := newFixture(t, &stubEngine{result: "ok"})
	ctx := context.Background()

	// Unknown team reads as zero, not 404.
	resp := f.request(t, http.MethodGet, "/v1/credits", "free", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode(t, resp)
	if body["credits"].(float64) != 0 {
		t.Errorf("credits = %v, want 0", body["credits"])
	}

	if err := f.ledger.Charge(ctx, "team-1", 50, "grant"); err != nil {
		t.Fatal(err)
	}
	submit := decode(t, f.request(t, http.MethodPost, "/v1/jobs", "free", map[string]any{
		"kind":    "image",
		"payload": map[string]string{"prompt": "x"},
	}))
	f.waitDone(t, submit["id"].(string))

	body = decode(t, f.request(t, http.MethodGet, "/v1/credits", "free", nil))
	if body["credits"].(float64) != 40 || body["credits_consumed"].(float64) != 10 {
		t.Errorf("balance = %v", body)
	}

	txBody := decode(t, f.request(t, http.MethodGet, "/v1/credits/transactions", "free", nil))
	items, _ := txBody["items"].([]any)
	if len(items) != 2 {
		t.Fatalf("got %d transactions, want charge + consume", len(items))
	}
	first, _ := items[0].(map[string]any)
	if first["type"] != "consume" {
		t.Errorf("most recent tx = %v, want the consume", first["type"])
	}
	if fmt.Sprint(first["job_id"]) != submit["id"] {
		t.Errorf("consume tx job_id = %v, want %v", first["job_id"], submit["id"])
	}
}

func TestHealthz(t *testing.T) {
	f := newFixture(t, &stubEngine{})
	resp, err := http.Get(f.server.URL + "/v1/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["status"] != "ok" || body["service"] != "mediaforge" {
		t.Errorf("body = %v, want status ok and the service name", body)
	}
}
