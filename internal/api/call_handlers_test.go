package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rupeeq/callagent/internal/config"
	"github.com/rupeeq/callagent/internal/database"
	"github.com/rupeeq/callagent/internal/objection"
	"github.com/rupeeq/callagent/internal/script"
	"github.com/rupeeq/callagent/internal/session"
)

// newTestServer wires a Server against a temp SQLite database and the
// embedded script and objection bundles.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	db, err := database.Open(t.TempDir())
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	cat, err := script.Load("")
	if err != nil {
		t.Fatalf("loading script: %v", err)
	}
	matcher, err := objection.Load("", cat.Languages())
	if err != nil {
		t.Fatalf("loading objections: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	calls := database.NewCallRepository(db)
	transcripts := database.NewTranscriptRepository(db)
	sink := database.NewStoreSink(calls, transcripts, logger)

	store := session.NewMemoryStore()
	manager := session.NewManager(cat, matcher, store, sink, logger)

	cfg := &config.Config{HTTPPort: 8080, ExportLimit: 1000, LogLevel: "info", LogFormat: "text"}
	srv := NewServer(cfg, manager, store, calls, transcripts, nil, nil)
	t.Cleanup(srv.Close)
	return srv
}

// doJSON issues a request and decodes the envelope data into a map.
func doJSON(t *testing.T, srv *Server, method, path, body string) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decoding response %q: %v", method, path, rr.Body.String(), err)
	}
	data, _ := env.Data.(map[string]any)
	if data == nil {
		data = map[string]any{"_error": env.Error}
	}
	return rr.Code, data
}

func startTestCall(t *testing.T, srv *Server) string {
	t.Helper()

	code, data := doJSON(t, srv, http.MethodPost, "/api/v1/calls",
		`{"customer_name":"Rahul","agent_name":"Asha","language":"en"}`)
	if code != http.StatusCreated {
		t.Fatalf("start call status = %d, want 201 (%v)", code, data)
	}
	id, _ := data["session_id"].(string)
	if id == "" {
		t.Fatalf("no session_id in response: %v", data)
	}
	return id
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	code, data := doJSON(t, srv, http.MethodGet, "/api/v1/health", "")
	if code != http.StatusOK || data["status"] != "ok" {
		t.Fatalf("health = %d %v", code, data)
	}
}

func TestStartCall(t *testing.T) {
	srv := newTestServer(t)

	code, data := doJSON(t, srv, http.MethodPost, "/api/v1/calls",
		`{"customer_name":"Rahul","agent_name":"Asha","language":"en"}`)
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", code)
	}
	reply, _ := data["reply"].(string)
	if !strings.Contains(reply, "Rahul") {
		t.Errorf("greeting %q does not address the customer", reply)
	}
	if data["state_id"] != "greeting" {
		t.Errorf("state_id = %v, want greeting", data["state_id"])
	}
}

func TestStartCallValidation(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed json", "{bad", http.StatusBadRequest},
		{"unknown field", `{"customer":"x"}`, http.StatusBadRequest},
		{"unsupported language", `{"customer_name":"R","agent_name":"A","language":"fr"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _ := doJSON(t, srv, http.MethodPost, "/api/v1/calls", tt.body)
			if code != tt.want {
				t.Errorf("status = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestMessageRoundTrip(t *testing.T) {
	srv := newTestServer(t)
	id := startTestCall(t, srv)

	code, data := doJSON(t, srv, http.MethodPost, "/api/v1/calls/"+id+"/messages",
		`{"message":"yes, speaking"}`)
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200 (%v)", code, data)
	}
	if data["state_id"] != "scriptIntro" {
		t.Errorf("state_id = %v, want scriptIntro", data["state_id"])
	}
	if data["ended"] != false {
		t.Errorf("ended = %v, want false", data["ended"])
	}
}

func TestMessageUnknownSession(t *testing.T) {
	srv := newTestServer(t)

	code, _ := doJSON(t, srv, http.MethodPost, "/api/v1/calls/no-such/messages",
		`{"message":"hello"}`)
	if code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestEndCall(t *testing.T) {
	srv := newTestServer(t)
	id := startTestCall(t, srv)

	code, data := doJSON(t, srv, http.MethodPost, "/api/v1/calls/"+id+"/end", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if data["outcome"] != "abandoned" {
		t.Errorf("outcome = %v, want abandoned", data["outcome"])
	}

	// Idempotent.
	code, data = doJSON(t, srv, http.MethodPost, "/api/v1/calls/"+id+"/end", "")
	if code != http.StatusOK || data["outcome"] != "abandoned" {
		t.Errorf("second end = %d %v, want 200 abandoned", code, data)
	}

	// Messages after end are rejected.
	code, _ = doJSON(t, srv, http.MethodPost, "/api/v1/calls/"+id+"/messages",
		`{"message":"hello?"}`)
	if code != http.StatusNotFound {
		t.Errorf("message after end = %d, want 404", code)
	}
}

func TestListAndGetCall(t *testing.T) {
	srv := newTestServer(t)
	id := startTestCall(t, srv)

	code, data := doJSON(t, srv, http.MethodGet, "/api/v1/calls?status=active", "")
	if code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", code)
	}
	if data["total"] != float64(1) {
		t.Errorf("total = %v, want 1", data["total"])
	}

	code, data = doJSON(t, srv, http.MethodGet, "/api/v1/calls/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", code)
	}
	call, _ := data["call"].(map[string]any)
	if call == nil || call["session_id"] != id {
		t.Fatalf("call = %v, want session %s", data["call"], id)
	}
	transcript, _ := data["transcript"].([]any)
	if len(transcript) == 0 {
		t.Error("expected the greeting in the transcript")
	}

	code, _ = doJSON(t, srv, http.MethodGet, "/api/v1/calls?status=bogus", "")
	if code != http.StatusBadRequest {
		t.Errorf("bogus status filter = %d, want 400", code)
	}

	code, _ = doJSON(t, srv, http.MethodGet, "/api/v1/calls/ghost", "")
	if code != http.StatusNotFound {
		t.Errorf("unknown call = %d, want 404", code)
	}
}

func TestExportCalls(t *testing.T) {
	srv := newTestServer(t)
	id := startTestCall(t, srv)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/calls/export", nil)
	rr := httptest.NewRecorder()
	srv.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content-type = %q, want text/csv", ct)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Session ID") {
		t.Error("expected CSV header row")
	}
	if !strings.Contains(body, id) {
		t.Error("expected the call's session id in the export")
	}
}

func TestDashboardStats(t *testing.T) {
	srv := newTestServer(t)
	startTestCall(t, srv)

	code, data := doJSON(t, srv, http.MethodGet, "/api/v1/dashboard/stats", "")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	if data["active_calls"] != float64(1) {
		t.Errorf("active_calls = %v, want 1", data["active_calls"])
	}
	if data["total_calls"] != float64(1) {
		t.Errorf("total_calls = %v, want 1", data["total_calls"])
	}
	recent, _ := data["recent_calls"].([]any)
	if len(recent) != 1 {
		t.Errorf("recent_calls = %v, want one entry", data["recent_calls"])
	}
}

func TestFullCallPersistsOutcome(t *testing.T) {
	srv := newTestServer(t)
	id := startTestCall(t, srv)

	msgs := []string{
		"yes, speaking", "ok, continue", "fine", "I have a job",
		"around 45,000 per month", "yes, sounds good", "Priya Verma",
		"ok", "haan, ji", "ok",
	}
	var last map[string]any
	for _, m := range msgs {
		code, data := doJSON(t, srv, http.MethodPost, "/api/v1/calls/"+id+"/messages",
			`{"message":"`+m+`"}`)
		if code != http.StatusOK {
			t.Fatalf("message %q status = %d (%v)", m, code, data)
		}
		last = data
	}
	if last["ended"] != true || last["outcome"] != "completed" {
		t.Fatalf("final reply = %v, want ended/completed", last)
	}

	code, data := doJSON(t, srv, http.MethodGet, "/api/v1/calls/"+id, "")
	if code != http.StatusOK {
		t.Fatalf("get call status = %d", code)
	}
	call := data["call"].(map[string]any)
	if call["outcome"] != "completed" {
		t.Errorf("persisted outcome = %v, want completed", call["outcome"])
	}
	collected, _ := call["collected_data"].(map[string]any)
	if collected["salary"] != "45000" {
		t.Errorf("persisted salary = %v, want 45000", collected["salary"])
	}
}
