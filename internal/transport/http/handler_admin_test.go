package httptransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"relay-lounge/internal/config"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type fakeRelay struct {
	announced []string
}

func (f *fakeRelay) Announce(text string) int {
	f.announced = append(f.announced, text)
	return 3
}

func (f *fakeRelay) HandleWS(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusTeapot)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testEnv struct {
	router *chi.Mux
	deps   Deps
	relay  *fakeRelay
}

func newTestEnv(t *testing.T, pingErr error) *testEnv {
	t.Helper()
	reg := registry.New(nil, store.Snapshot{Accounts: []store.Account{
		{Username: "alice", Email: "a@x.com", Balance: decimal.NewFromInt(100), PasswordHash: "secret-hash"},
	}})
	led := ledger.New(reg)
	games := gambling.NewEngine(led, reg, nil, store.Snapshot{}, gambling.Options{RNG: gambling.NewRNG(3, 4), MaxDuration: time.Hour})
	t.Cleanup(games.Stop)
	relay := &fakeRelay{}
	deps := Deps{Store: fakePinger{err: pingErr}, Registry: reg, Ledger: led, Gambling: games, Relay: relay}
	cfg := config.ServerConfig{AdminAPIKey: "admin-key", WSEnabled: true, PotMaxDuration: time.Hour}
	return &testEnv{router: NewRouter(deps, cfg), deps: deps, relay: relay}
}

func (e *testEnv) do(method, path, body string, admin bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	if admin {
		req.Header.Set("X-Admin-Key", "admin-key")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestAdminRoutesRequireKey(t *testing.T) {
	env := newTestEnv(t, nil)
	unauth := []struct {
		method string
		path   string
		body   string
	}{
		{http.MethodGet, "/api/accounts", ""},
		{http.MethodGet, "/api/accounts/alice", ""},
		{http.MethodPost, "/api/accounts/alice/grant", `{"amount":"5"}`},
		{http.MethodGet, "/api/pots", ""},
		{http.MethodPost, "/api/pots", `{"name":"x","minutes":5}`},
		{http.MethodPost, "/api/pots/1/end", ""},
		{http.MethodPost, "/api/broadcast", `{"message":"hi"}`},
		{http.MethodGet, "/api/debug/vars", ""},
	}
	for _, tc := range unauth {
		w := env.do(tc.method, tc.path, tc.body, false)
		if w.Code != http.StatusUnauthorized {
			t.Fatalf("unauth %s %s expected 401, got %d", tc.method, tc.path, w.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer admin-key")
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("bearer auth expected 200, got %d", w.Code)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("secret-hash")) {
		t.Fatalf("account listing leaked password hash: %s", w.Body.String())
	}
}

func TestHealth(t *testing.T) {
	if w := newTestEnv(t, nil).do(http.MethodGet, "/healthz", "", false); w.Code != http.StatusOK {
		t.Fatalf("healthz expected 200, got %d", w.Code)
	}
	if w := newTestEnv(t, errors.New("down")).do(http.MethodGet, "/healthz", "", false); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz with failing store expected 503, got %d", w.Code)
	}
}

func TestGrant(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/accounts/alice/grant", `{"amount":"12.5","description":"prize"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("grant expected 200, got %d: %s", w.Code, w.Body.String())
	}
	acc, _ := env.deps.Registry.Account("alice")
	if !acc.Balance.Equal(decimal.RequireFromString("112.5")) {
		t.Fatalf("balance = %s, want 112.5", acc.Balance)
	}
	last := acc.Transactions[len(acc.Transactions)-1]
	if last.Kind != store.KindAdminGrant || last.Description != "prize" {
		t.Fatalf("grant transaction = %+v", last)
	}

	if w := env.do(http.MethodPost, "/api/accounts/alice/grant", `{"amount":"-1"}`, true); w.Code != http.StatusBadRequest {
		t.Fatalf("negative grant expected 400, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/accounts/ghost/grant", `{"amount":"1"}`, true); w.Code != http.StatusNotFound {
		t.Fatalf("unknown account expected 404, got %d", w.Code)
	}
	if w := env.do(http.MethodPost, "/api/accounts/alice/grant", `{`, true); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json expected 400, got %d", w.Code)
	}
}

func TestPotLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/pots", `{"name":"Daily","minutes":10}`, true)
	if w.Code != http.StatusCreated {
		t.Fatalf("create pot expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID        string `json:"id"`
		CreatedBy string `json:"created_by"`
		State     string `json:"state"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode pot: %v", err)
	}
	if created.ID != "1" || created.CreatedBy != houseCreator || created.State != "active" {
		t.Fatalf("created = %+v", created)
	}
	if _, err := env.deps.Gambling.PlaceBet(context.Background(), "alice", "1", decimal.NewFromInt(30)); err != nil {
		t.Fatalf("PlaceBet() error = %v", err)
	}

	if w := env.do(http.MethodGet, "/api/public/pots", "", false); !bytes.Contains(w.Body.Bytes(), []byte(`"Daily"`)) {
		t.Fatalf("public pots = %s", w.Body.String())
	}
	for _, body := range []string{
		`{"name":"Long","minutes":600}`,
		`{"name":"Wrap","minutes":307445734561825861}`,
		`{"name":"Zero","minutes":0}`,
	} {
		if w := env.do(http.MethodPost, "/api/pots", body, true); w.Code != http.StatusBadRequest {
			t.Fatalf("%s expected 400, got %d", body, w.Code)
		}
	}

	w = env.do(http.MethodPost, "/api/pots/1/end", "", true)
	if w.Code != http.StatusOK {
		t.Fatalf("end pot expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var entry store.PotHistory
	if err := json.Unmarshal(w.Body.Bytes(), &entry); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if entry.Winner != "alice" || entry.Reason != gambling.ReasonEndedEarly {
		t.Fatalf("entry = %+v", entry)
	}
	if w := env.do(http.MethodPost, "/api/pots/1/end", "", true); w.Code != http.StatusNotFound {
		t.Fatalf("second end expected 404, got %d", w.Code)
	}
	if w := env.do(http.MethodGet, "/api/pots/history", "", true); !bytes.Contains(w.Body.Bytes(), []byte(`"Daily"`)) {
		t.Fatalf("history = %s", w.Body.String())
	}
}

func TestBroadcast(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(http.MethodPost, "/api/broadcast", `{"message":"maintenance at noon"}`, true)
	if w.Code != http.StatusOK {
		t.Fatalf("broadcast expected 200, got %d", w.Code)
	}
	if len(env.relay.announced) != 1 || env.relay.announced[0] != "maintenance at noon" {
		t.Fatalf("announced = %v", env.relay.announced)
	}
	if w := env.do(http.MethodPost, "/api/broadcast", `{"message":"a\nb"}`, true); w.Code != http.StatusBadRequest {
		t.Fatalf("multi-line broadcast expected 400, got %d", w.Code)
	}
}

func TestDebugVarsAndWS(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(http.MethodPost, "/api/accounts/alice/grant", `{"amount":"1"}`, true)
	w := env.do(http.MethodGet, "/api/debug/vars", "", true)
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("admin_grants_total")) {
		t.Fatalf("debug vars = %d %s", w.Code, w.Body.String())
	}
	if w := env.do(http.MethodGet, "/ws", "", false); w.Code != http.StatusTeapot {
		t.Fatalf("ws route expected relay handler, got %d", w.Code)
	}
}

func TestParsePagination(t *testing.T) {
	cases := []struct {
		query         string
		limit, offset int
	}{
		{"", 50, 0},
		{"?limit=0&offset=-3", 1, 0},
		{"?limit=9000&offset=7", 500, 7},
		{"?limit=abc", 50, 0},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x"+tc.query, nil)
		limit, offset := ParsePagination(req)
		if limit != tc.limit || offset != tc.offset {
			t.Fatalf("%q: got %d/%d, want %d/%d", tc.query, limit, offset, tc.limit, tc.offset)
		}
	}
}

func TestMCPRouteMounted(t *testing.T) {
	env := newTestEnv(t, nil)
	if w := env.do(http.MethodPost, "/mcp", "{}", false); w.Code != http.StatusNotFound && w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("mcp without handler expected 404/405, got %d", w.Code)
	}

	env.deps.MCP = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusAccepted) })
	router := NewRouter(env.deps, config.ServerConfig{AdminAPIKey: "admin-key"})
	for _, method := range []string{http.MethodPost, http.MethodGet, http.MethodDelete} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(method, "/mcp", nil))
		if w.Code != http.StatusAccepted {
			t.Fatalf("%s /mcp expected 202, got %d", method, w.Code)
		}
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/mcp", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("OPTIONS /mcp expected 204, got %d", w.Code)
	}
}
