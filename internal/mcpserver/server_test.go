package mcpserver

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"sort"
	"testing"
	"time"

	"relay-lounge/internal/auth"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
)

type testLounge struct {
	reg   *registry.Registry
	games *gambling.Engine
	c     *client.Client
}

func newTestLounge(t *testing.T) *testLounge {
	t.Helper()
	hasher := auth.NewHasher(auth.Params{MemoryKB: 64, Iterations: 1, Parallelism: 1})
	hash, err := hasher.Hash("pw")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	reg := registry.New(nil, store.Snapshot{Accounts: []store.Account{
		{Username: "alice", PasswordHash: hash, Balance: decimal.NewFromInt(100)},
	}})
	led := ledger.New(reg)
	games := gambling.NewEngine(led, reg, nil, store.Snapshot{}, gambling.Options{RNG: gambling.NewRNG(5, 6), MaxDuration: time.Hour})
	t.Cleanup(games.Stop)

	srv := New(Deps{Registry: reg, Ledger: led, Gambling: games, Hasher: hasher})
	httpSrv := httptest.NewServer(srv.Handler())
	t.Cleanup(httpSrv.Close)
	c, closeClient := newMCPClient(t, httpSrv.URL+"/mcp")
	t.Cleanup(closeClient)
	return &testLounge{reg: reg, games: games, c: c}
}

func TestMCPServerTools(t *testing.T) {
	l := newTestLounge(t)
	assertToolNames(t, mustListTools(t, l.c),
		"list_rooms",
		"list_pots",
		"get_pot",
		"pot_history",
		"get_leaderboard",
		"account_summary",
		"place_bet",
		"play_game",
	)
	for _, toolName := range []string{"list_rooms", "list_pots", "pot_history", "get_leaderboard"} {
		res := mustCallTool(t, l.c, toolName, map[string]any{})
		if res.IsError {
			t.Fatalf("%s expected success, got: %v", toolName, res.StructuredContent)
		}
	}
	board := mapFromStructured(t, mustCallTool(t, l.c, "get_leaderboard", map[string]any{}))
	items, _ := board["items"].([]any)
	if len(items) != 1 {
		t.Fatalf("leaderboard = %v", board)
	}
}

func TestMCPPlayGame(t *testing.T) {
	l := newTestLounge(t)
	res := mustCallTool(t, l.c, "play_game", map[string]any{
		"username": "alice", "password": "pw", "game": "flip", "amount": 10, "call": "heads",
	})
	if res.IsError {
		t.Fatalf("play_game expected success, got: %v", res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	if asString(payload["call"]) != gambling.Heads {
		t.Fatalf("payload = %v", payload)
	}
	acc, _ := l.reg.Account("alice")
	if acc.Stats.GamesPlayed != 1 {
		t.Fatalf("games played = %d", acc.Stats.GamesPlayed)
	}

	summary := mapFromStructured(t, mustCallTool(t, l.c, "account_summary", map[string]any{"username": "alice", "password": "pw"}))
	if asString(summary["username"]) != "alice" {
		t.Fatalf("summary = %v", summary)
	}
}

func TestMCPPlaceBet(t *testing.T) {
	l := newTestLounge(t)
	creds := map[string]any{"username": "alice", "password": "pw", "amount": 25}

	assertToolErrorCode(t, mustCallTool(t, l.c, "place_bet", creds), "no_active_pot")

	view, err := l.games.CreatePot(context.Background(), "Weekly", "", "house", time.Hour)
	if err != nil {
		t.Fatalf("CreatePot() error = %v", err)
	}
	res := mustCallTool(t, l.c, "place_bet", creds)
	if res.IsError {
		t.Fatalf("place_bet expected success, got: %v", res.StructuredContent)
	}
	if got := asString(mapFromStructured(t, res)["balance"]); got != "75" {
		t.Fatalf("balance = %q, want 75", got)
	}

	pot := mapFromStructured(t, mustCallTool(t, l.c, "get_pot", map[string]any{"pot_id": view.ID}))
	if pot["active"] != true {
		t.Fatalf("get_pot = %v", pot)
	}
	assertToolErrorCode(t, mustCallTool(t, l.c, "get_pot", map[string]any{"pot_id": "99"}), "pot_not_found")
}

func TestMCPToolErrors(t *testing.T) {
	l := newTestLounge(t)
	assertToolErrorCode(t, mustCallTool(t, l.c, "account_summary", map[string]any{"username": "alice", "password": "nope"}), "unauthorized")
	assertToolErrorCode(t, mustCallTool(t, l.c, "account_summary", map[string]any{}), "invalid_request")
	assertToolErrorCode(t, mustCallTool(t, l.c, "play_game", map[string]any{
		"username": "alice", "password": "pw", "game": "roulette", "amount": 1,
	}), "invalid_request")
	assertToolErrorCode(t, mustCallTool(t, l.c, "play_game", map[string]any{
		"username": "alice", "password": "pw", "game": "slots", "amount": 1000,
	}), "insufficient_funds")
	assertToolErrorCode(t, mustCallTool(t, l.c, "play_game", map[string]any{
		"username": "alice", "password": "pw", "game": "dice", "amount": 1, "target": 13,
	}), "invalid_target")
	assertToolErrorCode(t, mustCallTool(t, l.c, "play_game", map[string]any{
		"username": "alice", "password": "pw", "game": "flip", "amount": 0,
	}), "invalid_amount")
}

func newMCPClient(t *testing.T, endpoint string) (*client.Client, func()) {
	t.Helper()
	ctx := context.Background()
	trans, err := transport.NewStreamableHTTP(endpoint)
	if err != nil {
		t.Fatalf("new transport: %v", err)
	}
	if err := trans.Start(ctx); err != nil {
		t.Fatalf("transport start: %v", err)
	}
	c := client.NewClient(trans)
	_, err = c.Initialize(ctx, mcp.InitializeRequest{Params: mcp.InitializeParams{ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION}})
	if err != nil {
		t.Fatalf("initialize: %v", err)
	}
	return c, func() { _ = trans.Close() }
}

func mustListTools(t *testing.T, c *client.Client) []mcp.Tool {
	t.Helper()
	res, err := c.ListTools(context.Background(), mcp.ListToolsRequest{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}
	return res.Tools
}

func assertToolNames(t *testing.T, tools []mcp.Tool, expected ...string) {
	t.Helper()
	got := make([]string, 0, len(tools))
	for _, tool := range tools {
		got = append(got, tool.Name)
	}
	sort.Strings(got)
	sort.Strings(expected)
	if len(got) != len(expected) {
		t.Fatalf("tool count mismatch got=%v expected=%v", got, expected)
	}
	for i := range got {
		if got[i] != expected[i] {
			t.Fatalf("tool list mismatch got=%v expected=%v", got, expected)
		}
	}
}

func mustCallTool(t *testing.T, c *client.Client, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	res, err := c.CallTool(context.Background(), mcp.CallToolRequest{Params: mcp.CallToolParams{Name: name, Arguments: args}})
	if err != nil {
		t.Fatalf("call %s: %v", name, err)
	}
	return res
}

func assertToolErrorCode(t *testing.T, res *mcp.CallToolResult, want string) {
	t.Helper()
	if !res.IsError {
		t.Fatalf("expected tool error %q, got success: %v", want, res.StructuredContent)
	}
	payload := mapFromStructured(t, res)
	errObj, ok := payload["error"].(map[string]any)
	if !ok {
		t.Fatalf("error payload missing 'error': %v", payload)
	}
	if got := asString(errObj["code"]); got != want {
		t.Fatalf("error code=%q want=%q payload=%v", got, want, payload)
	}
}

func mapFromStructured(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	b, err := json.Marshal(res.StructuredContent)
	if err != nil {
		t.Fatalf("marshal structured content: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("unmarshal structured content: %v", err)
	}
	return out
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
