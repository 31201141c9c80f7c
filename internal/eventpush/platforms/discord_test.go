package platforms

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"
)

func emptyResponse(status int) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(nil)), Header: make(http.Header)}
}

func TestDiscordAdapterPayload(t *testing.T) {
	var got map[string]any
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		defer r.Body.Close()
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return emptyResponse(http.StatusNoContent), nil
	})

	err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{
		Title:       "BIG WIN",
		Content:     "alice won 500 credits on SLOTS",
		Description: "desc",
		Color:       12345,
		Timestamp:   "2026-01-01T00:00:00Z",
		Footer:      "relay-lounge",
		Fields:      []Field{{Name: "Game", Value: "SLOTS", Inline: true}},
	})
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if got["content"] != "alice won 500 credits on SLOTS" {
		t.Fatalf("unexpected content: %v", got["content"])
	}
	embeds, ok := got["embeds"].([]any)
	if !ok || len(embeds) != 1 {
		t.Fatalf("unexpected embeds: %#v", got["embeds"])
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "BIG WIN" || embed["color"] != float64(12345) {
		t.Fatalf("unexpected embed: %#v", embed)
	}
	footer, ok := embed["footer"].(map[string]any)
	if !ok || footer["text"] != "relay-lounge" {
		t.Fatalf("unexpected footer: %#v", embed["footer"])
	}
	fields := embed["fields"].([]any)
	if len(fields) != 1 || fields[0].(map[string]any)["inline"] != true {
		t.Fatalf("unexpected fields: %#v", fields)
	}
}

func TestDiscordAdapterStatusError(t *testing.T) {
	client := newTestHTTPClient(func(r *http.Request) (*http.Response, error) {
		return emptyResponse(http.StatusTooManyRequests), nil
	})
	if err := NewDiscordAdapter(client).Send(context.Background(), "https://discord.example/webhook", "", Message{}); err == nil {
		t.Fatal("expected error on 429")
	}
}
