package store_test

import (
	"context"
	"errors"
	"testing"

	"relay-lounge/internal/store"
	"relay-lounge/internal/testutil"

	"github.com/shopspring/decimal"
)

func exerciseDocuments(t *testing.T, docs store.Documents) {
	t.Helper()
	ctx := context.Background()
	if err := docs.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}
	if _, err := docs.Get(ctx, store.CollectionRooms); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
	}

	st := store.New(docs)
	history := []store.PotHistory{{
		ID: "1", Name: "Friday", Total: decimal.NewFromInt(80), Winner: "alice",
		Participants: []store.Stake{{Username: "alice", Amount: decimal.NewFromInt(50)}, {Username: "bob", Amount: decimal.NewFromInt(30)}},
	}}
	if err := st.SavePotHistory(ctx, history); err != nil {
		t.Fatalf("SavePotHistory() error = %v", err)
	}
	history[0].Winner = "bob"
	if err := st.SavePotHistory(ctx, history); err != nil {
		t.Fatalf("SavePotHistory() overwrite error = %v", err)
	}

	snap := st.Load(ctx)
	if len(snap.PotHistory) != 1 || snap.PotHistory[0].Winner != "bob" {
		t.Fatalf("unexpected history: %+v", snap.PotHistory)
	}
	if !snap.PotHistory[0].Total.Equal(decimal.NewFromInt(80)) {
		t.Fatalf("total = %s, want 80", snap.PotHistory[0].Total)
	}
}

func TestPostgresDocuments(t *testing.T) {
	exerciseDocuments(t, testutil.OpenTestPostgres(t))
}

func TestRedisDocuments(t *testing.T) {
	exerciseDocuments(t, testutil.OpenTestRedis(t))
}
