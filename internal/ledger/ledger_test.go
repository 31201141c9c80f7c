package ledger

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"sync"
	"testing"

	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"

	"github.com/shopspring/decimal"
)

type lineSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *lineSink) Send(line string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, line)
	return true
}

func newLedger(t *testing.T, balances map[string]int64) (*Ledger, *registry.Registry) {
	t.Helper()
	var accounts []store.Account
	for name, bal := range balances {
		accounts = append(accounts, store.Account{Username: name, Balance: decimal.NewFromInt(bal)})
	}
	reg := registry.New(nil, store.Snapshot{Accounts: accounts})
	return New(reg), reg
}

func balance(t *testing.T, l *Ledger, user string) decimal.Decimal {
	t.Helper()
	b, err := l.BalanceOf(user)
	if err != nil {
		t.Fatalf("BalanceOf(%s) error = %v", user, err)
	}
	return b
}

func TestTransferMovesFundsAndRecordsBothSides(t *testing.T) {
	l, reg := newLedger(t, map[string]int64{"alice": 100, "bob": 100})
	sink := &lineSink{}
	_ = reg.AddSession(registry.Member{ConnID: 7, Username: "bob", Sender: sink})

	receipt, err := l.Transfer(context.Background(), "alice", "BOB", decimal.RequireFromString("40.255"), "rent")
	if err != nil {
		t.Fatalf("Transfer() error = %v", err)
	}
	if !receipt.Transaction.Amount.Equal(decimal.RequireFromString("40.26")) {
		t.Fatalf("amount = %s, want 40.26", receipt.Transaction.Amount)
	}
	if got := balance(t, l, "alice"); !got.Equal(decimal.RequireFromString("59.74")) {
		t.Fatalf("alice = %s", got)
	}
	if got := balance(t, l, "bob"); !got.Equal(decimal.RequireFromString("140.26")) {
		t.Fatalf("bob = %s", got)
	}
	for _, user := range []string{"alice", "bob"} {
		acc, _ := reg.Account(user)
		if len(acc.Transactions) != 1 || acc.Transactions[0].ID != receipt.Transaction.ID {
			t.Fatalf("%s history = %+v", user, acc.Transactions)
		}
	}
	if len(sink.lines) != 1 || !strings.Contains(sink.lines[0], "alice sent you 40.26 credits (rent)") {
		t.Fatalf("notification = %v", sink.lines)
	}
}

func TestTransferRejectionsAreNoOps(t *testing.T) {
	cases := []struct {
		name   string
		from   string
		to     string
		amount string
		want   error
	}{
		{"insufficient", "alice", "bob", "150", ErrInsufficientFunds},
		{"self", "alice", "ALICE", "10", ErrSelfTransfer},
		{"zero", "alice", "bob", "0", ErrInvalidAmount},
		{"negative", "alice", "bob", "-5", ErrInvalidAmount},
		{"rounds to zero", "alice", "bob", "0.004", ErrInvalidAmount},
		{"unknown recipient", "alice", "nobody", "10", ErrUnknownAccount},
		{"unknown sender", "nobody", "alice", "10", ErrUnknownAccount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l, reg := newLedger(t, map[string]int64{"alice": 100, "bob": 100})
			_, err := l.Transfer(context.Background(), tc.from, tc.to, decimal.RequireFromString(tc.amount), "")
			if !errors.Is(err, tc.want) {
				t.Fatalf("error = %v, want %v", err, tc.want)
			}
			for _, user := range []string{"alice", "bob"} {
				acc, _ := reg.Account(user)
				if !acc.Balance.Equal(decimal.NewFromInt(100)) || len(acc.Transactions) != 0 {
					t.Fatalf("%s mutated: %+v", user, acc)
				}
			}
		})
	}
}

func TestTransfersConserveTotal(t *testing.T) {
	users := []string{"a", "b", "c", "d"}
	l, _ := newLedger(t, map[string]int64{"a": 100, "b": 100, "c": 100, "d": 100})
	rng := rand.New(rand.NewPCG(1, 2))

	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		seeds := make([][3]int, 200)
		for i := range seeds {
			seeds[i] = [3]int{rng.IntN(len(users)), rng.IntN(len(users)), rng.IntN(6000)}
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range seeds {
				amount := decimal.New(int64(s[2]), -2)
				_, _ = l.Transfer(context.Background(), users[s[0]], users[s[1]], amount, "")
			}
		}()
	}
	wg.Wait()

	total := decimal.Zero
	for _, u := range users {
		b := balance(t, l, u)
		if b.IsNegative() {
			t.Fatalf("%s balance negative: %s", u, b)
		}
		total = total.Add(b)
	}
	if !total.Equal(decimal.NewFromInt(400)) {
		t.Fatalf("total = %s, want 400", total)
	}
}

func TestSettleGameUpdatesStats(t *testing.T) {
	l, reg := newLedger(t, map[string]int64{"alice": 100})
	ctx := context.Background()

	if _, err := l.SettleGame(ctx, "alice", "dice", decimal.NewFromInt(10), decimal.NewFromInt(19), true); err != nil {
		t.Fatalf("SettleGame(win) error = %v", err)
	}
	st, err := l.SettleGame(ctx, "alice", "flip", decimal.NewFromInt(20), decimal.Zero, false)
	if err != nil {
		t.Fatalf("SettleGame(loss) error = %v", err)
	}
	if !st.Balance.Equal(decimal.NewFromInt(89)) || !st.Net.Equal(decimal.NewFromInt(-20)) {
		t.Fatalf("settlement = %+v", st)
	}
	acc, _ := reg.Account("alice")
	if acc.Stats.GamesPlayed != 2 || acc.Stats.GamesWon != 1 {
		t.Fatalf("stats = %+v", acc.Stats)
	}
	if !acc.Stats.TotalWinnings.Equal(decimal.NewFromInt(9)) || !acc.Stats.TotalLosses.Equal(decimal.NewFromInt(20)) {
		t.Fatalf("stats = %+v", acc.Stats)
	}
	if len(acc.Transactions) != 2 || acc.Transactions[1].To != HouseAccount {
		t.Fatalf("transactions = %+v", acc.Transactions)
	}

	if _, err := l.SettleGame(ctx, "alice", "slots", decimal.NewFromInt(500), decimal.Zero, false); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("error = %v, want ErrInsufficientFunds", err)
	}
	acc, _ = reg.Account("alice")
	if acc.Stats.GamesPlayed != 2 {
		t.Fatalf("rejected play counted: %+v", acc.Stats)
	}
}

func TestEscrowReserveErrorAbortsDebit(t *testing.T) {
	l, _ := newLedger(t, map[string]int64{"alice": 100})
	closed := errors.New("closed")
	_, err := l.Escrow(context.Background(), "alice", "1", decimal.NewFromInt(10), func(string) (string, error) {
		return "", closed
	})
	if !errors.Is(err, closed) {
		t.Fatalf("error = %v, want closed", err)
	}
	if got := balance(t, l, "alice"); !got.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("balance = %s, want 100", got)
	}
}

func TestHistoryNewestFirst(t *testing.T) {
	l, _ := newLedger(t, map[string]int64{"alice": 100, "bob": 0})
	ctx := context.Background()
	for _, amt := range []int64{1, 2, 3} {
		if _, err := l.Transfer(ctx, "alice", "bob", decimal.NewFromInt(amt), ""); err != nil {
			t.Fatalf("Transfer() error = %v", err)
		}
	}
	txs, err := l.History("bob", 2)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(txs) != 2 || !txs[0].Amount.Equal(decimal.NewFromInt(3)) || !txs[1].Amount.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("history = %+v", txs)
	}
}

func TestLeaderboardOrder(t *testing.T) {
	l, _ := newLedger(t, map[string]int64{"carol": 50, "alice": 200, "bob": 200})
	board := l.Leaderboard(2)
	if len(board) != 2 || board[0].Username != "alice" || board[1].Username != "bob" {
		t.Fatalf("leaderboard = %+v", board)
	}
}

func TestParseAmount(t *testing.T) {
	valid := map[string]string{
		"25":    "25",
		"12.50": "12.5",
		"0.005": "0.01",
		"7.125": "7.13",
	}
	for raw, want := range valid {
		got, err := ParseAmount(raw)
		if err != nil {
			t.Fatalf("ParseAmount(%q) error = %v", raw, err)
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Fatalf("ParseAmount(%q) = %s, want %s", raw, got, want)
		}
	}

	invalid := []string{
		"", "0", "0.001", "-5", "abc", "1.", ".5", " 5",
		"1e2000000000", "1E5", "1e-10000000",
		strings.Repeat("9", 16),
		"1." + strings.Repeat("0", 9),
	}
	for _, raw := range invalid {
		if _, err := ParseAmount(raw); !errors.Is(err, ErrInvalidAmount) {
			t.Fatalf("ParseAmount(%q) error = %v, want ErrInvalidAmount", raw, err)
		}
	}
}

func TestNormalizeAmountCapsHugeValues(t *testing.T) {
	if _, err := NormalizeAmount(decimal.New(1, 300)); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("NormalizeAmount(1e300) error = %v, want ErrInvalidAmount", err)
	}
	if _, err := NormalizeAmount(MaxAmount); err != nil {
		t.Fatalf("NormalizeAmount(MaxAmount) error = %v", err)
	}
}
