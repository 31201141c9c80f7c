package relay

import (
	"context"
	"errors"
	"strconv"

	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
)

const (
	defaultTransactionLines = 10
	maxTransactionLines     = 50
	leaderboardSize         = 10
)

func (srv *Server) handleBalance(_ context.Context, s *Session, _ Command) error {
	balance, err := srv.led.BalanceOf(s.username)
	if err != nil {
		return err
	}
	s.sendf("Your current credit balance: %s", ledger.FormatCredits(balance))
	return nil
}

func (srv *Server) handleTransfer(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 2 {
		return usageError("TRANSFER <user> <amount> [description]")
	}
	amount, err := ledger.ParseAmount(cmd.Args[1])
	if err != nil {
		return err
	}
	receipt, err := srv.led.Transfer(ctx, s.username, cmd.Args[0], amount, cmd.Rest(2))
	if errors.Is(err, ledger.ErrInsufficientFunds) {
		balance, _ := srv.led.BalanceOf(s.username)
		s.sendf("System: Insufficient funds. Your balance is %s.", ledger.FormatCredits(balance))
		return nil
	}
	if err != nil {
		return err
	}
	s.sendf("System: Transferred %s credits to %s. Your balance: %s",
		ledger.FormatCredits(receipt.Transaction.Amount), receipt.Transaction.To, ledger.FormatCredits(receipt.FromBalance))
	return nil
}

func (srv *Server) handleTransactions(_ context.Context, s *Session, cmd Command) error {
	limit := defaultTransactionLines
	if raw := cmd.Arg(0); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return usageError("TRANSACTIONS [count]")
		}
		limit = min(n, maxTransactionLines)
	}
	txs, err := srv.led.History(s.username, limit)
	if err != nil {
		return err
	}
	if len(txs) == 0 {
		s.Send("System: No transactions yet.")
		return nil
	}
	s.Send("Recent transactions:")
	me := registry.Key(s.username)
	for _, tx := range txs {
		var line string
		if registry.Key(tx.To) == me {
			line = "+" + ledger.FormatCredits(tx.Amount) + " from " + tx.From
		} else {
			line = "-" + ledger.FormatCredits(tx.Amount) + " to " + tx.To
		}
		line = "  " + tx.CreatedAt.UTC().Format("2006-01-02 15:04") + " " + line
		if tx.Description != "" {
			line += " (" + tx.Description + ")"
		}
		s.Send(line)
	}
	return nil
}

func (srv *Server) handleStats(_ context.Context, s *Session, _ Command) error {
	st, err := srv.led.Stats(s.username)
	if err != nil {
		return err
	}
	rate := 0.0
	if st.GamesPlayed > 0 {
		rate = float64(st.GamesWon) * 100 / float64(st.GamesPlayed)
	}
	s.sendf("Stats for %s:", s.username)
	s.sendf("  Games played: %d", st.GamesPlayed)
	s.sendf("  Games won: %d (%.1f%%)", st.GamesWon, rate)
	s.sendf("  Total winnings: %s", ledger.FormatCredits(st.TotalWinnings))
	s.sendf("  Total losses: %s", ledger.FormatCredits(st.TotalLosses))
	s.sendf("  Net: %s", ledger.FormatCredits(st.TotalWinnings.Sub(st.TotalLosses)))
	return nil
}

func (srv *Server) handleLeaderboard(_ context.Context, s *Session, _ Command) error {
	board := srv.led.Leaderboard(leaderboardSize)
	s.Send("Leaderboard:")
	for i, st := range board {
		s.sendf("  %2d. %-20s %s", i+1, st.Username, ledger.FormatCredits(st.Balance))
	}
	return nil
}
