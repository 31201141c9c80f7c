package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/store"

	"github.com/shopspring/decimal"
)

const gamblingHistoryLines = 10

var hundred = decimal.NewFromInt(100)

func (srv *Server) handleGamble(ctx context.Context, s *Session, cmd Command) error {
	switch strings.ToLower(cmd.Arg(0)) {
	case "bet":
		return srv.gambleBet(ctx, s, cmd)
	case "create":
		return srv.gambleCreate(ctx, s, cmd)
	case "info":
		current, ok := srv.games.CurrentPot()
		if !ok {
			return gambling.ErrNoActivePot
		}
		srv.sendPot(s, current)
		return nil
	default:
		return usageError("GAMBLE bet <amount> [potId] | GAMBLE create <minutes> <name> [description] | GAMBLE info")
	}
}

func (srv *Server) gambleBet(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 2 {
		return usageError("GAMBLE bet <amount> [potId]")
	}
	amount, err := ledger.ParseAmount(cmd.Args[1])
	if err != nil {
		return err
	}
	var receipt gambling.BetReceipt
	if potID := strings.TrimPrefix(cmd.Arg(2), "#"); potID != "" {
		receipt, err = srv.games.PlaceBet(ctx, s.username, potID, amount)
	} else {
		receipt, err = srv.games.PlaceBetCurrent(ctx, s.username, amount)
	}
	if err != nil {
		return err
	}
	s.sendf("[GAMBLING] You bet %s on pot #%s %q. Your stake: %s of %s (%s%% chance). Balance: %s",
		ledger.FormatCredits(amount), receipt.Pot.ID, receipt.Pot.Name,
		ledger.FormatCredits(receipt.Stake), ledger.FormatCredits(receipt.Pot.Total),
		receipt.Odds.Mul(hundred).StringFixed(2), ledger.FormatCredits(receipt.Balance))
	return nil
}

func (srv *Server) gambleCreate(ctx context.Context, s *Session, cmd Command) error {
	if !srv.opts.PotPlayerCreate {
		s.Send("System: Only the house can open pots on this server.")
		return nil
	}
	if len(cmd.Args) < 3 {
		return usageError("GAMBLE create <minutes> <name> [description]")
	}
	minutes, err := strconv.ParseInt(cmd.Args[1], 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return gambling.ErrInvalidDuration
	}
	if err != nil {
		return usageError("GAMBLE create <minutes> <name> [description]")
	}
	d, err := srv.games.PotDuration(minutes)
	if err != nil {
		return err
	}
	// Names are one word so the description can follow.
	_, err = srv.games.CreatePot(ctx, cmd.Args[2], cmd.Rest(3), s.username, d)
	return err
}

func (srv *Server) handlePots(_ context.Context, s *Session, _ Command) error {
	pots := srv.games.ActivePots()
	if len(pots) == 0 {
		s.Send("System: There are no active pots.")
		return nil
	}
	s.Send("[GAMBLING] Active pots:")
	now := time.Now()
	for _, p := range pots {
		s.sendf("  #%s %q total %s, %d players, ends in %s",
			p.ID, p.Name, ledger.FormatCredits(p.Total), len(p.Participants), remaining(p.EndsAt, now))
	}
	return nil
}

func (srv *Server) handlePotInfo(_ context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("POTINFO <potId>")
	}
	id := strings.TrimPrefix(cmd.Args[0], "#")
	if view, ok := srv.games.Pot(id); ok {
		srv.sendPot(s, view)
		return nil
	}
	if entry, ok := srv.games.HistoryEntry(id); ok {
		s.sendf("[GAMBLING] Pot #%s %q resolved %s (%s).", entry.ID, entry.Name, entry.ResolvedAt.UTC().Format("2006-01-02 15:04"), entry.Reason)
		s.sendf("  Total: %s, participants: %d, winner: %s", ledger.FormatCredits(entry.Total), len(entry.Participants), winnerName(entry))
		return nil
	}
	return gambling.ErrPotNotFound
}

func (srv *Server) sendPot(s *Session, p gambling.PotView) {
	s.sendf("[GAMBLING] Pot #%s %q by %s", p.ID, p.Name, p.CreatedBy)
	if p.Description != "" {
		s.sendf("  %s", p.Description)
	}
	s.sendf("  Total: %s, ends in %s", ledger.FormatCredits(p.Total), remaining(p.EndsAt, time.Now()))
	for _, st := range p.Participants {
		odds := decimal.Zero
		if p.Total.IsPositive() {
			odds = st.Amount.Div(p.Total).Mul(hundred)
		}
		s.sendf("  %s: %s (%s%%)", st.Username, ledger.FormatCredits(st.Amount), odds.StringFixed(2))
	}
	if len(p.Participants) == 0 {
		s.Send("  No bets yet.")
	}
}

func (srv *Server) handleGamblingHistory(_ context.Context, s *Session, _ Command) error {
	entries := srv.games.History(gamblingHistoryLines)
	if len(entries) == 0 {
		s.Send("System: No pots have been resolved yet.")
		return nil
	}
	s.Send("[GAMBLING] Recent pots:")
	for _, e := range entries {
		s.sendf("  #%s %q: %s won %s (%d players, %s)",
			e.ID, e.Name, winnerName(e), ledger.FormatCredits(e.Total), len(e.Participants), e.Reason)
	}
	return nil
}

func (srv *Server) handleDice(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("DICE <amount> [target]")
	}
	bet, err := ledger.ParseAmount(cmd.Args[0])
	if err != nil {
		return err
	}
	target := 0
	if raw := cmd.Arg(1); raw != "" {
		if target, err = strconv.Atoi(raw); err != nil {
			return gambling.ErrInvalidTarget
		}
		if target == 0 {
			return gambling.ErrInvalidTarget
		}
	}
	o, err := srv.games.PlayDice(ctx, s.username, bet, target)
	if err != nil {
		return err
	}
	roll := fmt.Sprintf("You rolled %d + %d = %d", o.Dice[0], o.Dice[1], o.Dice[0]+o.Dice[1])
	if o.Target != 0 {
		roll += fmt.Sprintf(" (target %d, pays %sx)", o.Target, o.Multiplier.Round(2).String())
	}
	s.sendf("[DICE] %s. %s", roll, outcomeSummary(o))
	return nil
}

func (srv *Server) handleFlip(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 2 {
		return usageError("FLIP <amount> HEADS|TAILS")
	}
	bet, err := ledger.ParseAmount(cmd.Args[0])
	if err != nil {
		return err
	}
	o, err := srv.games.PlayFlip(ctx, s.username, bet, cmd.Args[1])
	if err != nil {
		return err
	}
	s.sendf("[FLIP] You called %s. The coin shows %s. %s", o.Call, o.Side, outcomeSummary(o))
	return nil
}

func (srv *Server) handleSlots(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("SLOTS <amount>")
	}
	bet, err := ledger.ParseAmount(cmd.Args[0])
	if err != nil {
		return err
	}
	o, err := srv.games.PlaySlots(ctx, s.username, bet)
	if err != nil {
		return err
	}
	s.sendf("[SLOTS] %s. %s", strings.Join(o.Reels[:], " | "), outcomeSummary(o))
	return nil
}

func outcomeSummary(o gambling.Outcome) string {
	switch {
	case o.Won:
		return fmt.Sprintf("You won %s credits! Balance: %s", ledger.FormatCredits(o.Payout), ledger.FormatCredits(o.Balance))
	case o.Payout.IsPositive():
		return fmt.Sprintf("You get %s back. Balance: %s", ledger.FormatCredits(o.Payout), ledger.FormatCredits(o.Balance))
	default:
		return fmt.Sprintf("You lost %s credits. Balance: %s", ledger.FormatCredits(o.Bet), ledger.FormatCredits(o.Balance))
	}
}

func winnerName(e store.PotHistory) string {
	if e.Winner == "" {
		return "nobody"
	}
	return e.Winner
}

func remaining(endsAt, now time.Time) string {
	d := endsAt.Sub(now)
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}
