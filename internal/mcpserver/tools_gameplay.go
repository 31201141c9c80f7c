package mcpserver

import (
	"context"
	"strings"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/shopspring/decimal"
)

func (s *Server) registerGameplayTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"account_summary",
			mcp.WithDescription("Balance, game statistics and recent transactions for your account"),
			mcp.WithString("username", mcp.Required(), mcp.Description("Account username")),
			mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
		),
		s.handleAccountSummary,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"place_bet",
			mcp.WithDescription("Bet on a pot. Without pot_id the newest active pot is used."),
			mcp.WithString("username", mcp.Required(), mcp.Description("Account username")),
			mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Credits to stake, at most two decimal places")),
			mcp.WithString("pot_id", mcp.Description("Pot id")),
		),
		s.handlePlaceBet,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"play_game",
			mcp.WithDescription("Play one round of a house game, settled immediately"),
			mcp.WithString("username", mcp.Required(), mcp.Description("Account username")),
			mcp.WithString("password", mcp.Required(), mcp.Description("Account password")),
			mcp.WithString("game", mcp.Required(), mcp.Description("dice|flip|slots")),
			mcp.WithNumber("amount", mcp.Required(), mcp.Description("Credits to bet")),
			mcp.WithNumber("target", mcp.Description("dice only: exact sum 2-12")),
			mcp.WithString("call", mcp.Description("flip only: HEADS|TAILS")),
		),
		s.handlePlayGame,
	)
}

func (s *Server) handleAccountSummary(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	acc, errResp := s.authPlayer(request.GetString("username", ""), request.GetString("password", ""))
	if errResp != nil {
		return errResp, nil
	}
	history, err := s.led.History(acc.Username, defaultPageLimit)
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"username":     acc.Username,
		"balance":      acc.Balance,
		"stats":        acc.Stats,
		"transactions": history,
		"games":        s.games.Results(acc.Username, defaultPageLimit),
	}), nil
}

func requireAmount(request mcp.CallToolRequest) (decimal.Decimal, *mcp.CallToolResult) {
	v, err := request.RequireFloat("amount")
	if err != nil {
		return decimal.Zero, toolError("invalid_request", err.Error())
	}
	amount, err := ledger.NormalizeAmount(decimal.NewFromFloat(v))
	if err != nil {
		return decimal.Zero, mapDomainError(err)
	}
	return amount, nil
}

func (s *Server) handlePlaceBet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	acc, errResp := s.authPlayer(request.GetString("username", ""), request.GetString("password", ""))
	if errResp != nil {
		return errResp, nil
	}
	amount, errResp := requireAmount(request)
	if errResp != nil {
		return errResp, nil
	}
	var (
		receipt gambling.BetReceipt
		err     error
	)
	if potID := strings.TrimPrefix(strings.TrimSpace(request.GetString("pot_id", "")), "#"); potID != "" {
		receipt, err = s.games.PlaceBet(ctx, acc.Username, potID, amount)
	} else {
		receipt, err = s.games.PlaceBetCurrent(ctx, acc.Username, amount)
	}
	if err != nil {
		return mapDomainError(err), nil
	}
	return toolResult(map[string]any{
		"pot":     receipt.Pot,
		"stake":   receipt.Stake,
		"odds":    receipt.Odds,
		"balance": receipt.Balance,
	}), nil
}

func (s *Server) handlePlayGame(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	acc, errResp := s.authPlayer(request.GetString("username", ""), request.GetString("password", ""))
	if errResp != nil {
		return errResp, nil
	}
	game := strings.ToLower(strings.TrimSpace(request.GetString("game", "")))
	if !isAllowedGame(game) {
		return toolError("invalid_request", "game must be dice|flip|slots"), nil
	}
	amount, errResp := requireAmount(request)
	if errResp != nil {
		return errResp, nil
	}

	var (
		o   gambling.Outcome
		err error
	)
	switch game {
	case "dice":
		o, err = s.games.PlayDice(ctx, acc.Username, amount, request.GetInt("target", 0))
	case "flip":
		o, err = s.games.PlayFlip(ctx, acc.Username, amount, request.GetString("call", ""))
	default:
		o, err = s.games.PlaySlots(ctx, acc.Username, amount)
	}
	if err != nil {
		return mapDomainError(err), nil
	}
	out := map[string]any{
		"game":       game,
		"bet":        o.Bet,
		"multiplier": o.Multiplier.Round(2),
		"payout":     o.Payout,
		"won":        o.Won,
		"balance":    o.Balance,
	}
	switch game {
	case "dice":
		out["dice"] = o.Dice
		if o.Target != 0 {
			out["target"] = o.Target
		}
	case "flip":
		out["call"], out["side"] = o.Call, o.Side
	default:
		out["reels"] = o.Reels
	}
	return toolResult(out), nil
}
