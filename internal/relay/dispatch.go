package relay

import (
	"context"
	"errors"
	"fmt"

	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
)

type handlerFunc func(ctx context.Context, s *Session, cmd Command) error

func (srv *Server) commandTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		"HELP":            srv.handleHelp,
		"USERS":           srv.handleUsers,
		"BALANCE":         srv.handleBalance,
		"ROOMS":           srv.handleRooms,
		"CREATEROOM":      srv.handleCreateRoom,
		"PRIVATEROOM":     srv.handlePrivateRoom,
		"INVITE":          srv.handleInvite,
		"JOIN":            srv.handleJoin,
		"LEAVE":           srv.handleLeave,
		"WHISPER":         srv.handleWhisper,
		"TRANSFER":        srv.handleTransfer,
		"SHOUT":           srv.handleShout,
		"SHOUTBOX":        srv.handleShoutbox,
		"TRANSACTIONS":    srv.handleTransactions,
		"GAMBLE":          srv.handleGamble,
		"POTS":            srv.handlePots,
		"POTINFO":         srv.handlePotInfo,
		"GAMBLINGHISTORY": srv.handleGamblingHistory,
		"DICE":            srv.handleDice,
		"FLIP":            srv.handleFlip,
		"SLOTS":           srv.handleSlots,
		"STATS":           srv.handleStats,
		"LEADERBOARD":     srv.handleLeaderboard,
		"QUIT":            srv.handleQuit,
	}
}

func (srv *Server) dispatch(ctx context.Context, s *Session, cmd Command) error {
	h, ok := srv.handlers[cmd.Verb]
	if !ok {
		commandsTotal.Add("CHAT", 1)
		return srv.handleChat(ctx, s, cmd)
	}
	commandsTotal.Add(cmd.Verb, 1)
	return h(ctx, s, cmd)
}

func (srv *Server) dispatchUnauthenticated(ctx context.Context, s *Session, cmd Command) error {
	switch cmd.Verb {
	case "LOGIN":
		return srv.handleLogin(ctx, s, cmd)
	case "REGISTER":
		return srv.handleRegister(ctx, s, cmd)
	case "QUIT":
		return srv.handleQuit(ctx, s, cmd)
	default:
		s.Send("System: " + loginHint + " first.")
		return nil
	}
}

var errorLines = []struct {
	err  error
	line string
}{
	{ledger.ErrInvalidAmount, "System: Amount must be a positive number with at most two decimal places."},
	{ledger.ErrSelfTransfer, "System: You cannot transfer credits to yourself."},
	{ledger.ErrUnknownAccount, "System: No such user."},
	{ledger.ErrInsufficientFunds, "System: Insufficient funds."},
	{registry.ErrUnknownAccount, "System: No such user."},
	{registry.ErrRoomExists, "System: A room with that name already exists."},
	{registry.ErrUnknownRoom, "System: No such room."},
	{registry.ErrInvalidRoomName, "System: Room names may only use letters, digits, '-' and '_' (max 32)."},
	{registry.ErrNotRoomOwner, "System: Only the room owner can do that."},
	{registry.ErrRoomForbidden, "System: That room is private. Ask the owner for an INVITE."},
	{gambling.ErrPotNotFound, "System: No active pot with that id."},
	{gambling.ErrPotClosed, "System: That pot is no longer accepting bets."},
	{gambling.ErrNoActivePot, "System: There is no active pot right now."},
	{gambling.ErrInvalidPotName, "System: Pot names must be 1-64 characters."},
	{gambling.ErrInvalidTarget, "System: Dice target must be between 2 and 12."},
	{gambling.ErrInvalidCall, "System: Call HEADS or TAILS."},
	{gambling.ErrEngineStopped, "System: Gambling is closed while the server shuts down."},
}

// describeError turns a handler error into one reply line. Unknown errors
// are logged and reported generically.
func (s *Session) describeError(err error, cmd Command) string {
	commandErrorsTotal.Add(1)
	var usage usageError
	if errors.As(err, &usage) {
		return "Usage: " + string(usage)
	}
	if errors.Is(err, gambling.ErrInvalidDuration) {
		return fmt.Sprintf("System: Pot duration must be between 1 and %d minutes.", int(s.srv.opts.PotMaxDuration.Minutes()))
	}
	for _, e := range errorLines {
		if errors.Is(err, e.err) {
			return e.line
		}
	}
	s.log.Error().Err(err).Str("verb", cmd.Verb).Str("username", s.username).Msg("command failed")
	return genericErrorLine
}
