package relay

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9]{1,20}$`)

const loginShoutboxLines = 10

func (srv *Server) handleLogin(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 2 {
		return usageError("LOGIN <username> <password>")
	}
	name, password := cmd.Args[0], cmd.Args[1]
	acc, ok := srv.reg.Account(name)
	if !ok {
		loginFailuresTotal.Add(1)
		s.Send("System: Invalid username or password.")
		return nil
	}
	valid, err := srv.hasher.Verify(password, acc.PasswordHash)
	if err != nil {
		s.log.Error().Err(err).Str("username", acc.Username).Msg("stored credential unreadable")
	}
	if !valid {
		loginFailuresTotal.Add(1)
		s.log.Info().Str("username", acc.Username).Msg("login rejected")
		s.Send("System: Invalid username or password.")
		return nil
	}

	s.username = acc.Username
	s.room = registry.LobbyRoom
	if err := srv.reg.AddSession(s.member()); err != nil {
		s.username, s.room = "", ""
		if errors.Is(err, registry.ErrAlreadyOnline) {
			s.sendf("System: %s is already logged in from another connection.", acc.Username)
			return nil
		}
		return err
	}
	s.state = stateAuthenticated
	s.log = s.log.With().Str("username", acc.Username).Logger()
	loginsTotal.Add(1)
	if err := srv.reg.TouchLogin(ctx, acc.Username, time.Now()); err != nil {
		s.log.Warn().Err(err).Msg("record last login failed")
	}
	s.log.Info().Msg("user logged in")

	s.sendf("System: Welcome, %s! You are in %s. Type HELP for commands.", acc.Username, registry.LobbyRoom)
	s.sendf("Your current credit balance: %s", ledger.FormatCredits(acc.Balance))
	if shouts := srv.reg.Shouts(loginShoutboxLines); len(shouts) > 0 {
		s.Send("Recent shoutbox messages:")
		for _, m := range shouts {
			s.Send(formatShout(m))
		}
	}
	srv.reg.BroadcastRoom(registry.LobbyRoom, fmt.Sprintf("* %s has joined %s", acc.Username, registry.LobbyRoom), s.id)
	return nil
}

func (srv *Server) handleRegister(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 3 {
		return usageError("REGISTER <username> <password> <email>")
	}
	name, password, email := cmd.Args[0], cmd.Args[1], cmd.Args[2]
	if !usernamePattern.MatchString(name) {
		s.Send("System: Usernames must be 1-20 letters or digits.")
		return nil
	}
	if strings.EqualFold(name, registry.SystemOwner) || strings.EqualFold(name, ledger.HouseAccount) {
		s.sendf("System: The username %s is reserved.", name)
		return nil
	}
	if !strings.Contains(email, "@") {
		s.Send("System: Please provide a valid email address.")
		return nil
	}
	if srv.reg.AccountExists(name) {
		s.sendf("System: The username %s is already taken.", name)
		return nil
	}
	hash, err := srv.hasher.Hash(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = srv.reg.CreateAccount(ctx, store.Account{
		Username:     name,
		PasswordHash: hash,
		Email:        email,
		Balance:      srv.opts.StartingBalance.Round(ledger.Precision),
		RegisteredAt: time.Now(),
	})
	if errors.Is(err, registry.ErrAccountExists) {
		s.sendf("System: The username %s is already taken.", name)
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info().Str("username", name).Msg("account registered")
	s.sendf("System: Registration successful! You can now LOGIN %s <password>.", name)
	return nil
}

func (srv *Server) handleQuit(_ context.Context, s *Session, _ Command) error {
	s.Send("Goodbye!")
	return errQuit
}
