package relay

import (
	"context"
	"fmt"
	"strings"

	"relay-lounge/internal/registry"
	"relay-lounge/internal/store"
)

func (srv *Server) handleHelp(_ context.Context, s *Session, _ Command) error {
	s.Send("Available commands:")
	for _, e := range helpEntries {
		s.sendf("  %-44s %s", e.usage, e.summary)
	}
	s.Send("Anything else you type is sent to your current room.")
	return nil
}

func (srv *Server) handleUsers(_ context.Context, s *Session, _ Command) error {
	members := srv.reg.Sessions()
	s.sendf("Online users (%d):", len(members))
	for _, m := range members {
		s.sendf("  %s [%s]", m.Username, m.Room)
	}
	return nil
}

func (srv *Server) handleRooms(_ context.Context, s *Session, _ Command) error {
	views := srv.reg.RoomsFor(s.username)
	s.Send("Rooms:")
	for _, v := range views {
		line := fmt.Sprintf("  %s (%d online)", v.Name, v.Online)
		if v.Private {
			line += " [private]"
		}
		if v.Description != "" {
			line += " - " + v.Description
		}
		if registry.Key(v.Name) == registry.Key(s.room) {
			line += " <- you are here"
		}
		s.Send(line)
	}
	return nil
}

func (srv *Server) handleCreateRoom(ctx context.Context, s *Session, cmd Command) error {
	return srv.createRoom(ctx, s, cmd, false)
}

func (srv *Server) handlePrivateRoom(ctx context.Context, s *Session, cmd Command) error {
	return srv.createRoom(ctx, s, cmd, true)
}

func (srv *Server) createRoom(ctx context.Context, s *Session, cmd Command, private bool) error {
	if len(cmd.Args) < 1 {
		if private {
			return usageError("PRIVATEROOM <name> [description]")
		}
		return usageError("CREATEROOM <name> [description]")
	}
	room := store.Room{
		Name:        cmd.Args[0],
		Owner:       s.username,
		Description: cmd.Rest(1),
		Private:     private,
	}
	if err := srv.reg.CreateRoom(ctx, room); err != nil {
		return err
	}
	s.log.Info().Str("room", room.Name).Bool("private", private).Msg("room created")
	kind := "Room"
	if private {
		kind = "Private room"
	}
	s.sendf("System: %s %s created. Use JOIN %s to enter.", kind, room.Name, room.Name)
	return nil
}

func (srv *Server) handleInvite(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("INVITE <user>")
	}
	acc, ok := srv.reg.Account(cmd.Args[0])
	if !ok {
		return registry.ErrUnknownAccount
	}
	if err := srv.reg.Invite(ctx, s.room, s.username, acc.Username); err != nil {
		return err
	}
	s.sendf("System: %s may now join %s.", acc.Username, s.room)
	srv.reg.SendToUser(acc.Username, fmt.Sprintf("System: %s invited you to %s. Use JOIN %s to enter.", s.username, s.room, s.room))
	return nil
}

func (srv *Server) handleJoin(_ context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("JOIN <room>")
	}
	room, err := srv.reg.EnterableRoom(cmd.Args[0], s.username)
	if err != nil {
		return err
	}
	if registry.Key(room.Name) == registry.Key(s.room) {
		s.sendf("System: You are already in %s.", room.Name)
		return nil
	}
	return srv.moveTo(s, room.Name)
}

func (srv *Server) handleLeave(_ context.Context, s *Session, _ Command) error {
	if registry.Key(s.room) == registry.LobbyRoom {
		s.Send("System: You are already in the lobby.")
		return nil
	}
	return srv.moveTo(s, registry.LobbyRoom)
}

func (srv *Server) moveTo(s *Session, room string) error {
	prev, err := srv.reg.SetSessionRoom(s.id, room)
	if err != nil {
		return err
	}
	s.room = room
	srv.reg.BroadcastRoom(prev, fmt.Sprintf("* %s has left %s", s.username, prev), s.id)
	srv.reg.BroadcastRoom(room, fmt.Sprintf("* %s has joined %s", s.username, room), s.id)
	s.sendf("System: You are now in %s.", room)
	return nil
}

func (srv *Server) handleWhisper(_ context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 2 {
		return usageError("WHISPER <user> <message>")
	}
	target, ok := srv.reg.SessionByUser(cmd.Args[0])
	if !ok {
		s.sendf("System: %s is not online.", cmd.Args[0])
		return nil
	}
	if target.ConnID == s.id {
		s.Send("System: You cannot whisper to yourself.")
		return nil
	}
	text := cmd.Rest(1)
	target.Sender.Send(fmt.Sprintf("[PM from %s] %s", s.username, text))
	s.sendf("[PM to %s] %s", target.Username, text)
	return nil
}

func (srv *Server) handleShout(ctx context.Context, s *Session, cmd Command) error {
	if len(cmd.Args) < 1 {
		return usageError("SHOUT <message>")
	}
	msg := srv.reg.Shout(ctx, s.username, cmd.Rest(0))
	srv.reg.BroadcastAll(formatShout(msg))
	return nil
}

func (srv *Server) handleShoutbox(_ context.Context, s *Session, _ Command) error {
	shouts := srv.reg.Shouts(0)
	if len(shouts) == 0 {
		s.Send("System: The shoutbox is empty.")
		return nil
	}
	s.Send("Recent shoutbox messages:")
	for _, m := range shouts {
		s.Send(formatShout(m))
	}
	return nil
}

// handleChat sends an unrecognized line to everyone in the current room,
// the sender included.
func (srv *Server) handleChat(_ context.Context, s *Session, cmd Command) error {
	srv.reg.BroadcastRoom(s.room, fmt.Sprintf("[%s] %s: %s", s.room, s.username, cmd.Line), 0)
	return nil
}

func formatShout(m store.ShoutboxMessage) string {
	return fmt.Sprintf("[SHOUTBOX] %s: %s", m.Author, strings.TrimSpace(m.Text))
}
