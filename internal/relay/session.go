package relay

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"relay-lounge/internal/registry"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type sessionState int

const (
	stateUnauthenticated sessionState = iota
	stateAuthenticated
	stateDisconnected
)

// errQuit ends the read loop after the reply has been queued.
var errQuit = errors.New("quit")

// Session is one connection. Everything but the outbound queue is owned by
// the read loop goroutine.
type Session struct {
	id  uint64
	srv *Server
	tr  Transport

	send       chan string
	done       chan struct{}
	writerDone chan struct{}
	closeOnce  sync.Once

	state       sessionState
	username    string
	room        string
	connectedAt time.Time
	log         zerolog.Logger
}

func newSession(srv *Server, id uint64, tr Transport) *Session {
	return &Session{
		id:          id,
		srv:         srv,
		tr:          tr,
		send:        make(chan string, srv.opts.SendQueueSize),
		done:        make(chan struct{}),
		writerDone:  make(chan struct{}),
		connectedAt: time.Now(),
		log:         log.With().Uint64("conn_id", id).Str("remote", tr.RemoteAddr()).Logger(),
	}
}

// Send queues a line without blocking. A full queue drops the line.
func (s *Session) Send(line string) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.send <- line:
		return true
	default:
		droppedLinesTotal.Add(1)
		return false
	}
}

func (s *Session) sendf(format string, args ...any) {
	s.Send(fmt.Sprintf(format, args...))
}

func (s *Session) run(ctx context.Context) {
	connectionsTotal.Add(1)
	connectionsActive.Add(1)
	defer connectionsActive.Add(-1)

	go s.writeLoop()
	defer s.finish()

	s.log.Debug().Msg("connection opened")
	s.Send("Welcome to the Relay Lounge!")
	s.Send(loginHint)

	for {
		line, err := s.tr.ReadLine()
		if errors.Is(err, errLineTooLong) {
			s.sendf("System: Line too long (max %d bytes).", s.srv.opts.MaxLineBytes)
			continue
		}
		if errors.Is(err, errFrameTooLarge) {
			s.log.Warn().Int("limit", s.srv.opts.MaxLineBytes*wsFrameLines).Msg("websocket frame over limit, closing")
			return
		}
		if err != nil {
			return
		}
		if err := s.handleLine(ctx, line); errors.Is(err, errQuit) {
			return
		}
	}
}

// handleLine isolates one command: panics and errors become a reply line.
func (s *Session) handleLine(ctx context.Context, line string) (err error) {
	cmd, ok := ParseCommand(line)
	if !ok {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			panicsTotal.Add(1)
			s.log.Error().Interface("panic", r).Str("verb", cmd.Verb).Bytes("stack", debug.Stack()).Msg("command panicked")
			s.Send(genericErrorLine)
			err = nil
		}
	}()

	if s.state == stateAuthenticated {
		err = s.srv.dispatch(ctx, s, cmd)
	} else {
		err = s.srv.dispatchUnauthenticated(ctx, s, cmd)
	}
	if err == nil || errors.Is(err, errQuit) {
		return err
	}
	s.Send(s.describeError(err, cmd))
	return nil
}

func (s *Session) writeLoop() {
	defer close(s.writerDone)
	defer s.tr.Close()
	for {
		select {
		case line := <-s.send:
			if err := s.tr.WriteLine(line); err != nil {
				return
			}
		case <-s.done:
			for {
				select {
				case line := <-s.send:
					if err := s.tr.WriteLine(line); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}

// finish releases the session exactly once: leave the registry, tell the
// room, flush queued lines and close the transport.
func (s *Session) finish() {
	s.closeOnce.Do(func() {
		if s.state == stateAuthenticated {
			if m, ok := s.srv.reg.RemoveSession(s.id); ok {
				s.srv.reg.BroadcastRoom(m.Room, fmt.Sprintf("* %s has left %s", m.Username, m.Room), s.id)
			}
			s.log.Info().Str("username", s.username).Dur("online", time.Since(s.connectedAt)).Msg("user disconnected")
		}
		s.state = stateDisconnected
		close(s.done)
		<-s.writerDone
		_ = s.tr.Close()
	})
}

// member is the registry view of this session.
func (s *Session) member() registry.Member {
	return registry.Member{
		ConnID:      s.id,
		Username:    s.username,
		Room:        s.room,
		ConnectedAt: s.connectedAt,
		Sender:      s,
	}
}
