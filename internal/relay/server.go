package relay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"relay-lounge/internal/auth"
	"relay-lounge/internal/config"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/registry"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var ErrServerClosed = errors.New("relay: server closed")

type Options struct {
	StartingBalance decimal.Decimal
	MaxLineBytes    int
	SendQueueSize   int
	WriteTimeout    time.Duration
	PotPlayerCreate bool
	PotMaxDuration  time.Duration
}

func OptionsFromConfig(cfg config.ServerConfig) Options {
	return Options{
		StartingBalance: cfg.StartingBalance,
		MaxLineBytes:    cfg.MaxLineBytes,
		SendQueueSize:   cfg.SendQueueSize,
		WriteTimeout:    cfg.WriteTimeout,
		PotPlayerCreate: cfg.PotPlayerCreate,
		PotMaxDuration:  cfg.PotMaxDuration,
	}
}

type Deps struct {
	Registry *registry.Registry
	Ledger   *ledger.Ledger
	Gambling *gambling.Engine
	Hasher   *auth.Hasher
}

// Server accepts protocol connections over TCP and WebSocket.
type Server struct {
	reg    *registry.Registry
	led    *ledger.Ledger
	games  *gambling.Engine
	hasher *auth.Hasher
	opts   Options

	handlers map[string]handlerFunc
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu        sync.Mutex
	closing   bool
	listeners map[net.Listener]struct{}
	sessions  map[uint64]*Session
	wg        sync.WaitGroup
}

func NewServer(deps Deps, opts Options) *Server {
	if opts.MaxLineBytes <= 0 {
		opts.MaxLineBytes = 4096
	}
	if opts.SendQueueSize <= 0 {
		opts.SendQueueSize = 64
	}
	if opts.PotMaxDuration <= 0 {
		opts.PotMaxDuration = 24 * time.Hour
	}
	s := &Server{
		reg:       deps.Registry,
		led:       deps.Ledger,
		games:     deps.Gambling,
		hasher:    deps.Hasher,
		opts:      opts,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		listeners: make(map[net.Listener]struct{}),
		sessions:  make(map[uint64]*Session),
	}
	s.handlers = s.commandTable()
	return s
}

// Serve accepts connections on ln until ctx is cancelled or Shutdown is called.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.listeners[ln] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.listeners, ln)
		s.mu.Unlock()
	}()

	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	log.Info().Str("addr", ln.Addr().String()).Msg("relay listening")
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isClosing() || ctx.Err() != nil {
				return nil
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}
			return err
		}
		go s.runSession(ctx, newTCPTransport(conn, s.opts.MaxLineBytes, s.opts.WriteTimeout))
	}
}

func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// HandleWS speaks the same protocol over WebSocket text frames.
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.runSession(context.WithoutCancel(r.Context()), newWSTransport(conn, s.opts.MaxLineBytes, s.opts.WriteTimeout))
}

func (s *Server) runSession(ctx context.Context, tr Transport) {
	s.mu.Lock()
	if s.closing {
		s.mu.Unlock()
		_ = tr.Close()
		return
	}
	sess := newSession(s, s.nextID.Add(1), tr)
	s.sessions[sess.id] = sess
	s.wg.Add(1)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.sessions, sess.id)
		s.mu.Unlock()
		s.wg.Done()
	}()
	sess.run(ctx)
}

func (s *Server) isClosing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closing
}

// Shutdown stops accepting, tells every session, and waits for them to
// drain. When ctx expires first the remaining connections are closed hard.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closing = true
	for ln := range s.listeners {
		_ = ln.Close()
	}
	sessions := make([]*Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.Send("[SERVER] The server is shutting down. Goodbye!")
		sess.tr.Interrupt()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		for _, sess := range sessions {
			_ = sess.tr.Close()
		}
		return ctx.Err()
	}
}

// Announce sends an admin broadcast to every authenticated session.
func (s *Server) Announce(text string) int {
	return s.reg.BroadcastAll("[SERVER] " + text)
}
