package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"relay-lounge/internal/config"
	"relay-lounge/internal/logging"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const replyTimeout = 5 * time.Second

// lineConn is one protocol connection, over TCP or WebSocket.
type lineConn interface {
	ReadLine() (string, error)
	WriteLine(line string) error
	Close() error
}

type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader
}

func (c *tcpConn) ReadLine() (string, error) {
	line, err := c.r.ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func (c *tcpConn) WriteLine(line string) error {
	_, err := fmt.Fprintf(c.conn, "%s\r\n", line)
	return err
}

func (c *tcpConn) Close() error { return c.conn.Close() }

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) ReadLine() (string, error) {
	_, msg, err := c.conn.ReadMessage()
	return string(msg), err
}

func (c *wsConn) WriteLine(line string) error {
	return c.conn.WriteMessage(websocket.TextMessage, []byte(line))
}

func (c *wsConn) Close() error { return c.conn.Close() }

func dial(cfg config.BotConfig) (lineConn, error) {
	if cfg.WSURL != "" {
		conn, _, err := websocket.DefaultDialer.Dial(cfg.WSURL, nil)
		if err != nil {
			return nil, err
		}
		return &wsConn{conn: conn}, nil
	}
	conn, err := net.DialTimeout("tcp", cfg.Addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn, r: bufio.NewReader(conn)}, nil
}

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	if _, ok := os.LookupEnv("LOG_SERVICE"); !ok {
		logCfg.Service = "relay-bot"
	}
	logging.Init(logCfg)
	cfg, err := config.LoadBot()
	if err != nil {
		log.Fatal().Err(err).Msg("load bot config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := dial(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("dial failed")
	}
	defer conn.Close()

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		for {
			line, err := conn.ReadLine()
			if err != nil {
				return
			}
			log.Debug().Str("line", line).Msg("recv")
			lines <- line
		}
	}()

	b := &bot{cfg: cfg, conn: conn, lines: lines}
	if err := b.run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot stopped")
	}
}

type bot struct {
	cfg   config.BotConfig
	conn  lineConn
	lines <-chan string
}

// await reads until a line starts with one of prefixes.
func (b *bot) await(ctx context.Context, prefixes ...string) (string, error) {
	timeout := time.NewTimer(replyTimeout)
	defer timeout.Stop()
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timeout.C:
			return "", fmt.Errorf("no reply matching %v", prefixes)
		case line, ok := <-b.lines:
			if !ok {
				return "", errors.New("connection closed")
			}
			for _, p := range prefixes {
				if strings.HasPrefix(line, p) {
					return line, nil
				}
			}
		}
	}
}

func (b *bot) send(line string) error {
	log.Debug().Str("line", line).Msg("send")
	return b.conn.WriteLine(line)
}

func (b *bot) run(ctx context.Context) error {
	if _, err := b.await(ctx, "Please LOGIN"); err != nil {
		return err
	}
	if err := b.send(fmt.Sprintf("REGISTER %s %s %s", b.cfg.Username, b.cfg.Password, b.cfg.Email)); err != nil {
		return err
	}
	if _, err := b.await(ctx, "System:"); err != nil {
		return err
	}
	if err := b.send(fmt.Sprintf("LOGIN %s %s", b.cfg.Username, b.cfg.Password)); err != nil {
		return err
	}
	reply, err := b.await(ctx, "Your current credit balance", "System: Invalid", "System: "+b.cfg.Username)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(reply, "Your current credit balance") {
		return fmt.Errorf("login rejected: %s", reply)
	}
	log.Info().Str("username", b.cfg.Username).Str("balance", strings.TrimPrefix(reply, "Your current credit balance: ")).Msg("logged in")

	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()
	for round := 1; round <= b.cfg.Rounds; round++ {
		select {
		case <-ctx.Done():
			_ = b.send("QUIT")
			return ctx.Err()
		case <-ticker.C:
		}
		cmd, prefix := b.pick()
		if err := b.send(cmd); err != nil {
			return err
		}
		reply, err := b.await(ctx, prefix, "System:", "Usage:")
		if err != nil {
			return err
		}
		log.Info().Int("round", round).Str("cmd", cmd).Str("reply", reply).Msg("played")
		if strings.Contains(reply, "Insufficient funds") {
			log.Warn().Msg("out of credits")
			break
		}
	}
	_ = b.send("QUIT")
	_, _ = b.await(ctx, "Goodbye!")
	return nil
}

func (b *bot) pick() (string, string) {
	switch rand.IntN(3) {
	case 0:
		if rand.IntN(2) == 0 {
			return "DICE " + b.cfg.Bet, "[DICE]"
		}
		return fmt.Sprintf("DICE %s %d", b.cfg.Bet, 2+rand.IntN(11)), "[DICE]"
	case 1:
		call := "HEADS"
		if rand.IntN(2) == 1 {
			call = "TAILS"
		}
		return "FLIP " + b.cfg.Bet + " " + call, "[FLIP]"
	default:
		return "SLOTS " + b.cfg.Bet, "[SLOTS]"
	}
}
