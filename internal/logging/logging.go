package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"relay-lounge/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, output is
// duplicated into a rotating file next to stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		fw, err := newRotatingWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file %s unavailable: %v\n", cfg.File, err)
		} else {
			out = io.MultiWriter(os.Stdout, fw)
		}
	}
	writerMu.Lock()
	writer = out
	writerMu.Unlock()

	output := out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer is the raw sink chosen by Init, for handlers that log through slog.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}
