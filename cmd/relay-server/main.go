package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"relay-lounge/internal/auth"
	"relay-lounge/internal/config"
	"relay-lounge/internal/eventpush"
	"relay-lounge/internal/gambling"
	"relay-lounge/internal/jobs"
	"relay-lounge/internal/ledger"
	"relay-lounge/internal/logging"
	"relay-lounge/internal/mcpserver"
	"relay-lounge/internal/registry"
	"relay-lounge/internal/relay"
	"relay-lounge/internal/store"
	httptransport "relay-lounge/internal/transport/http"

	"github.com/rs/zerolog/log"
)

const shutdownGrace = 10 * time.Second

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadServer()
	if err != nil {
		log.Fatal().Err(err).Msg("load server config failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
	log.Info().Msg("server stopped")
}

func run(ctx context.Context, cfg config.ServerConfig) error {
	st, err := store.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Ping(ctx); err != nil {
		return err
	}
	snap := st.Load(ctx)

	pushCfg, err := eventpush.ConfigFromServer(cfg)
	if err != nil {
		return err
	}
	push := eventpush.New(pushCfg)
	// Stopped by the defer once the engine is quiet, not by the signal.
	push.Start(context.WithoutCancel(ctx))
	defer push.Stop()

	reg := registry.New(st, snap)
	led := ledger.New(reg)
	games := gambling.NewEngine(led, reg, st, snap, gambling.Options{
		BigWinThreshold: cfg.BigWinThreshold,
		MaxDuration:     cfg.PotMaxDuration,
		Events:          push,
	})
	hasher := auth.NewHasher(auth.Params{
		MemoryKB:    cfg.ArgonMemoryKB,
		Iterations:  cfg.ArgonIterations,
		Parallelism: cfg.ArgonParallelism,
	})
	srv := relay.NewServer(relay.Deps{Registry: reg, Ledger: led, Gambling: games, Hasher: hasher}, relay.OptionsFromConfig(cfg))

	sched := jobs.NewScheduler()
	if cfg.PotSchedule != "" {
		if err := sched.AddHousePots(ctx, cfg.PotSchedule, cfg.PotScheduleDuration, games); err != nil {
			return err
		}
	}
	if cfg.SnapshotSchedule != "" {
		if err := sched.AddSnapshot(context.WithoutCancel(ctx), cfg.SnapshotSchedule, reg.Flush, games.Flush); err != nil {
			return err
		}
	}
	sched.Start()

	httpDeps := httptransport.Deps{
		Store:    st,
		Registry: reg,
		Ledger:   led,
		Gambling: games,
		Relay:    srv,
	}
	if cfg.MCPEnabled {
		httpDeps.MCP = mcpserver.New(mcpserver.Deps{Registry: reg, Ledger: led, Gambling: games, Hasher: hasher}).Handler()
	}
	r := httptransport.NewRouter(httpDeps, cfg)
	httptransport.LogRoutes(r)
	httpSrv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errs := make(chan error, 2)
	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()
	go func() {
		if err := srv.ListenAndServe(ctx, cfg.ListenAddr); err != nil {
			errs <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown requested")
	case runErr = <-errs:
		log.Error().Err(runErr).Msg("listener failed")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	sched.Stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("relay sessions did not drain in time")
	}
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown failed")
	}
	games.Stop()
	reg.Flush(shutdownCtx)
	games.Flush(shutdownCtx)
	return runErr
}
