package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/aicebreaker/aicebreaker/server/internal/api"
	"github.com/aicebreaker/aicebreaker/server/internal/config"
	"github.com/aicebreaker/aicebreaker/server/internal/countdown"
	"github.com/aicebreaker/aicebreaker/server/internal/hub"
	"github.com/aicebreaker/aicebreaker/server/internal/ledger"
	"github.com/aicebreaker/aicebreaker/server/internal/metrics"
	"github.com/aicebreaker/aicebreaker/server/internal/probe"
	"github.com/aicebreaker/aicebreaker/server/internal/registry"
	"github.com/aicebreaker/aicebreaker/server/internal/ws"
)

func main() {
	configPath := flag.String("config", "", "path to config file; empty uses defaults and AICEBREAKER_* env only")
	envFile := flag.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flag.Parse()

	level := new(slog.LevelVar)
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load env file", "path", *envFile, "err", err)
	}

	slog.Info("aicebreaker-server starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.Server.SlogLevel())

	slog.Info("config loaded",
		"http_port", cfg.Server.HTTPPort,
		"grpc_port", cfg.Server.GRPCPort,
		"frontend_addr", cfg.Server.FrontendAddr,
		"log_level", cfg.Server.LogLevel,
		"countdown_tick", cfg.Server.Countdown.Tick,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *configPath != "" {
		go func() {
			err := config.Watch(ctx, *configPath, cfg, func(prev, next *config.Config) {
				level.Set(next.Server.SlogLevel())
				if fields := config.RestartRequired(prev, next); len(fields) > 0 {
					slog.Warn("config change needs a restart to take effect", "fields", fields)
				}
			})
			if err != nil {
				slog.Error("config watch stopped", "err", err)
			}
		}()
	}

	// Identity registry and hub; Run owns the clients_update queue and
	// closes every socket on shutdown.
	reg := registry.New()
	h := hub.New(reg)
	go h.Run(ctx)

	runner := countdown.New(h, cfg.Server.Countdown.Tick, cfg.Server.Countdown.MaxDuration)

	mux := http.NewServeMux()
	sockets := ws.NewServer(h, wsOptions(cfg.Server.WS))
	sockets.Register(mux)
	mux.Handle("/api/", api.New(api.Deps{
		Directory:    reg,
		Hub:          h,
		Countdown:    runner,
		Ledger:       ledger.NewLocal(cfg.Server.Ledger.StartingBalance),
		FrontendAddr: cfg.Server.FrontendAddr,
	}))
	mux.Handle("/metrics", metrics.Handler(h, reg))

	var hp *probe.Probe
	if cfg.Server.GRPCPort != 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			slog.Error("failed to listen on gRPC port", "port", cfg.Server.GRPCPort, "err", err)
			os.Exit(1)
		}
		hp = probe.New()
		go func() {
			slog.Info("gRPC health probe listening", "port", cfg.Server.GRPCPort)
			if err := hp.Serve(lis); err != nil {
				slog.Error("gRPC health probe stopped", "err", err)
			}
		}()
	}

	httpSrv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("HTTP server listening", "port", cfg.Server.HTTPPort)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server stopped", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()
	slog.Info("aicebreaker-server shutting down")
	if hp != nil {
		hp.Stop()
	}
	shutdownCtx, stop := context.WithTimeout(context.Background(), 10*time.Second)
	defer stop()
	httpSrv.Shutdown(shutdownCtx) //nolint:errcheck

	// Shutdown does not track upgraded sockets; wait for the hub to send 1001
	// to each and for their writers to flush.
	select {
	case <-h.Done():
	case <-shutdownCtx.Done():
	}
	if err := sockets.Wait(shutdownCtx); err != nil {
		slog.Warn("sockets still open at exit", "err", err)
	}
}

func wsOptions(c config.WSConfig) ws.Options {
	return ws.Options{
		SendBuffer:   c.SendBuffer,
		WriteTimeout: c.WriteTimeout,
		PongWait:     c.PongWait,
		ReadLimit:    c.ReadLimit,
		InboundRate:  c.InboundRate,
		InboundBurst: c.InboundBurst,
	}
}
