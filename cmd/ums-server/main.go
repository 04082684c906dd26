package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"time"
	"umsassist-backend/internal/components/chrono"
	"umsassist-backend/internal/leaderboard"
	"umsassist-backend/internal/service"
	"umsassist-backend/internal/session"
	"umsassist-backend/pkg/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	tel, dump := InitTelemetry(ctx, *verbose)

	cfg, err := LoadConfig()
	if err != nil {
		serviceutil.Fatal("read config", err)
	}

	time, err := chrono.NewStandardImpl()
	if err != nil {
		serviceutil.Fatal("load timezone", err)
	}

	store := openStore(ctx, cfg.Leaderboard)
	defer store.Close()

	registry := session.NewRegistry(cfg.Sessions.options(), time, tel)

	portal := cfg.Portal.options()
	portal.Dump = dump
	backend := cfg.Leaderboard.Backend
	if backend == "" {
		backend = leaderboard.BackendSqlite
	}
	svc, err := service.NewService(
		registry, store,
		service.WithPortalOptions(portal),
		service.WithAllowedOrigins(cfg.AllowedOrigins),
		service.WithStoreBackend(backend),
		service.WithCustomChronoAPI(time),
		service.WithCustomTelemetryAPI(tel),
	)
	if err != nil {
		serviceutil.Fatal("init service", err)
	}

	err = serviceutil.StartHttpServer(ctx, net.JoinHostPort("", cfg.Port), svc.Handler())
	if err != nil {
		serviceutil.Fatal("serve http", err)
	}
}

// openStore never fails, without a database the leaderboard endpoints answer
// 503 and everything else keeps working.
func openStore(ctx context.Context, cfg leaderboard.Config) leaderboard.Store {
	openCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	store, err := leaderboard.Open(openCtx, cfg)
	if err != nil {
		slog.Error("leaderboard store unavailable", "backend", cfg.Backend, "err", err)
		return leaderboard.Unavailable(err)
	}
	return store
}
