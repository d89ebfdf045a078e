package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/silencegate/internal/api"
	"github.com/TimurManjosov/silencegate/internal/audit"
	"github.com/TimurManjosov/silencegate/internal/capability"
	"github.com/TimurManjosov/silencegate/internal/config"
	mydb "github.com/TimurManjosov/silencegate/internal/db"
	"github.com/TimurManjosov/silencegate/internal/eventloop"
	"github.com/TimurManjosov/silencegate/internal/logging"
	"github.com/TimurManjosov/silencegate/internal/prefs"
	"github.com/TimurManjosov/silencegate/internal/receiver"
	"github.com/TimurManjosov/silencegate/internal/store"
	"github.com/TimurManjosov/silencegate/internal/syncctl"
	"github.com/TimurManjosov/silencegate/internal/telemetry"
	"github.com/TimurManjosov/silencegate/internal/view"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logging.FromConfigValues("info", "console")
		boot.Fatal().Err(err).Msg("config")
	}
	log := logging.FromConfigValues(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	telemetry.Init()

	ctx := context.Background()
	backend, err := store.NewStore(ctx, store.Options{
		Type:       cfg.StoreType,
		DSN:        cfg.DatabaseDSN,
		SQLitePath: cfg.SQLitePath,
	})
	if err != nil {
		log.Fatal().Err(err).Str("store", cfg.StoreType).Msg("store")
	}
	flags := prefs.New(backend, log)
	defer flags.Close()

	sink, closeSink := auditSink(ctx, cfg, log)
	defer closeSink()
	journal := audit.NewService(sink, log, audit.SystemClock{}, audit.UUIDGenerator{}, audit.NewDefaultRedactor(), cfg.AuditQueueSize)
	defer journal.Close()

	granted := cfg.PlatformGranted
	if cfg.PlatformRoleHeld {
		granted = append(granted, capability.RoleCallScreening)
	}
	platform := capability.NewSimulatedPlatform(log, granted...)
	gate := capability.NewGate(platform, log)
	v := view.New()

	var toggle receiver.Toggle = receiver.NewLocalToggle(log)
	if cfg.ReceiverHookURL != "" {
		hook := receiver.NewHookToggle(receiver.HookConfig{
			URL:        cfg.ReceiverHookURL,
			Secret:     cfg.ReceiverHookSecret,
			MaxRetries: cfg.ReceiverHookRetries,
		}, log)
		defer hook.Close()
		toggle = receiver.Fanout{toggle, hook}
	}

	ctl := syncctl.New(syncctl.Options{
		Prefs:     flags,
		Gate:      gate,
		Presenter: v,
		Receiver:  toggle,
		Journal:   journal,
		Logger:    log,
	})
	loop := eventloop.New(cfg.EventQueueSize)
	defer loop.Close()

	srvAPI := api.NewServer(api.Options{
		Loop:           loop,
		Controller:     ctl,
		Prefs:          flags,
		Gate:           gate,
		Platform:       platform,
		View:           v,
		AdminAPIKey:    cfg.AdminAPIKey,
		RateLimitPerIP: cfg.RateLimitPerIP,
		Logger:         log,
	})

	if err := loop.Do(ctx, ctl.OnActivate); err != nil {
		log.Fatal().Err(err).Msg("activate")
	}
	if err := srvAPI.Refresh(ctx); err != nil {
		log.Fatal().Err(err).Msg("initial snapshot")
	}
	snap := v.Load()
	log.Info().Str("etag", snap.ETag).Int("features", len(snap.Features)).Msg("controller active")

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	go serve(log, srv, "api")
	go serve(log, metricsSrv, "metrics")

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShut)
	_ = metricsSrv.Shutdown(ctxShut)
	_ = loop.Do(ctxShut, func(ctx context.Context) error {
		ctl.OnDeactivate(ctx)
		return nil
	})
	log.Info().Msg("stopped")
}

func serve(log zerolog.Logger, srv *http.Server, name string) {
	log.Info().Str("addr", srv.Addr).Msgf("%s listening", name)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Str("server", name).Msg("server")
	}
}

// auditSink writes to the audit table when running on postgres and to the
// log otherwise.
func auditSink(ctx context.Context, cfg *config.Config, log zerolog.Logger) (audit.Sink, func()) {
	if cfg.StoreType != "postgres" {
		return audit.NewLogSink(log), func() {}
	}
	pool, err := mydb.Open(ctx, mydb.PoolConfig{DSN: cfg.DatabaseDSN, Name: "silencegate-audit", MaxConns: 2})
	if err != nil {
		log.Fatal().Err(err).Msg("audit db")
	}
	sink, err := audit.NewPostgresSink(ctx, pool)
	if err != nil {
		pool.Close()
		log.Fatal().Err(err).Msg("audit sink")
	}
	return sink, pool.Close
}
