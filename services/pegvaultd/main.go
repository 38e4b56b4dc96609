package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"pegvault/config"
	"pegvault/core/events"
	"pegvault/core/pricing"
	"pegvault/core/state"
	nativecommon "pegvault/native/common"
	"pegvault/native/lending"
	"pegvault/native/yield"
	"pegvault/observability"
	"pegvault/observability/logging"
	telemetry "pegvault/observability/otel"
	daemonconfig "pegvault/services/pegvaultd/config"
	"pegvault/services/pegvaultd/server"
	"pegvault/storage"
	"pegvault/storage/eventlog"
)

func main() {
	var cfgPath, paramsPath string
	flag.StringVar(&cfgPath, "config", "services/pegvaultd/config.yaml", "path to pegvaultd config")
	flag.StringVar(&paramsPath, "params", "services/pegvaultd/params.toml", "path to engine genesis parameters")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("PEGVAULT_ENV"))
	logger := logging.Setup("pegvaultd", env)
	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetry.ConfigFromEnv("pegvaultd", env))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	cfg, err := daemonconfig.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	params, err := config.Load(paramsPath)
	if err != nil {
		log.Fatalf("load params: %v", err)
	}

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		log.Fatalf("create data dir: %v", err)
	}
	db, err := storage.NewLevelDB(cfg.LedgerPath())
	if err != nil {
		log.Fatalf("open ledger: %v", err)
	}
	defer db.Close()
	journal, err := eventlog.Open(cfg.EventLogPath(), nil)
	if err != nil {
		log.Fatalf("open event log: %v", err)
	}
	defer journal.Close()
	journal.SetLogger(logger)

	ledger := state.NewManager(db)
	if err := state.EnsureStateVersion(ledger, cfg.AllowMigrate); err != nil {
		log.Fatalf("state version: %v", err)
	}
	ledger.SetEmitter(events.Fanout{journal, observability.Events()})
	if err := seedRoles(ledger, cfg); err != nil {
		log.Fatalf("seed roles: %v", err)
	}

	feed := pricing.NewManualFeed()
	yieldEngine := yield.NewEngine(ledger, feed)
	yieldEngine.SetLogger(logger)
	yieldEngine.SetMaxPriceAge(params.Yield.MaxPriceAgeSeconds)
	err = yieldEngine.Initialize(params.Yield.Params(), params.Yield.InitialAPYBps, params.Yield.Tiers(), params.Yield.ApprovedAssets())
	if err != nil && !errors.Is(err, yield.ErrAlreadyConfigured) {
		log.Fatalf("initialise yield: %v", err)
	}
	lendingEngine := lending.NewEngine(cfg.Module(), ledger, feed, yieldEngine)
	lendingEngine.SetLogger(logger)
	err = lendingEngine.Initialize(params.Lending.Params(), params.Lending.Tiers(), params.Lending.Assets())
	if err != nil && !errors.Is(err, lending.ErrAlreadyConfigured) {
		log.Fatalf("initialise lending: %v", err)
	}

	srv, err := server.New(server.Config{
		Ledger:  ledger,
		Yield:   yieldEngine,
		Lending: lendingEngine,
		Prices:  feed,
		Events:  journal,
		Auth: server.AuthConfig{
			HMACSecret: cfg.Auth.HMACSecret,
			Issuer:     cfg.Auth.Issuer,
			Audience:   cfg.Auth.Audience,
			ClockSkew:  cfg.Auth.ClockSkew,
		},
		RateLimit: server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		},
		Logger: logger,
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}
	httpServer := &http.Server{Addr: cfg.ListenAddress, Handler: srv.Routes()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("pegvaultd listening", "listen", cfg.ListenAddress)
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("forcing server stop", "error", err)
			_ = httpServer.Close()
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve http: %v", err)
		}
	}
}

func seedRoles(ledger *state.Manager, cfg daemonconfig.Config) error {
	grants := []struct {
		role     string
		accounts []common.Address
	}{
		{nativecommon.RoleAdmin, cfg.Admins()},
		{nativecommon.RoleRelayer, cfg.Relayers()},
		{nativecommon.RoleOracle, cfg.Oracles()},
	}
	for _, grant := range grants {
		for _, addr := range grant.accounts {
			if err := ledger.SetRole(grant.role, addr); err != nil {
				return err
			}
		}
	}
	return nil
}
