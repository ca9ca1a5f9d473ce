package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"presale/internal/allotment"
	"presale/internal/errorlog"
	"presale/internal/geo"
	"presale/internal/kyc/decision"
	"presale/internal/kyc/handler"
	kycmetrics "presale/internal/kyc/metrics"
	"presale/internal/kyc/pool"
	"presale/internal/kyc/verifier"
	"presale/internal/platform/config"
	"presale/internal/platform/httpserver"
	"presale/internal/platform/logger"
	"presale/internal/platform/metrics"
	"presale/internal/platform/secrets"
	"presale/internal/platform/tracing"
	httptransport "presale/internal/transport/http"
	"presale/pkg/platform/middleware/admin"
	"presale/pkg/platform/middleware/metadata"
)

// main wires the stores, the decision engine and the HTTP surface, then runs
// the server until SIGINT or SIGTERM.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.Tracing.ServiceName, cfg.Tracing.Endpoint, cfg.Tracing.SampleRatio)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("flush traces", "error", err)
		}
	}()

	deps, err := openInfra(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.close(cfg.Server.ShutdownTimeout)

	keys, err := verifier.LoadKeys(cfg.Provider.Origin, cfg.Provider.KeyPath, cfg.Provider.TestKeyPath)
	if err != nil {
		return err
	}

	kycMetrics := kycmetrics.New()
	sale, err := openWhitelist(ctx, cfg.Whitelist, kycMetrics, log)
	if err != nil {
		return err
	}
	defer sale.close()

	pools := pool.New(deps.poolStore, log,
		pool.WithMetrics(kycMetrics),
		pool.WithAuditor(deps.auditor),
	)
	engine := decision.New(pools, deps.ledgerStore, sale.whitelist, log,
		decision.WithMetrics(kycMetrics),
		decision.WithAuditor(deps.auditor),
		decision.WithClaimer(deps.claimer),
	)

	var registrar handler.Registrar
	if sale.configured {
		svc, err := allotment.New(sale.allotment, cfg.Whitelist.MinBalance, cfg.Whitelist.ExplorerTxURL, log,
			allotment.WithAuditor(deps.auditor),
		)
		if err != nil {
			return err
		}
		registrar = svc
	}

	errLog, err := errorlog.NewFileSink(cfg.ErrorLog.Dir)
	if err != nil {
		return err
	}

	var locator geo.Locator = geo.Static{}
	if cfg.GeoIP.DBPath != "" {
		db, err := geo.OpenMaxMind(cfg.GeoIP.DBPath)
		if err != nil {
			return err
		}
		defer db.Close()
		locator = db
	}

	kycHandler := handler.New(handler.Deps{
		Verifier:     verifier.New(keys),
		Processor:    engine,
		Pool:         pools,
		Participants: deps.ledgerStore,
		Registrar:    registrar,
		Locator:      locator,
		ErrorLog:     errLog,
		Auditor:      deps.auditor,
		Metrics:      kycMetrics,
	}, handler.Forms{
		BaseURL:       cfg.Provider.FormBaseURL,
		GeneralFormID: cfg.Provider.GeneralFormID,
		VIPFormID:     cfg.Provider.VIPFormID,
		ExplorerTxURL: cfg.Whitelist.ExplorerTxURL,
	}, log)

	var adminGate func(http.Handler) http.Handler
	if len(cfg.Admin.Users) > 0 {
		adminGate = admin.RequireBasicAuth(secrets.Users(cfg.Admin.Users), cfg.Admin.Realm, log)
	} else {
		log.Warn("no admin users configured; operator routes disabled")
	}

	proxies, err := metadata.ParseTrustedProxies(cfg.Server.TrustedProxies)
	if err != nil {
		return err
	}

	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		RequestTimeout: cfg.Server.RequestTimeout,
		AdminGate:      adminGate,
		Checks:         deps.checks,
		TrustedProxies: proxies,
	}, kycHandler)

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)

	g, gctx := errgroup.WithContext(ctx)
	if deps.auditWorker != nil {
		g.Go(func() error { return deps.auditWorker.Run(gctx) })
	}
	g.Go(func() error {
		log.Info("starting presale kyc service", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
