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
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"amsf/internal/comparison"
	"amsf/internal/filing"
	filinghandler "amsf/internal/filing/handler"
	"amsf/internal/platform/config"
	"amsf/internal/platform/httpserver"
	"amsf/internal/platform/logger"
	"amsf/internal/platform/metrics"
	submissionhandler "amsf/internal/submission/handler"
	submissionmetrics "amsf/internal/submission/metrics"
	"amsf/internal/submission/service"
	"amsf/internal/survey/engine"
	surveymetrics "amsf/internal/survey/metrics"
	httptransport "amsf/internal/transport/http"
	"amsf/internal/validation/local"
	validationmetrics "amsf/internal/validation/metrics"
	"amsf/internal/validation/orchestrator"
	"amsf/internal/xbrl"
	"amsf/pkg/platform/audit/publisher"
	"amsf/pkg/platform/audit/publishers/compliance"
)

const shutdownTimeout = 15 * time.Second

// main loads configuration and hands off to run so deferred cleanup always
// executes before the process exits.
func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.IsProduction())
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps, err := openDependencies(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer deps.Close()

	compliancePub := compliance.New(deps.audit,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(reg)),
	)
	opsPub := publisher.NewPublisher(deps.audit,
		publisher.WithAsyncBuffer(256),
		publisher.WithLogger(log),
	)
	defer func() {
		if err := opsPub.Close(); err != nil {
			log.Warn("audit publisher close failed", "error", err)
		}
	}()

	eng, err := engine.New(deps.crm, deps.submissions, deps.taxonomy,
		engine.WithLogger(log),
		engine.WithMetrics(surveymetrics.New(reg)),
	)
	if err != nil {
		return err
	}
	submissions := service.New(deps.submissions, eng, deps.taxonomy,
		service.WithLogger(log),
		service.WithMetrics(submissionmetrics.New(reg)),
		service.WithComplianceAudit(compliancePub),
		service.WithOpsAudit(opsPub),
		service.WithLockTTL(cfg.Submission.LockTTL),
	)

	vm := validationmetrics.New(reg)
	remoteV, checks := remoteValidator(cfg, log, vm, deps)
	validator := orchestrator.New(local.New(deps.taxonomy), remoteV, cfg.RemoteValidation.Enabled,
		orchestrator.WithLogger(log),
		orchestrator.WithMetrics(vm),
		orchestrator.WithOpsAudit(opsPub),
	)

	filings := filing.New(submissions, deps.crm, deps.taxonomy,
		xbrl.New(deps.taxonomy, xbrl.Options{Strict: cfg.XBRL.Strict, Logger: log}),
		validator,
		filing.WithLogger(log),
		filing.WithArtifactStore(deps.artifacts),
		filing.WithComparator(comparison.New(submissions, deps.taxonomy, comparison.WithLogger(log))),
	)

	router := httptransport.NewRouter(httptransport.Options{
		Logger:      log,
		Production:  cfg.IsProduction(),
		Metrics:     metrics.New(reg),
		Gatherer:    reg,
		CORSOrigins: cfg.CORSOrigins,
		Checks:      checks,
	},
		submissionhandler.New(submissions, log),
		filinghandler.New(filings, log),
	)

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting amsf server",
			"addr", cfg.Addr,
			"environment", cfg.Environment,
			"taxonomy_version", deps.taxonomy.Version,
			"remote_validation", validator.RemoteEnabled(),
			"strict_xbrl", cfg.XBRL.Strict,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
