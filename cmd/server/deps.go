package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"amsf/internal/artifact"
	crmmemory "amsf/internal/crm/store/memory"
	crmpostgres "amsf/internal/crm/store/postgres"
	"amsf/internal/filing"
	"amsf/internal/platform/config"
	redisclient "amsf/internal/platform/redis"
	"amsf/internal/submission/service"
	submissionmemory "amsf/internal/submission/store/memory"
	submissionpostgres "amsf/internal/submission/store/postgres"
	"amsf/internal/survey/engine"
	"amsf/internal/taxonomy"
	httptransport "amsf/internal/transport/http"
	validationmetrics "amsf/internal/validation/metrics"
	"amsf/internal/validation/remote"
	"amsf/pkg/platform/audit"
	"amsf/pkg/platform/audit/store/kafka"
	auditmemory "amsf/pkg/platform/audit/store/memory"
	"amsf/pkg/platform/circuit"
)

type crmStore interface {
	engine.DatasetReader
	filing.Organizations
}

type submissionStore interface {
	service.Store
	engine.ValueStore
}

// dependencies holds the process-wide backends. Everything falls back to
// memory when its connection setting is empty.
type dependencies struct {
	taxonomy    *taxonomy.Taxonomy
	crm         crmStore
	submissions submissionStore
	audit       audit.Store
	artifacts   artifact.Store
	redis       *redisclient.Client

	closers []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDependencies(ctx context.Context, cfg config.Server, log *slog.Logger) (deps *dependencies, err error) {
	deps = &dependencies{}
	defer func() {
		if err != nil {
			deps.Close()
		}
	}()

	if deps.taxonomy, err = taxonomy.Load(cfg.Taxonomy.Path); err != nil {
		return nil, fmt.Errorf("load taxonomy: %w", err)
	}

	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		deps.closers = append(deps.closers, pool.Close)
		if err := pool.Ping(ctx); err != nil {
			return nil, fmt.Errorf("ping postgres: %w", err)
		}
		deps.crm = crmpostgres.New(pool)
		deps.submissions = submissionpostgres.New(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		crm := crmmemory.New()
		if cfg.CRMFixture != "" {
			if crm, err = crmmemory.FromFile(cfg.CRMFixture); err != nil {
				return nil, err
			}
		}
		deps.crm = crm
		deps.submissions = submissionmemory.NewInMemory()
	}

	if len(cfg.Audit.KafkaBrokers) > 0 {
		store, err := kafka.New(ctx, cfg.Audit.KafkaBrokers, cfg.Audit.Topic)
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, store.Close)
		deps.audit = store
	} else {
		log.Warn("KAFKA_BROKERS not set, audit events are kept in memory")
		deps.audit = auditmemory.NewInMemoryStore()
	}

	if cfg.Artifacts.S3Bucket != "" {
		deps.artifacts, err = artifact.NewS3Store(ctx, cfg.Artifacts.AWSRegion, cfg.Artifacts.S3Bucket)
	} else {
		deps.artifacts, err = artifact.NewFileStore(cfg.Artifacts.Dir)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact store: %w", err)
	}

	deps.redis, err = redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	if deps.redis != nil {
		rc := deps.redis
		deps.closers = append(deps.closers, func() { _ = rc.Close() })
	}
	return deps, nil
}

// remoteValidator returns nil when remote validation is disabled. The
// returned checks feed /health.
func remoteValidator(cfg config.Server, log *slog.Logger, m *validationmetrics.Metrics, deps *dependencies) (remote.Validator, map[string]httptransport.Check) {
	checks := map[string]httptransport.Check{}
	if deps.redis != nil {
		checks["redis"] = deps.redis.Health
	}
	if !cfg.RemoteValidation.Enabled {
		return nil, checks
	}

	opts := []remote.Option{
		remote.WithTimeout(cfg.RemoteValidation.Timeout),
		remote.WithMaxRetries(cfg.RemoteValidation.MaxRetries),
		remote.WithBreaker(circuit.New("remote-validation")),
		remote.WithLogger(log),
		remote.WithMetrics(m),
	}
	if deps.redis != nil {
		opts = append(opts, remote.WithCache(remote.NewRedisCache(deps.redis.Client, cfg.Redis.ResultTTL)))
	}
	client := remote.NewClient(cfg.RemoteValidation.BaseURL, opts...)
	checks["remote_validation"] = client.Health
	return client, checks
}
