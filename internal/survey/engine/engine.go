// Package engine drives the field calculator over the taxonomy and persists
// the results on a submission.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	crm "amsf/internal/crm/models"
	"amsf/internal/submission/models"
	"amsf/internal/survey/calculator"
	"amsf/internal/survey/metrics"
	"amsf/internal/taxonomy"
	id "amsf/pkg/domain"
	"amsf/pkg/requestcontext"
)

// ErrSnapshotFrozen is returned when asked to recompute a validated or
// completed submission.
var ErrSnapshotFrozen = errors.New("submission snapshot is frozen")

// DatasetReader loads the CRM read model for one organization.
type DatasetReader interface {
	LoadDataset(ctx context.Context, orgID id.OrganizationID, window crm.Window) (*crm.Dataset, error)
}

// ValueStore is the slice of the submission store the engine writes through.
type ValueStore interface {
	Values(ctx context.Context, submissionID id.SubmissionID) ([]models.SubmissionValue, error)
	SaveValues(ctx context.Context, values []models.SubmissionValue) error
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PopulateStats reports what one populate run did.
type PopulateStats struct {
	Created   int `json:"created"`
	Updated   int `json:"updated"`
	Unchanged int `json:"unchanged"`
	// Preserved counts overridden or manual rows left untouched.
	Preserved int `json:"preserved"`
}

// Changed is true when the run wrote anything.
func (s PopulateStats) Changed() bool {
	return s.Created > 0 || s.Updated > 0
}

type Engine struct {
	reader   DatasetReader
	store    ValueStore
	taxonomy *taxonomy.Taxonomy
	registry *calculator.Registry
	logger   *slog.Logger
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

type Option func(*Engine)

func WithRegistry(r *calculator.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithTracer(t trace.Tracer) Option {
	return func(e *Engine) { e.tracer = t }
}

// New builds an engine and refuses to start when the registry does not cover
// exactly the computed elements of the taxonomy.
func New(reader DatasetReader, store ValueStore, tax *taxonomy.Taxonomy, opts ...Option) (*Engine, error) {
	if reader == nil || store == nil || tax == nil {
		return nil, errors.New("engine requires a dataset reader, a value store and a taxonomy")
	}
	e := &Engine{
		reader:   reader,
		store:    store,
		taxonomy: tax,
		registry: calculator.For(tax),
		logger:   slog.Default(),
		tracer:   otel.Tracer("amsf/internal/survey/engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	if c := tax.CheckCompleteness(e.registry); !c.OK() {
		return nil, fmt.Errorf("calculator registry does not match taxonomy %s: %w", tax.Version, c)
	}
	return e, nil
}

// CalculateAll computes every computed element for (orgID, year) from the
// current committed state. Nothing is persisted.
func (e *Engine) CalculateAll(ctx context.Context, orgID id.OrganizationID, year int) (map[string]models.Value, error) {
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.calculate_all", trace.WithAttributes(
		attribute.String("organization_id", orgID.String()),
		attribute.Int("year", year),
	))
	defer span.End()

	out, err := e.calculate(ctx, orgID, year)
	if e.metrics != nil {
		e.metrics.ObserveCalculation(start, err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calculation failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("elements", len(out)))
	return out, nil
}

func (e *Engine) calculate(ctx context.Context, orgID id.OrganizationID, year int) (map[string]models.Value, error) {
	dataset, err := e.reader.LoadDataset(ctx, orgID, crm.LookbackWindow(year))
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	results := e.registry.CalculateAll(calculator.NewInput(dataset, year))

	out := make(map[string]models.Value, len(results))
	for code, r := range results {
		if !e.taxonomy.Has(code) {
			continue
		}
		out[code] = toValue(r)
	}
	return out, nil
}

func toValue(r calculator.Result) models.Value {
	if r.IsDimensional() {
		return models.Dimensional(r.Dimensions())
	}
	return models.Scalar(r.String())
}

// Populate upserts every computed element on the submission. Missing rows are
// created, recomputable rows are refreshed only when the value changed, and
// overridden or manual rows are never touched. All writes share one
// transaction.
func (e *Engine) Populate(ctx context.Context, sub *models.Submission) (PopulateStats, error) {
	var stats PopulateStats
	if sub.Status.IsFrozen() {
		return stats, ErrSnapshotFrozen
	}
	start := time.Now()
	ctx, span := e.tracer.Start(ctx, "engine.populate", trace.WithAttributes(
		attribute.String("submission_id", sub.ID.String()),
		attribute.Int("year", sub.Year),
	))
	defer span.End()

	computed, err := e.CalculateAll(ctx, sub.OrganizationID, sub.Year)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "calculation failed")
		return stats, err
	}
	now := requestcontext.Now(ctx)

	err = e.store.WithinTx(ctx, func(ctx context.Context) error {
		stats = PopulateStats{}
		existing, err := e.store.Values(ctx, sub.ID)
		if err != nil {
			return fmt.Errorf("load stored values: %w", err)
		}
		byCode := make(map[string]models.SubmissionValue, len(existing))
		for _, v := range existing {
			byCode[v.ElementName] = v
		}

		var writes []models.SubmissionValue
		for _, el := range e.taxonomy.Computed() {
			value, ok := computed[el.Code]
			if !ok {
				continue
			}
			current, found := byCode[el.Code]
			switch {
			case !found:
				writes = append(writes, models.SubmissionValue{
					SubmissionID: sub.ID,
					ElementName:  el.Code,
					Value:        value,
					Source:       models.Source(el.Source),
					UpdatedAt:    now,
				})
				stats.Created++
			case !current.Recomputable():
				stats.Preserved++
			case current.Value.Equal(value):
				stats.Unchanged++
			default:
				current.Value = value
				current.UpdatedAt = now
				writes = append(writes, current)
				stats.Updated++
			}
		}
		return e.store.SaveValues(ctx, writes)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "populate failed")
		return PopulateStats{}, fmt.Errorf("populate submission values: %w", err)
	}
	if e.metrics != nil {
		e.metrics.ObservePopulate(start, stats.Created, stats.Updated)
	}
	span.SetAttributes(
		attribute.Int("created", stats.Created),
		attribute.Int("updated", stats.Updated),
	)
	if stats.Changed() {
		e.logger.InfoContext(ctx, "submission values populated",
			"submission_id", sub.ID.String(),
			"year", sub.Year,
			"created", stats.Created,
			"updated", stats.Updated,
			"preserved", stats.Preserved,
		)
	}
	return stats, nil
}
