package remote

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"amsf/internal/validation/metrics"
	"amsf/internal/validation/models"
	"amsf/pkg/platform/circuit"
	"amsf/pkg/platform/sentinel"
)

const (
	defaultTimeout    = 10 * time.Second
	defaultMaxRetries = 2
	defaultBackoff    = 200 * time.Millisecond
	maxResponseBytes  = 1 << 20
)

// transientStatus lists the HTTP statuses worth another attempt.
var transientStatus = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooEarly:            true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// attemptError describes why one HTTP attempt failed.
type attemptError struct {
	status    int
	retryable bool
	err       error
}

func (e *attemptError) Error() string {
	if e.status != 0 {
		return fmt.Sprintf("remote validator returned %d: %v", e.status, e.err)
	}
	return fmt.Sprintf("remote validator: %v", e.err)
}

func (e *attemptError) Unwrap() error { return e.err }

func isRetryable(err error) bool {
	var ae *attemptError
	return errors.As(err, &ae) && ae.retryable
}

// Client is the HTTP implementation of Validator.
type Client struct {
	baseURL    string
	http       *http.Client
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	breaker    *circuit.Breaker
	cache      Cache
	logger     *slog.Logger
	metrics    *metrics.Metrics
	tracer     trace.Tracer
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.http = c
		}
	}
}

// WithTimeout bounds each attempt, not the whole call.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithBackoff sets the base delay; attempt n waits base * 2^(n-1).
func WithBackoff(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.backoff = d
		}
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

func WithCache(cache Cache) Option {
	return func(c *Client) {
		c.cache = cache
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = t
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    baseURL,
		http:       &http.Client{},
		timeout:    defaultTimeout,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		breaker:    circuit.New("remote-validation"),
		logger:     slog.Default(),
		tracer:     otel.Tracer("amsf/internal/validation/remote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Digest is the cache key of an instance document.
func Digest(instance []byte) string {
	sum := sha256.Sum256(instance)
	return hex.EncodeToString(sum[:])
}

type validateRequest struct {
	XBRLContent string `json:"xbrl_content"`
}

type validateResponse struct {
	Valid    *bool          `json:"valid"`
	Errors   []models.Issue `json:"errors"`
	Warnings []models.Issue `json:"warnings"`
}

// Validate posts instance to the service. It degrades instead of failing.
func (c *Client) Validate(ctx context.Context, instance []byte) models.Result {
	start := time.Now()
	digest := Digest(instance)
	ctx, span := c.tracer.Start(ctx, "remote.validate", trace.WithAttributes(
		attribute.String("digest", digest),
		attribute.Int("size", len(instance)),
	))
	defer span.End()

	if cached := c.cached(ctx, digest); cached != nil {
		span.SetAttributes(attribute.Bool("cache_hit", true))
		c.observe(start, metrics.OutcomeCached)
		return *cached
	}

	if c.breaker.IsOpen() {
		c.logger.WarnContext(ctx, "remote validation skipped, circuit open")
		span.SetStatus(codes.Error, "circuit open")
		c.observe(start, metrics.OutcomeDegraded)
		return models.Unavailable("validation service unavailable: circuit open")
	}

	body, err := json.Marshal(validateRequest{XBRLContent: string(instance)})
	if err != nil {
		return c.degrade(ctx, span, start, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff << (attempt - 1)
			c.logger.InfoContext(ctx, "retrying remote validation",
				"attempt", attempt+1,
				"delay", delay,
				"error", lastErr,
			)
			if err := sleep(ctx, delay); err != nil {
				lastErr = err
				break
			}
		}
		if c.metrics != nil {
			c.metrics.RemoteAttempts.Inc()
		}

		res, err := c.post(ctx, body)
		if err == nil {
			c.breaker.RecordSuccess()
			c.store(ctx, digest, res)
			span.SetAttributes(attribute.Int("attempts", attempt+1), attribute.Bool("valid", res.Valid))
			outcome := metrics.OutcomeValid
			if !res.Valid {
				outcome = metrics.OutcomeInvalid
			}
			c.observe(start, outcome)
			return res
		}
		lastErr = err
		if !isRetryable(err) || ctx.Err() != nil {
			break
		}
	}

	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "remote validation circuit opened", "breaker", c.breaker.Name())
	}
	return c.degrade(ctx, span, start, lastErr)
}

func (c *Client) degrade(ctx context.Context, span trace.Span, start time.Time, err error) models.Result {
	c.logger.WarnContext(ctx, "remote validation degraded", "error", err)
	span.RecordError(err)
	span.SetStatus(codes.Error, "degraded")
	c.observe(start, metrics.OutcomeDegraded)
	return models.Unavailable(fmt.Sprintf("validation service unavailable: %v", err))
}

func (c *Client) post(ctx context.Context, body []byte) (models.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/validate", bytes.NewReader(body))
	if err != nil {
		return models.Result{}, &attemptError{err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		// Timeouts and refused connections are worth another attempt.
		return models.Result{}, &attemptError{retryable: true, err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return models.Result{}, &attemptError{retryable: true, err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return models.Result{}, &attemptError{
			status:    resp.StatusCode,
			retryable: transientStatus[resp.StatusCode],
			err:       errors.New(http.StatusText(resp.StatusCode)),
		}
	}

	var out validateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.Result{}, &attemptError{status: resp.StatusCode, err: fmt.Errorf("malformed response: %w", err)}
	}
	if out.Valid == nil {
		return models.Result{}, &attemptError{status: resp.StatusCode, err: errors.New("malformed response: missing valid")}
	}

	res := models.NewResult()
	res.Valid = *out.Valid
	if out.Errors != nil {
		res.Errors = out.Errors
	}
	if out.Warnings != nil {
		res.Warnings = out.Warnings
	}
	return res, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

// Health reports sentinel.ErrUnavailable unless the service answers "ok".
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health returned %d", sentinel.ErrUnavailable, resp.StatusCode)
	}
	var out healthResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&out); err != nil {
		return fmt.Errorf("%w: malformed health response", sentinel.ErrUnavailable)
	}
	if out.Status != "ok" {
		return fmt.Errorf("%w: status %q", sentinel.ErrUnavailable, out.Status)
	}
	return nil
}

func (c *Client) cached(ctx context.Context, digest string) *models.Result {
	if c.cache == nil {
		return nil
	}
	res, err := c.cache.Get(ctx, digest)
	if err != nil {
		c.logger.WarnContext(ctx, "validation cache read failed", "error", err)
		return nil
	}
	return res
}

func (c *Client) store(ctx context.Context, digest string, res models.Result) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Set(ctx, digest, res); err != nil {
		c.logger.WarnContext(ctx, "validation cache write failed", "error", err)
	}
}

func (c *Client) observe(start time.Time, outcome string) {
	if c.metrics != nil {
		c.metrics.ObserveRemote(start, outcome)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
