// Package comparison computes year-over-year changes between a submission
// and the same organization's filing for the previous year.
package comparison

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"github.com/shopspring/decimal"

	"amsf/internal/submission/models"
	"amsf/internal/taxonomy"
	id "amsf/pkg/domain"
	"amsf/pkg/platform/sentinel"
)

// SignificantThreshold is the absolute change, in percent, above which a
// variation must be explained in the filing.
const SignificantThreshold = 25.0

var hundred = decimal.NewFromInt(100)

// Source loads submissions and their merged values.
type Source interface {
	FindByOrgAndYear(ctx context.Context, orgID id.OrganizationID, year int) (*models.Submission, error)
	MergedAnswers(ctx context.Context, submissionID id.SubmissionID) (models.Merged, error)
}

// Change is the comparison of one element. Current or Previous is nil when
// the element has no value that year.
type Change struct {
	Element       string        `json:"element"`
	Label         string        `json:"label"`
	Current       *models.Value `json:"current"`
	Previous      *models.Value `json:"previous"`
	ChangePercent *float64      `json:"change_percent"`
}

// Significant reports whether the change exceeds SignificantThreshold.
func (c Change) Significant() bool {
	return c.ChangePercent != nil && Significant(*c.ChangePercent)
}

// Comparison holds one Change per element, in taxonomy order.
type Comparison struct {
	SubmissionID         id.SubmissionID  `json:"submission_id"`
	Year                 int              `json:"year"`
	PreviousSubmissionID *id.SubmissionID `json:"previous_submission_id,omitempty"`
	Changes              []Change         `json:"changes"`
}

// FirstSubmission is true when the organization filed nothing the year before.
func (c *Comparison) FirstSubmission() bool {
	return c.PreviousSubmissionID == nil
}

// SignificantChanges returns the sorted codes whose change is significant.
func (c *Comparison) SignificantChanges() []string {
	var out []string
	for _, ch := range c.Changes {
		if ch.Significant() {
			out = append(out, ch.Element)
		}
	}
	slices.Sort(out)
	return out
}

func (c *Comparison) Change(code string) (Change, bool) {
	for _, ch := range c.Changes {
		if ch.Element == code {
			return ch, true
		}
	}
	return Change{}, false
}

// Significant reports |pct| > 25. Exactly 25 is not significant.
func Significant(pct float64) bool {
	return math.Abs(pct) > SignificantThreshold
}

// ChangePercent returns (cur-prev)/prev*100. It is nil when previous is zero,
// either side is missing or not numeric. Dimensional values compare totals.
func ChangePercent(cur, prev *models.Value) *float64 {
	if cur == nil || prev == nil {
		return nil
	}
	c, ok := cur.Total()
	if !ok {
		return nil
	}
	p, ok := prev.Total()
	if !ok || p.IsZero() {
		return nil
	}
	pct := c.Sub(p).Div(p).Mul(hundred).InexactFloat64()
	return &pct
}

type Comparator struct {
	source Source
	tax    *taxonomy.Taxonomy
	logger *slog.Logger
}

type Option func(*Comparator)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Comparator) {
		c.logger = logger
	}
}

func New(source Source, tax *taxonomy.Taxonomy, opts ...Option) *Comparator {
	c := &Comparator{source: source, tax: tax, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Compare compares sub with the organization's submission for sub.Year-1.
func (c *Comparator) Compare(ctx context.Context, sub *models.Submission) (*Comparison, error) {
	current, err := c.source.MergedAnswers(ctx, sub.ID)
	if err != nil {
		return nil, fmt.Errorf("load current values: %w", err)
	}

	out := &Comparison{SubmissionID: sub.ID, Year: sub.Year}
	var previous models.Merged
	prevSub, err := c.source.FindByOrgAndYear(ctx, sub.OrganizationID, sub.Year-1)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		c.logger.InfoContext(ctx, "no previous submission to compare",
			"submission_id", sub.ID.String(),
			"previous_year", sub.Year-1,
		)
	case err != nil:
		return nil, fmt.Errorf("load previous submission: %w", err)
	default:
		previous, err = c.source.MergedAnswers(ctx, prevSub.ID)
		if err != nil {
			return nil, fmt.Errorf("load previous values: %w", err)
		}
		prevID := prevSub.ID
		out.PreviousSubmissionID = &prevID
	}

	for _, el := range c.tax.Elements() {
		cur := valueOf(current, el.Code)
		prev := valueOf(previous, el.Code)
		if cur == nil && prev == nil {
			continue
		}
		out.Changes = append(out.Changes, Change{
			Element:       el.Code,
			Label:         el.Label,
			Current:       cur,
			Previous:      prev,
			ChangePercent: ChangePercent(cur, prev),
		})
	}
	return out, nil
}

func valueOf(values models.Merged, code string) *models.Value {
	v, ok := values.Value(code)
	if !ok || v.IsEmpty() {
		return nil
	}
	return &v
}
