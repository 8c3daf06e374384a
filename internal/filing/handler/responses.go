package handler

import (
	"amsf/internal/comparison"
)

type ComparisonResponse struct {
	*comparison.Comparison
	FirstSubmission    bool     `json:"first_submission"`
	SignificantChanges []string `json:"significant_changes"`
}

func FromComparison(c *comparison.Comparison) ComparisonResponse {
	significant := c.SignificantChanges()
	if significant == nil {
		significant = []string{}
	}
	if c.Changes == nil {
		c.Changes = []comparison.Change{}
	}
	return ComparisonResponse{
		Comparison:         c,
		FirstSubmission:    c.FirstSubmission(),
		SignificantChanges: significant,
	}
}
