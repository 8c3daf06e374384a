// Package models holds the validation result shapes shared by the local
// checker, the remote client and the orchestrator.
package models

// Issue codes produced by the local checker and the remote degrade path.
const (
	CodeMissingRequired     = "missing_required"
	CodeUnknownElement      = "unknown_element"
	CodeInvalidType         = "invalid_type"
	CodeInvalidDimensionKey = "invalid_dimension_key"
	CodeInconsistentTotal   = "inconsistent_total"
	CodeMissingSignatory    = "missing_signatory"
	CodeServiceUnavailable  = "service_unavailable"
)

type Issue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Element string `json:"element,omitempty"`
}

// Result is the outcome of one validation layer.
type Result struct {
	Valid    bool    `json:"valid"`
	Errors   []Issue `json:"errors"`
	Warnings []Issue `json:"warnings"`
	// Degraded marks a synthetic result produced when the remote service
	// could not be reached or answered garbage.
	Degraded bool `json:"degraded,omitempty"`
}

// NewResult starts a valid result with empty, non-nil issue lists.
func NewResult() Result {
	return Result{Valid: true, Errors: []Issue{}, Warnings: []Issue{}}
}

func (r *Result) AddError(code, element, message string) {
	r.Errors = append(r.Errors, Issue{Code: code, Message: message, Element: element})
	r.Valid = false
}

func (r *Result) AddWarning(code, element, message string) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Message: message, Element: element})
}

// HasError reports whether an error with code was recorded, optionally
// restricted to element.
func (r Result) HasError(code, element string) bool {
	return hasIssue(r.Errors, code, element)
}

func (r Result) HasWarning(code, element string) bool {
	return hasIssue(r.Warnings, code, element)
}

func hasIssue(issues []Issue, code, element string) bool {
	for _, is := range issues {
		if is.Code == code && (element == "" || is.Element == element) {
			return true
		}
	}
	return false
}

// Unavailable is the result reported when the remote service cannot give
// an answer. It is never valid.
func Unavailable(reason string) Result {
	r := NewResult()
	r.AddError(CodeServiceUnavailable, "", reason)
	r.Degraded = true
	return r
}

// Combined merges the local and remote layers. Remote is nil when remote
// validation is disabled.
type Combined struct {
	Local  Result  `json:"local"`
	Remote *Result `json:"remote,omitempty"`
	Valid  bool    `json:"valid"`
}

func Combine(local Result, remote *Result) Combined {
	return Combined{
		Local:  local,
		Remote: remote,
		Valid:  local.Valid && (remote == nil || remote.Valid),
	}
}

// Degraded reports whether the remote layer ran but could not answer.
func (c Combined) Degraded() bool {
	return c.Remote != nil && c.Remote.Degraded
}
