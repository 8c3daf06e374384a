package xbrl

import "fmt"

// DataError reports a malformed value met in strict mode.
type DataError struct {
	Element string
	Value   string
	Reason  string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("element %s: %s: %q", e.Element, e.Reason, e.Value)
}

// RenderError wraps a failure while producing an output artifact.
type RenderError struct {
	// Format is "xbrl" or "markdown".
	Format string
	Err    error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render %s: %v", e.Format, e.Err)
}

func (e *RenderError) Unwrap() error {
	return e.Err
}
