package presentation

import (
	"encoding/json"
	"fmt"
	"io"
)

// Formatter handles output formatting
type Formatter struct {
	writer io.Writer
}

// NewFormatter creates a new formatter
func NewFormatter(writer io.Writer) *Formatter {
	return &Formatter{
		writer: writer,
	}
}

// FormatJSON writes v as indented JSON.
func (f *Formatter) FormatJSON(v any) error {
	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// FormatTestResult writes one line per test, followed by its failure and
// compiler messages.
func (f *Formatter) FormatTestResult(r TestResultDTO) error {
	status := "PASS"
	if !r.Pass {
		status = "FAIL"
	}
	if _, err := fmt.Fprintf(f.writer, "%s %s (%dms)\n", status, r.Test, r.DurationMs); err != nil {
		return err
	}
	if r.Failure != "" {
		if _, err := fmt.Fprintf(f.writer, "    %s\n", r.Failure); err != nil {
			return err
		}
	}
	for _, m := range r.Messages {
		if _, err := fmt.Fprintf(f.writer, "    %s\n", m); err != nil {
			return err
		}
	}
	return nil
}

// FormatTestSummary writes the totals line.
func (f *Formatter) FormatTestSummary(s TestSummaryDTO) error {
	_, err := fmt.Fprintf(f.writer, "%d passed, %d failed\n", s.Passed, s.Failed)
	return err
}
