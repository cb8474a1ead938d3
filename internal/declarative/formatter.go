package declarative

import (
	"encoding/json"
	"fmt"
	"io"
)

// ANSI color codes.
const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorRed   = "\033[31m"
	colorCyan  = "\033[36m"
	colorDim   = "\033[2m"
)

// FormatText writes a human-readable validation report for the file at path.
// If noColor is true, ANSI codes are suppressed.
func FormatText(w io.Writer, path string, errs []ValidationError, noColor bool) {
	c := func(code string) string {
		if noColor {
			return ""
		}
		return code
	}

	if path != "" {
		fmt.Fprintf(w, "%s# %s%s\n", c(colorCyan), path, c(colorReset))
	}
	if len(errs) == 0 {
		fmt.Fprintf(w, "  %s✓%s valid\n", c(colorGreen), c(colorReset))
		return
	}
	for _, e := range errs {
		fmt.Fprintf(w, "  %s✗%s %s\n", c(colorRed), c(colorReset), e.Error())
	}
	fmt.Fprintf(w, "%s%d problem(s).%s\n", c(colorDim), len(errs), c(colorReset))
}

// FormatJSON writes the validation report as JSON to w.
func FormatJSON(w io.Writer, path string, errs []ValidationError) error {
	type jsonError struct {
		Path    string `json:"path,omitempty"`
		Message string `json:"message"`
	}
	type jsonReport struct {
		File   string      `json:"file,omitempty"`
		Valid  bool        `json:"valid"`
		Errors []jsonError `json:"errors"`
	}

	report := jsonReport{File: path, Valid: len(errs) == 0, Errors: make([]jsonError, 0, len(errs))}
	for _, e := range errs {
		report.Errors = append(report.Errors, jsonError{Path: e.Path, Message: e.Message})
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
