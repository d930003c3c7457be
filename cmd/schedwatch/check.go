package main

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"schedwatch/internal/parser"
	"schedwatch/internal/recurrence"
)

// writeCheck parses text as of now and writes either the diagnostics or
// the timetable followed by its occurrences over the next days. A text
// that does not parse is reported as an error after the diagnostics.
func writeCheck(w io.Writer, text string, now time.Time, days int) error {
	result := parser.Parse(text, now)
	if !result.OK() {
		fmt.Fprintln(w, "errors:")
		for _, msg := range result.Errors {
			fmt.Fprintf(w, "  - %s\n", msg)
		}
		return fmt.Errorf("schedule text has %d error(s)", len(result.Errors))
	}

	fmt.Fprintln(w, "timetable:")
	enc := yaml.NewEncoder(&indented{w: w})
	enc.SetIndent(2)
	if err := enc.Encode(result.Timetable); err != nil {
		return fmt.Errorf("failed to encode timetable: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to encode timetable: %w", err)
	}

	occurrences := recurrence.Generate(result.Timetable, now, days)
	fmt.Fprintf(w, "occurrences: # %d, from %s\n", len(occurrences), now.Format("2006-01-02 15:04"))
	// Generate lists the latest first
	for i := len(occurrences) - 1; i >= 0; i-- {
		fmt.Fprintf(w, "  - %s\n", occurrences[i])
	}
	return nil
}

// indented prefixes every line written through it with two spaces
type indented struct {
	w       io.Writer
	midLine bool
}

func (in *indented) Write(p []byte) (int, error) {
	out := make([]byte, 0, len(p)+16)
	for _, b := range p {
		if !in.midLine && b != '\n' {
			out = append(out, ' ', ' ')
		}
		out = append(out, b)
		in.midLine = b != '\n'
	}
	if _, err := in.w.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
