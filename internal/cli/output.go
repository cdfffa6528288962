package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"sjsage522/eventworker/internal/event"
	"sjsage522/eventworker/services/worker"
)

// OutputFormat selects how results are printed
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// sourceSummary is the JSON shape of one source in a run summary
type sourceSummary struct {
	Source    string `json:"source"`
	Extracted int    `json:"extracted"`
	Attempted int    `json:"attempted"`
	Created   int    `json:"created"`
	Skipped   int    `json:"skipped"`
	Failed    int    `json:"failed"`
	Error     string `json:"error,omitempty"`
}

type runSummary struct {
	FinishedAt time.Time       `json:"finishedAt"`
	Sources    []sourceSummary `json:"sources"`
	Attempted  int             `json:"attempted"`
	Created    int             `json:"created"`
	Skipped    int             `json:"skipped"`
	Failed     int             `json:"failed"`
}

func summarize(result worker.RunResult) runSummary {
	total := result.Total()
	summary := runSummary{
		FinishedAt: time.Now().UTC(),
		Sources:    make([]sourceSummary, 0, len(result.Sources)),
		Attempted:  total.Attempted,
		Created:    total.Created,
		Skipped:    total.Skipped,
		Failed:     total.Failed,
	}
	for _, s := range result.Sources {
		ss := sourceSummary{
			Source:    s.Source,
			Extracted: s.Extracted,
			Attempted: s.Report.Attempted,
			Created:   s.Report.Created,
			Skipped:   s.Report.Skipped,
			Failed:    s.Report.Failed,
		}
		if s.Err != nil {
			ss.Error = s.Err.Error()
		}
		summary.Sources = append(summary.Sources, ss)
	}
	return summary
}

// WriteRunResult prints the summary of a run
func WriteRunResult(w io.Writer, result worker.RunResult, format OutputFormat) error {
	summary := summarize(result)
	if format == FormatJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}

	for _, s := range summary.Sources {
		if s.Error != "" {
			fmt.Fprintf(w, "%-16s FAILED: %s\n", s.Source, s.Error)
			continue
		}
		fmt.Fprintf(w, "%-16s extracted=%d created=%d skipped=%d failed=%d\n",
			s.Source, s.Extracted, s.Created, s.Skipped, s.Failed)
	}
	_, err := fmt.Fprintf(w, "total: attempted=%d created=%d skipped=%d failed=%d\n",
		summary.Attempted, summary.Created, summary.Skipped, summary.Failed)
	return err
}

// WriteEvents prints extracted records as a JSON array
func WriteEvents(w io.Writer, events []event.Event) error {
	if events == nil {
		events = []event.Event{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(events)
}
