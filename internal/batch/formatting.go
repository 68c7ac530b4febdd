package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/morpho/internal/pipeline"
)

// FormatResults formats the batch results as text, json or csv.
func (r *Result) FormatResults(format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(r.Results)
	case "csv":
		return formatCSV(r.Results)
	case "", "text":
		return formatText(r.Results), nil
	default:
		return "", fmt.Errorf("unsupported result format %q", format)
	}
}

// SaveResults writes the formatted results to a file, or to stdout when
// outputFile is empty.
func (r *Result) SaveResults(format, outputFile string, quiet bool) error {
	output, err := r.FormatResults(format)
	if err != nil {
		return fmt.Errorf("failed to format results: %w", err)
	}

	if outputFile == "" {
		_, _ = fmt.Fprint(os.Stdout, output)
		return nil
	}
	if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	if !quiet {
		_, _ = fmt.Fprintf(os.Stdout, "Results written to %s\n", outputFile)
	}
	return nil
}

type jobReport struct {
	Name       string            `json:"name"`
	Output     string            `json:"output"`
	OK         bool              `json:"ok"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
	Summary    *pipeline.Summary `json:"summary,omitempty"`
}

func formatJSON(results []*JobResult) (string, error) {
	reports := make([]jobReport, len(results))
	for i, jr := range results {
		reports[i] = jobReport{
			Name:       jr.Job.Name,
			Output:     jr.Job.Output,
			OK:         jr.OK(),
			DurationMS: jr.Duration.Milliseconds(),
			Summary:    jr.Summary,
		}
		if jr.Err != nil {
			reports[i].Error = jr.Err.Error()
		}
	}
	b, err := json.MarshalIndent(struct {
		Jobs []jobReport `json:"jobs"`
	}{reports}, "", "  ")
	return string(b), err
}

func formatCSV(results []*JobResult) (string, error) {
	var out strings.Builder
	w := csv.NewWriter(&out)
	_ = w.Write([]string{"name", "status", "frames", "width", "height", "files", "duration_ms", "error"})
	for _, jr := range results {
		row := []string{jr.Job.Name, "ok", "0", "0", "0", "0", strconv.FormatInt(jr.Duration.Milliseconds(), 10), ""}
		if jr.Err != nil {
			row[1] = "failed"
			row[7] = jr.Err.Error()
		}
		if s := jr.Summary; s != nil {
			row[2] = strconv.Itoa(s.Frames)
			row[3] = strconv.Itoa(s.Width)
			row[4] = strconv.Itoa(s.Height)
			row[5] = strconv.Itoa(len(jr.Files))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	return out.String(), w.Error()
}

func formatText(results []*JobResult) string {
	var out strings.Builder
	for _, jr := range results {
		if jr.Err != nil {
			fmt.Fprintf(&out, "✗ %s: %v\n", jr.Job.Name, jr.Err)
			continue
		}
		frames := 0
		if jr.Summary != nil {
			frames = jr.Summary.Frames
		}
		fmt.Fprintf(&out, "✓ %s: %d frames -> %s (%v)\n",
			jr.Job.Name, frames, jr.Job.Output, jr.Duration.Round(time.Millisecond))
	}
	return out.String()
}

// PrintStats writes processing statistics to w.
func (r *Result) PrintStats(w io.Writer) {
	total := len(r.Results)
	failed := r.Failed()
	frames := 0
	for _, jr := range r.Results {
		if jr.Summary != nil {
			frames += jr.Summary.Frames
		}
	}
	_, _ = fmt.Fprintf(w, "\nProcessing Statistics:\n")
	_, _ = fmt.Fprintf(w, "  Total jobs: %d\n", total)
	_, _ = fmt.Fprintf(w, "  Succeeded: %d\n", total-failed)
	_, _ = fmt.Fprintf(w, "  Failed: %d\n", failed)
	_, _ = fmt.Fprintf(w, "  Frames written: %d\n", frames)
	_, _ = fmt.Fprintf(w, "  Workers: %d\n", r.WorkerCount)
	_, _ = fmt.Fprintf(w, "  Duration: %v\n", r.Duration.Round(time.Millisecond))
	if total > 0 {
		_, _ = fmt.Fprintf(w, "  Avg per job: %v\n", (r.Duration / time.Duration(total)).Round(time.Millisecond))
		_, _ = fmt.Fprintf(w, "  Throughput: %.1f jobs/sec\n", float64(total)/max(r.Duration.Seconds(), 1e-9))
	}
}
