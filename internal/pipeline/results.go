package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

// Summary is the machine readable description of a finished job.
type Summary struct {
	Frames     int      `json:"frames"`
	Width      int      `json:"width"`
	Height     int      `json:"height"`
	Pairs      int      `json:"pairs"`
	Downscaled bool     `json:"downscaled"`
	Timings    Timings  `json:"timings_ms"`
	Files      []string `json:"files,omitempty"`
}

// Timings are stage durations in milliseconds.
type Timings struct {
	Prepare     float64 `json:"prepare"`
	Interpolate float64 `json:"interpolate"`
	Warp        float64 `json:"warp"`
	Composite   float64 `json:"composite"`
	Render      float64 `json:"render"`
	Total       float64 `json:"total"`
}

// Summarize builds a Summary from an output.
func Summarize(out *Output) (*Summary, error) {
	if out == nil || out.Result == nil {
		return nil, errors.New("nil output")
	}
	s := &Summary{
		Frames:     len(out.Frames),
		Width:      out.Width,
		Height:     out.Height,
		Downscaled: out.Scaled,
		Timings: Timings{
			Interpolate: ms(out.Result.Timings.Interpolate),
			Warp:        ms(out.Result.Timings.Warp),
			Composite:   ms(out.Result.Timings.Composite),
		},
	}
	if out.Pairs != nil {
		s.Pairs = len(out.Pairs.Pairs)
	}
	if out.Stages != nil {
		s.Timings.Prepare = ms(out.Stages.Get("prepare"))
		s.Timings.Render = ms(out.Stages.Get("render"))
		s.Timings.Total = ms(out.Stages.Total())
	}
	return s, nil
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

// ToJSON serializes a summary to pretty JSON.
func ToJSON(s *Summary) (string, error) {
	if s == nil {
		return "", errors.New("nil summary")
	}
	b, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LinesCSV exports the interpolated feature lines of every frame with a
// header row: frame, line, x1, y1, x2, y2.
func LinesCSV(out *Output) (string, error) {
	if out == nil || out.Result == nil {
		return "", errors.New("nil output")
	}
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"frame", "line", "x1", "y1", "x2", "y2"})
	f := func(v float64) string { return strconv.FormatFloat(v, 'f', 3, 64) }
	for i := range out.Result.Lines.Len() {
		for j, l := range out.Result.Lines.Frame(i) {
			_ = w.Write([]string{
				strconv.Itoa(i), strconv.Itoa(j),
				f(l.Start.X), f(l.Start.Y), f(l.End.X), f(l.End.Y),
			})
		}
	}
	w.Flush()
	return buf.String(), w.Error()
}
