package pipeline

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	out, err := p.Run(context.Background(), fixtureJob(t))
	require.NoError(t, err)

	s, err := Summarize(out)
	require.NoError(t, err)
	assert.Equal(t, 5, s.Frames)
	assert.Equal(t, 48, s.Width)
	assert.Equal(t, 2, s.Pairs)
	assert.False(t, s.Downscaled)
	assert.GreaterOrEqual(t, s.Timings.Total, s.Timings.Prepare)

	js, err := ToJSON(s)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(js), &decoded))
	assert.InDelta(t, 5, decoded["frames"], 0)
	assert.Contains(t, decoded, "timings_ms")
	assert.NotContains(t, decoded, "files")

	_, err = Summarize(nil)
	require.Error(t, err)
	_, err = ToJSON(nil)
	require.Error(t, err)
}

func TestLinesCSV(t *testing.T) {
	p := newPipeline(t, NewBuilder())
	job := fixtureJob(t)
	job.Frames = 1
	out, err := p.Run(context.Background(), job)
	require.NoError(t, err)

	csv, err := LinesCSV(out)
	require.NoError(t, err)
	rows := strings.Split(strings.TrimSpace(csv), "\n")
	require.Len(t, rows, 1+3*2)
	assert.Equal(t, "frame,line,x1,y1,x2,y2", rows[0])
	assert.Equal(t, "0,0,9.600,9.600,38.400,9.600", rows[1])
	assert.True(t, strings.HasPrefix(rows[6], "2,1,"))

	_, err = LinesCSV(nil)
	require.Error(t, err)
}
