package server

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/testutil"
	"github.com/stretchr/testify/require"
)

const testPairs = `{"pairs":[{"source":{"start":[2,2],"end":[14,2]},"destination":{"start":[2,4],"end":[14,4]}}]}`

// failingMorpher always returns err.
type failingMorpher struct{ err error }

func (f failingMorpher) Run(context.Context, pipeline.Job) (*pipeline.Output, error) {
	return nil, f.err
}

var errBoom = errors.New("boom")

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	pl, err := pipeline.NewBuilder().WithLogger(slog.New(slog.DiscardHandler)).Build()
	require.NoError(t, err)
	return newServer(pl, cfg)
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func redImage() image.Image  { return testutil.Solid(16, 16, color.NRGBA{R: 255, A: 255}) }
func blueImage() image.Image { return testutil.Solid(16, 16, color.NRGBA{B: 255, A: 255}) }

// createMultipartRequest builds a POST /morph request. Nil images and empty
// fields are left out.
func createMultipartRequest(t *testing.T, src, dst image.Image, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, img := range map[string]image.Image{"source": src, "destination": dst} {
		if img == nil {
			continue
		}
		part, err := writer.CreateFormFile(name, name+".png")
		require.NoError(t, err)
		_, err = part.Write(pngBytes(t, img))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/morph", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}
