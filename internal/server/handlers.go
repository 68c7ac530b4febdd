package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/morpho/internal/export"
	"github.com/MeKo-Tech/morpho/internal/morph"
	"github.com/MeKo-Tech/morpho/internal/pairs"
	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/progress"
	"github.com/MeKo-Tech/morpho/internal/utils"
	"github.com/MeKo-Tech/morpho/internal/version"
)

const defaultFrames = 8

// requestError is a client mistake that maps to a 4xx status.
type requestError struct {
	status int
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{status: http.StatusBadRequest, msg: fmt.Sprintf(format, args...)}
}

// morphRequest is a decoded morph request, independent of the transport.
type morphRequest struct {
	source      image.Image
	destination image.Image
	pairs       *pairs.Set
	frames      int
	parallel    bool
	format      string
}

// healthHandler returns server health status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:  "healthy",
		Version: version.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		slog.Error("Error encoding health response", "error", err)
	}
}

// morphHandler processes multipart morph requests.
func (s *Server) morphHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	limit := s.maxUploadMB * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(limit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeErrorResponse(w, "Request too large", http.StatusRequestEntityTooLarge)
		} else {
			s.writeErrorResponse(w, "Failed to parse form data", http.StatusBadRequest)
		}
		return
	}

	req, err := s.parseMultipart(r)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := s.requestContext(r.Context())
	defer cancel()

	out, err := s.run(ctx, "http", req, nil)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if req.format == string(export.FormatGIF) {
		w.Header().Set("Content-Type", "image/gif")
		if err := export.EncodeGIF(w, out.Frames, s.gifDelay); err != nil {
			slog.Error("Error encoding GIF response", "error", err)
		}
		return
	}

	result, err := buildResult(out)
	if err != nil {
		s.writeErrorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(MorphResponse{Success: true, Result: result}); err != nil {
		slog.Error("Error encoding morph response", "error", err)
	}
}

// parseMultipart reads source, destination and pairs plus the optional
// frames, parallel and format fields.
func (s *Server) parseMultipart(r *http.Request) (*morphRequest, error) {
	src, err := formImage(r, "source")
	if err != nil {
		return nil, err
	}
	dst, err := formImage(r, "destination")
	if err != nil {
		return nil, err
	}

	pairsData := []byte(r.FormValue("pairs"))
	if len(pairsData) == 0 {
		if f, _, ferr := r.FormFile("pairs"); ferr == nil {
			pairsData, err = io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return nil, badRequest("failed to read pairs: %v", err)
			}
		}
	}
	if len(bytes.TrimSpace(pairsData)) == 0 {
		return nil, badRequest("no pairs provided")
	}
	set, err := pairs.Parse(pairsData)
	if err != nil {
		return nil, badRequest("%v", err)
	}

	req := &morphRequest{source: src, destination: dst, pairs: set, parallel: true}

	if v := r.FormValue("frames"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, badRequest("invalid frames value %q", v)
		}
		req.frames = n
	} else {
		req.frames = s.frameDefault()
	}
	if v := r.FormValue("parallel"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, badRequest("invalid parallel value %q", v)
		}
		req.parallel = b
	}

	req.format = strings.ToLower(r.FormValue("format"))
	if req.format == "" {
		req.format = r.URL.Query().Get("format")
	}
	switch req.format {
	case "", "json":
		req.format = "json"
	case string(export.FormatGIF):
	default:
		return nil, badRequest("unsupported format %q", req.format)
	}
	return req, nil
}

func formImage(r *http.Request, field string) (image.Image, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, badRequest("no %s image provided", field)
	}
	defer func() { _ = file.Close() }()
	return decodeUpload(file, header, field)
}

func decodeUpload(file multipart.File, header *multipart.FileHeader, field string) (image.Image, error) {
	uploadSizeBytes.Observe(float64(header.Size))
	img, _, err := utils.DecodeImage(file)
	if err != nil {
		return nil, badRequest("invalid %s image: %v", field, err)
	}
	return img, nil
}

func (s *Server) frameDefault() int {
	if s.defaultFrames > 0 {
		return s.defaultFrames
	}
	return defaultFrames
}

func (s *Server) requestContext(parent context.Context) (context.Context, context.CancelFunc) {
	if s.timeoutSec > 0 {
		return context.WithTimeout(parent, time.Duration(s.timeoutSec)*time.Second)
	}
	return context.WithCancel(parent)
}

// run checks the frame guard, runs the pipeline and records metrics.
func (s *Server) run(ctx context.Context, transport string, req *morphRequest, cb progress.Callback) (*pipeline.Output, error) {
	if req.frames < 0 {
		return nil, badRequest("frames must not be negative")
	}
	if s.maxFrames > 0 && req.frames > s.maxFrames {
		return nil, badRequest("frames %d exceeds the limit of %d", req.frames, s.maxFrames)
	}
	if s.pipeline == nil {
		return nil, &requestError{status: http.StatusServiceUnavailable, msg: "morph pipeline not initialized"}
	}

	start := time.Now()
	out, err := s.pipeline.Run(ctx, pipeline.Job{
		Source:      req.source,
		Destination: req.destination,
		Pairs:       req.pairs,
		Frames:      req.frames,
		Parallel:    req.parallel,
		Progress:    cb,
	})
	if err != nil {
		morphRequestsTotal.WithLabelValues(transport, "error").Inc()
		return nil, err
	}

	morphRequestsTotal.WithLabelValues(transport, "success").Inc()
	morphDuration.WithLabelValues(transport).Observe(time.Since(start).Seconds())
	morphFrames.Observe(float64(len(out.Frames)))
	morphPairs.Observe(float64(req.pairs.Len()))
	return out, nil
}

// buildResult encodes every frame as base64 PNG.
func buildResult(out *pipeline.Output) (*MorphResult, error) {
	frames, err := encodeFrames(out.Frames)
	if err != nil {
		return nil, err
	}
	summary, err := pipeline.Summarize(out)
	if err != nil {
		return nil, err
	}
	return &MorphResult{Width: out.Width, Height: out.Height, Frames: frames, Summary: summary}, nil
}

func encodeFrames(frames []image.Image) ([]string, error) {
	encoded := make([]string, len(frames))
	var buf bytes.Buffer
	for i, f := range frames {
		buf.Reset()
		if err := png.Encode(&buf, f); err != nil {
			return nil, fmt.Errorf("encode frame %d: %w", i, err)
		}
		encoded[i] = base64.StdEncoding.EncodeToString(buf.Bytes())
	}
	return encoded, nil
}

// statusFor maps an error to an HTTP status and client message.
func statusFor(err error) (int, string) {
	var reqErr *requestError
	var degenerate *morph.DegenerateLineError
	switch {
	case errors.As(err, &reqErr):
		return reqErr.status, reqErr.msg
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "morph timed out"
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "morph cancelled"
	case errors.As(err, &degenerate),
		errors.Is(err, morph.ErrNoPairs),
		errors.Is(err, morph.ErrMissingImage),
		errors.Is(err, morph.ErrInvalidFrameCount),
		errors.Is(err, morph.ErrDimensionMismatch):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, fmt.Sprintf("morph failed: %v", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, msg := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("morph request failed", "error", err)
	}
	s.writeErrorResponse(w, msg, status)
}

// writeErrorResponse writes a JSON error response.
func (s *Server) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(MorphResponse{Success: false, Error: message}); err != nil {
		slog.Error("Error writing error response", "error", err)
	}
}
