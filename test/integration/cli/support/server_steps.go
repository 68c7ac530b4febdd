package support

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/morpho/internal/pipeline"
	"github.com/MeKo-Tech/morpho/internal/server"
	"github.com/cucumber/godog"
	"github.com/gorilla/websocket"
)

// HTTPTestServerWrapper wraps httptest.Server for integration tests.
type HTTPTestServerWrapper struct {
	Server     *httptest.Server
	TestServer *server.Server
	Messages   []map[string]any
}

// StartTestHTTPServer starts an in-process morph server.
func (testCtx *TestContext) StartTestHTTPServer(maxFrames int) error {
	if err := testCtx.StopServer(); err != nil {
		return err
	}
	s, err := server.NewServer(server.Config{
		CORSOrigin:     "*",
		MaxUploadMB:    5,
		TimeoutSec:     30,
		MaxFrames:      maxFrames,
		DefaultFrames:  2,
		PipelineConfig: pipeline.DefaultConfig(),
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	testCtx.HTTPTestServer = &HTTPTestServerWrapper{
		Server:     httptest.NewServer(s.Handler()),
		TestServer: s,
	}
	return nil
}

// StopServer stops the running test server.
func (testCtx *TestContext) StopServer() error {
	if testCtx.HTTPTestServer != nil {
		testCtx.HTTPTestServer.Server.Close()
		testCtx.HTTPTestServer = nil
	}
	return nil
}

func (testCtx *TestContext) serverURL() (string, error) {
	if testCtx.HTTPTestServer == nil {
		return "", errors.New("server is not running")
	}
	return testCtx.HTTPTestServer.Server.URL, nil
}

func (testCtx *TestContext) theMorphServerIsRunning() error {
	return testCtx.StartTestHTTPServer(60)
}

func (testCtx *TestContext) theMorphServerIsRunningWithAFrameLimit(limit int) error {
	return testCtx.StartTestHTTPServer(limit)
}

func (testCtx *TestContext) recordResponse(resp *http.Response) error {
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	testCtx.LastHTTPStatusCode = resp.StatusCode
	testCtx.LastHTTPResponse = string(body)
	testCtx.LastHTTPHeaders = make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		testCtx.LastHTTPHeaders[k] = resp.Header.Get(k)
	}
	return nil
}

func (testCtx *TestContext) iSendAGETRequestTo(path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	resp, err := http.Get(base + path) //nolint:noctx // test request against a local server
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) uploadFixture(path string, fields map[string]string) error {
	if testCtx.Fixture == nil {
		return errors.New("no morph fixture")
	}
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for field, file := range map[string]string{"source": testCtx.Fixture.Source, "destination": testCtx.Fixture.Destination} {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		part, err := w.CreateFormFile(field, field+".png")
		if err != nil {
			return err
		}
		if _, err := part.Write(data); err != nil {
			return err
		}
	}
	pairsData, err := os.ReadFile(testCtx.Fixture.Pairs)
	if err != nil {
		return err
	}
	if err := w.WriteField("pairs", string(pairsData)); err != nil {
		return err
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return err
		}
	}
	if err := w.Close(); err != nil {
		return err
	}

	resp, err := http.Post(base+path, w.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return fmt.Errorf("upload failed: %w", err)
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) iUploadTheFixtureWithFrames(path string, frames int) error {
	return testCtx.uploadFixture(path, map[string]string{"frames": strconv.Itoa(frames)})
}

func (testCtx *TestContext) iUploadTheFixtureAsAGIF(path string) error {
	return testCtx.uploadFixture(path, map[string]string{"frames": "1", "format": "gif"})
}

func (testCtx *TestContext) iUploadOnlyTheSourceImageTo(path string) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("source", "source.png")
	if err != nil {
		return err
	}
	data, err := os.ReadFile(testCtx.Fixture.Source)
	if err != nil {
		return err
	}
	if _, err := part.Write(data); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	resp, err := http.Post(base+path, w.FormDataContentType(), &body) //nolint:noctx // test request
	if err != nil {
		return err
	}
	return testCtx.recordResponse(resp)
}

func (testCtx *TestContext) theResponseStatusShouldBe(code int) error {
	if testCtx.LastHTTPStatusCode != code {
		return fmt.Errorf("expected status %d, got %d\nBody: %s", code, testCtx.LastHTTPStatusCode, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseShouldContain(text string) error {
	if !strings.Contains(testCtx.LastHTTPResponse, text) {
		return fmt.Errorf("response does not contain '%s'\nBody: %s", text, testCtx.LastHTTPResponse)
	}
	return nil
}

func (testCtx *TestContext) theResponseHeaderShouldBe(name, value string) error {
	if got := testCtx.LastHTTPHeaders[http.CanonicalHeaderKey(name)]; got != value {
		return fmt.Errorf("header %s is %q, expected %q", name, got, value)
	}
	return nil
}

func (testCtx *TestContext) responseJSON(field string) (any, error) {
	var data any
	if err := json.Unmarshal([]byte(testCtx.LastHTTPResponse), &data); err != nil {
		return nil, fmt.Errorf("response is not JSON: %w", err)
	}
	return lookupJSON(data, field)
}

func (testCtx *TestContext) theResponseJSONFieldShouldEqual(field, expected string) error {
	got, err := testCtx.responseJSON(field)
	if err != nil {
		return err
	}
	if actual := fmt.Sprint(got); actual != expected {
		return fmt.Errorf("field %s is %s, expected %s", field, actual, expected)
	}
	return nil
}

func (testCtx *TestContext) theResponseJSONFieldShouldHaveEntries(field string, count int) error {
	got, err := testCtx.responseJSON(field)
	if err != nil {
		return err
	}
	list, ok := got.([]any)
	if !ok {
		return fmt.Errorf("field %s is not a list", field)
	}
	if len(list) != count {
		return fmt.Errorf("field %s has %d entries, expected %d", field, len(list), count)
	}
	return nil
}

// iMorphTheFixtureOverTheWebSocket sends one request and collects messages
// until the server reports completion or an error.
func (testCtx *TestContext) iMorphTheFixtureOverTheWebSocket(frames int) error {
	base, err := testCtx.serverURL()
	if err != nil {
		return err
	}
	if testCtx.Fixture == nil {
		return errors.New("no morph fixture")
	}

	encode := func(path string) (string, error) {
		data, err := os.ReadFile(path)
		return base64.StdEncoding.EncodeToString(data), err
	}
	src, err := encode(testCtx.Fixture.Source)
	if err != nil {
		return err
	}
	dst, err := encode(testCtx.Fixture.Destination)
	if err != nil {
		return err
	}
	pairsData, err := os.ReadFile(testCtx.Fixture.Pairs)
	if err != nil {
		return err
	}

	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(base, "http")+"/ws/morph", nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()

	if err := conn.WriteJSON(map[string]any{
		"source":      src,
		"destination": dst,
		"pairs":       string(pairsData),
		"frames":      frames,
	}); err != nil {
		return err
	}

	testCtx.HTTPTestServer.Messages = nil
	_ = conn.SetReadDeadline(time.Now().Add(30 * time.Second))
	for {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read failed: %w", err)
		}
		testCtx.HTTPTestServer.Messages = append(testCtx.HTTPTestServer.Messages, msg)
		if msg["type"] == "error" || msg["status"] == "completed" {
			return nil
		}
	}
}

func (testCtx *TestContext) theWebSocketShouldReportProgressAndComplete() error {
	msgs := testCtx.HTTPTestServer.Messages
	if len(msgs) < 2 {
		return fmt.Errorf("expected several messages, got %d", len(msgs))
	}
	for _, m := range msgs[:len(msgs)-1] {
		if m["type"] != "progress" || m["status"] != "processing" {
			return fmt.Errorf("message %v is not a processing progress update", m)
		}
	}
	last := msgs[len(msgs)-1]
	if last["type"] != "complete" || last["status"] != "completed" {
		return fmt.Errorf("last message is %v, expected a completed result", last)
	}
	return nil
}

func (testCtx *TestContext) theWebSocketResultShouldHaveFrames(count int) error {
	msgs := testCtx.HTTPTestServer.Messages
	if len(msgs) == 0 {
		return errors.New("no messages received")
	}
	frames, err := lookupJSON(msgs[len(msgs)-1], "result.frames")
	if err != nil {
		return err
	}
	if list, ok := frames.([]any); !ok || len(list) != count {
		return fmt.Errorf("result has %v frames, expected %d", frames, count)
	}
	return nil
}

// RegisterServerSteps registers HTTP and WebSocket steps.
func (testCtx *TestContext) RegisterServerSteps(sc *godog.ScenarioContext) {
	sc.Step(`^the morph server is running$`, testCtx.theMorphServerIsRunning)
	sc.Step(`^the morph server is running with a limit of (\d+) frames$`, testCtx.theMorphServerIsRunningWithAFrameLimit)

	sc.Step(`^I send a GET request to "([^"]*)"$`, testCtx.iSendAGETRequestTo)
	sc.Step(`^I upload the fixture to "([^"]*)" with (\d+) frames$`, testCtx.iUploadTheFixtureWithFrames)
	sc.Step(`^I upload the fixture to "([^"]*)" as a GIF$`, testCtx.iUploadTheFixtureAsAGIF)
	sc.Step(`^I upload only the source image to "([^"]*)"$`, testCtx.iUploadOnlyTheSourceImageTo)

	sc.Step(`^the response status should be (\d+)$`, testCtx.theResponseStatusShouldBe)
	sc.Step(`^the response should contain "([^"]*)"$`, testCtx.theResponseShouldContain)
	sc.Step(`^the response header "([^"]*)" should be "([^"]*)"$`, testCtx.theResponseHeaderShouldBe)
	sc.Step(`^the response JSON field "([^"]*)" should equal "([^"]*)"$`, testCtx.theResponseJSONFieldShouldEqual)
	sc.Step(`^the response JSON field "([^"]*)" should have (\d+) entries$`, testCtx.theResponseJSONFieldShouldHaveEntries)

	sc.Step(`^I morph the fixture over the WebSocket with (\d+) frames$`, testCtx.iMorphTheFixtureOverTheWebSocket)
	sc.Step(`^the WebSocket should report progress and complete$`, testCtx.theWebSocketShouldReportProgressAndComplete)
	sc.Step(`^the WebSocket result should have (\d+) frames$`, testCtx.theWebSocketResultShouldHaveFrames)
}
