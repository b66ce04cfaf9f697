package web

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/edocrave99/LightSignalDetector/internal/config"
	"github.com/edocrave99/LightSignalDetector/internal/metrics"
	"github.com/edocrave99/LightSignalDetector/internal/publisher"
	"github.com/edocrave99/LightSignalDetector/internal/signal"
)

type fakeState struct {
	res signal.Result
}

func (f *fakeState) LastResult() signal.Result { return f.res }

type env struct {
	store      *config.Store
	reload     *config.ReloadSignal
	pub        *publisher.Publisher
	m          *metrics.Metrics
	state      *fakeState
	srv        *Server
	configPath string
}

func newEnv(t *testing.T) *env {
	return newEnvWith(t, nil)
}

func newEnvWith(t *testing.T, tweak func(*config.Settings)) *env {
	t.Helper()

	settings := config.DefaultSettings()
	settings.ConfigPath = filepath.Join(t.TempDir(), "config.json")
	settings.StreamInterval = time.Millisecond
	settings.RetryInterval = time.Millisecond
	if tweak != nil {
		tweak(&settings)
	}

	e := &env{
		store:      config.NewStore(config.Default()),
		reload:     &config.ReloadSignal{},
		pub:        publisher.New(),
		m:          metrics.New(),
		state:      &fakeState{res: signal.Result{State: signal.StateUnknown, Brightest: -1}},
		configPath: settings.ConfigPath,
	}
	e.srv = NewServer(Options{
		Settings: settings,
		Store:    e.store,
		Reload:   e.reload,
		Pub:      e.pub,
		Metrics:  e.m,
		State:    e.state,
		Hub:      NewHub(),
	})
	return e
}

func (e *env) do(t *testing.T, method, path string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return payload
}

func TestSaveConfigEmptyBody(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/save_config", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if got := decodeBody(t, rec)["message"]; got != "Empty body" {
		t.Fatalf("message = %v", got)
	}
}

func TestSaveConfigMalformedJSON(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodPost, "/api/save_config", []byte(`{broken`))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if e.reload.Consume() {
		t.Fatal("malformed document signalled a reload")
	}
}

func TestSaveConfigInvalidDocumentMutatesNothing(t *testing.T) {
	e := newEnv(t)
	before := e.store.Snapshot()

	rec := e.do(t, http.MethodPost, "/api/save_config", []byte(`{"lamp_radius": 0}`))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if got := e.store.Snapshot(); got != before {
		t.Fatalf("store changed on rejected document: %+v", got)
	}
	if e.reload.Consume() {
		t.Fatal("rejected document signalled a reload")
	}
	if _, err := os.Stat(e.configPath); !os.IsNotExist(err) {
		t.Fatal("rejected document was persisted")
	}
	if e.m.ConfigRejected.Load() != 1 {
		t.Fatalf("rejected count = %d, want 1", e.m.ConfigRejected.Load())
	}
}

func TestSaveConfigSuccess(t *testing.T) {
	e := newEnv(t)
	body := []byte(`{"lamp_radius": 12, "min_brightness_threshold": 90}`)

	rec := e.do(t, http.MethodPost, "/api/save_config", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["status"]; got != "success" {
		t.Fatalf("status field = %v", got)
	}

	snap := e.store.Snapshot()
	if snap.LampRadius != 12 || snap.MinBrightness != 90 {
		t.Fatalf("snapshot = %+v, want merged values applied", snap)
	}
	// Omitted fields keep their previous values.
	if snap.MasterX != config.Default().MasterX {
		t.Fatalf("MasterX changed: %d", snap.MasterX)
	}

	if !e.reload.Consume() {
		t.Fatal("accepted document did not signal a reload")
	}

	persisted, err := os.ReadFile(e.configPath)
	if err != nil {
		t.Fatalf("read persisted config: %v", err)
	}
	if !bytes.Equal(persisted, body) {
		t.Fatalf("persisted %q, want request body verbatim", persisted)
	}
}

func TestSaveConfigRequiresPost(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/save_config", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}

func TestPreflightAnswersWithoutSideEffects(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodOptions, "/api/save_config", nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Fatalf("preflight body = %q, want empty", rec.Body.String())
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("Allow-Origin = %q", got)
	}
	if e.reload.Consume() {
		t.Fatal("preflight signalled a reload")
	}
}

func TestConfigEndpointServesCurrentDocument(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/config", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	if got := payload["master_roi_x"]; got != float64(config.Default().MasterX) {
		t.Fatalf("master_roi_x = %v, want %d", got, config.Default().MasterX)
	}
	if got := payload["lamp_radius"]; got != float64(config.Default().LampRadius) {
		t.Fatalf("lamp_radius = %v", got)
	}
}

func TestStateEndpoint(t *testing.T) {
	e := newEnv(t)
	e.state.res = signal.Result{
		State:       signal.StateRed,
		Luma:        [3]float64{120, 30, 25},
		Brightest:   0,
		RegionValid: true,
	}

	rec := e.do(t, http.MethodGet, "/api/state", nil)
	payload := decodeBody(t, rec)
	if payload["state"] != "RED" {
		t.Fatalf("state = %v, want RED", payload["state"])
	}
	if payload["region_valid"] != true {
		t.Fatalf("region_valid = %v", payload["region_valid"])
	}
	if _, ok := payload["config"]; !ok {
		t.Fatal("state payload misses config document")
	}
}

func TestHealthReflectsPublisher(t *testing.T) {
	e := newEnv(t)

	rec := e.do(t, http.MethodGet, "/health", nil)
	if got := decodeBody(t, rec)["frame_published"]; got != false {
		t.Fatalf("frame_published = %v before any frame", got)
	}

	e.pub.Publish([]byte("jpegdata"))
	rec = e.do(t, http.MethodGet, "/health", nil)
	if got := decodeBody(t, rec)["frame_published"]; got != true {
		t.Fatalf("frame_published = %v after publish", got)
	}
}

func TestStatusEndpointFields(t *testing.T) {
	e := newEnv(t)
	e.m.FramesRead.Add(7)

	rec := e.do(t, http.MethodGet, "/api/status", nil)
	payload := decodeBody(t, rec)
	if payload["frames_read"] != float64(7) {
		t.Fatalf("frames_read = %v", payload["frames_read"])
	}
	for _, key := range []string{"state", "uptime_seconds", "stream_clients", "ws_clients"} {
		if _, ok := payload[key]; !ok {
			t.Fatalf("status payload misses %q", key)
		}
	}
}

func TestStreamServesMultipartChunks(t *testing.T) {
	e := newEnv(t)
	payload := []byte("fakejpeg")
	e.pub.Publish(payload)

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "multipart/x-mixed-replace; boundary=frame" {
		t.Fatalf("Content-Type = %q", got)
	}

	r := bufio.NewReader(resp.Body)
	for _, want := range []string{
		"--frame\r\n",
		"Content-Type: image/jpeg\r\n",
		"Content-Length: 8\r\n",
		"\r\n",
	} {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read chunk header: %v", err)
		}
		if line != want {
			t.Fatalf("chunk header line = %q, want %q", line, want)
		}
	}
	data := make([]byte, len(payload))
	if _, err := io.ReadFull(r, data); err != nil {
		t.Fatalf("read chunk payload: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("chunk payload = %q", data)
	}

	// Each part is self-delimited with a trailing CRLF.
	line, err := r.ReadString('\n')
	if err != nil {
		t.Fatalf("read part delimiter: %v", err)
	}
	if line != "\r\n" {
		t.Fatalf("missing part delimiter, got %q", line)
	}

	if e.m.TotalStreamClients.Load() != 1 {
		t.Fatalf("total clients = %d", e.m.TotalStreamClients.Load())
	}
}

func TestStreamClientCountDropsOnDisconnect(t *testing.T) {
	e := newEnv(t)
	e.pub.Publish([]byte("x"))

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := resp.Body.Read(buf); err != nil {
		t.Fatalf("first byte: %v", err)
	}
	if e.m.ActiveStreamClients.Load() != 1 {
		t.Fatalf("active clients = %d while streaming", e.m.ActiveStreamClients.Load())
	}
	resp.Body.Close()

	deadline := time.Now().Add(2 * time.Second)
	for e.m.ActiveStreamClients.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("active client count never dropped after disconnect")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamWriteDeadlineDropsStalledClient(t *testing.T) {
	e := newEnvWith(t, func(s *config.Settings) {
		s.StreamWriteTimeout = 100 * time.Millisecond
	})
	// Frames large enough that a non-reading client's socket buffers fill.
	e.pub.Publish(bytes.Repeat([]byte("j"), 1<<20))

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	conn, err := net.Dial("tcp", ts.Listener.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("GET /api/stream HTTP/1.1\r\nHost: stream\r\n\r\n")); err != nil {
		t.Fatalf("send request: %v", err)
	}

	// Never read the response: the write deadline must end the stream.
	deadline := time.Now().Add(5 * time.Second)
	for e.m.TotalStreamClients.Load() == 0 || e.m.ActiveStreamClients.Load() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("stalled client still connected (active=%d)", e.m.ActiveStreamClients.Load())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStreamWriteDeadlineKeepsHealthyClient(t *testing.T) {
	e := newEnvWith(t, func(s *config.Settings) {
		s.StreamWriteTimeout = time.Second
	})
	e.pub.Publish([]byte("fakejpeg"))

	ts := httptest.NewServer(e.srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/stream")
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer resp.Body.Close()

	r := bufio.NewReader(resp.Body)
	for i := 0; i < 3; i++ {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("read chunk %d: %v", i, err)
		}
		if line != "--frame\r\n" {
			t.Fatalf("chunk %d boundary = %q", i, line)
		}
		for line != "\r\n" {
			if line, err = r.ReadString('\n'); err != nil {
				t.Fatalf("read chunk %d headers: %v", i, err)
			}
		}
		payload := make([]byte, 8+2) // frame bytes plus trailing CRLF
		if _, err := io.ReadFull(r, payload); err != nil {
			t.Fatalf("read chunk %d payload: %v", i, err)
		}
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	e := newEnv(t)
	rec := e.do(t, http.MethodGet, "/api/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestStatePayloadIsValidJSON(t *testing.T) {
	data := StatePayload(signal.Result{State: signal.StateGreen, RegionValid: true}, config.Default())
	if !json.Valid(data) {
		t.Fatalf("payload not valid JSON: %s", data)
	}
	if !strings.Contains(string(data), `"GREEN"`) {
		t.Fatalf("payload misses state label: %s", data)
	}
}
