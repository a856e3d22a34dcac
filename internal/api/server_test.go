package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/edgevision/perceptd/internal/camera"
	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/pipeline"
	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

type fakeStatus struct {
	state camera.SessionState
	src   camera.Source
	pool  *camera.Pool
	path  string
}

func (f *fakeStatus) State() camera.SessionState { return f.state }
func (f *fakeStatus) Source() camera.Source      { return f.src }
func (f *fakeStatus) Pool() *camera.Pool         { return f.pool }
func (f *fakeStatus) DevicePath() string         { return f.path }

type fakeDetections struct {
	result pipeline.Result
	ok     bool
	labels []string
}

func (f *fakeDetections) Latest() (pipeline.Result, bool) { return f.result, f.ok }
func (f *fakeDetections) Labels() []string                { return f.labels }

func newTestServer(t *testing.T, opts *Options) *httptest.Server {
	t.Helper()
	if opts.EventBus == nil {
		opts.EventBus = events.New()
	}
	server := NewServer(opts)
	ts := httptest.NewServer(server.GetMux())
	t.Cleanup(ts.Close)
	return ts
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestHealthEndpointNoAuth(t *testing.T) {
	ts := newTestServer(t, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
	})

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("health without credentials: status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
}

func TestStatusEndpointRequiresAuth(t *testing.T) {
	buffers := []camera.HardwareBuffer{
		{Index: 0, Planes: []camera.Plane{{FD: 3, Offset: 0, Length: 1024}}},
		{Index: 1, Planes: []camera.Plane{{FD: 3, Offset: 1024, Length: 1024}}},
	}
	ts := newTestServer(t, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		Status: &fakeStatus{
			state: camera.StateStreaming,
			src:   camera.Source{PixelFormat: v4l2.PixFmtNV12, Width: 640, Height: 480},
			pool:  camera.NewPool(buffers),
			path:  "/dev/video0",
		},
	})

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("status without credentials: status %d, want 401", resp.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", basicAuth("admin", "secret"))
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status with credentials: status %d, want 200", resp.StatusCode)
	}

	var body struct {
		SessionState string `json:"session_state"`
		DevicePath   string `json:"device_path"`
		PixelFormat  string `json:"pixel_format"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		PoolSize     int    `json:"pool_size"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.SessionState != "streaming" {
		t.Errorf("session_state = %q, want streaming", body.SessionState)
	}
	if body.DevicePath != "/dev/video0" {
		t.Errorf("device_path = %q, want /dev/video0", body.DevicePath)
	}
	if body.PixelFormat != "NV12" {
		t.Errorf("pixel_format = %q, want NV12", body.PixelFormat)
	}
	if body.Width != 640 || body.Height != 480 {
		t.Errorf("dimensions = %dx%d, want 640x480", body.Width, body.Height)
	}
	if body.PoolSize != 2 {
		t.Errorf("pool_size = %d, want 2", body.PoolSize)
	}
}

func TestStatusRejectsBadCredentials(t *testing.T) {
	ts := newTestServer(t, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
	})

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/status", nil)
	req.Header.Set("Authorization", basicAuth("admin", "wrong"))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status with bad password: status %d, want 401", resp.StatusCode)
	}
	if got := resp.Header.Get("WWW-Authenticate"); got == "" {
		t.Error("missing WWW-Authenticate header on 401")
	}
}

func TestLatestDetection(t *testing.T) {
	ts := newTestServer(t, &Options{
		Detections: &fakeDetections{
			result: pipeline.Result{
				Top:         events.Score{ClassID: 1, Label: "person", Confidence: 0.82},
				Scores:      []events.Score{{ClassID: 0, Label: "background", Confidence: 0.18}, {ClassID: 1, Label: "person", Confidence: 0.82}},
				FrameWidth:  640,
				FrameHeight: 480,
				InferenceMS: 12.5,
				Timestamp:   time.Date(2025, 1, 27, 10, 30, 0, 0, time.UTC),
			},
			ok:     true,
			labels: []string{"background", "person"},
		},
	})

	resp, err := http.Get(ts.URL + "/api/detections/latest")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Top struct {
			ClassID    int     `json:"class_id"`
			Label      string  `json:"label"`
			Confidence float32 `json:"confidence"`
		} `json:"top"`
		Scores    []json.RawMessage `json:"scores"`
		Timestamp string            `json:"timestamp"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Top.ClassID != 1 || body.Top.Label != "person" {
		t.Errorf("top = %+v, want class 1 person", body.Top)
	}
	if len(body.Scores) != 2 {
		t.Errorf("scores count = %d, want 2", len(body.Scores))
	}
	if body.Timestamp != "2025-01-27T10:30:00Z" {
		t.Errorf("timestamp = %q", body.Timestamp)
	}
}

func TestLatestDetectionNotFound(t *testing.T) {
	ts := newTestServer(t, &Options{
		Detections: &fakeDetections{ok: false},
	})

	resp, err := http.Get(ts.URL + "/api/detections/latest")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status %d, want 404", resp.StatusCode)
	}
}

func TestLabelsEndpoint(t *testing.T) {
	ts := newTestServer(t, &Options{
		Detections: &fakeDetections{labels: []string{"background", "person", "vehicle"}},
	})

	resp, err := http.Get(ts.URL + "/api/labels")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d, want 200", resp.StatusCode)
	}

	var body struct {
		Labels []string `json:"labels"`
		Count  int      `json:"count"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body.Count != 3 || len(body.Labels) != 3 {
		t.Errorf("count = %d labels = %v, want 3", body.Count, body.Labels)
	}
	if body.Labels[1] != "person" {
		t.Errorf("labels[1] = %q, want person", body.Labels[1])
	}
}

func TestCORSPreflight(t *testing.T) {
	ts := newTestServer(t, &Options{})

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/status", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("preflight status %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}

func TestMetricsEndpointMounted(t *testing.T) {
	ts := newTestServer(t, &Options{
		AuthUsername: "admin",
		AuthPassword: "secret",
		PrometheusHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("perceptd_capture_frames_completed_total 0\n"))
		}),
	})

	// Metrics bypass the Huma middleware chain, so no auth is needed.
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("metrics status %d, want 200", resp.StatusCode)
	}
}
