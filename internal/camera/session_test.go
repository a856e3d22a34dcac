package camera

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

// fakeDriver implements Driver in memory. Completions are injected
// through the completions channel.
type fakeDriver struct {
	mu          sync.Mutex
	supported   map[uint32]bool
	bufferCount uint32
	reqBufsErr  error
	queueErr    error

	completions chan v4l2.DequeuedBuffer
	queueOps    []uint32
	streaming   bool
	released    bool
	closed      bool
}

func newFakeDriver(count uint32, formats ...uint32) *fakeDriver {
	supported := make(map[uint32]bool, len(formats))
	for _, f := range formats {
		supported[f] = true
	}
	return &fakeDriver{
		supported:   supported,
		bufferCount: count,
		completions: make(chan v4l2.DequeuedBuffer, 16),
	}
}

func (d *fakeDriver) FD() int { return 42 }

func (d *fakeDriver) SetFormat(req v4l2.PixFormat) (v4l2.PixFormat, error) {
	got := req
	if !d.supported[req.PixelFormat] {
		// Substitute like real drivers do instead of failing.
		got.PixelFormat = v4l2.PixFmtYUYV
	}
	got.BytesPerLine = got.Width
	got.SizeImage = got.Width * got.Height * 2
	return got, nil
}

func (d *fakeDriver) RequestBuffers(count uint32) (uint32, error) {
	if d.reqBufsErr != nil {
		return 0, d.reqBufsErr
	}
	return d.bufferCount, nil
}

func (d *fakeDriver) ReleaseBuffers() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	return nil
}

func (d *fakeDriver) QueryBuffer(index uint32) (uint32, uint32, error) {
	return index * 4096, 4096, nil
}

func (d *fakeDriver) QueueBuffer(index uint32) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queueErr != nil {
		return d.queueErr
	}
	d.queueOps = append(d.queueOps, index)
	return nil
}

func (d *fakeDriver) DequeueBuffer(timeout time.Duration) (v4l2.DequeuedBuffer, error) {
	select {
	case db := <-d.completions:
		return db, nil
	case <-time.After(timeout):
		return v4l2.DequeuedBuffer{}, v4l2.ErrTimeout
	}
}

func (d *fakeDriver) StreamOn() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = true
	return nil
}

func (d *fakeDriver) StreamOff() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.streaming = false
	return nil
}

func (d *fakeDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDriver) queuedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queueOps)
}

// recordingHandler requeues every completion and records what it saw.
type recordingHandler struct {
	mu          sync.Mutex
	completions []Completion
	stateSeen   []RequestState
	delay       time.Duration
	notify      chan struct{}
}

func (h *recordingHandler) HandleCompletion(c Completion, rq Requeuer) {
	if h.delay > 0 {
		time.Sleep(h.delay)
	}
	h.mu.Lock()
	h.completions = append(h.completions, c)
	h.stateSeen = append(h.stateSeen, c.Request.State())
	h.mu.Unlock()

	rq.Requeue(c.Request)

	if h.notify != nil {
		select {
		case h.notify <- struct{}{}:
		default:
		}
	}
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.completions)
}

func newTestSession(driver *fakeDriver) *Session {
	cfg := SessionConfig{
		DevicePath:   "/dev/video0",
		Width:        640,
		Height:       480,
		BufferHint:   4,
		PollInterval: 10 * time.Millisecond,
	}
	opener := func(path string) (Driver, error) { return driver, nil }
	return NewSession(cfg, opener, nil, testLogger())
}

func TestSessionInitNegotiatesPreferredFormat(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12, v4l2.PixFmtMJPEG)
	s := newTestSession(driver)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	src := s.Source()
	if src.PixelFormat != v4l2.PixFmtNV12 {
		t.Errorf("negotiated %s, want NV12", v4l2.FourCC(src.PixelFormat))
	}
	if src.Width != 640 || src.Height != 480 {
		t.Errorf("negotiated %dx%d, want 640x480", src.Width, src.Height)
	}
	if s.State() != StateConfigured {
		t.Errorf("state = %s, want configured", s.State())
	}
}

func TestSessionInitFallsBackWhenDriverSubstitutes(t *testing.T) {
	// Driver silently swaps NV12 for YUYV; only MJPEG survives the
	// round trip, so that is what must be negotiated.
	driver := newFakeDriver(4, v4l2.PixFmtMJPEG)
	s := newTestSession(driver)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	if got := s.Source().PixelFormat; got != v4l2.PixFmtMJPEG {
		t.Errorf("negotiated %s, want MJPG", v4l2.FourCC(got))
	}
}

func TestSessionInitNoUsableFormat(t *testing.T) {
	driver := newFakeDriver(4) // substitutes YUYV for everything
	s := newTestSession(driver)

	if err := s.Init(); err == nil {
		t.Fatal("expected Init to fail with no usable format")
	}
	if !driver.closed {
		t.Error("device must be released when Init fails")
	}
	if s.State() != StateUninitialized {
		t.Errorf("state = %s after failed Init, want uninitialized", s.State())
	}
}

func TestSessionInitUsesDriverBufferCount(t *testing.T) {
	// The hint is 4 but the driver allocates 6; the pool must follow
	// the driver.
	driver := newFakeDriver(6, v4l2.PixFmtNV12)
	s := newTestSession(driver)

	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer s.Close()

	if got := s.Pool().Size(); got != 6 {
		t.Errorf("pool size = %d, want 6 from driver", got)
	}
}

func TestSessionInitAllocationFailure(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	driver.reqBufsErr = errors.New("ENOMEM")
	s := newTestSession(driver)

	if err := s.Init(); err == nil {
		t.Fatal("expected Init to fail")
	}
	if !driver.closed {
		t.Error("device must be released when allocation fails")
	}
}

func TestSessionStreamingCycle(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	handler := &recordingHandler{notify: make(chan struct{}, 16)}
	if err := s.Start(handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if got := driver.queuedCount(); got != 4 {
		t.Fatalf("%d buffers queued at start, want 4", got)
	}
	if s.State() != StateStreaming {
		t.Fatalf("state = %s, want streaming", s.State())
	}

	// Complete two cycles on different buffers.
	driver.completions <- v4l2.DequeuedBuffer{Index: 1, BytesUsed: 4096, Sequence: 0}
	driver.completions <- v4l2.DequeuedBuffer{Index: 3, BytesUsed: 4096, Sequence: 1}

	for i := 0; i < 2; i++ {
		select {
		case <-handler.notify:
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for completion")
		}
	}

	handler.mu.Lock()
	if len(handler.completions) != 2 {
		t.Fatalf("handler saw %d completions, want 2", len(handler.completions))
	}
	for i, st := range handler.stateSeen {
		if st != RequestCompleted {
			t.Errorf("completion %d delivered in state %s, want completed", i, st)
		}
	}
	if handler.completions[0].Request.Buffer.Index != 1 ||
		handler.completions[1].Request.Buffer.Index != 3 {
		t.Error("completions delivered out of order or for wrong buffers")
	}
	handler.mu.Unlock()

	// Initial 4 queues plus 2 requeues.
	if got := driver.queuedCount(); got != 6 {
		t.Errorf("%d queue operations, want 6", got)
	}
	if s.Pool().InFlight() != 4 {
		t.Errorf("in flight = %d after requeues, want 4", s.Pool().InFlight())
	}

	s.Stop()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestSessionErrorCompletionStatus(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	handler := &recordingHandler{notify: make(chan struct{}, 1)}
	if err := s.Start(handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	driver.completions <- v4l2.DequeuedBuffer{Index: 0, Flags: v4l2.V4L2_BUF_FLAG_ERROR}

	select {
	case <-handler.notify:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for completion")
	}

	handler.mu.Lock()
	if handler.completions[0].Status != StatusError {
		t.Errorf("status = %s, want error", handler.completions[0].Status)
	}
	handler.mu.Unlock()

	s.Stop()
	s.Close()
}

func TestSessionStopDrainsInProgressCompletion(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	handler := &recordingHandler{delay: 50 * time.Millisecond, notify: make(chan struct{}, 1)}
	if err := s.Start(handler); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	driver.completions <- v4l2.DequeuedBuffer{Index: 2, BytesUsed: 4096}
	// Give the loop a moment to pick it up, then stop mid-handler.
	time.Sleep(10 * time.Millisecond)
	s.Stop()

	if handler.count() != 1 {
		t.Fatal("Stop returned before the in-progress completion finished")
	}
	if s.State() != StateStopped {
		t.Errorf("state = %s, want stopped", s.State())
	}
	if driver.streaming {
		t.Error("driver still streaming after Stop")
	}

	// Streamoff reclaims every buffer; all requests are free again.
	if got := s.Pool().CountInState(RequestFree); got != s.Pool().Size() {
		t.Errorf("%d free requests after Stop, want %d", got, s.Pool().Size())
	}

	sizeBefore := s.Pool().Size()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !driver.released || !driver.closed {
		t.Error("Close must release buffers and the device")
	}
	if s.Pool().Size() != sizeBefore {
		t.Error("pool accounting changed across teardown")
	}
}

func TestSessionStopIdempotent(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Start(&recordingHandler{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	s.Stop()
	s.Stop() // second stop is a no-op

	if s.State() != StateStopped {
		t.Errorf("state = %s, want stopped", s.State())
	}
}

func TestSessionCloseWhileStreaming(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Start(&recordingHandler{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer func() {
		s.Stop()
		s.Close()
	}()

	if err := s.Close(); err == nil {
		t.Fatal("Close must fail while streaming")
	}
}

func TestSessionRequeueFailureTakesBufferOutOfRotation(t *testing.T) {
	driver := newFakeDriver(4, v4l2.PixFmtNV12)
	s := newTestSession(driver)
	if err := s.Init(); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if err := s.Start(&recordingHandler{}); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	req, _ := s.Pool().Get(0)
	req.transition(RequestCompleted)

	driver.mu.Lock()
	driver.queueErr = errors.New("EIO")
	driver.mu.Unlock()

	if err := s.Requeue(req); err == nil {
		t.Fatal("expected requeue error")
	}
	if req.State() != RequestFree {
		t.Errorf("request state = %s after failed requeue, want free", req.State())
	}

	driver.mu.Lock()
	driver.queueErr = nil
	driver.mu.Unlock()
	s.Stop()
	s.Close()
}
