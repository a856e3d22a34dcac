package camera

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/internal/metrics"
	"github.com/edgevision/perceptd/pkg/linuxav/v4l2"
)

// Driver is the seam between the session and the kernel capture
// interface. *v4l2.Device satisfies it; tests use fakes.
type Driver interface {
	FD() int
	SetFormat(req v4l2.PixFormat) (v4l2.PixFormat, error)
	RequestBuffers(count uint32) (uint32, error)
	ReleaseBuffers() error
	QueryBuffer(index uint32) (offset, length uint32, err error)
	QueueBuffer(index uint32) error
	DequeueBuffer(timeout time.Duration) (v4l2.DequeuedBuffer, error)
	StreamOn() error
	StreamOff() error
	Close() error
}

// DriverOpener opens a capture driver for a device node.
type DriverOpener func(path string) (Driver, error)

// OpenV4L2 is the production DriverOpener.
func OpenV4L2(path string) (Driver, error) {
	return v4l2.Open(path)
}

// SessionState is the lifecycle state of a capture session.
type SessionState int

const (
	// StateUninitialized means no device resources are held.
	StateUninitialized SessionState = iota
	// StateConfigured means format and buffers are negotiated but
	// streaming has not started.
	StateConfigured
	// StateStreaming means the capture loop is running.
	StateStreaming
	// StateStopped means streaming halted; buffers and the device are
	// still held until Close.
	StateStopped
)

func (s SessionState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateConfigured:
		return "configured"
	case StateStreaming:
		return "streaming"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// SessionConfig holds the capture parameters for one session.
type SessionConfig struct {
	DevicePath string
	Width      uint32
	Height     uint32
	// BufferHint is the requested pool size; the driver decides the
	// actual count.
	BufferHint uint32
	// PollInterval bounds how long the capture loop blocks waiting for
	// a completed buffer before rechecking the stop flag.
	PollInterval time.Duration
}

// preferredFormats is the negotiation order. NV12 avoids a decode step;
// MJPEG is the near-universal USB camera fallback.
var preferredFormats = []uint32{v4l2.PixFmtNV12, v4l2.PixFmtMJPEG}

// Session manages one camera from open through streaming to teardown.
// Init, Start, Stop, and Close are called from the manager goroutine;
// the capture loop runs on its own goroutine and delivers completions
// synchronously.
type Session struct {
	cfg    SessionConfig
	opener DriverOpener

	eventBus *events.Bus
	logger   *slog.Logger

	mu     sync.Mutex
	state  SessionState
	driver Driver
	pool   *Pool
	source Source

	stopping atomic.Bool
	done     chan struct{}
}

// NewSession creates an uninitialized session.
func NewSession(cfg SessionConfig, opener DriverOpener, eventBus *events.Bus, logger *slog.Logger) *Session {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 100 * time.Millisecond
	}
	if cfg.BufferHint == 0 {
		cfg.BufferHint = 4
	}
	return &Session{
		cfg:      cfg,
		opener:   opener,
		eventBus: eventBus,
		logger:   logger,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// DevicePath returns the configured device node path.
func (s *Session) DevicePath() string {
	return s.cfg.DevicePath
}

// Source returns the negotiated stream description. Valid once Init
// succeeds.
func (s *Session) Source() Source {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Pool returns the buffer pool. Valid once Init succeeds.
func (s *Session) Pool() *Pool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pool
}

// Init opens the device, negotiates a capture format, and allocates the
// memory-mapped buffer pool. On failure every partially acquired
// resource is released and the session stays uninitialized.
func (s *Session) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateUninitialized {
		return fmt.Errorf("cannot initialize session in state %s", s.state)
	}

	driver, err := s.opener(s.cfg.DevicePath)
	if err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}

	source, pool, err := s.configure(driver)
	if err != nil {
		driver.Close()
		return err
	}

	s.driver = driver
	s.source = source
	s.pool = pool
	s.state = StateConfigured
	metrics.SetPoolSize(pool.Size())

	s.logger.Info("camera session configured",
		"device", s.cfg.DevicePath,
		"format", v4l2.FourCC(source.PixelFormat),
		"width", source.Width,
		"height", source.Height,
		"buffers", pool.Size())
	s.publishState()

	return nil
}

// configure negotiates the format and allocates buffers on an open
// driver. The caller owns cleanup of the driver on error.
func (s *Session) configure(driver Driver) (Source, *Pool, error) {
	var negotiated v4l2.PixFormat
	var lastErr error
	for _, pixfmt := range preferredFormats {
		got, err := driver.SetFormat(v4l2.PixFormat{
			Width:       s.cfg.Width,
			Height:      s.cfg.Height,
			PixelFormat: pixfmt,
		})
		if err != nil {
			lastErr = err
			continue
		}
		// Drivers may substitute another format; only accept an exact
		// match so normalization knows what it is getting.
		if got.PixelFormat == pixfmt {
			negotiated = got
			break
		}
	}
	if negotiated.PixelFormat == 0 {
		if lastErr != nil {
			return Source{}, nil, fmt.Errorf("no supported capture format: %w", lastErr)
		}
		return Source{}, nil, fmt.Errorf("device offers none of the supported capture formats")
	}

	count, err := driver.RequestBuffers(s.cfg.BufferHint)
	if err != nil {
		return Source{}, nil, fmt.Errorf("failed to allocate buffers: %w", err)
	}

	buffers := make([]HardwareBuffer, count)
	for i := uint32(0); i < count; i++ {
		offset, length, err := driver.QueryBuffer(i)
		if err != nil {
			driver.ReleaseBuffers()
			return Source{}, nil, fmt.Errorf("failed to query buffer %d: %w", i, err)
		}
		buffers[i] = HardwareBuffer{
			Index: i,
			Planes: []Plane{{
				FD:     driver.FD(),
				Offset: int64(offset),
				Length: int(length),
			}},
		}
	}

	source := Source{
		PixelFormat: negotiated.PixelFormat,
		Width:       int(negotiated.Width),
		Height:      int(negotiated.Height),
		Stride:      int(negotiated.BytesPerLine),
	}
	return source, NewPool(buffers), nil
}

// Start queues every buffer, turns streaming on, and launches the
// capture loop delivering completions to handler.
func (s *Session) Start(handler CompletionHandler) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConfigured {
		return fmt.Errorf("cannot start streaming in state %s", s.state)
	}

	for _, req := range s.pool.Requests() {
		if err := req.transition(RequestQueued); err != nil {
			return err
		}
		if err := s.driver.QueueBuffer(req.Buffer.Index); err != nil {
			return fmt.Errorf("failed to queue buffer %d: %w", req.Buffer.Index, err)
		}
	}

	if err := s.driver.StreamOn(); err != nil {
		return fmt.Errorf("failed to start streaming: %w", err)
	}

	s.stopping.Store(false)
	s.done = make(chan struct{})
	s.state = StateStreaming
	go s.captureLoop(handler)

	s.logger.Info("streaming started", "device", s.cfg.DevicePath)
	s.publishState()
	return nil
}

// captureLoop is the subsystem execution context: it dequeues completed
// buffers and runs the completion handler synchronously, one cycle at a
// time.
func (s *Session) captureLoop(handler CompletionHandler) {
	defer close(s.done)

	for {
		if s.stopping.Load() {
			return
		}

		db, err := s.driver.DequeueBuffer(s.cfg.PollInterval)
		if errors.Is(err, v4l2.ErrTimeout) {
			continue
		}
		if err != nil {
			if s.stopping.Load() {
				return
			}
			s.logger.Error("failed to dequeue buffer", "error", err)
			metrics.CycleDropped("capture", "dequeue_failed")
			// Pause so a wedged driver cannot spin the loop.
			time.Sleep(s.cfg.PollInterval)
			continue
		}

		req, err := s.pool.Get(db.Index)
		if err != nil {
			s.logger.Error("driver returned unknown buffer", "index", db.Index, "error", err)
			continue
		}
		if err := req.transition(RequestCompleted); err != nil {
			s.logger.Error("buffer state out of sync", "error", err)
			continue
		}

		status := StatusSuccess
		if db.Failed() {
			status = StatusError
		}

		handler.HandleCompletion(Completion{
			Request:   req,
			Status:    status,
			BytesUsed: int(db.BytesUsed),
			Sequence:  db.Sequence,
		}, s)
	}
}

// Requeue hands a completed request back to the driver for the next
// cycle. Called by the completion handler once per completion.
func (s *Session) Requeue(req *Request) error {
	if err := req.transition(RequestQueued); err != nil {
		return err
	}
	if err := s.driver.QueueBuffer(req.Buffer.Index); err != nil {
		// The driver refused the buffer; it stays out of rotation.
		req.transition(RequestFree)
		return fmt.Errorf("failed to requeue buffer %d: %w", req.Buffer.Index, err)
	}
	return nil
}

// Stop halts streaming and waits for the in-progress completion, if
// any, to finish. Buffers and the device stay allocated for a later
// Close; Stop is not a cancellation of the pipeline stage running now.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state != StateStreaming {
		s.mu.Unlock()
		return
	}
	done := s.done
	s.mu.Unlock()

	s.stopping.Store(true)
	<-done

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.driver.StreamOff(); err != nil {
		s.logger.Error("failed to stop streaming", "error", err)
	}
	// Streamoff reclaims every driver-owned buffer.
	for _, req := range s.pool.Requests() {
		req.transition(RequestFree)
	}
	s.state = StateStopped

	s.logger.Info("streaming stopped", "device", s.cfg.DevicePath)
	s.publishState()
}

// Close releases the buffer pool allocation and the device. The session
// cannot be restarted afterwards.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.driver == nil {
		return nil
	}
	if s.state == StateStreaming {
		return fmt.Errorf("cannot close session while streaming")
	}

	var firstErr error
	if err := s.driver.ReleaseBuffers(); err != nil {
		firstErr = err
	}
	if err := s.driver.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	s.driver = nil
	return firstErr
}

// publishState must be called with s.mu held.
func (s *Session) publishState() {
	if s.eventBus == nil {
		return
	}
	s.eventBus.Publish(events.SessionStateEvent{
		State:      s.state.String(),
		DevicePath: s.cfg.DevicePath,
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
	})
}
