// Package camera owns the capture side of the pipeline: a fixed pool of
// kernel-shared hardware buffers, the request state machine that tracks
// each buffer through its capture cycle, and the session that runs the
// dequeue loop and dispatches completions.
//
// The buffer pool is the only backpressure mechanism. At most Pool.Size()
// cycles are ever in flight; a buffer held by a slow completion handler
// simply stays out of the driver's queue until it is requeued.
package camera

import "fmt"

// Plane is one contiguous region of a hardware buffer, addressed by a
// file descriptor and an offset into its mapping space.
type Plane struct {
	FD     int
	Offset int64
	Length int
}

// HardwareBuffer is one kernel-allocated capture buffer. Single-plane
// formats have exactly one plane; multi-plane layouts carry one entry
// per plane on the same descriptor.
type HardwareBuffer struct {
	Index  uint32
	Planes []Plane
}

// TotalLength returns the byte length across all planes.
func (b HardwareBuffer) TotalLength() int {
	total := 0
	for _, p := range b.Planes {
		total += p.Length
	}
	return total
}

// RequestState tracks where a buffer is in its capture cycle.
type RequestState int

const (
	// RequestFree means the buffer is owned by the process and not
	// submitted to the driver.
	RequestFree RequestState = iota
	// RequestQueued means the buffer is owned by the driver, awaiting
	// or undergoing capture.
	RequestQueued
	// RequestCompleted means the buffer holds frame data and is being
	// processed by the completion handler.
	RequestCompleted
)

func (s RequestState) String() string {
	switch s {
	case RequestFree:
		return "free"
	case RequestQueued:
		return "queued"
	case RequestCompleted:
		return "completed"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Request pairs one hardware buffer with its position in the capture
// cycle. Requests are created once per session and reused for every
// cycle; they are never reallocated while streaming.
type Request struct {
	Buffer HardwareBuffer

	state RequestState
}

// State returns the request's current state. Only the capture loop
// mutates state, so reads from the same goroutine need no locking.
func (r *Request) State() RequestState {
	return r.state
}

// transition moves the request to a new state, enforcing the legal
// edges of the cycle: free to queued on submit, queued to completed on
// dequeue, completed to queued on reuse, and anything back to free when
// streaming stops and the driver releases its claim.
func (r *Request) transition(to RequestState) error {
	legal := false
	switch to {
	case RequestQueued:
		legal = r.state == RequestFree || r.state == RequestCompleted
	case RequestCompleted:
		legal = r.state == RequestQueued
	case RequestFree:
		legal = true
	}
	if !legal {
		return fmt.Errorf("illegal request transition %s -> %s for buffer %d",
			r.state, to, r.Buffer.Index)
	}
	r.state = to
	return nil
}

// CompletionStatus reports whether a dequeued buffer carries valid
// frame data.
type CompletionStatus int

const (
	// StatusSuccess means the buffer holds a complete captured frame.
	StatusSuccess CompletionStatus = iota
	// StatusError means the driver flagged the capture as failed; the
	// buffer contents must not be interpreted as pixels.
	StatusError
)

func (s CompletionStatus) String() string {
	if s == StatusError {
		return "error"
	}
	return "success"
}

// Completion is one dequeued capture cycle delivered to the handler.
type Completion struct {
	Request   *Request
	Status    CompletionStatus
	BytesUsed int
	Sequence  uint32
}

// Requeuer hands a completed request back for the next capture cycle.
// The session implements it; tests substitute fakes.
type Requeuer interface {
	Requeue(req *Request) error
}

// CompletionHandler processes one completed capture cycle. It runs on
// the capture loop goroutine and must requeue the request exactly once
// on every path before returning, including error and drop paths.
type CompletionHandler interface {
	HandleCompletion(c Completion, rq Requeuer)
}
