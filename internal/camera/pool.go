package camera

import "fmt"

// Pool is the fixed set of capture requests for one session. Its size is
// decided by the driver at allocation time and never changes while the
// session exists.
type Pool struct {
	requests []*Request
}

// NewPool wraps the allocated hardware buffers in requests, all free.
func NewPool(buffers []HardwareBuffer) *Pool {
	requests := make([]*Request, len(buffers))
	for i, buf := range buffers {
		requests[i] = &Request{Buffer: buf}
	}
	return &Pool{requests: requests}
}

// Size returns the number of requests in the pool.
func (p *Pool) Size() int {
	return len(p.requests)
}

// Get returns the request whose buffer has the given driver index.
func (p *Pool) Get(index uint32) (*Request, error) {
	if int(index) >= len(p.requests) {
		return nil, fmt.Errorf("buffer index %d out of range, pool size %d", index, len(p.requests))
	}
	return p.requests[index], nil
}

// Requests returns all requests in buffer index order.
func (p *Pool) Requests() []*Request {
	return p.requests
}

// CountInState returns how many requests are currently in the given
// state.
func (p *Pool) CountInState(state RequestState) int {
	n := 0
	for _, r := range p.requests {
		if r.state == state {
			n++
		}
	}
	return n
}

// InFlight returns how many requests are submitted to the driver or
// being processed. Never exceeds Size; that bound is the pipeline's
// only backpressure.
func (p *Pool) InFlight() int {
	return p.CountInState(RequestQueued) + p.CountInState(RequestCompleted)
}
