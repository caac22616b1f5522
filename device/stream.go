package device

import (
	"errors"
	"sync"
)

var ErrStreamClosed = errors.New("stream closed")

type op struct {
	dst  *Buffer
	src  []float32
	sync chan error
}

// Stream is an asynchronous command queue. Submitted copies execute in
// submission order; Synchronize blocks until everything submitted before it
// has drained.
type Stream struct {
	device int

	// mu guards closed and serializes submissions onto ops. The run
	// goroutine never takes it.
	mu     sync.Mutex
	closed bool
	ops    chan op
	done   chan struct{}

	errMu sync.Mutex
	err   error
}

// NewStream creates a stream on the current device. nonBlocking streams
// accept submissions without waiting for earlier work; the software backend
// gives both flavors the same machinery with a deeper queue.
func NewStream(nonBlocking bool) *Stream {
	depth := 1
	if nonBlocking {
		depth = 64
	}

	s := &Stream{
		device: Current(),
		ops:    make(chan op, depth),
		done:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Stream) Device() int {
	return s.device
}

func (s *Stream) run() {
	defer close(s.done)
	for o := range s.ops {
		if o.sync != nil {
			o.sync <- s.takeErr()
			continue
		}

		if o.dst.Count() != len(o.src) {
			s.setErr(errors.New("copy size mismatch"))
			continue
		}
		o.dst.write(o.src)
	}
}

func (s *Stream) setErr(err error) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

func (s *Stream) takeErr() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	err := s.err
	s.err = nil
	return err
}

func (s *Stream) submit(o op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	s.ops <- o
	return nil
}

// CopyAsync schedules a host to device copy of src into dst, converting to
// the buffer's element type in flight. src must stay untouched until the
// stream is synchronized.
func (s *Stream) CopyAsync(dst *Buffer, src []float32) error {
	return s.submit(op{dst: dst, src: src})
}

// Synchronize blocks until all previously submitted copies have executed
// and returns the first error recorded since the last synchronize.
func (s *Stream) Synchronize() error {
	wait := make(chan error, 1)
	if err := s.submit(op{sync: wait}); err != nil {
		return err
	}
	return <-wait
}

func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ops)
	<-s.done
}
