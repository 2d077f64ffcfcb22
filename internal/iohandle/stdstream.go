package iohandle

import (
	"context"
	"io"
	"sync"

	"github.com/mattn/go-isatty"
	"golang.org/x/sync/semaphore"

	"perlrt/internal/ioerr"
)

// writeJob is one queued write, tagged with a monotonically increasing
// sequence number so FIFO ordering across concurrent producers on one
// writer thread is guaranteed.
type writeJob struct {
	seq  uint64
	data []byte
}

// StdStreamHandle is a writer-thread-backed handle over an os.Stdout/
// os.Stderr-shaped sink: a dedicated goroutine drains a sequence-numbered
// queue so a slow sink blocks the calling thread only during an
// explicit Flush or while the queue is full (Write then waits for a
// free slot). A sink failure is remembered and surfaced by the next
// Flush or Close rather than by the (already returned) Write that
// queued it.
type StdStreamHandle struct {
	sink io.Writer
	fd   int
	tty  bool

	jobs chan writeJob
	sem  *semaphore.Weighted

	mu      sync.Mutex
	nextSeq uint64
	sinkErr error

	closeOnce sync.Once
	done      chan struct{}
}

// maxInFlightWrites bounds the writer queue's depth; a tty gets a
// shallower queue since Perl autoflushes interactive output by default
// and a deep queue would defeat that responsiveness.
const (
	maxInFlightWritesTTY  = 4
	maxInFlightWritesPipe = 256
)

// NewStdStreamHandle starts the writer goroutine over sink, sized by
// whether fd is a terminal (via github.com/mattn/go-isatty).
func NewStdStreamHandle(sink io.Writer, fd int) *StdStreamHandle {
	tty := isatty.IsTerminal(uintptr(fd)) || isatty.IsCygwinTerminal(uintptr(fd))
	depth := maxInFlightWritesPipe
	if tty {
		depth = maxInFlightWritesTTY
	}
	h := &StdStreamHandle{
		sink: sink,
		fd:   fd,
		tty:  tty,
		jobs: make(chan writeJob, depth),
		sem:  semaphore.NewWeighted(int64(depth)),
		done: make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *StdStreamHandle) run() {
	defer close(h.done)
	for job := range h.jobs {
		if _, err := h.sink.Write(job.data); err != nil {
			h.mu.Lock()
			if h.sinkErr == nil {
				h.sinkErr = err
			}
			h.mu.Unlock()
		}
		// Released only after the sink write completes, so Flush's
		// acquire-everything step can't return with a write in flight.
		h.sem.Release(1)
	}
}

func (h *StdStreamHandle) Read(p []byte) (int, error) {
	return 0, ioerr.NewUnsupported("read", "standard-stream writer")
}

// Write queues p and returns without waiting for the sink; when the
// queue already holds its full depth of in-flight writes, Write waits
// until the writer goroutine frees a slot. Sequencing and the channel send happen under one lock so
// commit order always equals sequence order, even with concurrent
// producers.
func (h *StdStreamHandle) Write(p []byte) (int, error) {
	select {
	case <-h.done:
		return 0, ioerr.NewClosed("write")
	default:
	}
	if err := h.sem.Acquire(context.Background(), 1); err != nil {
		return 0, ioerr.WrapIO(err, "stdstream write queue")
	}
	h.mu.Lock()
	h.nextSeq++
	// The queue has a free slot by construction (one per semaphore
	// permit), so this send never blocks while the lock is held.
	h.jobs <- writeJob{seq: h.nextSeq, data: append([]byte(nil), p...)}
	h.mu.Unlock()
	return len(p), nil
}

// Flush blocks until every write submitted before this call has been
// committed, bounded by sequence-number completion, then reports
// any sink failure the writer goroutine recorded since the last Flush.
func (h *StdStreamHandle) Flush() error {
	if err := h.sem.Acquire(context.Background(), int64(cap(h.jobs))); err != nil {
		return ioerr.WrapIO(err, "stdstream flush")
	}
	h.sem.Release(int64(cap(h.jobs)))
	h.mu.Lock()
	err := h.sinkErr
	h.sinkErr = nil
	h.mu.Unlock()
	return ioerr.WrapIO(err, "stdstream write")
}

// Close drains the queue, stops the writer goroutine, and reports any
// failure from the drained writes. Idempotent.
func (h *StdStreamHandle) Close() error {
	h.closeOnce.Do(func() { close(h.jobs) })
	<-h.done
	h.mu.Lock()
	err := h.sinkErr
	h.sinkErr = nil
	h.mu.Unlock()
	return ioerr.WrapIO(err, "stdstream close")
}

func (h *StdStreamHandle) EOF() bool            { return false }
func (h *StdStreamHandle) Tell() (int64, error) { return -1, nil }
func (h *StdStreamHandle) Seek(int64, Whence) (int64, error) {
	return -1, ioerr.NewUnsupported("seek", "standard-stream")
}
func (h *StdStreamHandle) Truncate(int64) error {
	return ioerr.NewUnsupported("truncate", "standard-stream")
}
func (h *StdStreamHandle) Fileno() (int, bool) { return h.fd, h.fd >= 0 }
