// Package logbus multiplexes the stdout/stderr line streams of supervised
// processes to an arbitrary number of subscribers.
package logbus

import (
	"bufio"
	"io"
	"log/slog"
	"sync"

	"github.com/ternlight/devmux/internal/proc"
)

// Stream tags a log record with its origin pipe.
type Stream string

const (
	Stdout Stream = "stdout"
	Stderr Stream = "stderr"
)

// Record is one complete output line from a supervised process.
type Record struct {
	ProjectDir string `json:"project_dir"`
	Process    string `json:"process_name"`
	Stream     Stream `json:"stream"`
	Text       string `json:"text"`
}

// maxLine bounds a single scanned line (1 MiB). A longer line aborts the
// scanner; the reader then discards the rest of the stream so the writing
// process never blocks on a full pipe.
const maxLine = 1 << 20

// Broadcaster fans out Records to subscribers. Lines from one stream are
// delivered in completion order; no ordering is promised across streams.
// Delivery never drops a record that a live subscriber has not yet consumed:
// each subscriber owns an unbounded FIFO drained by its own goroutine, so a
// slow consumer lags without stalling the readers.
type Broadcaster struct {
	mu   sync.Mutex
	subs map[*subscriber]struct{}
	log  *slog.Logger
}

func New(logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{subs: make(map[*subscriber]struct{}), log: logger}
}

// Subscribe registers a new consumer. The returned cancel func detaches it
// and closes the channel once the pending queue has drained.
func (b *Broadcaster) Subscribe() (<-chan Record, func()) {
	s := newSubscriber()
	b.mu.Lock()
	b.subs[s] = struct{}{}
	b.mu.Unlock()

	cancel := func() {
		b.mu.Lock()
		delete(b.subs, s)
		b.mu.Unlock()
		s.close()
	}
	return s.out, cancel
}

// Publish delivers rec to every current subscriber.
func (b *Broadcaster) Publish(rec Record) {
	b.mu.Lock()
	for s := range b.subs {
		s.push(rec)
	}
	b.mu.Unlock()
}

// Attach starts the two line readers for one running process. Readers exit
// when their pipe closes, i.e. when every process in the group holding the
// write end has exited. Read failures are reported but never affect
// supervision.
func (b *Broadcaster) Attach(key proc.Key, stdout, stderr io.Reader) {
	go b.readLines(key, Stdout, stdout)
	go b.readLines(key, Stderr, stderr)
}

func (b *Broadcaster) readLines(key proc.Key, stream Stream, r io.Reader) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	for sc.Scan() {
		b.Publish(Record{
			ProjectDir: key.ProjectDir,
			Process:    key.Name,
			Stream:     stream,
			Text:       sc.Text(),
		})
	}
	if err := sc.Err(); err != nil {
		b.log.Warn("log reader failed", "process", key.String(), "stream", string(stream), "error", err)
		// Keep consuming until the pipe closes: leaving the pipe unread would
		// block the process on its next write once the kernel buffer fills.
		_, _ = io.Copy(io.Discard, r)
	}
}

// subscriber is an unbounded FIFO with a single drain goroutine. push appends
// under lock; the drainer moves batches to the out channel in order.
type subscriber struct {
	mu     sync.Mutex
	queue  []Record
	wake   chan struct{}
	out    chan Record
	closed bool
}

func newSubscriber() *subscriber {
	s := &subscriber{
		wake: make(chan struct{}, 1),
		out:  make(chan Record, 64),
	}
	go s.drain()
	return s
}

func (s *subscriber) push(rec Record) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.queue = append(s.queue, rec)
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *subscriber) drain() {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		if closed {
			// Canceled subscribers may have stopped reading; never block on them.
			for _, rec := range batch {
				select {
				case s.out <- rec:
				default:
				}
			}
			close(s.out)
			return
		}
		for _, rec := range batch {
			s.out <- rec
		}
		<-s.wake
	}
}
