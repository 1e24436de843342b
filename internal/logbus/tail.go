package logbus

import (
	"sync"

	"github.com/ternlight/devmux/internal/proc"
)

// DefaultTailLines is the per-process retention bound used by the HTTP layer.
const DefaultTailLines = 500

// Tail is a Broadcaster subscriber that retains the most recent N lines per
// process. Retention is deliberately a subscriber concern; the broadcaster
// itself stays policy-free.
type Tail struct {
	mu     sync.Mutex
	limit  int
	lines  map[string][]Record
	cancel func()
	done   chan struct{}
}

// NewTail attaches a tail buffer to b keeping up to limit lines per process.
func NewTail(b *Broadcaster, limit int) *Tail {
	if limit <= 0 {
		limit = DefaultTailLines
	}
	ch, cancel := b.Subscribe()
	t := &Tail{
		limit:  limit,
		lines:  make(map[string][]Record),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		defer close(t.done)
		for rec := range ch {
			t.append(rec)
		}
	}()
	return t
}

func (t *Tail) append(rec Record) {
	key := proc.Key{ProjectDir: rec.ProjectDir, Name: rec.Process}.String()
	t.mu.Lock()
	buf := append(t.lines[key], rec)
	if n := len(buf) - t.limit; n > 0 {
		buf = append(buf[:0:0], buf[n:]...)
	}
	t.lines[key] = buf
	t.mu.Unlock()
}

// Records returns a copy of the retained lines for one process, oldest first.
func (t *Tail) Records(key proc.Key) []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	buf := t.lines[key.String()]
	out := make([]Record, len(buf))
	copy(out, buf)
	return out
}

// Clear drops the retained lines for one process. Records that arrived but
// were not yet read are unaffected; clearing never reorders delivery.
func (t *Tail) Clear(key proc.Key) {
	t.mu.Lock()
	delete(t.lines, key.String())
	t.mu.Unlock()
}

// Close detaches from the broadcaster and waits for the consumer to finish.
func (t *Tail) Close() {
	t.cancel()
	<-t.done
}
