package logbus

import (
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/ternlight/devmux/internal/logger"
)

// FileMirror is a Broadcaster subscriber that appends every line to rotating
// per-process log files. Writers are created lazily per (project, process,
// stream) and reused across restarts of the same process.
type FileMirror struct {
	cfg     logger.Config
	log     *slog.Logger
	mu      sync.Mutex
	writers map[string]io.WriteCloser
	cancel  func()
	done    chan struct{}
}

// NewFileMirror attaches a mirror to b. Returns nil when cfg has no log dir.
func NewFileMirror(b *Broadcaster, cfg logger.Config, log *slog.Logger) *FileMirror {
	if !cfg.Enabled() {
		return nil
	}
	if log == nil {
		log = slog.Default()
	}
	ch, cancel := b.Subscribe()
	m := &FileMirror{
		cfg:     cfg,
		log:     log,
		writers: make(map[string]io.WriteCloser),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go func() {
		defer close(m.done)
		for rec := range ch {
			m.write(rec)
		}
	}()
	return m
}

func (m *FileMirror) write(rec Record) {
	w := m.writer(rec, rec.Stream)
	if w == nil {
		return
	}
	if _, err := w.Write(append([]byte(rec.Text), '\n')); err != nil {
		m.log.Warn("log mirror write failed", "process", rec.Process, "error", err)
	}
}

// mirrorName builds the per-project file stem. The project directory's base
// name keeps the files readable; the hash of the full path keeps two projects
// with the same base name (or the same process name) apart.
func mirrorName(rec Record) string {
	h := fnv.New32a()
	_, _ = io.WriteString(h, rec.ProjectDir)
	return fmt.Sprintf("%s-%08x-%s", filepath.Base(rec.ProjectDir), h.Sum32(), rec.Process)
}

func (m *FileMirror) writer(rec Record, stream Stream) io.WriteCloser {
	name := mirrorName(rec)
	key := name + "." + string(stream)
	m.mu.Lock()
	defer m.mu.Unlock()
	if w, ok := m.writers[key]; ok {
		return w
	}
	outW, errW, err := m.cfg.Writers(name)
	if err != nil {
		m.log.Warn("log mirror setup failed", "process", rec.Process, "error", err)
		return nil
	}
	m.writers[name+"."+string(Stdout)] = outW
	m.writers[name+"."+string(Stderr)] = errW
	return m.writers[key]
}

// Close detaches from the broadcaster and closes all open writers.
func (m *FileMirror) Close() {
	if m == nil {
		return
	}
	m.cancel()
	<-m.done
	m.mu.Lock()
	for _, w := range m.writers {
		if w != nil {
			_ = w.Close()
		}
	}
	m.writers = nil
	m.mu.Unlock()
}
