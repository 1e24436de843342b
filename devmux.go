// Package devmux supervises the long-running processes of local development
// projects. This package is the embedding facade: it re-exports the core
// types and wraps the supervisor behind a stable API.
package devmux

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ternlight/devmux/internal/config"
	"github.com/ternlight/devmux/internal/history"
	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/metrics"
	"github.com/ternlight/devmux/internal/proc"
	iapi "github.com/ternlight/devmux/internal/server"
	"github.com/ternlight/devmux/internal/store"
	"github.com/ternlight/devmux/internal/supervisor"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Spec = proc.Spec

type ProjectConfig = proc.ProjectConfig

type Key = proc.Key

type State = supervisor.State

const (
	StateStopped = supervisor.StateStopped
	StateRunning = supervisor.StateRunning
	StateCrashed = supervisor.StateCrashed
)

type ProcessStatus = supervisor.ProcessStatus

type StatusEvent = supervisor.StatusEvent

type LogRecord = logbus.Record

type HistorySink = history.Sink

// Supervisor is a thin facade over the internal supervisor. It provides a
// stable public API for embedding.
type Supervisor struct{ inner *supervisor.Supervisor }

func New() *Supervisor { return &Supervisor{inner: supervisor.New()} }

func (s *Supervisor) Register(key Key, spec Spec) error  { return s.inner.Register(key, spec) }
func (s *Supervisor) Apply(dir string, pc ProjectConfig) error {
	return s.inner.Apply(dir, pc)
}
func (s *Supervisor) Start(key Key) error                  { return s.inner.Start(key) }
func (s *Supervisor) StartSpec(key Key, spec Spec) error   { return s.inner.StartSpec(key, spec) }
func (s *Supervisor) Stop(key Key) error                   { return s.inner.Stop(key) }
func (s *Supervisor) WriteInput(key Key, b []byte) error   { return s.inner.WriteInput(key, b) }
func (s *Supervisor) Status(key Key) (ProcessStatus, error) { return s.inner.Status(key) }
func (s *Supervisor) Statuses(dir string) []ProcessStatus  { return s.inner.Statuses(dir) }
func (s *Supervisor) RemoveProject(dir string)             { s.inner.RemoveProject(dir) }
func (s *Supervisor) StopAll()                             { s.inner.StopAll() }
func (s *Supervisor) Shutdown()                            { s.inner.Shutdown() }
func (s *Supervisor) SetHistorySinks(sinks ...HistorySink) { s.inner.SetHistorySinks(sinks...) }

// SubscribeLogs returns the ordered stream of process output records.
func (s *Supervisor) SubscribeLogs() (<-chan LogRecord, func()) {
	return s.inner.Logs().Subscribe()
}

// SubscribeEvents returns the stream of state transitions.
func (s *Supervisor) SubscribeEvents() (<-chan StatusEvent, func()) {
	return s.inner.Events()
}

// LoadConfig reads a project's devmux.yml.
func LoadConfig(projectDir string) (ProjectConfig, error) {
	return config.Load(projectDir)
}

// InitConfig scaffolds a devmux.yml using the detection heuristics.
func InitConfig(projectDir string) (ProjectConfig, error) {
	return config.Init(projectDir)
}

// NewAPIHandler returns the daemon API as a mountable http.Handler, backed by
// an in-memory project registry. The returned cleanup func releases the
// registry and the log tail subscription; call it when the handler is
// unmounted.
func NewAPIHandler(basePath string, s *Supervisor) (http.Handler, func(), error) {
	registry, err := store.NewSQLiteStore("")
	if err != nil {
		return nil, nil, err
	}
	if err := registry.EnsureSchema(context.Background()); err != nil {
		_ = registry.Close()
		return nil, nil, err
	}
	tail := logbus.NewTail(s.inner.Logs(), logbus.DefaultTailLines)
	cleanup := func() {
		tail.Close()
		_ = registry.Close()
	}
	return iapi.NewRouter(s.inner, registry, tail, basePath).Handler(), cleanup, nil
}

// NewHTTPServer starts an HTTP server on addr exposing the daemon API for the
// given supervisor. The handler's backing resources are released when the
// server shuts down.
func NewHTTPServer(addr, basePath string, s *Supervisor) (*http.Server, error) {
	h, cleanup, err := NewAPIHandler(basePath, s)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	srv.RegisterOnShutdown(cleanup)
	go func() { _ = srv.ListenAndServe() }()
	return srv, nil
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the
// default registry. It runs in the caller goroutine.
func ServeMetrics(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
