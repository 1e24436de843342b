// Package server exposes the supervisor over HTTP. The gin handler is
// embeddable: Handler() returns a plain http.Handler that can be mounted in
// any mux or framework, and NewServer wraps it in a standalone http.Server.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ternlight/devmux/internal/config"
	"github.com/ternlight/devmux/internal/logbus"
	"github.com/ternlight/devmux/internal/metrics"
	"github.com/ternlight/devmux/internal/proc"
	"github.com/ternlight/devmux/internal/store"
	"github.com/ternlight/devmux/internal/supervisor"
)

// Router provides embeddable HTTP handlers for the supervisor.
// Endpoints (under basePath):
//
//	POST   /start      query: project=...&name=...
//	POST   /stop       query: project=...&name=...
//	POST   /input      query: project=...&name=...   body: {"data": "..."}
//	GET    /status     query: project=...&name=...
//	GET    /statuses   query: project=...
//	GET    /projects
//	POST   /projects   body: {"path": "..."}
//	DELETE /projects   query: path=...
//	GET    /config     query: project=...
//	PUT    /config     query: project=...            body: {"contents": "..."}
//	GET    /logs/tail  query: project=...&name=... (name optional)
//	DELETE /logs       query: project=...&name=...
//	GET    /logs       SSE stream, same selectors as /logs/tail
//	GET    /events     SSE stream of state transitions
//	GET    /metrics    Prometheus exposition
type Router struct {
	sup      *supervisor.Supervisor
	registry store.Store
	tail     *logbus.Tail
	basePath string
	log      *slog.Logger
}

// NewRouter constructs a Router with a configurable basePath, e.g. "/api".
func NewRouter(sup *supervisor.Supervisor, registry store.Store, tail *logbus.Tail, basePath string) *Router {
	return &Router{
		sup:      sup,
		registry: registry,
		tail:     tail,
		basePath: sanitizeBase(basePath),
		log:      slog.Default().With("component", "server"),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted anywhere.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.POST("/start", r.handleStart)
	group.POST("/stop", r.handleStop)
	group.POST("/input", r.handleInput)
	group.GET("/status", r.handleStatus)
	group.GET("/statuses", r.handleStatuses)
	group.GET("/projects", r.handleListProjects)
	group.POST("/projects", r.handleAddProject)
	group.DELETE("/projects", r.handleRemoveProject)
	group.GET("/config", r.handleGetConfig)
	group.PUT("/config", r.handlePutConfig)
	group.GET("/logs/tail", r.handleLogsTail)
	group.DELETE("/logs", r.handleClearLogs)
	group.GET("/logs", r.handleLogsStream)
	group.GET("/events", r.handleEvents)
	group.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, r *Router) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

// selector pulls and validates the project/name pair used by most endpoints.
func (r *Router) selector(c *gin.Context) (proc.Key, bool) {
	project := c.Query("project")
	name := c.Query("name")
	if !isSafeAbsPath(project) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "project must be an absolute path without traversal"})
		return proc.Key{}, false
	}
	if !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-]"})
		return proc.Key{}, false
	}
	return proc.Key{ProjectDir: project, Name: name}, true
}

func (r *Router) writeErr(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, supervisor.ErrUnknownProcess):
		code = http.StatusNotFound
	case errors.Is(err, supervisor.ErrAlreadyRunning), errors.Is(err, supervisor.ErrNotRunning):
		code = http.StatusConflict
	}
	writeJSON(c, code, errorResp{Error: err.Error()})
}

func (r *Router) handleStart(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	if err := r.sup.Start(key); err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStop(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	if err := r.sup.Stop(key); err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

type inputReq struct {
	Data string `json:"data"`
}

func (r *Router) handleInput(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	var req inputReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := r.sup.WriteInput(key, []byte(req.Data)); err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleStatus(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	st, err := r.sup.Status(key)
	if err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func (r *Router) handleStatuses(c *gin.Context) {
	project := c.Query("project")
	if !isSafeAbsPath(project) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "project must be an absolute path without traversal"})
		return
	}
	writeJSON(c, http.StatusOK, r.sup.Statuses(project))
}

type addProjectReq struct {
	Path string `json:"path"`
}

// handleAddProject registers a project: an existing devmux.yml wins, otherwise
// the detection heuristics seed the process list without writing a file.
func (r *Router) handleAddProject(c *gin.Context) {
	var req addProjectReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if !isSafeAbsPath(req.Path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "path must be an absolute path without traversal"})
		return
	}
	pc, err := config.Load(req.Path)
	if err != nil {
		pc = proc.ProjectConfig{
			Name:      config.ProjectName(req.Path),
			Processes: config.Detect(req.Path),
		}
	}
	if err := r.registry.AddProject(c.Request.Context(), store.Project{Path: req.Path, Name: pc.Name}); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if err := r.sup.Apply(req.Path, pc); err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleRemoveProject(c *gin.Context) {
	path := c.Query("path")
	if !isSafeAbsPath(path) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "path must be an absolute path without traversal"})
		return
	}
	r.sup.RemoveProject(path)
	if err := r.registry.RemoveProject(c.Request.Context(), path); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleListProjects(c *gin.Context) {
	list, err := r.registry.ListProjects(c.Request.Context())
	if err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	if list == nil {
		list = []store.Project{}
	}
	writeJSON(c, http.StatusOK, list)
}

type configResp struct {
	Path     string `json:"path"`
	Contents string `json:"contents"`
}

func (r *Router) handleGetConfig(c *gin.Context) {
	project := c.Query("project")
	if !isSafeAbsPath(project) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "project must be an absolute path without traversal"})
		return
	}
	path, contents, err := config.ReadRaw(project)
	if err != nil {
		writeJSON(c, http.StatusNotFound, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, configResp{Path: path, Contents: contents})
}

type putConfigReq struct {
	Contents string `json:"contents"`
}

// handlePutConfig replaces the config file and re-applies the parsed result
// so new process definitions take effect without a daemon restart.
func (r *Router) handlePutConfig(c *gin.Context) {
	project := c.Query("project")
	if !isSafeAbsPath(project) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "project must be an absolute path without traversal"})
		return
	}
	var req putConfigReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	if err := config.WriteRaw(project, req.Contents); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	pc, err := config.Load(project)
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := r.sup.Apply(project, pc); err != nil {
		r.writeErr(c, err)
		return
	}
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

func (r *Router) handleLogsTail(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	recs := r.tail.Records(key)
	if recs == nil {
		recs = []logbus.Record{}
	}
	writeJSON(c, http.StatusOK, recs)
}

func (r *Router) handleClearLogs(c *gin.Context) {
	key, ok := r.selector(c)
	if !ok {
		return
	}
	r.tail.Clear(key)
	writeJSON(c, http.StatusOK, okResp{OK: true})
}

// handleLogsStream serves an SSE stream: the retained tail first, then live
// records in arrival order. Subscribing before replay keeps the stream gapless;
// a record may appear in both phases but none is skipped.
func (r *Router) handleLogsStream(c *gin.Context) {
	project := c.Query("project")
	name := c.Query("name")
	if !isSafeAbsPath(project) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "project must be an absolute path without traversal"})
		return
	}
	if name != "" && !isSafeName(name) {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid name: allowed [A-Za-z0-9._-]"})
		return
	}
	match := func(rec logbus.Record) bool {
		return rec.ProjectDir == project && (name == "" || rec.Process == name)
	}

	ch, cancel := r.sup.Logs().Subscribe()
	defer cancel()

	sseHeaders(c)
	if name != "" {
		for _, rec := range r.tail.Records(proc.Key{ProjectDir: project, Name: name}) {
			if !sseSend(c, rec) {
				return
			}
		}
	}
	streamSSE(c, ch, match)
}

// handleEvents serves the state-transition feed as SSE.
func (r *Router) handleEvents(c *gin.Context) {
	ch, cancel := r.sup.Events()
	defer cancel()

	sseHeaders(c)
	streamSSE(c, ch, func(supervisor.StatusEvent) bool { return true })
}

func sseHeaders(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)
	c.Writer.Flush()
}

// sseSend writes one SSE data frame. Returns false once the client is gone.
func sseSend[T any](c *gin.Context, v T) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	if _, err := io.WriteString(c.Writer, "data: "+string(b)+"\n\n"); err != nil {
		return false
	}
	c.Writer.Flush()
	return true
}

func streamSSE[T any](c *gin.Context, ch <-chan T, match func(T) bool) {
	ctx := c.Request.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-ch:
			if !ok {
				return
			}
			if !match(v) {
				continue
			}
			if !sseSend(c, v) {
				return
			}
		}
	}
}
