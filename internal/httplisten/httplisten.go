// Package httplisten implements the HTTP listener pool: multiple named
// bind addresses, ApiListen route registration, and "wait for the full
// chain" response semantics (Open Question 3 in DESIGN.md). Route
// registration and rate limiting use per-route golang.org/x/time/rate
// limiters over a stdlib ServeMux, generalized from "enqueue and return
// 202" to "enqueue and hold the response open until the chain resolves".
package httplisten

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/songokas/hvents/internal/fileio"
	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/internal/template"
	"github.com/songokas/hvents/pkg/models"
)

// Fire is called once per incoming request that matches a registered
// route, carrying the parsed request body and request metadata.
type Fire func(eventName string, data models.Data, metadata map[string]string)

// Result is what the dispatcher reports back via Notify once a chain
// carrying a known request id terminates.
type Result struct {
	Payload models.Payload
	Err     error
}

// Pool holds one *http.Server (and its own mux) per configured pool id,
// the route-level rate limiters, and the table of in-flight requests
// waiting on their chain to finish.
type Pool struct {
	mu        sync.Mutex
	muxes     map[string]*http.ServeMux
	servers   map[string]*http.Server
	defaultID string
	limiters  map[string]*rate.Limiter
	pending   map[string]chan Result
	fire      Fire
	timeout   time.Duration
}

// New builds a Pool. chainTimeout bounds how long a request waits for its
// chain to terminate before the listener gives up and returns 504.
func New(fire Fire, chainTimeout time.Duration) *Pool {
	if chainTimeout <= 0 {
		chainTimeout = 30 * time.Second
	}
	return &Pool{
		muxes:    make(map[string]*http.ServeMux),
		servers:  make(map[string]*http.Server),
		limiters: make(map[string]*rate.Limiter),
		pending:  make(map[string]chan Result),
		fire:     fire,
		timeout:  chainTimeout,
	}
}

// Configure creates one server+mux pair per pool definition. The first
// configured pool becomes the target of an empty pool_id.
func (p *Pool) Configure(configs []models.HTTPPoolConfig) {
	for _, cfg := range configs {
		id := cfg.ID
		if id == "" {
			id = "default"
		}
		mux := http.NewServeMux()

		p.mu.Lock()
		p.muxes[id] = mux
		p.servers[id] = &http.Server{Addr: cfg.Bind, Handler: mux}
		if p.defaultID == "" {
			p.defaultID = id
		}
		p.mu.Unlock()
	}
}

func (p *Pool) resolveID(poolID string) string {
	if poolID != "" {
		return poolID
	}
	return p.defaultID
}

// AddRoute registers eventName to fire on requests matching cfg.
func (p *Pool) AddRoute(eventName string, cfg models.ApiListenConfig) error {
	p.mu.Lock()
	id := p.resolveID(cfg.PoolID)
	mux, ok := p.muxes[id]
	if !ok {
		p.mu.Unlock()
		return fmt.Errorf("api_listen %q: unknown pool %q", eventName, cfg.PoolID)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit != nil {
		burst := 1
		if cfg.Burst != nil {
			burst = *cfg.Burst
		}
		limiter = rate.NewLimiter(rate.Limit(*cfg.RateLimit), burst)
		p.limiters[eventName] = limiter
	}
	p.mu.Unlock()

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}
	pattern := fmt.Sprintf("%s %s", method, cfg.Path)

	mux.HandleFunc(pattern, p.handler(eventName, cfg, limiter))
	logger.L().Info("api_listen registered", "pool_id", id, "pattern", pattern, "event", eventName)
	return nil
}

func (p *Pool) handler(eventName string, cfg models.ApiListenConfig, limiter *rate.Limiter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if limiter != nil && !limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		raw, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "cannot read request body", http.StatusBadRequest)
			return
		}
		data, err := fileio.Decode(raw, cfg.RequestContent)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		requestID := uuid.NewString()
		resultCh := make(chan Result, 1)
		p.mu.Lock()
		p.pending[requestID] = resultCh
		p.mu.Unlock()
		defer func() {
			p.mu.Lock()
			delete(p.pending, requestID)
			p.mu.Unlock()
		}()

		metadata := map[string]string{
			models.MetadataRequestID: requestID,
			"method":                 r.Method,
			"path":                   r.URL.Path,
		}

		l := logger.L().With("event", eventName, "path", r.URL.Path, "request_id", requestID)
		l.Debug("api_listen request received")
		p.fire(eventName, data, metadata)

		select {
		case res := <-resultCh:
			p.respond(w, r, cfg, res)
		case <-time.After(p.timeout):
			l.Warn("api_listen chain timed out")
			http.Error(w, "timed out waiting for chain to complete", http.StatusGatewayTimeout)
		case <-r.Context().Done():
		}
	}
}

func (p *Pool) respond(w http.ResponseWriter, r *http.Request, cfg models.ApiListenConfig, res Result) {
	if res.Err != nil {
		http.Error(w, res.Err.Error(), http.StatusInternalServerError)
		return
	}

	body := res.Payload.Data.AsString()
	if cfg.ResponseBody != "" {
		scope := template.NewScope(res.Payload).WithRequest(r.Method, r.URL.Path, res.Payload.Data.AsString(), queryMap(r))
		rendered, err := template.Render(cfg.ResponseBody, scope)
		if err != nil {
			http.Error(w, fmt.Sprintf("render response_body: %v", err), http.StatusInternalServerError)
			return
		}
		body = rendered
	}

	w.Header().Set("Content-Type", contentType(cfg.ResponseContent))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

func queryMap(r *http.Request) map[string]string {
	out := make(map[string]string, len(r.URL.Query()))
	for k := range r.URL.Query() {
		out[k] = r.URL.Query().Get(k)
	}
	return out
}

func contentType(responseContent string) string {
	switch responseContent {
	case "json":
		return "application/json"
	case "bytes":
		return "application/octet-stream"
	default:
		return "text/plain"
	}
}

// Notify resolves the pending request for requestID, if one is waiting,
// with the chain's final payload/error. The dispatcher calls this whenever
// a chain carrying a known request id terminates; a miss (request_id not
// found, e.g. it already timed out) is a silent no-op.
func (p *Pool) Notify(requestID string, payload models.Payload, err error) {
	if requestID == "" {
		return
	}
	p.mu.Lock()
	ch, ok := p.pending[requestID]
	p.mu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- Result{Payload: payload, Err: err}:
	default:
	}
}

// Start launches every configured server in the background.
func (p *Pool) Start() {
	p.mu.Lock()
	servers := make(map[string]*http.Server, len(p.servers))
	for id, s := range p.servers {
		servers[id] = s
	}
	p.mu.Unlock()

	for id, s := range servers {
		go func(id string, s *http.Server) {
			logger.L().Info("http listener starting", "pool_id", id, "addr", s.Addr)
			if err := s.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.L().Error("http listener failed", "pool_id", id, "error", err)
			}
		}(id, s)
	}
}

// Stop gracefully shuts down every configured server.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	servers := make([]*http.Server, 0, len(p.servers))
	for _, s := range p.servers {
		servers = append(servers, s)
	}
	p.mu.Unlock()

	var firstErr error
	for _, s := range servers {
		if err := s.Shutdown(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
