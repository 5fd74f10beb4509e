// Package adminserver implements the manual-trigger HTTP endpoint `hvents
// trigger` talks to: a mux-plus-http.Server shape, a decode-validate-
// enqueue-respond handler flow, and a graceful Stop(ctx). There is no
// config-reload route here — config hot-reload is an explicit Non-goal.
package adminserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Enqueuer is the subset of *queue.ReadyQueue the admin server needs; an
// interface here keeps this package from importing internal/queue just for
// a single method.
type Enqueuer interface {
	Enqueue(event models.Event) error
}

// Server exposes a single route, POST /hvents/trigger, that enqueues a
// named event with an optional literal payload exactly as if it had been
// reached via next_event.
type Server struct {
	mux    *http.ServeMux
	server *http.Server
	queue  Enqueuer
	state  *models.StateMap
}

func New(bind string, q Enqueuer, state *models.StateMap) *Server {
	mux := http.NewServeMux()
	s := &Server{mux: mux, queue: q, state: state, server: &http.Server{Addr: bind, Handler: mux}}
	mux.HandleFunc("/hvents/trigger", s.handleTrigger)
	return s
}

// Mux exposes the registered routes for tests.
func (s *Server) Mux() *http.ServeMux { return s.mux }

func (s *Server) Start() {
	go func() {
		logger.L().Info("admin server starting", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.L().Error("admin server failed", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type triggerRequest struct {
	EventName  string                 `json:"event_name"`
	Text       string                 `json:"text"`
	Structured map[string]interface{} `json:"data"`
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	var req triggerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.EventName == "" {
		http.Error(w, "Bad Request: missing event_name", http.StatusBadRequest)
		return
	}

	payload := models.NewPayload(s.state)
	switch {
	case req.Structured != nil:
		payload.Data = models.StructuredData(req.Structured)
	case req.Text != "":
		payload.Data = models.TextData(req.Text)
	}

	event := models.Event{
		Name:      req.EventName,
		SourceID:  "cli_trigger",
		Type:      models.EventTypeManual,
		Timestamp: time.Now(),
		Payload:   payload,
	}

	if err := s.queue.Enqueue(event); err != nil {
		logger.L().Error("trigger enqueue failed", "event", req.EventName, "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	fmt.Fprintf(w, "event %q enqueued", req.EventName)
}
