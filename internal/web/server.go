// Package web provides the HTTP status page and configuration API for the
// lamp-timer daemon.
package web

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/sweeney/lamp-timer/internal/status"
)

// applyTimeout bounds the wait for the poll loop to pick up a command.
const applyTimeout = 2 * time.Second

// Server serves the status page and the mutation API over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	commands   chan<- Command
}

// New creates a Server that reads state from the given tracker and queues
// mutations on the commands channel.
func New(addr string, tracker *status.Tracker, commands chan<- Command) *Server {
	s := &Server{tracker: tracker, commands: commands}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/", s.handleIndex)
	r.Get("/index.html", s.handleIndex)
	r.Get("/index.json", s.handleJSON)
	r.Route("/api", func(r chi.Router) {
		r.Post("/week-timer", s.handleWeekTimer)
		r.Post("/weekend-timer", s.handleWeekendTimer)
		r.Post("/datetime", s.handleDateTime)
		r.Post("/manual", s.handleManual)
		r.Post("/screen-blank", s.handleScreenBlank)
	})

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	renderHTML(w, snap)
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

func (s *Server) handleWeekTimer(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeTimerRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.dispatch(w, Command{Kind: CmdSetWeekTimer, Rule: rule})
}

func (s *Server) handleWeekendTimer(w http.ResponseWriter, r *http.Request) {
	rule, err := decodeTimerRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.dispatch(w, Command{Kind: CmdSetWeekendTimer, Rule: rule})
}

func (s *Server) handleDateTime(w http.ResponseWriter, r *http.Request) {
	date, minutes, err := decodeDateTimeRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.dispatch(w, Command{Kind: CmdSetDateTime, Date: date, Minutes: minutes})
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	s.dispatch(w, Command{Kind: CmdManualSwitch})
}

func (s *Server) handleScreenBlank(w http.ResponseWriter, r *http.Request) {
	timeout, err := decodeScreenBlankRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.dispatch(w, Command{Kind: CmdSetScreenBlank, Timeout: timeout})
}

// dispatch queues the command for the poll loop and waits for the outcome.
func (s *Server) dispatch(w http.ResponseWriter, cmd Command) {
	cmd.done = make(chan error, 1)

	select {
	case s.commands <- cmd:
	case <-time.After(applyTimeout):
		http.Error(w, "daemon busy", http.StatusServiceUnavailable)
		return
	}

	select {
	case err := <-cmd.done:
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	case <-time.After(applyTimeout):
		http.Error(w, "timed out waiting for the daemon", http.StatusGatewayTimeout)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
