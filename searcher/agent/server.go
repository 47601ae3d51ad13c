package agent

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"connect6/game"
	"connect6/searcher"

	"github.com/cespare/xxhash/v2"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// SessionConfig sets the search budget of a session. At least one of
// Episodes and DurationMs must be positive.
type SessionConfig struct {
	Goroutines int `json:"goroutines"`
	Episodes   int `json:"episodes"`
	DurationMs int `json:"durationMs"`
}

type DecideRequest struct {
	Grid    game.Grid  `json:"grid"`
	History []game.Pos `json:"history,omitempty"`
}

type ChildVisits struct {
	Move   game.Pos `json:"move"`
	Visits int64    `json:"visits"`
}

type DecideResponse struct {
	Move     game.Pos      `json:"move"`
	Visits   int64         `json:"visits"`
	Value    float64       `json:"value"`
	Children []ChildVisits `json:"children"`
}

type session struct {
	mu     sync.Mutex // One decision at a time per tree
	policy Policy
}

// Server hosts search sessions over HTTP. Each session owns its own tree so
// consecutive decisions of one game reuse earlier work.
type Server struct {
	options  []searcher.Option
	mu       sync.Mutex
	sessions map[string]*session
	created  atomic.Uint64
}

// NewServer returns a session server whose searches use the given options
// together with each session's budget, which is applied last.
func NewServer(options ...searcher.Option) *Server {
	return &Server{options: options, sessions: make(map[string]*session)}
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/sessions", s.createSession)
	r.Delete("/sessions/{id}", s.deleteSession)
	r.Post("/sessions/{id}/decide", s.decide)
	return r
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var cfg SessionConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if cfg.Episodes <= 0 && cfg.DurationMs <= 0 {
		writeError(w, http.StatusBadRequest, "episodes or durationMs required")
		return
	}

	options := append(slices.Clone(s.options),
		searcher.WithEpisodes(cfg.Episodes),
		searcher.WithDuration(time.Duration(cfg.DurationMs)*time.Millisecond),
	)
	mcts := searcher.NewMCTS(max(cfg.Goroutines, 1), options...)

	n := s.created.Add(1)
	id := fmt.Sprintf("%016x", xxhash.Sum64String(fmt.Sprintf("%d/%d", n, time.Now().UnixNano())))
	s.mu.Lock()
	s.sessions[id] = &session{policy: NewEvaluationAgent(mcts)}
	s.mu.Unlock()

	log.Info().Str("session", id).Int("episodes", cfg.Episodes).Int("durationMs", cfg.DurationMs).Msg("session-created")
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) decide(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sess, ok := s.sessions[chi.URLParam(r, "id")]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req DecideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	b, err := game.DecodeGrid(req.Grid, req.History)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sess.mu.Lock()
	decision, err := sess.policy.Decide(r.Context(), b)
	sess.mu.Unlock()
	switch {
	case errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, searcher.ErrEvaluatorFailed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := DecideResponse{
		Move:     decision.Move,
		Visits:   decision.Search.Visits,
		Value:    decision.Search.Value,
		Children: make([]ChildVisits, 0, len(decision.Search.Children)),
	}
	for _, c := range decision.Search.Children {
		if c.Visits > 0 {
			resp.Children = append(resp.Children, ChildVisits{Move: c.Move, Visits: c.Visits})
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
