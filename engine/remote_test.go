package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"connect6/evaluator"
	"connect6/game"
	"connect6/searcher"
	"connect6/searcher/agent"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func TestRemotePolicy(t *testing.T) {
	ctx := context.Background()

	t.Run("plays a game against the agent server", func(t *testing.T) {
		srv := httptest.NewServer(agent.NewServer(searcher.WithEvaluator(evaluator.Uniform{})).Handler())
		defer srv.Close()

		remote := NewRemotePolicy(srv.URL, agent.SessionConfig{Goroutines: 2, Episodes: 10}, srv.Client())
		e, err := LocalEngine(remote, agent.NewRandomAgent(5), 9, WithMaxMoves(6))
		require.NoError(t, err)

		result, err := e.Run(ctx)
		require.NoError(t, err)
		require.Equal(t, 6, result.Moves())
		require.NoError(t, remote.Close(ctx))
		require.NoError(t, remote.Close(ctx), "Closing twice is a no-op")
	})

	t.Run("falls back on an illegal move", func(t *testing.T) {
		r := chi.NewRouter()
		r.Post("/sessions", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{"id": "s"})
		})
		r.Post("/sessions/{id}/decide", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(agent.DecideResponse{Move: game.Pos{Row: 4, Col: 4}})
		})
		srv := httptest.NewServer(r)
		defer srv.Close()

		b, err := game.NewBoard(9)
		require.NoError(t, err)
		_, err = b.Play(game.Pos{Row: 4, Col: 4})
		require.NoError(t, err)

		decision, err := NewRemotePolicy(srv.URL, agent.SessionConfig{Episodes: 1}, nil).Decide(ctx, b)
		require.NoError(t, err)
		require.Equal(t, game.Pos{Row: 0, Col: 0}, decision.Move)
	})

	t.Run("surfaces server errors", func(t *testing.T) {
		srv := httptest.NewServer(agent.NewServer().Handler())
		defer srv.Close()

		b, err := game.NewBoard(9)
		require.NoError(t, err)
		_, err = NewRemotePolicy(srv.URL, agent.SessionConfig{}, nil).Decide(ctx, b)
		require.ErrorContains(t, err, "status 400")
	})
}
