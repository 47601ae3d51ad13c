package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"connect6/game"
	"connect6/searcher/agent"

	"github.com/rs/zerolog/log"
)

// RemotePolicy asks an agent server for moves. The session is created on
// the first decision and keeps its search tree between decisions.
type RemotePolicy struct {
	baseURL string
	client  *http.Client
	config  agent.SessionConfig

	mu      sync.Mutex
	session string
}

func NewRemotePolicy(baseURL string, config agent.SessionConfig, client *http.Client) *RemotePolicy {
	if client == nil {
		client = http.DefaultClient
	}
	return &RemotePolicy{baseURL: strings.TrimRight(baseURL, "/"), client: client, config: config}
}

func (p *RemotePolicy) Decide(ctx context.Context, b *game.Board) (agent.Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.session == "" {
		var created struct {
			ID string `json:"id"`
		}
		if err := p.call(ctx, http.MethodPost, "/sessions", p.config, http.StatusCreated, &created); err != nil {
			return agent.Decision{}, fmt.Errorf("creating session: %w", err)
		}
		p.session = created.ID
	}

	var decided agent.DecideResponse
	req := agent.DecideRequest{Grid: b.Encode(), History: b.History()}
	if err := p.call(ctx, http.MethodPost, "/sessions/"+p.session+"/decide", req, http.StatusOK, &decided); err != nil {
		return agent.Decision{}, err
	}

	if !b.IsLegal(decided.Move) {
		log.Warn().Msgf("agent server returned illegal move %s, playing first legal move", decided.Move)
		moves := b.LegalMoves()
		if len(moves) == 0 {
			return agent.Decision{}, game.ErrGameOver
		}
		return agent.Decision{Move: moves[0]}, nil
	}
	return agent.Decision{Move: decided.Move}, nil
}

// Close ends the server-side session.
func (p *RemotePolicy) Close(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == "" {
		return nil
	}
	err := p.call(ctx, http.MethodDelete, "/sessions/"+p.session, nil, http.StatusNoContent, nil)
	p.session = ""
	return err
}

func (p *RemotePolicy) call(ctx context.Context, method, path string, body any, status int, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		msg, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("agent server returned status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
