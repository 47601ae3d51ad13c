package engine

import (
	"context"

	"connect6/searcher/agent"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// PolicyFactory builds fresh policies for the i-th game so concurrent games
// never share a search tree.
type PolicyFactory func(i int) (black, white agent.Policy)

// RunMany plays games concurrently, at most workers at a time, and returns
// the results in game order. The first failing game cancels the rest.
func RunMany(ctx context.Context, size, games, workers int, factory PolicyFactory, options ...Option) ([]GameResult, error) {
	results := make([]GameResult, games)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	for i := range games {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			black, white := factory(i)
			e, err := LocalEngine(black, white, size, options...)
			if err != nil {
				return err
			}
			result, err := e.Run(gctx)
			if err != nil {
				return err
			}
			results[i] = result
			log.Info().Msgf("completed game %d of %d with winner: %s", i+1, games, result.Winner)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
