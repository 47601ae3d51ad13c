package experiments

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"connect6/engine"
	"connect6/evaluator"
	"connect6/experiments/metrics"
	"connect6/game"
	"connect6/searcher"
	"connect6/searcher/agent"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
	"gopkg.in/yaml.v3"
)

const (
	NumGames   = 30 // Per match up
	TimeBudget = 10 * time.Millisecond
)

var ErrInvalidExperiment = errors.New("invalid experiment")

// Experiment pits agent configurations against each other. Each matchup
// lists two agent ids; colours alternate between games.
type Experiment struct {
	Name      string                `yaml:"name"`
	BoardSize int                   `yaml:"boardSize"`
	Games     int                   `yaml:"games"`
	MaxMoves  int                   `yaml:"maxMoves"`
	Workers   int                   `yaml:"workers"`
	Agents    []metrics.AgentConfig `yaml:"agents"`
	Matchups  [][]int               `yaml:"matchups"`
}

// MatchupSummary counts results from Agent1's point of view.
type MatchupSummary struct {
	Agent1, Agent2 int
	Wins, Losses   int
	Draws          int
	Unfinished     int
}

func LoadExperiment(path string) (Experiment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Experiment{}, err
	}
	var exp Experiment
	if err := yaml.Unmarshal(data, &exp); err != nil {
		return Experiment{}, fmt.Errorf("%w: %w", ErrInvalidExperiment, err)
	}
	return exp, exp.validate()
}

func (e *Experiment) validate() error {
	if e.Name == "" {
		e.Name = "experiment"
	}
	if e.BoardSize == 0 {
		e.BoardSize = game.DefaultSize
	}
	if e.Games <= 0 {
		e.Games = NumGames
	}
	if e.BoardSize < game.MinSize || e.BoardSize > game.MaxSize {
		return fmt.Errorf("%w: board size %d", ErrInvalidExperiment, e.BoardSize)
	}

	ids := lo.Map(e.Agents, func(c metrics.AgentConfig, _ int) int { return c.ID })
	if dup := lo.FindDuplicates(ids); len(dup) > 0 {
		return fmt.Errorf("%w: duplicate agent ids %v", ErrInvalidExperiment, dup)
	}
	for _, c := range e.Agents {
		if c.Episodes <= 0 && c.Duration <= 0 {
			return fmt.Errorf("%w: agent %d has no search budget", ErrInvalidExperiment, c.ID)
		}
		if _, err := evaluator.New(c.Evaluator); err != nil {
			return fmt.Errorf("%w: agent %d: %w", ErrInvalidExperiment, c.ID, err)
		}
	}
	for _, m := range e.Matchups {
		if len(m) != 2 {
			return fmt.Errorf("%w: matchup %v needs two agents", ErrInvalidExperiment, m)
		}
		if missing, _ := lo.Difference(m, ids); len(missing) > 0 {
			return fmt.Errorf("%w: matchup references unknown agents %v", ErrInvalidExperiment, missing)
		}
	}
	if len(e.Matchups) == 0 {
		return fmt.Errorf("%w: no matchups", ErrInvalidExperiment)
	}
	return nil
}

// Run plays every matchup and, when writer is not nil, stores the agent
// configs, game records and move records.
func Run(ctx context.Context, exp Experiment, writer *metrics.Writer) ([]MatchupSummary, error) {
	if err := exp.validate(); err != nil {
		return nil, err
	}
	configs := lo.KeyBy(exp.Agents, func(c metrics.AgentConfig) int { return c.ID })

	count := 0
	gameRecords := []metrics.GameRecord{}
	moveRecords := []metrics.MoveRecord{}
	summaries := make([]MatchupSummary, 0, len(exp.Matchups))

	log.Info().Msgf("starting %s experiment...", exp.Name)

	var options []engine.Option
	if exp.MaxMoves > 0 {
		options = append(options, engine.WithMaxMoves(exp.MaxMoves))
	}

	for mi, matchup := range exp.Matchups {
		config1 := configs[matchup[0]]
		config2 := configs[matchup[1]]

		log.Info().Msgf("starting matchup %d of %d between agent1=%+v and agent2=%+v...", mi+1, len(exp.Matchups), config1, config2)

		// Agent1 plays black in even games
		factory := func(i int) (agent.Policy, agent.Policy) {
			first := agent.NewEvaluationAgent(createMCTS(config1))
			second := agent.NewEvaluationAgent(createMCTS(config2))
			if i%2 == 0 {
				return first, second
			}
			return second, first
		}
		results, err := engine.RunMany(ctx, exp.BoardSize, exp.Games, exp.Workers, factory, options...)
		if err != nil {
			return nil, fmt.Errorf("matchup %d: %w", mi+1, err)
		}

		summary := MatchupSummary{Agent1: config1.ID, Agent2: config2.ID}
		for i, result := range results {
			count++
			black, white := config1.ID, config2.ID
			if i%2 == 1 {
				black, white = white, black
			}
			gameRecords = append(gameRecords, metrics.GameRecord{
				ID:             count,
				Agent1:         config1.ID,
				Agent2:         config2.ID,
				StartingPlayer: black,
				GameMetric:     result.GameMetric(),
			})
			for _, mm := range result.Metrics {
				id := black
				if game.Player(mm.Player) == game.White {
					id = white
				}
				moveRecords = append(moveRecords, metrics.MoveRecord{Game: count, Agent: id, MoveMetric: mm})
			}
			tally(&summary, result, i%2 == 0)
		}
		summaries = append(summaries, summary)
		log.Info().Msgf("completed matchup %d of %d: %+v", mi+1, len(exp.Matchups), summary)
	}

	log.Info().Msgf("completed %s experiment", exp.Name)

	if writer == nil {
		return summaries, nil
	}
	return summaries, store(writer, exp.Agents, gameRecords, moveRecords)
}

func tally(s *MatchupSummary, result engine.GameResult, agent1Black bool) {
	switch {
	case result.Status == game.Continue:
		s.Unfinished++
	case result.Status == game.Draw:
		s.Draws++
	case (result.Winner == game.Black) == agent1Black:
		s.Wins++
	default:
		s.Losses++
	}
}

func store(writer *metrics.Writer, configs []metrics.AgentConfig, games []metrics.GameRecord, moves []metrics.MoveRecord) error {
	if err := writer.WriteAgentConfigs(configs); err != nil {
		return fmt.Errorf("failed to store agent configs: %w", err)
	}
	log.Info().Msg("stored agent configs")

	if err := writer.WriteGameRecords(games); err != nil {
		return fmt.Errorf("failed to write game records: %w", err)
	}
	log.Info().Msg("stored game records")

	if err := writer.WriteMoveRecords(moves); err != nil {
		return fmt.Errorf("failed to write move records: %w", err)
	}
	gameIDs := lo.SliceToMap(games, func(r metrics.GameRecord) (int, string) { return r.ID, r.GameMetric.ID })
	if err := writer.WriteMoveParquet(moves, gameIDs); err != nil {
		return fmt.Errorf("failed to write move parquet: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored move records")
	return nil
}

func createMCTS(config metrics.AgentConfig) *searcher.MCTS {
	options := []searcher.Option{}

	if config.Episodes > 0 {
		options = append(options, searcher.WithEpisodes(config.Episodes))
	}
	if config.Duration > 0 {
		options = append(options, searcher.WithDuration(config.Duration))
	}
	if config.Exploration > 0 {
		options = append(options, searcher.WithExploration(config.Exploration))
	}
	if ev, err := evaluator.New(config.Evaluator); err == nil {
		options = append(options, searcher.WithEvaluator(ev))
	}

	options = append(options, searcher.WithMetrics())
	return searcher.NewMCTS(config.Goroutines, options...)
}
