package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"connect6/config"
	"connect6/engine"
	"connect6/evaluator"
	"connect6/experiments"
	"connect6/experiments/metrics"
	"connect6/game"
	"connect6/searcher/agent"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

const usage = `usage: connect6 [-config file] <command> [flags]

commands:
  play        play against the engine in the terminal
  selfplay    let the engine play itself
  experiment  run matchups from a YAML file or a preset
  serve       serve search sessions over HTTP
`

func main() {
	global := flag.NewFlagSet("connect6", flag.ExitOnError)
	configPath := global.String("config", "", "path to a YAML config file")
	global.Usage = func() { fmt.Fprint(os.Stderr, usage) }
	_ = global.Parse(os.Args[1:])
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg.Log.SetupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ev, closeEvaluator, err := cfg.NewEvaluator()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create evaluator")
	}
	defer closeEvaluator()

	command, args := global.Arg(0), global.Args()[1:]
	switch command {
	case "play":
		err = play(ctx, cfg, ev, args)
	case "selfplay":
		err = selfPlay(ctx, cfg, ev, args)
	case "experiment":
		err = experiment(ctx, cfg, args)
	case "serve":
		err = serve(ctx, cfg, ev, args)
	default:
		global.Usage()
		os.Exit(2)
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msgf("%s failed", command)
		closeEvaluator()
		os.Exit(1)
	}
}

func play(ctx context.Context, cfg config.Config, ev evaluator.Evaluator, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	color := fs.String("color", "black", "your colour: black or white")
	_ = fs.Parse(args)

	l, err := readline.NewEx(&readline.Config{
		Prompt:      "> ",
		HistoryFile: "/tmp/connect6.readline.tmp",
	})
	if err != nil {
		return err
	}
	defer l.Close()

	human := agent.NewIOAgent(l, l.Stdout())
	machine := agent.NewEvaluationAgent(cfg.NewMCTS(ev, false))
	black, white := human, machine
	if strings.EqualFold(*color, "white") {
		black, white = machine, human
	}

	e, err := engine.LocalEngine(black, white, cfg.BoardSize)
	if err != nil {
		return err
	}
	result, err := e.Run(ctx)
	if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
		return nil
	}
	if err != nil {
		return err
	}

	out := l.Stdout()
	if n := len(result.Turns); n > 0 {
		final, err := game.DecodeGrid(result.Turns[n-1].Grid, lo.Map(result.Turns, func(t engine.Turn, _ int) game.Pos { return t.Pos }))
		if err != nil {
			return err
		}
		_ = final.Render(out)
	}
	fmt.Fprintf(out, "%s after %d moves, winner: %s\n", result.Status, result.Moves(), result.Winner)
	return nil
}

func selfPlay(ctx context.Context, cfg config.Config, ev evaluator.Evaluator, args []string) error {
	fs := flag.NewFlagSet("selfplay", flag.ExitOnError)
	games := fs.Int("games", cfg.SelfPlay.Games, "number of games")
	workers := fs.Int("workers", cfg.SelfPlay.Workers, "games played at once")
	_ = fs.Parse(args)

	factory := func(i int) (agent.Policy, agent.Policy) {
		seed := cfg.SelfPlay.Seed + uint64(2*i)
		black := agent.NewTrainingAgent(cfg.NewMCTS(ev, true), cfg.SelfPlay.Temperature, seed)
		white := agent.NewTrainingAgent(cfg.NewMCTS(ev, true), cfg.SelfPlay.Temperature, seed+1)
		return black, white
	}
	var options []engine.Option
	if cfg.SelfPlay.MaxMoves > 0 {
		options = append(options, engine.WithMaxMoves(cfg.SelfPlay.MaxMoves))
	}

	start := time.Now()
	results, err := engine.RunMany(ctx, cfg.BoardSize, *games, *workers, factory, options...)
	if err != nil {
		return err
	}

	wins := lo.CountValuesBy(results, func(r engine.GameResult) string { return r.Winner.String() })
	log.Info().
		Int("games", len(results)).
		Int("black", wins[game.Black.String()]).
		Int("white", wins[game.White.String()]).
		Int("none", wins[game.None.String()]).
		Dur("elapsed", time.Since(start)).
		Msg("selfplay-complete")

	writer, err := metrics.NewWriter(cfg.OutputDir, "selfplay")
	if err != nil {
		return err
	}
	records := lo.Map(results, func(r engine.GameResult, i int) metrics.GameRecord {
		return metrics.GameRecord{ID: i + 1, GameMetric: r.GameMetric()}
	})
	moves := lo.FlatMap(results, func(r engine.GameResult, i int) []metrics.MoveRecord {
		return lo.Map(r.Metrics, func(m metrics.MoveMetric, _ int) metrics.MoveRecord {
			return metrics.MoveRecord{Game: i + 1, MoveMetric: m}
		})
	})
	if err := writer.WriteGameRecords(records); err != nil {
		return err
	}
	return writer.WriteMoveRecords(moves)
}

func experiment(ctx context.Context, cfg config.Config, args []string) error {
	fs := flag.NewFlagSet("experiment", flag.ExitOnError)
	file := fs.String("file", "", "experiment YAML file")
	preset := fs.String("preset", "", "built-in experiment: throughput or strength")
	games := fs.Int("games", experiments.NumGames, "games per matchup for presets")
	duration := fs.Duration("duration", experiments.TimeBudget, "search time per move for presets")
	_ = fs.Parse(args)

	var exp experiments.Experiment
	switch {
	case *file != "":
		var err error
		if exp, err = experiments.LoadExperiment(*file); err != nil {
			return err
		}
	case *preset == "throughput":
		exp = experiments.ThroughputExperiment(cfg.BoardSize, *games, *duration)
	case *preset == "strength":
		exp = experiments.StrengthExperiment(cfg.BoardSize, *games, *duration)
	default:
		return errors.New("experiment needs -file or -preset")
	}

	writer, err := metrics.NewWriter(cfg.OutputDir, exp.Name)
	if err != nil {
		return err
	}
	summaries, err := experiments.Run(ctx, exp, writer)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		log.Info().Msgf("agent %d vs agent %d: %d wins, %d losses, %d draws, %d unfinished",
			s.Agent1, s.Agent2, s.Wins, s.Losses, s.Draws, s.Unfinished)
	}
	return nil
}

func serve(ctx context.Context, cfg config.Config, ev evaluator.Evaluator, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := fs.String("addr", cfg.Addr, "listen address")
	_ = fs.Parse(args)

	server := agent.NewServer(cfg.SearchOptions(ev, false)...)
	srv := &http.Server{Addr: *addr, Handler: server.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Msgf("HTTP server Shutdown: %v", err)
		}
	}()

	log.Info().Msgf("agent server listening on %s", *addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
