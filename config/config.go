// Package config loads engine settings from an optional YAML file and
// CONNECT6_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"connect6/evaluator"
	"connect6/game"
	"connect6/searcher"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const EnvPrefix = "CONNECT6"

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type SearchConfig struct {
	Goroutines   int           `mapstructure:"goroutines"`
	Episodes     int           `mapstructure:"episodes"`
	Duration     time.Duration `mapstructure:"duration"`
	Exploration  float64       `mapstructure:"exploration"`
	VirtualLoss  float64       `mapstructure:"virtual_loss"`
	Retries      int           `mapstructure:"retries"`
	NoiseEpsilon float64       `mapstructure:"noise_epsilon"`
	NoiseAlpha   float64       `mapstructure:"noise_alpha"`
	TreeReuse    bool          `mapstructure:"tree_reuse"`
}

type EvaluatorConfig struct {
	Name          string        `mapstructure:"name"`
	Symmetric     bool          `mapstructure:"symmetric"`
	CacheFraction float64       `mapstructure:"cache_fraction"` // Of system memory; 0 disables the cache
	ModelPath     string        `mapstructure:"model_path"`     // Selects the ONNX evaluator when set
	Sessions      int           `mapstructure:"sessions"`
	BatchSize     int           `mapstructure:"batch_size"`
	BatchTimeout  time.Duration `mapstructure:"batch_timeout"`
}

type SelfPlayConfig struct {
	Games       int     `mapstructure:"games"`
	Workers     int     `mapstructure:"workers"`
	MaxMoves    int     `mapstructure:"max_moves"`
	Temperature float64 `mapstructure:"temperature"`
	Seed        uint64  `mapstructure:"seed"`
}

type Config struct {
	BoardSize int             `mapstructure:"board_size"`
	OutputDir string          `mapstructure:"output_dir"`
	Addr      string          `mapstructure:"addr"`
	Log       LogConfig       `mapstructure:"log"`
	Search    SearchConfig    `mapstructure:"search"`
	Evaluator EvaluatorConfig `mapstructure:"evaluator"`
	SelfPlay  SelfPlayConfig  `mapstructure:"selfplay"`
}

var ErrInvalid = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("board_size", game.DefaultSize)
	v.SetDefault("output_dir", "experiments")
	v.SetDefault("addr", ":8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)

	v.SetDefault("search.goroutines", 8)
	v.SetDefault("search.episodes", 800)
	v.SetDefault("search.duration", time.Duration(0))
	v.SetDefault("search.exploration", searcher.DefaultExploration)
	v.SetDefault("search.virtual_loss", searcher.DefaultVirtualLoss)
	v.SetDefault("search.retries", searcher.DefaultRetries)
	v.SetDefault("search.noise_epsilon", searcher.DefaultNoiseEpsilon)
	v.SetDefault("search.noise_alpha", searcher.DefaultNoiseAlpha)
	v.SetDefault("search.tree_reuse", true)

	v.SetDefault("evaluator.name", "heuristic")
	v.SetDefault("evaluator.symmetric", false)
	v.SetDefault("evaluator.cache_fraction", 0.0)
	v.SetDefault("evaluator.model_path", "")
	v.SetDefault("evaluator.sessions", 1)
	v.SetDefault("evaluator.batch_size", evaluator.DefaultBatchSize)
	v.SetDefault("evaluator.batch_timeout", evaluator.DefaultBatchTimeout)

	v.SetDefault("selfplay.games", 10)
	v.SetDefault("selfplay.workers", 2)
	v.SetDefault("selfplay.max_moves", 0)
	v.SetDefault("selfplay.temperature", 1.0)
	v.SetDefault("selfplay.seed", 0)
}

// Load reads the config file at path, if any, over the defaults. Environment
// variables such as CONNECT6_SEARCH_EPISODES override both.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.BoardSize < game.MinSize || c.BoardSize > game.MaxSize {
		return fmt.Errorf("%w: board size %d", ErrInvalid, c.BoardSize)
	}
	if c.Search.Episodes <= 0 && c.Search.Duration <= 0 {
		return fmt.Errorf("%w: search needs episodes or a duration", ErrInvalid)
	}
	if c.Evaluator.ModelPath == "" {
		if _, err := evaluator.New(c.Evaluator.Name); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalid, err)
		}
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// SetupLogging applies the log level and output format globally.
func (c LogConfig) SetupLogging() {
	level, err := zerolog.ParseLevel(c.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if c.Pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
}

// NewEvaluator builds the configured evaluator. The returned function
// releases model sessions and must be called once the evaluator is unused.
func (c Config) NewEvaluator() (evaluator.Evaluator, func(), error) {
	var ev evaluator.Evaluator
	closer := func() {}
	if c.Evaluator.ModelPath != "" {
		model, err := evaluator.NewONNX(c.BoardSize, evaluator.ONNXConfig{
			ModelPath:    c.Evaluator.ModelPath,
			Sessions:     c.Evaluator.Sessions,
			BatchSize:    c.Evaluator.BatchSize,
			BatchTimeout: c.Evaluator.BatchTimeout,
		})
		if err != nil {
			return nil, nil, err
		}
		ev, closer = model, model.Close
	} else {
		var err error
		if ev, err = evaluator.New(c.Evaluator.Name); err != nil {
			return nil, nil, err
		}
	}

	if c.Evaluator.Symmetric {
		ev = evaluator.Symmetric{Inner: ev}
	}
	if c.Evaluator.CacheFraction > 0 {
		ev = evaluator.NewCache(ev, evaluator.CacheCapacity(c.Evaluator.CacheFraction, c.BoardSize))
	}
	return ev, closer, nil
}

// SearchOptions translates the search settings, except the budget, into
// searcher options. Root noise is only added when noise is true.
func (c Config) SearchOptions(ev evaluator.Evaluator, noise bool) []searcher.Option {
	options := []searcher.Option{
		searcher.WithExploration(c.Search.Exploration),
		searcher.WithVirtualLoss(c.Search.VirtualLoss),
		searcher.WithRetries(c.Search.Retries),
		searcher.WithTreeReuse(c.Search.TreeReuse),
		searcher.WithMetrics(),
	}
	if ev != nil {
		options = append(options, searcher.WithEvaluator(ev))
	}
	if noise {
		options = append(options, searcher.WithDirichletNoise(c.Search.NoiseEpsilon, c.Search.NoiseAlpha))
	}
	return options
}

func (c Config) NewMCTS(ev evaluator.Evaluator, noise bool) *searcher.MCTS {
	options := append(c.SearchOptions(ev, noise),
		searcher.WithEpisodes(c.Search.Episodes),
		searcher.WithDuration(c.Search.Duration),
	)
	return searcher.NewMCTS(c.Search.Goroutines, options...)
}
