package metrics

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

type AgentConfig struct {
	ID          int           `yaml:"id"`
	Goroutines  int           `yaml:"goroutines"`
	Duration    time.Duration `yaml:"duration"`
	Episodes    int           `yaml:"episodes"`
	Exploration float64       `yaml:"exploration"`
	Evaluator   string        `yaml:"evaluator"`
}

type GameRecord struct {
	ID             int
	Agent1         int // AgentConfig.ID
	Agent2         int // AgentConfig.ID
	StartingPlayer int // AgentConfig.ID of the agent playing black
	GameMetric
}

type MoveRecord struct {
	Game  int // GameRecord.ID
	Agent int // AgentConfig.ID
	MoveMetric
}

// moveRow is the Parquet layout of a MoveRecord.
type moveRow struct {
	Game         int32  `parquet:"game"`
	GameID       string `parquet:"game_id,dict"`
	Agent        int32  `parquet:"agent"`
	Step         int32  `parquet:"step"`
	Player       int32  `parquet:"player"`
	Goroutines   int32  `parquet:"goroutines"`
	DurationNs   int64  `parquet:"duration_ns"`
	Episodes     int32  `parquet:"episodes"`
	Expansions   int32  `parquet:"expansions"`
	TerminalHits int32  `parquet:"terminal_hits"`
	Retries      int32  `parquet:"retries"`
	IsTreeReset  bool   `parquet:"is_tree_reset"`
}

type Writer struct {
	baseDir string
}

// NewWriter creates a subfolder of root named by the experiment and the
// current timestamp.
func NewWriter(root, name string) (*Writer, error) {
	timestamp := time.Now().UTC().Format("20060102T150405.000Z")
	baseDir := filepath.Join(root, name, timestamp)
	err := os.MkdirAll(baseDir, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	return &Writer{
		baseDir: baseDir,
	}, nil
}

func (w *Writer) Dir() string {
	return w.baseDir
}

func (w *Writer) writeCSV(file string, header []string, rows [][]string) error {
	f, err := os.Create(filepath.Join(w.baseDir, file))
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", file, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", file, err)
	}
	if err := writer.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s rows: %w", file, err)
	}
	return nil
}

func (w *Writer) WriteAgentConfigs(configs []AgentConfig) error {
	header := []string{"id", "goroutines", "duration", "episodes", "exploration", "evaluator"}
	rows := make([][]string, 0, len(configs))
	for _, config := range configs {
		rows = append(rows, []string{
			strconv.Itoa(config.ID),
			strconv.Itoa(config.Goroutines),
			config.Duration.String(),
			strconv.Itoa(config.Episodes),
			strconv.FormatFloat(config.Exploration, 'f', -1, 64),
			config.Evaluator,
		})
	}
	return w.writeCSV("agent_configs.csv", header, rows)
}

func (w *Writer) WriteGameRecords(records []GameRecord) error {
	header := []string{"id", "game_id", "agent1", "agent2", "starting_player", "winner", "moves", "start_time", "end_time", "duration"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.ID),
			record.GameMetric.ID,
			strconv.Itoa(record.Agent1),
			strconv.Itoa(record.Agent2),
			strconv.Itoa(record.StartingPlayer),
			record.Winner,
			strconv.Itoa(record.TotalMoves),
			record.StartTime.Format(time.RFC3339),
			record.EndTime.Format(time.RFC3339),
			record.Duration.String(),
		})
	}
	return w.writeCSV("game_records.csv", header, rows)
}

func (w *Writer) WriteMoveRecords(records []MoveRecord) error {
	header := []string{"game", "agent", "step", "player", "goroutines", "duration", "episodes", "expansions", "terminal_hits", "retries", "is_tree_reset"}
	rows := make([][]string, 0, len(records))
	for _, record := range records {
		rows = append(rows, []string{
			strconv.Itoa(record.Game),
			strconv.Itoa(record.Agent),
			strconv.Itoa(record.Step),
			strconv.Itoa(record.Player),
			strconv.Itoa(record.Goroutines),
			record.Duration.String(),
			strconv.Itoa(record.Episodes),
			strconv.Itoa(record.Expansions),
			strconv.Itoa(record.TerminalHits),
			strconv.Itoa(record.Retries),
			strconv.FormatBool(record.IsTreeReset),
		})
	}
	return w.writeCSV("move_records.csv", header, rows)
}

// WriteMoveParquet stores move records as zstd-compressed Parquet. gameIDs
// maps GameRecord.ID to the game's content id.
func (w *Writer) WriteMoveParquet(records []MoveRecord, gameIDs map[int]string) error {
	rows := make([]moveRow, len(records))
	for i, record := range records {
		rows[i] = moveRow{
			Game:         int32(record.Game),
			GameID:       gameIDs[record.Game],
			Agent:        int32(record.Agent),
			Step:         int32(record.Step),
			Player:       int32(record.Player),
			Goroutines:   int32(record.Goroutines),
			DurationNs:   record.Duration.Nanoseconds(),
			Episodes:     int32(record.Episodes),
			Expansions:   int32(record.Expansions),
			TerminalHits: int32(record.TerminalHits),
			Retries:      int32(record.Retries),
			IsTreeReset:  record.IsTreeReset,
		}
	}

	// Write to a temp file and rename atomically.
	path := filepath.Join(w.baseDir, "move_records.parquet")
	tmpPath := path + ".tmp"
	_ = os.Remove(tmpPath)
	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", "move_record_v1"),
	); err != nil {
		return fmt.Errorf("write parquet: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}
