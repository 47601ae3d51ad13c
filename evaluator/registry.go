package evaluator

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownEvaluator = errors.New("unknown evaluator")

const DefaultPlayouts = 16

// New builds a stateless evaluator by name. An empty name is the heuristic.
func New(name string) (Evaluator, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "heuristic":
		return NewHeuristic(), nil
	case "uniform":
		return Uniform{}, nil
	case "rollout":
		return NewRollout(DefaultPlayouts), nil
	case "symmetric":
		return Symmetric{Inner: NewHeuristic()}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvaluator, name)
	}
}
