package searcher

// Hyperparameters for MCTS

const DefaultExploration = 1.0 // c_puct

// Values are in [-1, 1] from the perspective of the player to act.
const (
	Win  = 1.0
	Loss = -Win
	Draw = 0.0
)

const DefaultVirtualLoss = 1.0 // Counted as a lost visit per in-flight simulation

const DefaultUnvisitedValue = 0.0 // Q of a child without visits

const DefaultRetries = 3 // Failed iterations retried before the search aborts

// Root noise as in AlphaZero
const (
	DefaultNoiseEpsilon = 0.25
	DefaultNoiseAlpha   = 0.03
)
