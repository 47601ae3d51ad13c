package game

// Player doubles as the cell marker of the flat grid encoding.
type Player int8

const (
	Black Player = -1
	None  Player = 0
	White Player = 1
)

func (p Player) Opponent() Player {
	return -p
}

func (p Player) String() string {
	switch p {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "none"
	}
}

func (p Player) symbol() byte {
	switch p {
	case Black:
		return 'X'
	case White:
		return 'O'
	default:
		return '.'
	}
}
