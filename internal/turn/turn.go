package turn

import "github.com/park285/stoneboard/internal/board"

// Resolve returns the color of the next stone. A forced mode always wins, so
// both players may play the same color. In BOTH mode turns alternate on the
// most recently appended move, and black opens an empty board.
func Resolve(list board.MoveList, mode board.ColorMode) board.Stone {
	switch mode {
	case board.ModeBlack:
		return board.Black
	case board.ModeWhite:
		return board.White
	}
	last, ok := list.Last()
	if !ok {
		return board.Black
	}
	return last.Color.Opposite()
}
