package turn

import (
	"testing"

	"github.com/park285/stoneboard/internal/board"
)

func TestResolveEmptyBoardIsBlack(t *testing.T) {
	if got := Resolve(nil, board.ModeBoth); got != board.Black {
		t.Fatalf("empty board: got %v", got)
	}
	if got := Resolve(board.MoveList{}, board.ModeBoth); got != board.Black {
		t.Fatalf("empty list: got %v", got)
	}
}

func TestResolveAlternatesOnAppendOrder(t *testing.T) {
	// Position on the board is irrelevant; only the last append counts.
	l := board.MoveList{
		{Row: 9, Col: 9, Color: board.Black},
		{Row: 1, Col: 1, Color: board.White},
	}
	if got := Resolve(l, board.ModeBoth); got != board.Black {
		t.Fatalf("after white: got %v", got)
	}
	l = l.With(board.Move{Row: 5, Col: 5, Color: board.Black})
	if got := Resolve(l, board.ModeBoth); got != board.White {
		t.Fatalf("after black: got %v", got)
	}
}

func TestResolveForcedMode(t *testing.T) {
	lists := []board.MoveList{
		nil,
		{{Row: 1, Col: 1, Color: board.Black}},
		{{Row: 1, Col: 1, Color: board.White}},
	}
	for _, l := range lists {
		if got := Resolve(l, board.ModeBlack); got != board.Black {
			t.Fatalf("forced black with %v: got %v", l, got)
		}
		if got := Resolve(l, board.ModeWhite); got != board.White {
			t.Fatalf("forced white with %v: got %v", l, got)
		}
	}
}
