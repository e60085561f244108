package render

import (
	"bufio"
	"fmt"
	"io"

	"github.com/park285/stoneboard/internal/board"
)

// ASCII writes a text board. Stones are X (black) and O (white); the preview
// shows as x, o or * for a pending removal.
func ASCII(w io.Writer, state board.BoardState) error {
	var grid [board.Size + 1][board.Size + 1]byte
	for r := 1; r <= board.Size; r++ {
		for c := 1; c <= board.Size; c++ {
			grid[r][c] = '.'
		}
	}
	for _, sp := range starPoints {
		grid[sp[0]][sp[1]] = '+'
	}
	for _, mv := range state.Stones {
		if !board.InBounds(mv.Row, mv.Col) {
			continue
		}
		if mv.Color == board.White {
			grid[mv.Row][mv.Col] = 'O'
		} else {
			grid[mv.Row][mv.Col] = 'X'
		}
	}
	if p := state.Preview; !p.Empty() && board.InBounds(p.Row, p.Col) {
		switch p.Kind {
		case board.PreviewBlack:
			grid[p.Row][p.Col] = 'x'
		case board.PreviewWhite:
			grid[p.Row][p.Col] = 'o'
		case board.PreviewRemove:
			grid[p.Row][p.Col] = '*'
		}
	}

	bw := bufio.NewWriter(w)
	bw.WriteString("   ")
	for c := 1; c <= board.Size; c++ {
		fmt.Fprintf(bw, " %d", c)
	}
	bw.WriteString("\n")
	for r := 1; r <= board.Size; r++ {
		fmt.Fprintf(bw, "%2d ", r)
		for c := 1; c <= board.Size; c++ {
			bw.WriteByte(' ')
			bw.WriteByte(grid[r][c])
		}
		bw.WriteString("\n")
	}
	undo, redo := "-", "-"
	if state.CanUndo {
		undo = "undo"
	}
	if state.CanRedo {
		redo = "redo"
	}
	fmt.Fprintf(bw, "mode=%s remove=%t step=%d/%d [%s|%s]\n",
		state.Buttons.Color, state.Buttons.Remove, state.Cursor, state.Length-1, undo, redo)
	return bw.Flush()
}
