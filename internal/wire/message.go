package wire

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/park285/stoneboard/internal/board"
)

// ErrMalformed is returned for messages that violate the sync schema.
var ErrMalformed = errors.New("malformed sync message")

type buttonState struct {
	Color  *int  `json:"color"`
	Remove *bool `json:"remove"`
}

// message mirrors the JSON exchanged between peers. Pointers distinguish a
// missing field from its zero value.
type message struct {
	ButtonState *buttonState `json:"button_state"`
	UndoIndex   *int         `json:"undo_index"`
	Undo        [][][]int    `json:"undo"`
}

// Encode serializes the full session state.
func Encode(state board.SessionState) ([]byte, error) {
	color := int(state.Buttons.Color)
	remove := state.Buttons.Remove
	cursor := state.Cursor
	undo := make([][][]int, len(state.History))
	for i, snap := range state.History {
		moves := make([][]int, len(snap))
		for j, m := range snap {
			moves[j] = []int{m.Row, m.Col, int(m.Color)}
		}
		undo[i] = moves
	}
	raw, err := json.Marshal(message{
		ButtonState: &buttonState{Color: &color, Remove: &remove},
		UndoIndex:   &cursor,
		Undo:        undo,
	})
	if err != nil {
		return nil, fmt.Errorf("encode sync message: %w", err)
	}
	return raw, nil
}

// Decode parses a sync message. Shape and enum violations are rejected; the
// cursor is not checked against the history length.
func Decode(raw []byte) (board.SessionState, error) {
	var msg message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return board.SessionState{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if msg.ButtonState == nil || msg.ButtonState.Color == nil || msg.ButtonState.Remove == nil {
		return board.SessionState{}, fmt.Errorf("%w: button_state incomplete", ErrMalformed)
	}
	mode := board.ColorMode(*msg.ButtonState.Color)
	if !mode.Valid() {
		return board.SessionState{}, fmt.Errorf("%w: button color %d", ErrMalformed, *msg.ButtonState.Color)
	}
	if msg.UndoIndex == nil || *msg.UndoIndex < 0 {
		return board.SessionState{}, fmt.Errorf("%w: undo_index missing or negative", ErrMalformed)
	}
	if len(msg.Undo) == 0 {
		return board.SessionState{}, fmt.Errorf("%w: undo history empty", ErrMalformed)
	}

	history := make([]board.MoveList, len(msg.Undo))
	for i, snap := range msg.Undo {
		list := make(board.MoveList, len(snap))
		for j, tuple := range snap {
			if len(tuple) != 3 {
				return board.SessionState{}, fmt.Errorf("%w: snapshot %d move %d has %d fields", ErrMalformed, i, j, len(tuple))
			}
			stone := board.Stone(tuple[2])
			if !stone.Valid() {
				return board.SessionState{}, fmt.Errorf("%w: snapshot %d move %d color %d", ErrMalformed, i, j, tuple[2])
			}
			list[j] = board.Move{Row: tuple[0], Col: tuple[1], Color: stone}
		}
		history[i] = list
	}

	return board.SessionState{
		Buttons: board.ButtonState{Color: mode, Remove: *msg.ButtonState.Remove},
		Cursor:  *msg.UndoIndex,
		History: history,
	}, nil
}
