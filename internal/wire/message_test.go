package wire

import (
	"errors"
	"strings"
	"testing"

	"github.com/park285/stoneboard/internal/board"
)

func TestEncodeMatchesWireLayout(t *testing.T) {
	state := board.SessionState{
		Buttons: board.ButtonState{Color: board.ModeWhite, Remove: true},
		Cursor:  1,
		History: []board.MoveList{
			{},
			{{Row: 3, Col: 3, Color: board.Black}},
		},
	}
	raw, err := Encode(state)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := `{"button_state":{"color":2,"remove":true},"undo_index":1,"undo":[[],[[3,3,1]]]}`
	if string(raw) != want {
		t.Fatalf("wire layout:\n got %s\nwant %s", raw, want)
	}
}

func TestDecodePreservesAppendOrder(t *testing.T) {
	raw := `{"button_state":{"color":0,"remove":false},"undo_index":2,
		"undo":[[],[[9,9,1]],[[9,9,1],[1,1,2]]]}`
	st, err := Decode([]byte(raw))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.Cursor != 2 || len(st.History) != 3 {
		t.Fatalf("cursor=%d len=%d", st.Cursor, len(st.History))
	}
	last, _ := st.History[2].Last()
	if last != (board.Move{Row: 1, Col: 1, Color: board.White}) {
		t.Fatalf("order lost, last=%v", last)
	}
	again, err := Encode(st)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	back, err := Decode(again)
	if err != nil || !back.Equal(st) {
		t.Fatalf("re-decode mismatch: %v %+v", err, back)
	}
}

func TestDecodeAcceptsCursorPastHistory(t *testing.T) {
	st, err := Decode([]byte(`{"button_state":{"color":1,"remove":false},"undo_index":7,"undo":[[]]}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if st.Cursor != 7 {
		t.Fatalf("cursor should be kept verbatim, got %d", st.Cursor)
	}
}

func TestDecodeRejectsSchemaViolations(t *testing.T) {
	cases := map[string]string{
		"not json":        `{"button_state":`,
		"missing buttons": `{"undo_index":0,"undo":[[]]}`,
		"missing remove":  `{"button_state":{"color":0},"undo_index":0,"undo":[[]]}`,
		"bad mode":        `{"button_state":{"color":3,"remove":false},"undo_index":0,"undo":[[]]}`,
		"negative cursor": `{"button_state":{"color":0,"remove":false},"undo_index":-1,"undo":[[]]}`,
		"missing cursor":  `{"button_state":{"color":0,"remove":false},"undo":[[]]}`,
		"empty history":   `{"button_state":{"color":0,"remove":false},"undo_index":0,"undo":[]}`,
		"short tuple":     `{"button_state":{"color":0,"remove":false},"undo_index":0,"undo":[[[1,1]]]}`,
		"remove color":    `{"button_state":{"color":0,"remove":false},"undo_index":0,"undo":[[[1,1,3]]]}`,
		"float coord":     `{"button_state":{"color":0,"remove":false},"undo_index":0,"undo":[[[1.5,1,1]]]}`,
		"string cursor":   `{"button_state":{"color":0,"remove":false},"undo_index":"0","undo":[[]]}`,
	}
	for name, raw := range cases {
		_, err := Decode([]byte(raw))
		if err == nil {
			t.Fatalf("%s: expected error", name)
		}
		if !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
		if !strings.Contains(err.Error(), "malformed") {
			t.Fatalf("%s: unexpected message %q", name, err)
		}
	}
}
