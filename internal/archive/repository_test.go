package archive

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/wire"
)

func TestBuildSGF(t *testing.T) {
	stones := board.MoveList{
		{Row: 3, Col: 3, Color: board.Black},
		{Row: 1, Col: 9, Color: board.White},
		{Row: 1, Col: 1, Color: board.Black},
		{Row: 0, Col: 4, Color: board.Black},
	}
	got := BuildSGF(stones, time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC))
	want := "(;GM[1]FF[4]CA[UTF-8]SZ[9]DT[2024-03-09]AB[aa][cc]AW[ia])"
	if got != want {
		t.Fatalf("sgf = %s\nwant %s", got, want)
	}
	if got := BuildSGF(nil, time.Time{}); got != "(;GM[1]FF[4]CA[UTF-8]SZ[9])" {
		t.Fatalf("empty sgf = %s", got)
	}
}

func TestEmpty(t *testing.T) {
	if !Empty(board.NewSessionState()) {
		t.Fatalf("fresh state should be empty")
	}
	st := board.SessionState{History: []board.MoveList{{}, {{Row: 1, Col: 1, Color: board.Black}}}, Cursor: 0}
	if Empty(st) {
		t.Fatalf("undone stones still count")
	}
}

func TestNilRepositoryIsNoop(t *testing.T) {
	var r *Repository
	if err := r.Save(context.Background(), Record{State: board.NewSessionState()}); err != nil {
		t.Fatalf("Save on nil repo: %v", err)
	}
	if err := r.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema on nil repo: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close on nil repo: %v", err)
	}
}

func TestNewRepositoryRequiresURL(t *testing.T) {
	if _, err := NewRepository("  "); err == nil {
		t.Fatalf("expected error for empty url")
	}
}

func TestSaveInsertsHistoryAndSGF(t *testing.T) {
	repo, rec := newRecordingRepository()
	defer repo.Close()
	ctx := context.Background()

	state := board.SessionState{
		Buttons: board.ButtonState{Color: board.ModeBoth},
		Cursor:  2,
		History: []board.MoveList{
			{},
			{{Row: 3, Col: 3, Color: board.Black}},
			{{Row: 3, Col: 3, Color: board.Black}, {Row: 1, Col: 9, Color: board.White}},
		},
	}
	ended := time.Date(2024, 3, 9, 12, 0, 0, 0, time.UTC)
	err := repo.Save(ctx, Record{SessionID: "s1", Reason: " clear ", State: state, EndedAt: ended})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	calls := rec.calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 exec, got %d", len(calls))
	}
	c := calls[0]
	if !strings.Contains(c.query, "INSERT INTO board_archive") {
		t.Fatalf("unexpected query %q", c.query)
	}
	if len(c.args) != 9 {
		t.Fatalf("expected 9 args, got %d", len(c.args))
	}
	if c.args[0] != "s1" || c.args[1] != "clear" {
		t.Fatalf("id/reason = %v/%v", c.args[0], c.args[1])
	}
	if c.args[2] != int64(3) || c.args[3] != int64(2) || c.args[4] != int64(2) {
		t.Fatalf("snapshots/cursor/stones = %v/%v/%v", c.args[2], c.args[3], c.args[4])
	}
	raw, ok := c.args[5].(string)
	if !ok {
		t.Fatalf("history arg is %T", c.args[5])
	}
	back, err := wire.Decode([]byte(raw))
	if err != nil || !back.Equal(state) {
		t.Fatalf("stored history does not decode to the saved state: %v %+v", err, back)
	}
	if c.args[6] != "(;GM[1]FF[4]CA[UTF-8]SZ[9]DT[2024-03-09]AB[cc]AW[ia])" {
		t.Fatalf("sgf = %v", c.args[6])
	}
	if c.args[7] != nil {
		t.Fatalf("zero start time should be stored as NULL, got %v", c.args[7])
	}
	if got, ok := c.args[8].(time.Time); !ok || !got.Equal(ended) {
		t.Fatalf("ended_at = %v", c.args[8])
	}
}

func TestSaveSkipsEmptyBoard(t *testing.T) {
	repo, rec := newRecordingRepository()
	defer repo.Close()
	if err := repo.Save(context.Background(), Record{SessionID: "s1", State: board.NewSessionState()}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if n := len(rec.calls()); n != 0 {
		t.Fatalf("empty board should not be inserted, got %d execs", n)
	}
}

func TestEnsureSchemaCreatesTable(t *testing.T) {
	repo, rec := newRecordingRepository()
	defer repo.Close()
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}
	calls := rec.calls()
	if len(calls) != 1 || !strings.Contains(calls[0].query, "CREATE TABLE IF NOT EXISTS board_archive") {
		t.Fatalf("schema exec = %+v", calls)
	}
}
