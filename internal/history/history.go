package history

import "github.com/park285/stoneboard/internal/board"

// Store is a branching undo/redo stack of board snapshots. Index 0 is the
// empty board. It performs no I/O and is not safe for concurrent use; callers
// serialize access through the session event loop.
type Store struct {
	stack  []board.MoveList
	cursor int
}

func New() *Store {
	s := &Store{}
	s.Reset()
	return s
}

// Current returns the snapshot at the cursor, or nil when the cursor is out
// of range after a Replace.
func (s *Store) Current() board.MoveList {
	if !s.Valid() {
		return nil
	}
	return s.stack[s.cursor]
}

// Commit discards every snapshot after the cursor, appends a copy of list and
// moves the cursor onto it. Forward history is lost for good.
func (s *Store) Commit(list board.MoveList) {
	keep := s.cursor + 1
	if keep < 1 {
		keep = 1
	}
	if keep > len(s.stack) {
		keep = len(s.stack)
	}
	s.stack = append(s.stack[:keep:keep], list.Clone())
	s.cursor = len(s.stack) - 1
}

// Undo steps back one snapshot. It reports false when already at the start.
func (s *Store) Undo() bool {
	if s.cursor <= 0 {
		return false
	}
	s.cursor--
	return true
}

// Redo steps forward one snapshot. It reports false when already at the tip.
func (s *Store) Redo() bool {
	if s.cursor >= len(s.stack)-1 {
		return false
	}
	s.cursor++
	return true
}

func (s *Store) Reset() {
	s.stack = []board.MoveList{{}}
	s.cursor = 0
}

// Replace overwrites the stack and cursor with externally supplied values.
// Nothing is validated: an out-of-range cursor is kept as is.
func (s *Store) Replace(stack []board.MoveList, cursor int) {
	s.stack = stack
	s.cursor = cursor
}

// Snapshot returns a deep copy of the stack and the cursor.
func (s *Store) Snapshot() ([]board.MoveList, int) {
	out := make([]board.MoveList, len(s.stack))
	for i, l := range s.stack {
		out[i] = l.Clone()
	}
	return out, s.cursor
}

func (s *Store) Cursor() int { return s.cursor }
func (s *Store) Len() int    { return len(s.stack) }

// Valid reports whether the cursor points at a snapshot.
func (s *Store) Valid() bool { return s.cursor >= 0 && s.cursor < len(s.stack) }

func (s *Store) CanUndo() bool { return s.cursor > 0 }
func (s *Store) CanRedo() bool { return s.cursor < len(s.stack)-1 }
