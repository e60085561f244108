package board

import "fmt"

// Size is the number of grid lines per side.
const Size = 9

// Stone identifies the color of a placed stone.
type Stone int

const (
	Black Stone = 1
	White Stone = 2
)

func (s Stone) Valid() bool { return s == Black || s == White }

// Opposite returns the other stone color.
func (s Stone) Opposite() Stone {
	if s == Black {
		return White
	}
	return Black
}

func (s Stone) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return fmt.Sprintf("stone(%d)", int(s))
	}
}

// ColorMode decides whether turns alternate or are forced to one color.
type ColorMode int

const (
	ModeBoth  ColorMode = 0
	ModeBlack ColorMode = 1
	ModeWhite ColorMode = 2
)

func (m ColorMode) Valid() bool { return m >= ModeBoth && m <= ModeWhite }

// Next cycles BOTH → BLACK → WHITE → BOTH.
func (m ColorMode) Next() ColorMode { return (m + 1) % 3 }

func (m ColorMode) String() string {
	switch m {
	case ModeBoth:
		return "both"
	case ModeBlack:
		return "black"
	case ModeWhite:
		return "white"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ButtonState governs how input is interpreted. It is not part of the undo history.
type ButtonState struct {
	Color  ColorMode
	Remove bool
}

// DefaultButtons is the state of a fresh session.
func DefaultButtons() ButtonState { return ButtonState{Color: ModeBoth} }

// InBounds reports whether (row, col) is a board intersection.
func InBounds(row, col int) bool {
	return row >= 1 && row <= Size && col >= 1 && col <= Size
}

type Move struct {
	Row   int
	Col   int
	Color Stone
}

func (m Move) String() string { return fmt.Sprintf("(%d,%d,%s)", m.Row, m.Col, m.Color) }

// MoveList holds the stones present at one point in history, in the order
// they were added. It does not enforce one stone per cell; callers check
// Occupied before appending.
type MoveList []Move

// Clone returns an independent copy. A nil list clones to an empty, non-nil list.
func (l MoveList) Clone() MoveList {
	out := make(MoveList, len(l))
	copy(out, l)
	return out
}

func (l MoveList) Occupied(row, col int) bool {
	for _, m := range l {
		if m.Row == row && m.Col == col {
			return true
		}
	}
	return false
}

// With returns a copy of the list with mv appended.
func (l MoveList) With(mv Move) MoveList {
	out := make(MoveList, len(l), len(l)+1)
	copy(out, l)
	return append(out, mv)
}

// Without returns a copy of the list minus any stone at (row, col).
func (l MoveList) Without(row, col int) MoveList {
	out := make(MoveList, 0, len(l))
	for _, m := range l {
		if m.Row == row && m.Col == col {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Last returns the most recently appended move.
func (l MoveList) Last() (Move, bool) {
	if len(l) == 0 {
		return Move{}, false
	}
	return l[len(l)-1], true
}

// Equal compares two lists including order.
func (l MoveList) Equal(other MoveList) bool {
	if len(l) != len(other) {
		return false
	}
	for i := range l {
		if l[i] != other[i] {
			return false
		}
	}
	return true
}

// PreviewKind is the ghost drawn under the pointer.
type PreviewKind int

const (
	PreviewNone   PreviewKind = 0
	PreviewBlack  PreviewKind = 1
	PreviewWhite  PreviewKind = 2
	PreviewRemove PreviewKind = 3
)

// Preview is an ephemeral hover hint. It is never persisted and never part of
// the wire message.
type Preview struct {
	Row  int
	Col  int
	Kind PreviewKind
}

func (p Preview) Empty() bool { return p.Kind == PreviewNone }

// PreviewFor maps a stone color to its preview kind.
func PreviewFor(s Stone) PreviewKind {
	if s == White {
		return PreviewWhite
	}
	return PreviewBlack
}

// SessionState is the unit of synchronization and persistence.
type SessionState struct {
	Buttons ButtonState
	Cursor  int
	History []MoveList
}

// NewSessionState returns the state of a fresh session: one empty snapshot.
func NewSessionState() SessionState {
	return SessionState{Buttons: DefaultButtons(), Cursor: 0, History: []MoveList{{}}}
}

// Clone deep-copies the history.
func (s SessionState) Clone() SessionState {
	out := SessionState{Buttons: s.Buttons, Cursor: s.Cursor, History: make([]MoveList, len(s.History))}
	for i, l := range s.History {
		out.History[i] = l.Clone()
	}
	return out
}

// Equal compares buttons, cursor and every snapshot.
func (s SessionState) Equal(other SessionState) bool {
	if s.Buttons != other.Buttons || s.Cursor != other.Cursor || len(s.History) != len(other.History) {
		return false
	}
	for i := range s.History {
		if !s.History[i].Equal(other.History[i]) {
			return false
		}
	}
	return true
}

// BoardState is what a renderer draws. Stones is nil when the cursor points
// outside the history, which can only happen after a remote overwrite.
type BoardState struct {
	Stones  MoveList
	Preview Preview
	Buttons ButtonState
	Cursor  int
	Length  int
	CanUndo bool
	CanRedo bool
}
