package session

import (
	"context"

	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/history"
	"github.com/park285/stoneboard/internal/turn"
	"go.uber.org/zap"
)

// Renderer draws a board snapshot. It is invoked after every committed or
// received change.
type Renderer interface {
	Render(state board.BoardState)
}

// Broadcaster ships the full session state to the peer after a local mutation.
type Broadcaster interface {
	Broadcast(ctx context.Context, state board.SessionState) error
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(board.BoardState)

func (f RendererFunc) Render(s board.BoardState) { f(s) }

// Session is one client's replicated board. It is not safe for concurrent
// use; all calls must come from the owning event loop.
type Session struct {
	id       string
	buttons  board.ButtonState
	history  *history.Store
	preview  board.Preview
	renderer Renderer
	bcast    Broadcaster
	logger   *zap.Logger
}

type Option func(*Session)

func WithRenderer(r Renderer) Option { return func(s *Session) { s.renderer = r } }

func WithBroadcaster(b Broadcaster) Option { return func(s *Session) { s.bcast = b } }

func WithLogger(l *zap.Logger) Option { return func(s *Session) { s.logger = l } }

func New(id string, opts ...Option) *Session {
	s := &Session{
		id:      id,
		buttons: board.DefaultButtons(),
		history: history.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	return s
}

func (s *Session) ID() string { return s.id }

// SetRenderer and SetBroadcaster rebind collaborators, e.g. when the active
// session changes.
func (s *Session) SetRenderer(r Renderer)        { s.renderer = r }
func (s *Session) SetBroadcaster(b Broadcaster) { s.bcast = b }

// State returns a deep copy of the synchronized state.
func (s *Session) State() board.SessionState {
	stack, cursor := s.history.Snapshot()
	return board.SessionState{Buttons: s.buttons, Cursor: cursor, History: stack}
}

func (s *Session) Buttons() board.ButtonState { return s.buttons }
func (s *Session) Preview() board.Preview     { return s.preview }
func (s *Session) Current() board.MoveList    { return s.history.Current() }

// Turn is the color the next placement would use.
func (s *Session) Turn() board.Stone {
	return turn.Resolve(s.history.Current(), s.buttons.Color)
}

// Board builds the render snapshot.
func (s *Session) Board() board.BoardState {
	cur := s.history.Current()
	if cur != nil {
		cur = cur.Clone()
	}
	return board.BoardState{
		Stones:  cur,
		Preview: s.preview,
		Buttons: s.buttons,
		Cursor:  s.history.Cursor(),
		Length:  s.history.Len(),
		CanUndo: s.history.CanUndo(),
		CanRedo: s.history.CanRedo(),
	}
}

// Place handles a click at (row, col). In remove mode it removes the stone
// there, otherwise it places a stone of the resolved turn color. Out of
// bounds, occupied placements and empty removals change nothing. It reports
// whether a new snapshot was committed.
func (s *Session) Place(ctx context.Context, row, col int) bool {
	if !board.InBounds(row, col) {
		return false
	}
	cur := s.history.Current()
	changed := false
	if s.buttons.Remove {
		if cur.Occupied(row, col) {
			s.history.Commit(cur.Without(row, col))
			changed = true
		}
	} else if !cur.Occupied(row, col) {
		mv := board.Move{Row: row, Col: col, Color: turn.Resolve(cur, s.buttons.Color)}
		s.history.Commit(cur.With(mv))
		changed = true
	}
	if changed {
		s.logger.Debug("board_commit",
			zap.String("session_id", s.id),
			zap.Int("row", row),
			zap.Int("col", col),
			zap.Bool("remove", s.buttons.Remove),
			zap.Int("cursor", s.history.Cursor()),
		)
	}
	s.render()
	if changed {
		s.broadcast(ctx)
	}
	return changed
}

// Hover recomputes the preview for the pointer at (row, col). The preview is
// local only and never broadcast.
func (s *Session) Hover(row, col int) board.Preview {
	s.preview = board.Preview{}
	if board.InBounds(row, col) {
		cur := s.history.Current()
		occupied := cur.Occupied(row, col)
		switch {
		case !occupied && !s.buttons.Remove:
			s.preview = board.Preview{Row: row, Col: col, Kind: board.PreviewFor(turn.Resolve(cur, s.buttons.Color))}
		case occupied && s.buttons.Remove:
			s.preview = board.Preview{Row: row, Col: col, Kind: board.PreviewRemove}
		}
	}
	s.render()
	return s.preview
}

// ToggleColor cycles the color mode BOTH → BLACK → WHITE.
func (s *Session) ToggleColor(ctx context.Context) board.ColorMode {
	s.buttons.Color = s.buttons.Color.Next()
	s.render()
	s.broadcast(ctx)
	return s.buttons.Color
}

func (s *Session) ToggleRemove(ctx context.Context) bool {
	s.buttons.Remove = !s.buttons.Remove
	s.render()
	s.broadcast(ctx)
	return s.buttons.Remove
}

// Clear resets history and buttons to a fresh session.
func (s *Session) Clear(ctx context.Context) {
	s.history.Reset()
	s.buttons = board.DefaultButtons()
	s.render()
	s.broadcast(ctx)
}

// Undo reports false when there is nothing to undo; that is a disabled
// action, not an error.
func (s *Session) Undo(ctx context.Context) bool {
	if !s.history.Undo() {
		return false
	}
	s.render()
	s.broadcast(ctx)
	return true
}

func (s *Session) Redo(ctx context.Context) bool {
	if !s.history.Redo() {
		return false
	}
	s.render()
	s.broadcast(ctx)
	return true
}

// Apply overwrites the whole session with a state received from the peer.
// Nothing is merged: local history the peer never saw is lost.
func (s *Session) Apply(state board.SessionState) {
	s.history.Replace(state.History, state.Cursor)
	s.buttons = state.Buttons
	s.logger.Debug("board_overwrite",
		zap.String("session_id", s.id),
		zap.Int("cursor", state.Cursor),
		zap.Int("length", len(state.History)),
	)
	s.render()
}

func (s *Session) render() {
	if s.renderer != nil {
		s.renderer.Render(s.Board())
	}
}

func (s *Session) broadcast(ctx context.Context) {
	if s.bcast == nil {
		return
	}
	if err := s.bcast.Broadcast(ctx, s.State()); err != nil {
		s.logger.Warn("board_broadcast_error", zap.String("session_id", s.id), zap.Error(err))
	}
}
