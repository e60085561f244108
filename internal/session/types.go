package session

import (
	"context"
	"time"

	"github.com/park285/stoneboard/internal/board"
)

// Meta describes a stored session for listings.
type Meta struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Length    int       `json:"length"`
	Cursor    int       `json:"cursor"`
}

// Store persists session state between runs.
type Store interface {
	Save(ctx context.Context, meta Meta, state board.SessionState) error
	// Load returns ok=false when the session does not exist or expired.
	Load(ctx context.Context, id string) (Meta, board.SessionState, bool, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Meta, error)
}

// Fanout forwards a broadcast to several receivers and returns the first error.
type Fanout []Broadcaster

func (f Fanout) Broadcast(ctx context.Context, state board.SessionState) error {
	var first error
	for _, b := range f {
		if b == nil {
			continue
		}
		if err := b.Broadcast(ctx, state); err != nil && first == nil {
			first = err
		}
	}
	return first
}

var (
	ErrInvalidArgs   = errf("invalid arguments")
	ErrSessionGone   = errf("session not found or expired")
	ErrActiveSession = errf("session is active")
)

type staticErr string

func (e staticErr) Error() string { return string(e) }
func errf(s string) error         { return staticErr(s) }
