package archive

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/wire"
)

// Record is one archived board: the full history at the moment it was
// cleared or its owner quit.
type Record struct {
	SessionID string
	Reason    string
	State     board.SessionState
	StartedAt time.Time
	EndedAt   time.Time
}

type Repository struct {
	db *sql.DB
}

func NewRepository(databaseURL string) (*Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

const schema = `CREATE TABLE IF NOT EXISTS board_archive (
    id          BIGSERIAL PRIMARY KEY,
    session_id  TEXT        NOT NULL,
    reason      TEXT        NOT NULL,
    snapshots   INTEGER     NOT NULL,
    cursor      INTEGER     NOT NULL,
    stones      INTEGER     NOT NULL,
    history     JSONB       NOT NULL,
    sgf         TEXT        NOT NULL,
    started_at  TIMESTAMPTZ,
    ended_at    TIMESTAMPTZ NOT NULL
)`

func (r *Repository) EnsureSchema(ctx context.Context) error {
	if r == nil || r.db == nil {
		return nil
	}
	_, err := r.db.ExecContext(ctx, schema)
	return err
}

// Save inserts a record. Empty boards (a single empty snapshot) are skipped.
func (r *Repository) Save(ctx context.Context, rec Record) error {
	if r == nil || r.db == nil {
		return nil
	}
	if Empty(rec.State) {
		return nil
	}
	history, err := wire.Encode(rec.State)
	if err != nil {
		return err
	}
	current := currentSnapshot(rec.State)
	ended := rec.EndedAt
	if ended.IsZero() {
		ended = time.Now()
	}
	var started any
	if !rec.StartedAt.IsZero() {
		started = rec.StartedAt
	}

	q := `INSERT INTO board_archive (
        session_id, reason, snapshots, cursor, stones, history, sgf, started_at, ended_at
      ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err = r.db.ExecContext(ctx, q,
		rec.SessionID, strings.TrimSpace(rec.Reason),
		len(rec.State.History), rec.State.Cursor, len(current),
		string(history), BuildSGF(current, ended), started, ended,
	)
	return err
}

// Empty reports whether the state holds nothing worth keeping.
func Empty(st board.SessionState) bool {
	for _, snap := range st.History {
		if len(snap) > 0 {
			return false
		}
	}
	return true
}

func currentSnapshot(st board.SessionState) board.MoveList {
	if st.Cursor >= 0 && st.Cursor < len(st.History) {
		return st.History[st.Cursor]
	}
	return nil
}

// BuildSGF writes a position as an SGF setup node. Stone order is lost in
// the setup properties, so points are sorted for stable output.
func BuildSGF(stones board.MoveList, date time.Time) string {
	var black, white []string
	for _, mv := range stones {
		if !board.InBounds(mv.Row, mv.Col) {
			continue
		}
		pt := sgfPoint(mv.Row, mv.Col)
		if mv.Color == board.White {
			white = append(white, pt)
		} else {
			black = append(black, pt)
		}
	}
	sort.Strings(black)
	sort.Strings(white)

	var b strings.Builder
	b.WriteString("(;GM[1]FF[4]CA[UTF-8]")
	fmt.Fprintf(&b, "SZ[%d]", board.Size)
	if !date.IsZero() {
		fmt.Fprintf(&b, "DT[%04d-%02d-%02d]", date.Year(), int(date.Month()), date.Day())
	}
	if len(black) > 0 {
		b.WriteString("AB")
		for _, p := range black {
			fmt.Fprintf(&b, "[%s]", p)
		}
	}
	if len(white) > 0 {
		b.WriteString("AW")
		for _, p := range white {
			fmt.Fprintf(&b, "[%s]", p)
		}
	}
	b.WriteString(")")
	return b.String()
}

// sgfPoint encodes column then row as letters from 'a'.
func sgfPoint(row, col int) string {
	return string([]byte{byte('a' + col - 1), byte('a' + row - 1)})
}
