package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/park285/stoneboard/internal/archive"
	"github.com/park285/stoneboard/internal/board"
	"github.com/park285/stoneboard/internal/eventloop"
	"github.com/park285/stoneboard/internal/msgcat"
	"github.com/park285/stoneboard/internal/peersync"
	"github.com/park285/stoneboard/internal/render"
	"github.com/park285/stoneboard/internal/session"
	"go.uber.org/zap"
)

// Archiver stores finished boards.
type Archiver interface {
	Save(ctx context.Context, rec archive.Record) error
}

type Deps struct {
	Peer     peersync.Peer
	Store    session.Store
	Archiver Archiver
	Catalog  *msgcat.Catalog
	Out      io.Writer
	// Renderers are added after the terminal board.
	Renderers []render.Renderer
	// Quiet skips the terminal board.
	Quiet  bool
	Logger *zap.Logger
}

// App is one terminal peer: a registry of boards, the active one bound to
// the sync channel, and a text command interpreter.
type App struct {
	loop     *eventloop.Loop
	reg      *session.Registry
	ch       *peersync.Channel
	cat      *msgcat.Catalog
	archiver Archiver
	renderer render.Renderer
	out      *lockedWriter
	logger   *zap.Logger

	// owned by the loop goroutine
	active  *session.Session
	started map[string]time.Time
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

func New(d Deps) (*App, error) {
	if d.Peer == nil {
		return nil, errors.New("peer is required")
	}
	if d.Out == nil {
		d.Out = io.Discard
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = msgcat.Default()
	}
	a := &App{
		loop:     eventloop.New(64),
		cat:      d.Catalog,
		archiver: d.Archiver,
		out:      &lockedWriter{w: d.Out},
		logger:   d.Logger,
		started:  make(map[string]time.Time),
	}
	var chain render.Chain
	if !d.Quiet {
		chain = append(chain, render.NewTerminal(a.out, d.Logger))
	}
	chain = append(chain, d.Renderers...)
	a.renderer = chain

	a.reg = session.NewRegistry(d.Store, d.Logger.Named("session"), session.WithRenderer(a.renderer))
	a.ch = peersync.New(peersync.Config{
		Peer:    d.Peer,
		Poster:  a.loop,
		Apply:   a.applyRemote,
		Status:  a.say,
		Catalog: d.Catalog,
		Logger:  d.Logger.Named("peersync"),
	})
	return a, nil
}

// Start runs the event loop and opens the first session.
func (a *App) Start(ctx context.Context) error {
	go a.loop.Run(context.WithoutCancel(ctx))
	s, err := a.reg.Create(ctx)
	if err != nil && s == nil {
		return err
	}
	if err != nil {
		a.logger.Warn("session_persist_error", zap.Error(err))
	}
	return a.loop.Do(ctx, func() { a.activate(s) })
}

// Run reads commands until quit or EOF, then archives the active board and
// leaves the relay.
func (a *App) Run(ctx context.Context, in io.Reader) error {
	if err := a.Start(ctx); err != nil {
		return err
	}
	a.say(a.cat.Text("help", nil))

	lines := make(chan string)
	done := make(chan struct{})
	defer close(done)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return a.Shutdown(context.Background())
		case line, ok := <-lines:
			if !ok {
				return a.Shutdown(ctx)
			}
			quit, err := a.Handle(ctx, line)
			if err != nil {
				a.logger.Debug("command_error", zap.String("line", line), zap.Error(err))
			}
			if quit {
				return a.Shutdown(ctx)
			}
		}
	}
}

// Shutdown archives the active board, closes the channel and stops the loop.
func (a *App) Shutdown(ctx context.Context) error {
	var rec archive.Record
	_ = a.loop.Do(ctx, func() { rec = a.record("quit") })
	a.archive(ctx, rec)

	closeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	err := a.ch.Close(closeCtx)
	a.loop.Stop()
	return err
}

// activate binds s to the channel and renderer. Loop goroutine only.
func (a *App) activate(s *session.Session) {
	if a.active != nil && a.active != s {
		a.active.SetBroadcaster(a.reg.Saver(a.active))
	}
	a.active = s
	if _, ok := a.started[s.ID()]; !ok {
		a.started[s.ID()] = time.Now()
	}
	s.SetRenderer(a.renderer)
	s.SetBroadcaster(session.Fanout{a.ch, a.reg.Saver(s)})
	a.renderer.Render(s.Board())
}

// applyRemote runs on the loop for every accepted inbound message.
func (a *App) applyRemote(st board.SessionState) {
	if a.active == nil {
		return
	}
	a.active.Apply(st)
	if err := a.reg.Save(context.Background(), a.active); err != nil {
		a.logger.Debug("session_save_skipped", zap.Error(err))
	}
}

// record captures the active board for the archive. Loop goroutine only.
func (a *App) record(reason string) archive.Record {
	if a.active == nil {
		return archive.Record{}
	}
	return archive.Record{
		SessionID: a.active.ID(),
		Reason:    reason,
		State:     a.active.State(),
		StartedAt: a.started[a.active.ID()],
		EndedAt:   time.Now(),
	}
}

func (a *App) archive(ctx context.Context, rec archive.Record) {
	if a.archiver == nil || rec.SessionID == "" || archive.Empty(rec.State) {
		return
	}
	if err := a.archiver.Save(ctx, rec); err != nil {
		a.logger.Warn("archive_save_error", zap.String("session_id", rec.SessionID), zap.Error(err))
		return
	}
	a.logger.Info("board_archived", zap.String("session_id", rec.SessionID), zap.String("reason", rec.Reason))
}

func (a *App) say(msg string) {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return
	}
	fmt.Fprintln(a.out, msg)
}

func (a *App) text(key string, data any) string { return a.cat.Text(key, data) }

// Channel exposes the sync channel, mainly for status checks.
func (a *App) Channel() *peersync.Channel { return a.ch }

// Active returns the current session's state, read on the loop.
func (a *App) Active(ctx context.Context) (id string, st board.SessionState, err error) {
	err = a.loop.Do(ctx, func() {
		if a.active != nil {
			id = a.active.ID()
			st = a.active.State()
		}
	})
	return id, st, err
}
