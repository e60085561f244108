package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/park285/stoneboard/internal/archive"
	"github.com/park285/stoneboard/internal/session"
	"go.uber.org/zap"
)

var errUsage = errors.New("usage")

// Handle interprets one command line. It reports quit=true for quit/exit.
// Connection commands block the caller; board commands run on the loop.
func (a *App) Handle(ctx context.Context, line string) (quit bool, err error) {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return false, nil
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]

	switch cmd {
	case "help", "?":
		a.say(a.text("help", nil))
	case "quit", "exit":
		return true, nil
	case "place", "p":
		row, col, err := a.coords("place <row> <col>", args)
		if err != nil {
			return false, err
		}
		var changed bool
		if err := a.loop.Do(ctx, func() { changed = a.active.Place(ctx, row, col) }); err != nil {
			return false, err
		}
		if !changed {
			a.say(a.text("board.unchanged", map[string]any{"Row": row, "Col": col}))
		}
	case "hover", "h":
		row, col, err := a.coords("hover <row> <col>", args)
		if err != nil {
			return false, err
		}
		return false, a.loop.Do(ctx, func() { a.active.Hover(row, col) })
	case "color":
		return false, a.loop.Do(ctx, func() {
			mode := a.active.ToggleColor(ctx)
			a.say(a.text("board.color", map[string]any{"Mode": mode.String()}))
		})
	case "remove":
		return false, a.loop.Do(ctx, func() {
			on := a.active.ToggleRemove(ctx)
			a.say(a.text("board.remove", map[string]any{"Remove": on}))
		})
	case "clear":
		var rec archive.Record
		if err := a.loop.Do(ctx, func() {
			rec = a.record("clear")
			a.active.Clear(ctx)
		}); err != nil {
			return false, err
		}
		a.archive(ctx, rec)
		a.say(a.text("board.cleared", nil))
	case "undo", "u":
		return false, a.loop.Do(ctx, func() {
			if !a.active.Undo(ctx) {
				a.say(a.text("board.undo_disabled", nil))
			}
		})
	case "redo", "r":
		return false, a.loop.Do(ctx, func() {
			if !a.active.Redo(ctx) {
				a.say(a.text("board.redo_disabled", nil))
			}
		})
	case "listen":
		_, err := a.ch.Listen(ctx)
		return false, err
	case "connect":
		return false, a.ch.Connect(ctx, strings.Join(args, " "))
	case "status":
		a.say(a.ch.Summary())
		return false, a.loop.Do(ctx, func() {
			b := a.active.Board()
			a.say(a.text("board.turn", map[string]any{
				"Turn":   a.active.Turn().String(),
				"Mode":   b.Buttons.Color.String(),
				"Remove": b.Buttons.Remove,
				"Cursor": b.Cursor,
				"Last":   b.Length - 1,
			}))
		})
	case "new":
		s, err := a.reg.Create(ctx)
		if s == nil {
			return false, err
		}
		if err != nil {
			a.logger.Warn("session_persist_error", zap.Error(err))
		}
		if err := a.loop.Do(ctx, func() { a.activate(s) }); err != nil {
			return false, err
		}
		a.say(a.text("session.created", map[string]any{"ID": s.ID()}))
	case "resume":
		if len(args) != 1 {
			a.say(a.text("errors.usage", map[string]any{"Usage": "resume <id>"}))
			return false, errUsage
		}
		s, err := a.reg.Get(ctx, args[0])
		if err != nil {
			if errors.Is(err, session.ErrSessionGone) || errors.Is(err, session.ErrInvalidArgs) {
				a.say(a.text("session.not_found", map[string]any{"ID": args[0]}))
			}
			return false, err
		}
		if err := a.loop.Do(ctx, func() { a.activate(s) }); err != nil {
			return false, err
		}
		a.say(a.text("session.resumed", map[string]any{"ID": s.ID()}))
	case "drop":
		if len(args) != 1 {
			a.say(a.text("errors.usage", map[string]any{"Usage": "drop <id>"}))
			return false, errUsage
		}
		var activeID string
		if err := a.loop.Do(ctx, func() { activeID = a.active.ID() }); err != nil {
			return false, err
		}
		if args[0] == activeID {
			a.say(a.text("session.active_drop", nil))
			return false, session.ErrActiveSession
		}
		if err := a.reg.Destroy(ctx, args[0]); err != nil {
			if errors.Is(err, session.ErrSessionGone) {
				a.say(a.text("session.not_found", map[string]any{"ID": args[0]}))
			}
			return false, err
		}
		a.say(a.text("session.dropped", map[string]any{"ID": args[0]}))
	case "sessions", "ls":
		return false, a.listSessions(ctx)
	default:
		a.say(a.text("errors.unknown_command", map[string]any{"Cmd": cmd}))
		return false, fmt.Errorf("unknown command %q", cmd)
	}
	return false, nil
}

func (a *App) listSessions(ctx context.Context) error {
	list, err := a.reg.List(ctx)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		a.say(a.text("session.list_empty", nil))
		return nil
	}
	var activeID string
	if err := a.loop.Do(ctx, func() { activeID = a.active.ID() }); err != nil {
		return err
	}
	for _, m := range list {
		a.say(a.text("session.list_item", map[string]any{
			"ID":     m.ID,
			"Length": m.Length,
			"Active": m.ID == activeID,
		}))
	}
	return nil
}

func (a *App) coords(usage string, args []string) (int, int, error) {
	if len(args) != 2 {
		a.say(a.text("errors.usage", map[string]any{"Usage": usage}))
		return 0, 0, errUsage
	}
	row, err := strconv.Atoi(args[0])
	if err != nil {
		a.say(a.text("errors.bad_number", map[string]any{"Value": args[0]}))
		return 0, 0, errUsage
	}
	col, err := strconv.Atoi(args[1])
	if err != nil {
		a.say(a.text("errors.bad_number", map[string]any{"Value": args[1]}))
		return 0, 0, errUsage
	}
	return row, col, nil
}
