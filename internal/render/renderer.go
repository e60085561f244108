package render

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/park285/stoneboard/internal/board"
	"go.uber.org/zap"
)

// Renderer matches session.Renderer.
type Renderer interface {
	Render(state board.BoardState)
}

// Chain renders to every member in order.
type Chain []Renderer

func (c Chain) Render(state board.BoardState) {
	for _, r := range c {
		if r != nil {
			r.Render(state)
		}
	}
}

// Terminal prints the ASCII board after every change.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	logger *zap.Logger
}

func NewTerminal(w io.Writer, logger *zap.Logger) *Terminal {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Terminal{w: w, logger: logger}
}

func (t *Terminal) Render(state board.BoardState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := ASCII(t.w, state); err != nil {
		t.logger.Warn("terminal_render_error", zap.Error(err))
	}
}

// FileRenderer writes the PNG board to a path after every change. The file
// is replaced atomically so viewers never read a partial image.
type FileRenderer struct {
	path   string
	size   int
	logger *zap.Logger
}

func NewFileRenderer(path string, size int, logger *zap.Logger) *FileRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileRenderer{path: path, size: size, logger: logger}
}

func (f *FileRenderer) Render(state board.BoardState) {
	if err := f.Write(context.Background(), state); err != nil {
		f.logger.Warn("png_render_error", zap.String("path", f.path), zap.Error(err))
	}
}

func (f *FileRenderer) Write(ctx context.Context, state board.BoardState) error {
	data, err := PNG(ctx, state, f.size)
	if err != nil {
		return err
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create png dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".board-*.png")
	if err != nil {
		return fmt.Errorf("create temp png: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write png: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace png: %w", err)
	}
	return nil
}
