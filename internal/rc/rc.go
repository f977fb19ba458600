// Package rc loads startup scripts once per process.
package rc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/itsmostafa/goprobe/internal/config"
	"github.com/itsmostafa/goprobe/internal/evaluator"
)

// ErrNoHome is returned when a path needs a home directory and none is known.
var ErrNoHome = errors.New("home directory is not available")

// State records whether startup scripts have been loaded in this process.
// The zero value is ready to use.
type State struct {
	mu     sync.Mutex
	loaded bool
}

// NewState creates an unloaded State.
func NewState() *State {
	return &State{}
}

// claim marks the state loaded and reports whether the caller was first.
func (s *State) claim() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded {
		return false
	}
	s.loaded = true
	return true
}

// Loaded reports whether loading has run.
func (s *State) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Reset forgets that loading has run.
func (s *State) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loaded = false
}

// Paths returns the startup scripts cfg asks for, in load order.
func Paths(cfg config.Config) []string {
	if !cfg.ShouldLoadRC {
		return nil
	}
	paths := []string{cfg.HomeRC}
	if cfg.ShouldLoadLocalRC {
		paths = append(paths, cfg.LocalRC)
	}
	return paths
}

// Loader evaluates startup scripts against an evaluator's top-level context.
type Loader struct {
	// State gates loading to once per process
	State *State

	// Paths are loaded in order; empty entries are ignored
	Paths []string

	// HomeDir resolves ~ (default: os.UserHomeDir)
	HomeDir func() (string, error)

	// Logger receives debug records (default: slog.Default())
	Logger *slog.Logger
}

// Load runs each startup script once per process. A script that fails writes
// "Error loading <path>: <message>" to w and loading moves on. Only fatal
// evaluator errors are returned.
func (l *Loader) Load(ctx context.Context, ev evaluator.Evaluator, w io.Writer) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if len(l.Paths) == 0 {
		return nil
	}
	if l.State != nil && !l.State.claim() {
		logger.Debug("startup scripts already loaded")
		return nil
	}

	seen := make(map[string]bool, len(l.Paths))
	for _, path := range l.Paths {
		if path == "" {
			continue
		}
		abs, err := l.resolve(path)
		if err != nil {
			logger.Debug("skipping startup script", slog.String("path", path), slog.String("reason", err.Error()))
			continue
		}
		if seen[abs] {
			continue
		}
		seen[abs] = true

		src, err := os.ReadFile(abs)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			fmt.Fprintf(w, "Error loading %s: %s\n", path, err)
			continue
		}

		logger.Debug("loading startup script", slog.String("path", abs))
		if _, err := ev.Evaluate(ctx, ev.TopLevel(), abs, string(src)); err != nil {
			if evaluator.IsFatal(err) {
				return err
			}
			fmt.Fprintf(w, "Error loading %s: %s\n", path, evaluator.Message(err))
		}
	}
	return nil
}

// resolve expands ~ and makes path absolute.
func (l *Loader) resolve(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir := l.HomeDir
		if homeDir == nil {
			homeDir = os.UserHomeDir
		}
		home, err := homeDir()
		if err != nil || home == "" {
			return "", ErrNoHome
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Abs(path)
}
