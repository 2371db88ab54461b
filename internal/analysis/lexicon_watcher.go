package analysis

import (
	"context"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// LexiconSource supplies the lexicon to use for the next checkpoint.
type LexiconSource interface {
	Lexicon() *Lexicon
}

// StaticLexicon is a LexiconSource that never changes.
type StaticLexicon struct {
	lex *Lexicon
}

// NewStaticLexicon wraps lex. A nil lex selects DefaultLexicon.
func NewStaticLexicon(lex *Lexicon) StaticLexicon {
	if lex == nil {
		lex = DefaultLexicon()
	}
	return StaticLexicon{lex: lex}
}

// Lexicon implements LexiconSource.
func (s StaticLexicon) Lexicon() *Lexicon { return s.lex }

// reloadSettle is how long the watcher waits after a change event before
// reading the file, so that editors finish writing.
const reloadSettle = 50 * time.Millisecond

// LexiconWatcher serves a lexicon loaded from a YAML file and reloads it when
// the file changes. A file that fails to parse leaves the previous lexicon in
// place.
type LexiconWatcher struct {
	path    string
	current atomic.Pointer[Lexicon]
	logger  zerolog.Logger
	reloads atomic.Int64
}

// NewLexiconWatcher loads path once and returns a watcher serving it. Call Run
// to start following changes.
func NewLexiconWatcher(path string, logger zerolog.Logger) (*LexiconWatcher, error) {
	lex, err := LoadLexicon(path)
	if err != nil {
		return nil, err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve lexicon path: %w", err)
	}

	w := &LexiconWatcher{
		path:   abs,
		logger: logger.With().Str("component", "lexicon").Str("path", abs).Logger(),
	}
	w.current.Store(lex)
	return w, nil
}

// Lexicon implements LexiconSource.
func (w *LexiconWatcher) Lexicon() *Lexicon {
	return w.current.Load()
}

// Reloads returns how many successful reloads have happened since creation.
func (w *LexiconWatcher) Reloads() int64 {
	return w.reloads.Load()
}

// Reload re-reads the lexicon file immediately.
func (w *LexiconWatcher) Reload() error {
	lex, err := LoadLexicon(w.path)
	if err != nil {
		return err
	}
	w.current.Store(lex)
	w.reloads.Add(1)
	return nil
}

// Run watches the lexicon's directory until ctx is cancelled. The directory is
// watched rather than the file so that atomic-rename saves are picked up.
func (w *LexiconWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Failed to close lexicon watcher")
		}
	}()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch lexicon directory: %w", err)
	}
	w.logger.Info().Msg("Lexicon watcher started")

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(reloadSettle):
			}

			if err := w.Reload(); err != nil {
				w.logger.Error().Err(err).Msg("Lexicon reload failed, keeping previous tables")
				continue
			}
			w.logger.Info().Int64("reloads", w.Reloads()).Msg("Lexicon reloaded")

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("Lexicon watcher error")
		}
	}
}
