// Package watcher signals when documents under a directory tree change.
package watcher

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/provchain/internal/log"
)

// DefaultExtensions are the document file extensions that trigger a change.
var DefaultExtensions = []string{".yaml", ".yml", ".json"}

// DefaultDebounce is the quiet period used when Config.Debounce is zero.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	Dir        string
	Extensions []string
	Debounce   time.Duration
}

// DefaultConfig watches dir for the default document extensions.
func DefaultConfig(dir string) Config {
	return Config{Dir: dir, Extensions: DefaultExtensions, Debounce: DefaultDebounce}
}

// Watcher coalesces bursts of document events into single change signals.
// Hidden directories are never watched.
type Watcher struct {
	cfg      Config
	fsw      *fsnotify.Watcher
	changes  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a watcher. Nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = DefaultExtensions
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}
	return &Watcher{
		cfg:     cfg,
		fsw:     fsw,
		changes: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}, nil
}

// Start registers every directory under Config.Dir and returns the change channel.
// At most one signal is buffered; a reader that falls behind sees one pending change.
func (w *Watcher) Start() (<-chan struct{}, error) {
	err := filepath.WalkDir(w.cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case !d.IsDir():
			return nil
		case path != w.cfg.Dir && isHidden(path):
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching directory %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Debug(log.CatWatcher, "watching documents", "dir", w.cfg.Dir, "debounce", w.cfg.Debounce)
	go w.run()
	return w.changes, nil
}

// Stop ends the event loop and closes the underlying watcher. Safe to call twice.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.stop)
		err = w.fsw.Close()
	})
	return err
}

func (w *Watcher) run() {
	var (
		timer *time.Timer
		fire  <-chan time.Time // nil while no change is pending
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.ErrorErr(log.CatWatcher, "watch error", err, "dir", w.cfg.Dir)

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.followNewDir(ev)
			if !w.relevant(ev) {
				continue
			}
			log.Debug(log.CatWatcher, "document changed", "file", ev.Name, "op", ev.Op.String())

			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.cfg.Debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			select {
			case w.changes <- struct{}{}:
			default:
			}
		}
	}
}

// followNewDir adds directories created after Start.
func (w *Watcher) followNewDir(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) || isHidden(ev.Name) {
		return
	}
	if info, err := os.Stat(ev.Name); err != nil || !info.IsDir() {
		return
	}
	if err := w.fsw.Add(ev.Name); err != nil {
		log.ErrorErr(log.CatWatcher, "failed to watch new directory", err, "dir", ev.Name)
	}
}

// relevant reports whether ev touches a document file. Removes and renames
// count because they change the document set as much as a write does.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	return slices.Contains(w.cfg.Extensions, strings.ToLower(filepath.Ext(ev.Name)))
}

func isHidden(path string) bool {
	return strings.HasPrefix(filepath.Base(path), ".")
}
