// Package watch turns file system changes below the source tree and to the
// configuration file into debounced rebuild triggers.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/docvars/internal/foundation/errors"
	"git.home.luguber.info/inful/docvars/internal/logfields"
)

const (
	defaultQuietWindow = 300 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second
)

// Options tunes the watcher.
type Options struct {
	// QuietWindow is how long the tree must stay unchanged before a trigger fires.
	QuietWindow time.Duration

	// MaxDelay bounds how long a burst of changes can postpone a trigger.
	MaxDelay time.Duration

	// Ignore lists directories whose changes never trigger, typically the output directory.
	Ignore []string

	Logger *slog.Logger
}

// Trigger describes the changes coalesced into one rebuild.
type Trigger struct {
	// ConfigChanged is set when the configuration file was written, created or renamed.
	ConfigChanged bool

	// Paths are the changed source paths, sorted and without duplicates.
	Paths []string

	// Events is the number of file system events coalesced into the trigger.
	Events int
}

// Handler runs a rebuild. Handlers are called one at a time from Run.
type Handler func(ctx context.Context, t Trigger)

// Watcher monitors a configuration file and source trees.
type Watcher struct {
	configPath string
	opts       Options
	logger     *slog.Logger
	fsw        *fsnotify.Watcher

	mu     sync.RWMutex
	roots  []string
	ignore []string
}

// New creates a watcher for configPath. Source trees are added with AddTree.
func New(configPath string, opts Options) (*Watcher, error) {
	if opts.QuietWindow <= 0 {
		opts.QuietWindow = defaultQuietWindow
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = defaultMaxDelay
	}
	if opts.MaxDelay < opts.QuietWindow {
		return nil, ferrors.ValidationError("max delay must not be shorter than the quiet window").Build()
	}

	absConfig, err := filepath.Abs(configPath)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve config path").
			WithContext("path", configPath).
			Build()
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRuntime, "failed to create file watcher").Build()
	}

	w := &Watcher{
		configPath: absConfig,
		opts:       opts,
		logger:     opts.Logger,
		fsw:        fsw,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	w.SetIgnore(opts.Ignore)

	// Watch the directory containing the config file (more reliable than watching the file directly)
	if err := fsw.Add(filepath.Dir(absConfig)); err != nil {
		_ = fsw.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch config directory").
			WithContext("path", filepath.Dir(absConfig)).
			Build()
	}
	return w, nil
}

// AddTree watches root and every non-hidden directory below it.
func (w *Watcher) AddTree(root string) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve source directory").
			WithContext("path", root).
			Build()
	}

	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if p != absRoot && (strings.HasPrefix(d.Name(), ".") || w.ignored(p)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(p); err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		return nil
	})
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch source directory").
			WithContext("path", root).
			Build()
	}

	w.mu.Lock()
	if !slices.Contains(w.roots, absRoot) {
		w.roots = append(w.roots, absRoot)
	}
	w.mu.Unlock()

	w.logger.Info("Watching source directory", logfields.Path(absRoot))
	return nil
}

// SetIgnore replaces the ignored directories, for example after the output
// directory changed in a reloaded configuration.
func (w *Watcher) SetIgnore(dirs []string) {
	ignore := make([]string, 0, len(dirs))
	for _, dir := range dirs {
		if abs, err := filepath.Abs(dir); err == nil {
			ignore = append(ignore, abs)
		}
	}
	w.mu.Lock()
	w.ignore = ignore
	w.mu.Unlock()
}

// Close stops watching. Run returns once the event channels are closed.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers debounced triggers to handle until ctx is done or the watcher
// is closed. A trigger fires once no change was seen for QuietWindow, or
// MaxDelay after the first change of a burst.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	if handle == nil {
		return ferrors.ValidationError("handler is required").Build()
	}

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
	)

	var pending *Trigger
	seen := make(map[string]struct{})

	fire := func(reason string) {
		quietTimer.Stop()
		maxTimer.Stop()
		quietC, maxC = nil, nil
		if pending == nil {
			return
		}
		t := *pending
		for p := range seen {
			t.Paths = append(t.Paths, p)
		}
		slices.Sort(t.Paths)
		pending = nil
		clear(seen)

		w.logger.Debug("Rebuild triggered",
			slog.String("reason", reason),
			slog.Int("events", t.Events),
			slog.Bool("config_changed", t.ConfigChanged))
		handle(ctx, t)
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			configChanged, relevant := w.classify(event)
			if !relevant {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addSubtree(event.Name); err != nil {
						w.logger.Warn("Failed to watch new directory", logfields.Path(event.Name), logfields.Error(err))
					}
				}
			}

			if pending == nil {
				pending = &Trigger{}
				maxTimer.Reset(w.opts.MaxDelay)
				maxC = maxTimer.C
			}
			pending.Events++
			if configChanged {
				pending.ConfigChanged = true
			} else {
				seen[event.Name] = struct{}{}
			}
			quietTimer.Stop()
			quietTimer.Reset(w.opts.QuietWindow)
			quietC = quietTimer.C

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				w.logger.Warn("File watcher overflowed; forcing rebuild", logfields.Error(err))
				if pending == nil {
					pending = &Trigger{}
				}
				pending.Events++
				fire("overflow")
				continue
			}
			w.logger.Error("File watcher error", logfields.Error(err))

		case <-quietC:
			fire("quiet")

		case <-maxC:
			fire("max_delay")
		}
	}
}

// classify reports whether event touches the configuration file and whether
// it should trigger a rebuild at all.
func (w *Watcher) classify(event fsnotify.Event) (configChanged, relevant bool) {
	if event.Op == fsnotify.Chmod {
		return false, false
	}
	name := filepath.Clean(event.Name)
	if name == w.configPath {
		if event.Has(fsnotify.Remove) {
			w.logger.Warn("Config file removed", logfields.Path(name))
			return false, false
		}
		return true, true
	}
	if strings.HasPrefix(filepath.Base(name), ".") || w.ignored(name) {
		return false, false
	}

	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, root := range w.roots {
		if within(root, name) {
			return false, true
		}
	}
	return false, false
}

func (w *Watcher) addSubtree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if !d.IsDir() {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") || w.ignored(p) {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

func (w *Watcher) ignored(p string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, dir := range w.ignore {
		if within(dir, p) {
			return true
		}
	}
	return false
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	t.Stop()
	return t
}
