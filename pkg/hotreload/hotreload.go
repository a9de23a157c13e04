// Package hotreload watches the configuration file on disk and triggers
// a coordinated reload callback on change, generalizing a prior
// pkg/hotreload.ConfigReloader (file watcher plus hash-compare
// debounce) onto this module's internal/config.Load loader.
package hotreload

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/unofficial-shibboleth-mirror/metadata-aggregator-core/internal/config"
)

// Options configures a Watcher.
type Options struct {
	DebounceInterval time.Duration
	WatchInterval    time.Duration // periodic hash-compare fallback
}

func (o Options) withDefaults() Options {
	if o.DebounceInterval == 0 {
		o.DebounceInterval = time.Second
	}
	if o.WatchInterval == 0 {
		o.WatchInterval = 5 * time.Second
	}
	return o
}

// OnReload is called with the newly loaded configuration whenever the
// watched file changes and reloads successfully.
type OnReload func(*config.PipelineConfig)

// OnError is called when a reload attempt fails; the previous
// configuration remains in effect.
type OnError func(error)

// Watcher watches a configuration file and reloads it on change.
type Watcher struct {
	path    string
	opts    Options
	watcher *fsnotify.Watcher

	onReload OnReload
	onError  OnError

	current atomic.Pointer[config.PipelineConfig]
	hash    string
	hashMu  sync.Mutex

	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running atomic.Bool
}

// New builds a Watcher over path, loading it once synchronously so
// Current() is valid immediately.
func New(path string, opts Options, onReload OnReload, onError OnError) (*Watcher, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("hotreload: initial load: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("hotreload: create watcher: %w", err)
	}

	w := &Watcher{path: path, opts: opts.withDefaults(), watcher: fw, onReload: onReload, onError: onError}
	w.current.Store(cfg)
	w.hash, _ = w.fileHash()
	return w, nil
}

// Current returns the most recently loaded configuration.
func (w *Watcher) Current() *config.PipelineConfig {
	return w.current.Load()
}

// Start begins watching in the background. Calling Start twice is an
// error.
func (w *Watcher) Start() error {
	if w.running.Swap(true) {
		return fmt.Errorf("hotreload: already running")
	}

	absPath, err := filepath.Abs(w.path)
	if err != nil {
		return fmt.Errorf("hotreload: resolve path: %w", err)
	}
	if err := w.watcher.Add(filepath.Dir(absPath)); err != nil {
		return fmt.Errorf("hotreload: watch directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel

	w.wg.Add(2)
	go w.watchEvents(ctx, absPath)
	go w.periodicCheck(ctx)
	return nil
}

// Stop halts watching and releases the underlying fsnotify watcher.
func (w *Watcher) Stop() {
	if !w.running.Swap(false) {
		return
	}
	w.cancel()
	_ = w.watcher.Close()
	w.wg.Wait()
}

func (w *Watcher) watchEvents(ctx context.Context, absPath string) {
	defer w.wg.Done()

	var debounce *time.Timer
	pending := false

	for {
		var debounceC <-chan time.Time
		if debounce != nil {
			debounceC = debounce.C
		}

		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || abs != absPath {
				continue
			}
			pending = true
			debounce = time.NewTimer(w.opts.DebounceInterval)
		case <-debounceC:
			if pending {
				pending = false
				w.reloadIfChanged()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (w *Watcher) periodicCheck(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.opts.WatchInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.reloadIfChanged()
		}
	}
}

func (w *Watcher) reloadIfChanged() {
	newHash, err := w.fileHash()
	if err != nil {
		if w.onError != nil {
			w.onError(fmt.Errorf("hotreload: hash %s: %w", w.path, err))
		}
		return
	}

	w.hashMu.Lock()
	unchanged := newHash == w.hash
	w.hashMu.Unlock()
	if unchanged {
		return
	}

	cfg, err := config.Load(w.path)
	if err != nil {
		if w.onError != nil {
			w.onError(fmt.Errorf("hotreload: reload %s: %w", w.path, err))
		}
		return
	}

	w.hashMu.Lock()
	w.hash = newHash
	w.hashMu.Unlock()

	w.current.Store(cfg)
	if w.onReload != nil {
		w.onReload(cfg)
	}
}

func (w *Watcher) fileHash() (string, error) {
	f, err := os.Open(w.path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
