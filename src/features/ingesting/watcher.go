package ingesting

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/wavecrate/wavecrate/src/features/config"
	"github.com/wavecrate/wavecrate/src/music"
)

// FolderWatcher monitors the watch folder and ingests new audio files
// after a quiet period. Events are debounced per batch, not per file, so
// dropping an album in produces one job. It can be enabled and disabled
// at runtime.
type FolderWatcher struct {
	service *Service
	config  *config.Manager

	watcher *fsnotify.Watcher
	mu      sync.Mutex
	enabled bool
	pending map[string]struct{}
	timer   *time.Timer
	stop    chan struct{}
}

// NewFolderWatcher creates a new watch-folder monitor.
func NewFolderWatcher(service *Service, cfg *config.Manager) (*FolderWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &FolderWatcher{
		service: service,
		config:  cfg,
		watcher: watcher,
		pending: make(map[string]struct{}),
		stop:    make(chan struct{}),
	}, nil
}

// Start runs the event loop. Events are only acted on while the watcher
// is enabled.
func (w *FolderWatcher) Start(ctx context.Context) error {
	go w.loop(ctx)
	return nil
}

// Enable starts watching the configured folder.
func (w *FolderWatcher) Enable() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.enabled {
		return nil
	}
	watch := w.config.Get().Watch
	if watch.Path == "" {
		return music.Errorf(music.KindValidation, "ingesting.FolderWatcher", "no watch folder path configured")
	}
	if err := w.watcher.Add(watch.Path); err != nil {
		return err
	}
	w.enabled = true
	slog.Info("Watch folder enabled", "path", watch.Path, "debounce", watch.Debounce.Std())
	return nil
}

// Disable stops watching and discards any pending batch.
func (w *FolderWatcher) Disable() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return
	}
	w.watcher.Remove(w.config.Get().Watch.Path)
	if w.timer != nil {
		w.timer.Stop()
	}
	w.pending = make(map[string]struct{})
	w.enabled = false
	slog.Info("Watch folder disabled")
}

// Enabled reports whether the watcher is currently active.
func (w *FolderWatcher) Enabled() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enabled
}

// Stop shuts the watcher down for good.
func (w *FolderWatcher) Stop() {
	close(w.stop)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	w.watcher.Close()
}

func (w *FolderWatcher) loop(ctx context.Context) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Error("Watch folder error", "error", err)
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *FolderWatcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	// Create fires when the file appears; Write keeps resetting the timer
	// while a large copy is still in flight.
	if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
		return
	}
	if !w.service.supportedFile(event.Name) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.enabled {
		return
	}
	w.pending[event.Name] = struct{}{}
	if w.timer != nil {
		w.timer.Stop()
	}
	debounce := w.config.Get().Watch.Debounce.Std()
	if debounce <= 0 {
		debounce = 5 * time.Second
	}
	w.timer = time.AfterFunc(debounce, func() {
		w.flush(ctx)
	})
}

// flush hands the settled batch to the ingest service.
func (w *FolderWatcher) flush(ctx context.Context) {
	w.mu.Lock()
	paths := make([]string, 0, len(w.pending))
	for path := range w.pending {
		paths = append(paths, path)
	}
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	if len(paths) == 0 {
		return
	}
	jobID, err := w.service.IngestBatch(ctx, paths)
	if err != nil {
		slog.Error("Watch folder could not start batch", "files", len(paths), "error", err)
		return
	}
	slog.Info("Watch folder batch started", "files", len(paths), "jobID", jobID)
}
