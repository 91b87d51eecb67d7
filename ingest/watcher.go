package ingest

import (
	"context"
	"path/filepath"
	"strings"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/eapache/queue"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// FileHandler processes one dropped file.
type FileHandler func(ctx context.Context, path string) error

// Watcher observes an intake directory and hands finished files to the
// handler through a FIFO queue, one at a time. A successfully processed file
// is handled at most once per process lifetime; a failed file becomes
// eligible again on its next write event, so files picked up mid-copy are
// retried once fully written.
type Watcher struct {
	dir     string
	handler FileHandler
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	pending *queue.Queue
	wake    chan struct{}
	seen    mapset.Set[string]
}

func NewWatcher(dir string, handler FileHandler, logger *zap.SugaredLogger) *Watcher {
	return &Watcher{
		dir:     dir,
		handler: handler,
		logger:  logger,
		pending: queue.New(),
		wake:    make(chan struct{}, 1),
		seen:    mapset.NewSet[string](),
	}
}

// RegisterLifecycle starts the watcher with the fx application when an
// intake directory is configured.
func (w *Watcher) RegisterLifecycle(lifecycle fx.Lifecycle) {
	if w.dir == "" {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	var done sync.WaitGroup

	lifecycle.Append(fx.Hook{
		OnStart: func(context.Context) error {
			notifier, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			if err := notifier.Add(w.dir); err != nil {
				notifier.Close()
				return err
			}

			done.Add(2)
			go func() {
				defer done.Done()
				defer notifier.Close()
				w.watch(ctx, notifier)
			}()
			go func() {
				defer done.Done()
				w.drain(ctx)
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			done.Wait()
			return nil
		},
	})
}

func (w *Watcher) watch(ctx context.Context, notifier *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-notifier.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isIntakeFile(event.Name) {
				continue
			}
			w.enqueue(event.Name)
		case err, ok := <-notifier.Errors:
			if !ok {
				return
			}
			w.logger.Warnw("intake watcher error", "error", err)
		}
	}
}

func (w *Watcher) enqueue(path string) {
	if !w.seen.Add(path) {
		return
	}
	w.mu.Lock()
	w.pending.Add(path)
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Watcher) drain(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.wake:
		}
		for {
			w.mu.Lock()
			if w.pending.Length() == 0 {
				w.mu.Unlock()
				break
			}
			path := w.pending.Remove().(string)
			w.mu.Unlock()

			w.process(ctx, path)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	if err := w.handler(ctx, path); err != nil {
		w.logger.Errorw("error processing intake file", "path", path, "error", err)
		// The create event often fires while the file is still being
		// written; forgetting the path lets the write event that
		// completes the file queue it again.
		w.seen.Remove(path)
	}
}

func isIntakeFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".xlsx":
		return true
	}
	return false
}
