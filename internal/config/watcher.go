package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Monsieur0x/suppvoicebot/internal/schedule"
)

// RosterWatcher reloads the roster file when it changes on disk and
// hands the new roster to the callback. Editor save patterns fire
// several events per write, so reloads are debounced.
type RosterWatcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*schedule.Roster)
	log      *zap.Logger
	lastSeen time.Time
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool
}

// NewRosterWatcher creates a watcher for the roster file at path.
func NewRosterWatcher(path string, onChange func(*schedule.Roster), log *zap.Logger) (*RosterWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &RosterWatcher{
		watcher:  w,
		path:     path,
		onChange: onChange,
		log:      log,
		debounce: 500 * time.Millisecond,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking.
func (rw *RosterWatcher) Start(ctx context.Context) error {
	rw.mu.Lock()
	if rw.running {
		rw.mu.Unlock()
		return nil
	}
	rw.running = true
	rw.mu.Unlock()

	// Watch the directory, not the file: editors replace files on
	// save, which would drop a file-level watch.
	if err := rw.watcher.Add(filepath.Dir(rw.path)); err != nil {
		return err
	}

	go rw.loop(ctx)
	return nil
}

func (rw *RosterWatcher) loop(ctx context.Context) {
	defer close(rw.doneCh)
	for {
		select {
		case <-ctx.Done():
			return
		case <-rw.stopCh:
			return
		case event, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(rw.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			rw.mu.Lock()
			if time.Since(rw.lastSeen) < rw.debounce {
				rw.mu.Unlock()
				continue
			}
			rw.lastSeen = time.Now()
			rw.mu.Unlock()
			rw.reload()
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Warn("roster watcher error", zap.Error(err))
		}
	}
}

func (rw *RosterWatcher) reload() {
	roster, err := LoadRoster(rw.path)
	if err != nil {
		rw.log.Warn("roster reload failed, keeping previous roster",
			zap.String("path", rw.path), zap.Error(err))
		return
	}
	rw.log.Info("roster reloaded",
		zap.String("path", rw.path),
		zap.Int("employees", len(roster.Employees)))
	rw.onChange(roster)
}

// Stop shuts the watcher down and waits for the loop to exit.
func (rw *RosterWatcher) Stop() {
	rw.mu.Lock()
	if !rw.running {
		rw.mu.Unlock()
		return
	}
	rw.running = false
	rw.mu.Unlock()

	close(rw.stopCh)
	rw.watcher.Close()
	<-rw.doneCh
}
