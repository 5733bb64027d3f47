package prompt

import (
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// FileWatcher reports changes to markdown files in a directory, debounced.
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	logger   zerolog.Logger
	onDirty  func()
	debounce time.Duration
	stopCh   chan struct{}
	done     chan struct{}

	mu    sync.Mutex
	timer *time.Timer
}

// NewFileWatcher creates a watcher calling onDirty after changes settle.
func NewFileWatcher(logger zerolog.Logger, onDirty func()) (*FileWatcher, error) {
	return newFileWatcher(logger, onDirty, 200*time.Millisecond)
}

func newFileWatcher(logger zerolog.Logger, onDirty func(), debounce time.Duration) (*FileWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	fw := &FileWatcher{
		watcher:  watcher,
		logger:   logger,
		onDirty:  onDirty,
		debounce: debounce,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}

	go fw.run()

	return fw, nil
}

// Watch starts watching a directory
func (fw *FileWatcher) Watch(path string) error {
	return fw.watcher.Add(path)
}

// Stop stops the watcher and cancels a pending notification.
func (fw *FileWatcher) Stop() error {
	close(fw.stopCh)
	err := fw.watcher.Close()
	<-fw.done

	fw.mu.Lock()
	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.mu.Unlock()
	return err
}

func (fw *FileWatcher) run() {
	defer close(fw.done)
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}

			if !strings.HasSuffix(strings.ToLower(event.Name), ".md") {
				continue
			}

			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				fw.logger.Debug().
					Str("file", filepath.Base(event.Name)).
					Str("op", event.Op.String()).
					Msg("Prompt change detected")

				fw.scheduleDirty()
			}

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			fw.logger.Error().Err(err).Msg("Prompt watcher error")

		case <-fw.stopCh:
			return
		}
	}
}

func (fw *FileWatcher) scheduleDirty() {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if fw.timer != nil {
		fw.timer.Stop()
	}
	fw.timer = time.AfterFunc(fw.debounce, func() {
		fw.logger.Debug().Msg("Reloading prompts after file changes")
		fw.onDirty()
	})
}
