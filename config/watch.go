package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const reloadDebounce = 100 * time.Millisecond

// Watcher reloads a config file whenever it changes on disk.
type Watcher struct {
	fs     *fsnotify.Watcher
	done   chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// Watch calls onChange with the freshly loaded config after every write
// to path. The parent directory is watched so editors that replace the
// file atomically are picked up too.
func Watch(path string, logger *zap.Logger, onChange func(*Config)) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		_ = fw.Close()
		return nil, err
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		_ = fw.Close()
		return nil, err
	}

	w := &Watcher{
		fs:     fw,
		done:   make(chan struct{}),
		logger: logger,
	}

	w.wg.Add(1)
	go w.loop(abs, onChange)

	return w, nil
}

func (w *Watcher) loop(path string, onChange func(*Config)) {
	defer w.wg.Done()

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDebounce)
			} else {
				timer.Reset(reloadDebounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.logger.Info("[config] change detected, reloading", zap.String("path", path))
			onChange(Load(path, w.logger))

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("[config] watcher error", zap.Error(err))

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

func (w *Watcher) Close() error {
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
