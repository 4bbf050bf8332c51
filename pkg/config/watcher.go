package config

import (
	"errors"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a config file whenever it changes on disk. Reloads apply
// to the next session; in-flight sessions keep the snapshot they started
// with.
type Watcher struct {
	path    string
	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

func NewWatcher(path string) *Watcher {
	return &Watcher{path: path}
}

// Watch starts watching the config file's directory and invokes callback
// with each successfully reloaded config. If the directory does not exist
// this is a no-op.
func (w *Watcher) Watch(callback func(*Config)) error {
	dir := filepath.Dir(w.path)
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !info.IsDir() {
		return nil
	}

	w.mu.Lock()
	if w.watcher != nil {
		w.mu.Unlock()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		w.mu.Unlock()
		return err
	}
	w.watcher = watcher
	w.mu.Unlock()

	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		w.mu.Lock()
		w.watcher = nil
		w.mu.Unlock()
		return err
	}

	target := filepath.Clean(w.path)
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				cfg, err := Load(w.path)
				if err != nil {
					log.Printf("[config] reload failed: %v", err)
					continue
				}
				if callback != nil {
					callback(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("[config] watcher error: %v", err)
			}
		}
	}()

	return nil
}

func (w *Watcher) Close() error {
	w.mu.Lock()
	watcher := w.watcher
	w.watcher = nil
	w.mu.Unlock()
	if watcher != nil {
		return watcher.Close()
	}
	return nil
}
