// Copyright Antimetal, Inc. All rights reserved.
//
// Use of this source code is governed by a source available license that can be found in the
// LICENSE file or at:
// https://polyformproject.org/wp-content/uploads/2020/06/PolyForm-Shield-1.0.0.txt

package config

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/go-logr/logr"
)

// Watcher reloads the config file when it changes and fans the parsed
// result out to subscribers. The parent directory is watched rather than
// the file itself so atomic-rename saves from editors are caught.
type Watcher struct {
	mu sync.RWMutex

	path    string
	watcher *fsnotify.Watcher
	logger  logr.Logger
	done    chan struct{}
	wg      sync.WaitGroup

	current Config
	subs    []chan Config
	closed  bool
}

func NewWatcher(path string, logger logr.Logger) (*Watcher, error) {
	wLogger := logger.WithName("config.watcher")

	initial, err := Load(path)
	if err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem watcher: %w", err)
	}

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		if cerr := watcher.Close(); cerr != nil {
			wLogger.Error(cerr, "failed to close fs watcher")
		}
		return nil, fmt.Errorf("failed to watch config directory: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: watcher,
		logger:  wLogger,
		done:    make(chan struct{}),
		current: initial,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Current returns the most recently loaded valid configuration.
func (w *Watcher) Current() Config {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// Subscribe returns a channel that receives each new valid configuration.
// Returns nil after Close.
func (w *Watcher) Subscribe() <-chan Config {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	ch := make(chan Config, 1)
	w.subs = append(w.subs, ch)
	return ch
}

func (w *Watcher) Close() error {
	close(w.done)
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	for _, ch := range w.subs {
		close(ch)
	}
	w.subs = nil

	return w.watcher.Close()
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error(err, "filesystem watcher error")
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.path) {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}

	w.logger.V(1).Info("received file event", "file", event.Name, "op", event.Op)

	cfg, err := Load(w.path)
	if err != nil {
		// Keep serving the previous config on a bad edit
		w.logger.Error(err, "failed to reload config file", "path", w.path)
		return
	}

	w.mu.Lock()
	w.current = cfg
	subs := append([]chan Config(nil), w.subs...)
	w.mu.Unlock()

	w.logger.Info("config reloaded", "path", w.path)

	for _, ch := range subs {
		select {
		case ch <- cfg:
		default:
			// Subscriber hasn't drained the previous update; replace it
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- cfg:
			default:
			}
		}
	}
}
