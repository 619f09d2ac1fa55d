package kural

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// CorpusWatcher monitors the corpus file and invokes the supplied callback
// whenever the verse data changes. Stop must be called to release filesystem
// resources.
type CorpusWatcher struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Stop halts the watcher and waits for the underlying goroutine to exit.
func (w *CorpusWatcher) Stop() {
	if w == nil {
		return
	}
	w.once.Do(func() {
		w.cancel()
		<-w.done
	})
}

// WatchCorpus wires fsnotify around the corpus file and reloads it on any
// relevant change. Editors typically replace files via rename, so the watch is
// placed on the parent directory and events are filtered by path.
func WatchCorpus(ctx context.Context, path string, onChange func([]Verse), onError func(error)) (*CorpusWatcher, error) {
	if onChange == nil {
		return nil, fmt.Errorf("kural: watch corpus requires a change callback")
	}
	if path == "" {
		return nil, fmt.Errorf("kural: no corpus file configured for watching")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("kural: resolve corpus file: %w", err)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("kural: watch corpus: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		cancel()
		return nil, fmt.Errorf("kural: watch add %s: %w", filepath.Dir(abs), err)
	}

	done := make(chan struct{})
	w := &CorpusWatcher{cancel: cancel, done: done}

	go func() {
		defer close(done)
		defer func() {
			if err := watcher.Close(); err != nil && onError != nil {
				onError(fmt.Errorf("kural: watch corpus close: %w", err))
			}
		}()

		reload := func() {
			verses, err := LoadCorpus(abs)
			if err != nil {
				if onError != nil {
					onError(err)
				}
				return
			}
			onChange(verses)
		}

		for {
			select {
			case <-watchCtx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					reload()
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				if err != nil && onError != nil {
					onError(fmt.Errorf("kural: watch corpus: %w", err))
				}
			}
		}
	}()

	return w, nil
}
