package staticreader

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watch starts an optional filesystem watch on the input directory that
// triggers an eager [Reader.RewindAndRescan] whenever the directory
// changes, instead of waiting for round-robin exhaustion.
//
// This is additive: without calling Watch, a Reader behaves exactly as
// described in spec §4.2 (rescan only on exhaustion-plus-rewind). The
// returned stop function closes the watcher; it is safe to call stop
// more than once.
func (r *Reader) Watch(logger func(error)) (stop func(), err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("staticreader: create watcher: %w", err)
	}

	if err := watcher.Add(r.dirPath); err != nil {
		_ = watcher.Close()

		return nil, fmt.Errorf("staticreader: watch %q: %w", r.dirPath, err)
	}

	done := make(chan struct{})

	go func() {
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}

				if _, err := r.RewindAndRescan(); err != nil && logger != nil {
					logger(err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}

				if logger != nil {
					logger(err)
				}
			case <-done:
				return
			}
		}
	}()

	stop = sync.OnceFunc(func() {
		close(done)
		_ = watcher.Close()
	})

	return stop, nil
}
