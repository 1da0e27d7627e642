package maildrop

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceDefault is the default debounce interval for file events.
const debounceDefault = 200 * time.Millisecond

// maxConcurrentFiles limits how many spool files are indexed
// simultaneously under burst load.
const maxConcurrentFiles = 5

// maxQueueSize buffers the work queue. Larger than the worker count so
// a debounce flush never blocks on a burst.
const maxQueueSize = 200

// pollDefault is the default polling interval when fsnotify is
// unavailable.
const pollDefault = 5 * time.Second

// SpoolWatcher watches spool folder directories for new .eml files
// using fsnotify.
type SpoolWatcher struct {
	spool    string
	handler  func(path string)
	debounce time.Duration
}

// NewSpoolWatcher creates a watcher over the spool tree.
func NewSpoolWatcher(spool string, handler func(path string)) *SpoolWatcher {
	return &SpoolWatcher{
		spool:    spool,
		handler:  handler,
		debounce: debounceDefault,
	}
}

// Run watches for new .eml files. Blocks until ctx is cancelled.
func (w *SpoolWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(w.spool); err != nil {
		return err
	}
	// Watch existing folder directories.
	entries, err := os.ReadDir(w.spool)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := watcher.Add(filepath.Join(w.spool, e.Name())); err != nil {
				return err
			}
		}
	}

	// ready collects paths that passed debounce. A single timer resets
	// on each event; when it fires, all accumulated paths flush to the
	// work queue. Zero per-file goroutines.
	var mu sync.Mutex
	ready := make(map[string]bool)

	queue := make(chan string, maxQueueSize)

	var wg sync.WaitGroup
	for i := 0; i < maxConcurrentFiles; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range queue {
				func() {
					defer func() {
						if r := recover(); r != nil {
							_ = r
						}
					}()
					w.handler(path)
				}()
			}
		}()
	}

	flush := func() {
		mu.Lock()
		batch := make([]string, 0, len(ready))
		for p := range ready {
			batch = append(batch, p)
		}
		ready = make(map[string]bool)
		mu.Unlock()

		for _, p := range batch {
			select {
			case queue <- p:
			case <-ctx.Done():
				return
			}
		}
	}

	// Single debounce timer, initialized as stopped.
	debounceTimer := time.NewTimer(w.debounce)
	debounceTimer.Stop()

	defer func() {
		debounceTimer.Stop()
		flush()
		close(queue)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-debounceTimer.C:
			flush()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) {
				continue
			}

			// A new folder directory starts being watched too.
			if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
				_ = watcher.Add(event.Name)
				continue
			}

			if !isSpoolFile(filepath.Base(event.Name)) {
				continue
			}

			mu.Lock()
			ready[event.Name] = true
			mu.Unlock()

			if !debounceTimer.Stop() {
				select {
				case <-debounceTimer.C:
				default:
				}
			}
			debounceTimer.Reset(w.debounce)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			_ = err
		}
	}
}

// PollWatcher scans the spool on an interval. Fallback for
// filesystems where fsnotify does not work (NFS and friends).
type PollWatcher struct {
	spool    string
	handler  func(path string)
	interval time.Duration
	seen     map[string]bool
}

// NewPollWatcher creates a polling-based watcher.
func NewPollWatcher(spool string, handler func(path string), interval time.Duration) *PollWatcher {
	if interval == 0 {
		interval = pollDefault
	}
	return &PollWatcher{
		spool:    spool,
		handler:  handler,
		interval: interval,
		seen:     make(map[string]bool),
	}
}

// Run polls the spool tree. Blocks until ctx is cancelled.
func (w *PollWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.scan()
		}
	}
}

func (w *PollWatcher) scan() {
	folders, err := os.ReadDir(w.spool)
	if err != nil {
		return
	}
	for _, folder := range folders {
		if !folder.IsDir() {
			continue
		}
		dir := filepath.Join(w.spool, folder.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() || !isSpoolFile(e.Name()) {
				continue
			}
			path := filepath.Join(dir, e.Name())
			if w.seen[path] {
				continue
			}
			w.seen[path] = true
			w.handler(path)
		}
	}
}
