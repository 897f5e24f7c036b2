package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/idcard-reader/constants"
)

const defaultDebounce = 500 * time.Millisecond

// Watch scans files created or rewritten under root (recursively, new
// subdirectories included) until ctx is done. Bursts of events are coalesced
// for debounce before the pending files are scanned. The returned channel is
// closed when watching stops.
func (r *Runner) Watch(ctx context.Context, root string, debounce time.Duration) (<-chan FileResult, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if _, err := r.watchTree(w, root); err != nil {
		_ = w.Close()
		return nil, err
	}
	r.logger.Info("batch.watch.start", "root", root, "debounce_ms", debounce.Milliseconds())

	out := make(chan FileResult, 64)
	go func() {
		defer close(out)
		defer func() { _ = w.Close() }()

		pending := map[string]struct{}{}
		var timer *time.Timer
		var fire <-chan time.Time

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				r.logger.Info("batch.watch.stop", "root", root)
				return

			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				queued := r.accept(ev, w)
				if len(queued) == 0 {
					continue
				}
				for _, p := range queued {
					pending[p] = struct{}{}
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.NewTimer(debounce)
				fire = timer.C

			case <-fire:
				fire = nil
				paths := make([]string, 0, len(pending))
				for p := range pending {
					paths = append(paths, p)
				}
				clear(pending)
				slices.Sort(paths)
				for _, fr := range r.scanPaths(ctx, paths) {
					select {
					case out <- fr:
					case <-ctx.Done():
						return
					}
				}

			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				r.logger.Warn("batch.watch.error", "error", err)
			}
		}
	}()
	return out, nil
}

// accept returns the files ev makes ready for scanning. A new directory is
// added to the watcher and every matching file already inside it is queued,
// which covers directories moved in and files written before the watch took.
func (r *Runner) accept(ev fsnotify.Event, w *fsnotify.Watcher) []string {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
		return nil
	}
	if r.skipHidden && isHidden(ev.Name) {
		return nil
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		return nil
	}
	if info.IsDir() {
		if !ev.Has(fsnotify.Create) {
			return nil
		}
		files, err := r.watchTree(w, ev.Name)
		if err != nil {
			r.logger.Warn("batch.watch.add_dir_failed", "path", ev.Name, "error", err)
		}
		return files
	}
	if !r.matches(ev.Name) {
		return nil
	}
	return []string{ev.Name}
}

func (r *Runner) matches(path string) bool {
	_, ok := r.exts[constants.NormalizeExt(filepath.Ext(path))]
	return ok
}

// watchTree watches every directory under root and returns the matching
// files found on the way.
func (r *Runner) watchTree(w *fsnotify.Watcher, root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			if errors.Is(walkErr, fs.ErrNotExist) {
				return nil
			}
			return walkErr
		}
		if r.skipHidden && path != root && isHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			if d.Type().IsRegular() && r.matches(path) {
				files = append(files, path)
			}
			return nil
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
	return files, err
}

func (r *Runner) scanPaths(ctx context.Context, paths []string) []FileResult {
	results := make([]FileResult, len(paths))
	var g errgroup.Group
	g.SetLimit(r.workers)
	for i, p := range paths {
		results[i].Path = p
		g.Go(func() error {
			r.scanOne(ctx, &results[i])
			return nil
		})
	}
	_ = g.Wait()
	return results
}
