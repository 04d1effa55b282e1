// Package watch reruns a build whenever files below a directory change
package watch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rotisserie/eris"

	"github.com/slinkylib/slinky/pkg/buildsys"
)

// DefaultDelay is how long a burst of events has to settle before the build runs
const DefaultDelay = 300 * time.Millisecond

// Options configures Run
type Options struct {
	// Root is watched recursively
	Root string
	// Ignore lists directories (absolute or relative to Root) which never trigger a build
	Ignore []string
	Delay  time.Duration
	// Build is called once at the start and after every change
	Build func(ctx context.Context) error
}

type watcher struct {
	fs     *fsnotify.Watcher
	root   string
	ignore []string
}

// Ignored reports whether a change to path should be skipped. Hidden files, editor temp files and
// everything inside ignored directories are skipped.
func Ignored(path string, ignore []string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasPrefix(base, "#") ||
		strings.HasSuffix(base, "~") || strings.HasSuffix(base, ".swp") {
		return true
	}

	for _, dir := range ignore {
		if path == dir || strings.HasPrefix(path, dir+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *watcher) addDirs(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, entry os.DirEntry, err error) error {
		if err != nil || !entry.IsDir() {
			return nil
		}

		if path != w.root && Ignored(path, w.ignore) {
			return filepath.SkipDir
		}

		if err := w.fs.Add(path); err != nil {
			buildsys.Log(ctx).Warn().Err(err).Str("path", path).Msgf("failed to watch %s", path)
		}
		return nil
	})
}

// debounce returns a channel receiving one value after calls to the returned trigger have stopped
// for delay
func debounce(delay time.Duration) (<-chan struct{}, func()) {
	var lock sync.Mutex
	var timer *time.Timer
	ready := make(chan struct{}, 1)

	trigger := func() {
		lock.Lock()
		defer lock.Unlock()

		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(delay, func() {
			select {
			case ready <- struct{}{}:
			default:
			}
		})
	}

	return ready, trigger
}

// Run builds once and then again after each change until ctx is cancelled. Build failures are
// logged and don't stop the loop.
func Run(ctx context.Context, opts Options) error {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return eris.Wrapf(err, "failed to resolve %s", opts.Root)
	}

	ignore := make([]string, len(opts.Ignore))
	for idx, dir := range opts.Ignore {
		if !filepath.IsAbs(dir) {
			dir = filepath.Join(root, dir)
		}
		ignore[idx] = filepath.Clean(dir)
	}

	delay := opts.Delay
	if delay <= 0 {
		delay = DefaultDelay
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return eris.Wrap(err, "failed to create the file watcher")
	}
	defer fsWatcher.Close()

	w := &watcher{fs: fsWatcher, root: root, ignore: ignore}
	if err = w.addDirs(ctx, root); err != nil {
		return eris.Wrapf(err, "failed to watch %s", root)
	}

	build := func() {
		if err := opts.Build(ctx); err != nil && ctx.Err() == nil {
			buildsys.Log(ctx).Error().Err(err).Msg("build failed")
		}
	}

	build()
	buildsys.Log(ctx).Info().Msgf("watching %s for changes", root)

	ready, trigger := debounce(delay)
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}

			if Ignored(evt.Name, ignore) {
				continue
			}

			if evt.Has(fsnotify.Create) {
				if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
					_ = w.addDirs(ctx, evt.Name)
				}
			}

			buildsys.Log(ctx).Debug().Str("path", evt.Name).Msgf("%s: %s", evt.Op, evt.Name)
			trigger()
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			buildsys.Log(ctx).Warn().Err(err).Msg("watcher error")
		case <-ready:
			build()
		}
	}
}
