package prompts

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// LoadOverrides scans dir for template override files and applies them to the
// library. Files are discovered with the pattern "**/*.tmpl"; the file stem
// must match a template name (e.g. "plan_modules.tmpl"). Unknown stems are
// skipped with a warning so a typo cannot silently widen the template set.
func LoadOverrides(lib *Library, dir string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "**/*.tmpl")
	if err != nil {
		return fmt.Errorf("scan prompt overrides in %s: %w", dir, err)
	}

	for _, match := range matches {
		if err := applyOverrideFile(lib, fsys, dir, match, logger); err != nil {
			return err
		}
	}
	return nil
}

func applyOverrideFile(lib *Library, fsys fs.FS, dir, match string, logger *slog.Logger) error {
	name := strings.TrimSuffix(filepath.Base(match), ".tmpl")
	if _, known := defaultTexts[name]; !known {
		logger.Warn("Ignoring prompt override with unknown template name",
			"file", filepath.Join(dir, match),
			"name", name)
		return nil
	}

	data, err := fs.ReadFile(fsys, match)
	if err != nil {
		return fmt.Errorf("read prompt override %s: %w", match, err)
	}

	if err := lib.Set(name, string(data)); err != nil {
		return err
	}

	logger.Info("Loaded prompt override", "template", name, "file", filepath.Join(dir, match))
	return nil
}

// Watcher reloads prompt overrides when files under the override directory
// change. Close it to stop watching.
type Watcher struct {
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// WatchOverrides starts watching dir (and its subdirectories) for override
// changes. A changed or created .tmpl file is re-applied; a removed one
// restores the built-in default.
func WatchOverrides(lib *Library, dir string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create prompt watcher: %w", err)
	}

	// Watch the root and every existing subdirectory. fsnotify is not
	// recursive on its own.
	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return fw.Add(path)
		}
		return nil
	})
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch prompt overrides in %s: %w", dir, err)
	}

	w := &Watcher{watcher: fw, done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for {
			select {
			case event, ok := <-fw.Events:
				if !ok {
					return
				}
				handleWatchEvent(lib, event, fw, logger)
			case err, ok := <-fw.Errors:
				if !ok {
					return
				}
				logger.Warn("Prompt watcher error", "error", err)
			}
		}
	}()

	return w, nil
}

func handleWatchEvent(lib *Library, event fsnotify.Event, fw *fsnotify.Watcher, logger *slog.Logger) {
	// New subdirectories need their own watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := fw.Add(event.Name); err != nil {
				logger.Warn("Failed to watch new prompt directory", "dir", event.Name, "error", err)
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".tmpl") {
		return
	}
	name := strings.TrimSuffix(filepath.Base(event.Name), ".tmpl")
	if _, known := defaultTexts[name]; !known {
		return
	}

	switch {
	case event.Op.Has(fsnotify.Remove) || event.Op.Has(fsnotify.Rename):
		if err := lib.Reset(name); err == nil {
			logger.Info("Prompt override removed, default restored", "template", name)
		}
	case event.Op.Has(fsnotify.Write) || event.Op.Has(fsnotify.Create):
		data, err := os.ReadFile(event.Name)
		if err != nil {
			logger.Warn("Failed to read changed prompt override", "file", event.Name, "error", err)
			return
		}
		if err := lib.Set(name, string(data)); err != nil {
			logger.Warn("Failed to apply changed prompt override", "file", event.Name, "error", err)
			return
		}
		logger.Info("Reloaded prompt override", "template", name)
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
