// Package discover locates candidate log files under a watched root.
package discover

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
)

// LogDirName is the subfolder convention the log writers use: every process
// drops its files into a ".smooai-logs" directory somewhere under the root.
const LogDirName = ".smooai-logs"

// DefaultExtensions are the file extensions accepted inside a log directory.
var DefaultExtensions = []string{".ansi", ".log", ".json", ".jsonl"}

// Result is the outcome of one discovery pass.
type Result struct {
	// Files are the candidate log file paths, sorted for a stable order.
	Files []string
	// SkippedDirs counts subdirectories that could not be read
	// (permission denied and similar); they are not fatal.
	SkippedDirs int
}

// Walker finds log files under a root. The zero value uses the default
// directory convention and extensions.
type Walker struct {
	DirName    string
	Extensions []string
}

func (w *Walker) dirName() string {
	if w.DirName == "" {
		return LogDirName
	}
	return w.DirName
}

func (w *Walker) extensions() []string {
	if len(w.Extensions) == 0 {
		return DefaultExtensions
	}
	return w.Extensions
}

// Discover walks root and collects every file with an accepted extension
// residing anywhere below a log directory. Year-month subfolders inside a
// log directory are included the same as the directory itself, so a month
// rollover during a live session needs no re-arm. A missing root returns an
// empty result and an error the caller reports as an event, not a fatal
// failure. The walk itself is read-only.
func (w *Walker) Discover(root string) (Result, error) {
	var res Result

	if _, err := os.Stat(root); err != nil {
		return res, fmt.Errorf("stat root %s: %w", root, err)
	}

	dirName := w.dirName()
	exts := w.extensions()
	sep := string(filepath.Separator)
	rootIsLogDir := filepath.Base(root) == dirName

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				res.SkippedDirs++
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			// Entries deleted mid-walk are not an error.
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		if !slices.Contains(exts, filepath.Ext(path)) {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		if rootIsLogDir || slices.Contains(strings.Split(filepath.Dir(rel), sep), dirName) {
			res.Files = append(res.Files, path)
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walk %s: %w", root, err)
	}

	sort.Strings(res.Files)
	return res, nil
}
