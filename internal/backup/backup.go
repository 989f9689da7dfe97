package backup

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	prefix = "leads_backup_"
	suffix = ".csv"
	// sortable, nanosecond resolution, no characters that upset Windows
	stamp = "20060102T150405.000000000Z"
)

// Dir writes write-once snapshot files into one directory.
type Dir struct {
	Path string
	Now  func() time.Time
}

func NewDir(path string) *Dir {
	return &Dir{Path: path, Now: time.Now}
}

// Write stores snapshot as a new file and returns its path. Existing files
// are never overwritten; a timestamp collision gets a -N suffix.
func (d *Dir) Write(ctx context.Context, snapshot []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(d.Path, 0o755); err != nil {
		return "", err
	}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	base := prefix + now().UTC().Format(stamp)

	for n := 0; n < 1000; n++ {
		name := base + suffix
		if n > 0 {
			name = fmt.Sprintf("%s-%d%s", base, n, suffix)
		}
		path := filepath.Join(d.Path, name)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}
		if _, err := f.Write(snapshot); err != nil {
			_ = f.Close()
			return "", err
		}
		return path, f.Close()
	}
	return "", fmt.Errorf("backup: no free name for %s", base)
}

// List returns backup files oldest first.
func (d *Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	out := make([]string, len(names))
	for i, n := range names {
		out[i] = filepath.Join(d.Path, n)
	}
	return out, nil
}

// Prune removes the oldest backups so that at most keep remain.
// keep <= 0 disables pruning.
func (d *Dir) Prune(keep int) (removed int, err error) {
	if keep <= 0 {
		return 0, nil
	}
	files, err := d.List()
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}
	for _, p := range files[:len(files)-keep] {
		if err := os.Remove(p); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
