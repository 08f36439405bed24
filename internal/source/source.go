// Package source turns local paths into staged items.
package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/gabriel-vasile/mimetype"

	"github.com/stagebox/service/internal/pending"
)

// ErrNoPaths is returned when Open is called without arguments.
var ErrNoPaths = errors.New("no paths given")

// Open reads every regular file named by paths. Directories are walked
// recursively in lexical order; hidden entries below them are skipped.
// Files are not filtered by type or size.
func Open(paths ...string) ([]pending.Item, error) {
	if len(paths) == 0 {
		return nil, ErrNoPaths
	}

	var items []pending.Item
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", p, err)
		}
		if !info.IsDir() {
			it, err := readFile(p)
			if err != nil {
				return nil, err
			}
			items = append(items, it)
			continue
		}

		found, err := walk(p)
		if err != nil {
			return nil, err
		}
		items = append(items, found...)
	}
	return items, nil
}

func walk(root string) ([]pending.Item, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(files)

	items := make([]pending.Item, 0, len(files))
	for _, f := range files {
		it, err := readFile(f)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func readFile(path string) (pending.Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return pending.Item{}, fmt.Errorf("read %s: %w", path, err)
	}
	return pending.Item{
		Name:     filepath.Base(path),
		MIMEType: mimetype.Detect(data).String(),
		Content:  data,
	}, nil
}

func isHidden(name string) bool {
	return len(name) > 1 && name[0] == '.'
}
