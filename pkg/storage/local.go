package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Compile-time interface check.
var _ Reader = (*localReader)(nil)

type localReader struct {
	root string
}

// NewLocalReader creates a Reader backed by a local directory.
func NewLocalReader(root string) Reader {
	return &localReader{root: filepath.Clean(root)}
}

func (r *localReader) Location() string {
	return r.root
}

func (r *localReader) ListDirs(_ context.Context, dir string) ([]string, error) {
	return r.list(dir, true)
}

func (r *localReader) ListFiles(_ context.Context, dir string) ([]string, error) {
	return r.list(dir, false)
}

func (r *localReader) list(dir string, dirs bool) ([]string, error) {
	p := r.resolve(dir)

	entries, err := os.ReadDir(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("reading directory %s: %w", p, err)
	}

	names := make([]string, 0, len(entries))

	for _, e := range entries {
		if dirs && e.IsDir() {
			names = append(names, e.Name())
		}

		if !dirs && e.Type().IsRegular() {
			names = append(names, e.Name())
		}
	}

	sort.Strings(names)

	return names, nil
}

func (r *localReader) ReadFile(_ context.Context, name string) ([]byte, error) {
	p := r.resolve(name)

	data, err := os.ReadFile(p) //nolint:gosec // paths come from ListDirs/ListFiles
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", p, err)
	}

	return data, nil
}

func (r *localReader) resolve(name string) string {
	if name == "" {
		return r.root
	}

	return filepath.Join(r.root, filepath.FromSlash(name))
}
