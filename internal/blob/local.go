package blob

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tellatale/engine/internal/config"
	"github.com/tellatale/engine/internal/fault"
)

// LocalStore implements Store on the local filesystem, returning
// origin-relative URLs. Used in development and single-host deployments.
type LocalStore struct {
	dir     string
	baseURL string
}

func NewLocalStore(cfg config.LocalStorageConfig) (*LocalStore, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return &LocalStore{
		dir:     cfg.Dir,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}, nil
}

// fullPath resolves a stored path inside the root, rejecting traversal.
func (s *LocalStore) fullPath(p string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(p))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fault.Errorf(fault.Store, "blob.path", "invalid path %q", p)
	}
	return filepath.Join(s.dir, clean), nil
}

func (s *LocalStore) Put(_ context.Context, path string, data []byte) (string, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fault.New(fault.Store, "blob.put", err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fault.New(fault.Store, "blob.put", err)
	}
	return s.baseURL + "/" + path, nil
}

func (s *LocalStore) Get(_ context.Context, path string) ([]byte, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fault.New(fault.Store, "blob.get", err)
	}
	return data, nil
}

func (s *LocalStore) Exists(_ context.Context, path string) (bool, error) {
	full, err := s.fullPath(path)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fault.New(fault.Store, "blob.exists", err)
	}
	return true, nil
}

func (s *LocalStore) Delete(_ context.Context, path string) error {
	full, err := s.fullPath(path)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fault.New(fault.Store, "blob.delete", err)
	}
	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(s.dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.dir, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			paths = append(paths, key)
		}
		return nil
	})
	if err != nil {
		return nil, fault.New(fault.Store, "blob.list", err)
	}
	return paths, nil
}

func (s *LocalStore) Ping(_ context.Context) error {
	_, err := os.Stat(s.dir)
	return err
}

var _ Store = (*LocalStore)(nil)
