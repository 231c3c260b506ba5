package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"

	"github.com/spf13/afero"
)

// LocalStore writes blobs to a filesystem directory that the HTTP server exposes
// under publicURL.
type LocalStore struct {
	fs        afero.Fs
	publicURL string
}

var _ BlobStore = (*LocalStore)(nil)

// NewLocalStore stores blobs below root on the OS filesystem.
func NewLocalStore(root, publicURL string) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir: %w", err)
	}
	return NewLocalStoreFs(afero.NewBasePathFs(afero.NewOsFs(), root), publicURL), nil
}

// NewLocalStoreFs uses an arbitrary afero filesystem, e.g. afero.NewMemMapFs in tests.
func NewLocalStoreFs(fs afero.Fs, publicURL string) *LocalStore {
	return &LocalStore{fs: fs, publicURL: publicURL}
}

// Fs exposes the backing filesystem so the server can serve it.
func (s *LocalStore) Fs() afero.Fs {
	return s.fs
}

func (s *LocalStore) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	key = path.Clean("/" + key)[1:]
	if err := s.fs.MkdirAll(path.Dir("/"+key), 0o755); err != nil {
		return "", fmt.Errorf("create blob dir: %w", err)
	}
	f, err := s.fs.Create("/" + key)
	if err != nil {
		return "", fmt.Errorf("create blob: %w", err)
	}
	if _, err := io.Copy(f, body); err != nil {
		_ = f.Close()
		_ = s.fs.Remove("/" + key)
		return "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close blob: %w", err)
	}
	return joinURL(s.publicURL, key), nil
}

func (s *LocalStore) Delete(_ context.Context, url string) error {
	key, err := keyFromURL(s.publicURL, url)
	if err != nil {
		return err
	}
	if err := s.fs.Remove("/" + key); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob: %w", err)
	}
	return nil
}
