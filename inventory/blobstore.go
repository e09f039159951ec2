package inventory

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// BlobStore holds SDS document bodies keyed by an opaque string. Revision
// rows in the database only carry the key.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// FSBlobStore is a directory-backed BlobStore. Keys map to file paths under
// the root; path traversal is rejected.
type FSBlobStore struct {
	root string
}

var _ BlobStore = (*FSBlobStore)(nil)

func NewFSBlobStore(root string) (*FSBlobStore, error) {
	if root == "" {
		return nil, goerrors.New("blob store root is required", goerrors.CategoryBadInput)
	}

	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create blob store root")
	}

	return &FSBlobStore{root: root}, nil
}

func (s *FSBlobStore) Put(ctx context.Context, key string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create blob directory")
	}

	f, err := os.CreateTemp(filepath.Dir(path), ".upload-*")
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to stage blob")
	}
	defer os.Remove(f.Name())

	if _, err := io.Copy(f, body); err != nil {
		f.Close()
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to write blob")
	}

	if err := f.Close(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to finalize blob")
	}

	// rename makes the write atomic: readers never see a partial document
	if err := os.Rename(f.Name(), path); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to commit blob")
	}

	return nil
}

func (s *FSBlobStore) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.resolve(key)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, goerrors.New("blob not found", goerrors.CategoryNotFound).
				WithMetadata(map[string]any{"key": key})
		}
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open blob")
	}

	return f, nil
}

func (s *FSBlobStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to delete blob")
	}

	return nil
}

func (s *FSBlobStore) resolve(key string) (string, error) {
	if key == "" || strings.Contains(key, "..") {
		return "", goerrors.New("invalid blob key", goerrors.CategoryBadInput).
			WithMetadata(map[string]any{"key": key})
	}

	return filepath.Join(s.root, filepath.FromSlash(key)), nil
}
