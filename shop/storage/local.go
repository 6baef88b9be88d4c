package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/dfryer1193/storefront/shop/domain"
	"github.com/gabriel-vasile/mimetype"
)

// RefPrefix is the public prefix of every image reference
const RefPrefix = "/uploads/"

var _ domain.BlobStore = (*LocalStore)(nil)

// LocalStore keeps blobs as files in a single directory
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if dir == "" {
		return nil, errors.New("storage directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir is the directory served under RefPrefix
func (s *LocalStore) Dir() string {
	return s.dir
}

// Put writes r to a new file named name and syncs it before returning.
// An existing file with the same name is never overwritten.
func (s *LocalStore) Put(ctx context.Context, name string, r io.Reader, contentType string) (*domain.Upload, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	localPath := filepath.Join(s.dir, name)
	f, err := os.OpenFile(localPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob file: %w", err)
	}

	size, err := io.Copy(f, r)
	if err == nil {
		err = f.Sync()
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(localPath)
		return nil, fmt.Errorf("failed to write blob file: %w", err)
	}

	return &domain.Upload{
		Path:        RefPrefix + name,
		Filename:    name,
		ContentType: contentType,
		Size:        size,
	}, nil
}

func (s *LocalStore) Delete(ctx context.Context, ref string) error {
	localPath, err := s.resolve(ref)
	if err != nil {
		return err
	}

	if err := os.Remove(localPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove blob file: %w", err)
	}
	return nil
}

func (s *LocalStore) Exists(ctx context.Context, ref string) (bool, error) {
	localPath, err := s.resolve(ref)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(localPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to stat blob file: %w", err)
	}
	return true, nil
}

func (s *LocalStore) Open(ctx context.Context, ref string) (io.ReadCloser, domain.BlobInfo, error) {
	localPath, err := s.resolve(ref)
	if err != nil {
		return nil, domain.BlobInfo{}, &domain.NotFoundError{Resource: "image", ID: ref}
	}

	f, err := os.Open(localPath)
	if os.IsNotExist(err) {
		return nil, domain.BlobInfo{}, &domain.NotFoundError{Resource: "image", ID: ref}
	}
	if err != nil {
		return nil, domain.BlobInfo{}, fmt.Errorf("failed to open blob file: %w", err)
	}

	stat, err := f.Stat()
	if err != nil || !stat.Mode().IsRegular() {
		f.Close()
		return nil, domain.BlobInfo{}, &domain.NotFoundError{Resource: "image", ID: ref}
	}

	// files carry no stored content type, so sniff it
	mtype, err := mimetype.DetectReader(f)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		f.Close()
		return nil, domain.BlobInfo{}, fmt.Errorf("failed to read blob file: %w", err)
	}

	return f, domain.BlobInfo{
		Ref:         ref,
		ContentType: mtype.String(),
		Size:        stat.Size(),
		ModTime:     stat.ModTime(),
	}, nil
}

func (s *LocalStore) List(ctx context.Context) ([]domain.BlobInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read storage directory: %w", err)
	}

	blobs := make([]domain.BlobInfo, 0, len(entries))
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		blobs = append(blobs, domain.BlobInfo{
			Ref:     RefPrefix + e.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return blobs, nil
}

// resolve maps a reference to a file inside the store directory
func (s *LocalStore) resolve(ref string) (string, error) {
	name, err := NameFromRef(ref)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

// NameFromRef extracts the blob name from a public reference, rejecting anything
// that would address a file outside the store.
func NameFromRef(ref string) (string, error) {
	if !strings.HasPrefix(ref, RefPrefix) {
		return "", fmt.Errorf("invalid blob reference %q", ref)
	}
	name := strings.TrimPrefix(ref, RefPrefix)
	if err := validateName(name); err != nil {
		return "", err
	}
	return name, nil
}

func validateName(name string) error {
	if name == "" || name == "." || name == ".." || path.Base(name) != name || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid blob name %q", name)
	}
	return nil
}
