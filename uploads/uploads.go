// Package uploads stores user-submitted images referenced by documents
// (idea covers and inline content images).
package uploads

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const maxFileSizeMB = 50

// ImageSrcRe matches inline image references in stored idea content. The
// captured group is the upload name.
var ImageSrcRe = regexp.MustCompile(`<img src="(\w+)">`)

type Store interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader) error
	Delete(ctx context.Context, name string) error
}

// UniqueName builds a collision-free upload name for a form field.
func UniqueName(field, ext string) string {
	return field + "-" + strings.ReplaceAll(uuid.NewString(), "-", "") + ext
}

// ImageExt maps an image mimetype to a file extension, rejecting anything
// that is not an image.
func ImageExt(contentType string) (string, error) {
	kind, ext, found := strings.Cut(contentType, "/")
	if !found || kind != "image" {
		return "", errors.Errorf("not an image mimetype: %q", contentType)
	}
	return "." + ext, nil
}

// NewFromEnv picks the S3 store when UPLOADS_S3_BUCKET is set, the local
// disk store otherwise.
func NewFromEnv() (Store, error) {
	if bucket := os.Getenv("UPLOADS_S3_BUCKET"); bucket != "" {
		return NewS3Store(bucket)
	}
	dir := os.Getenv("UPLOADS_DIR")
	if dir == "" {
		dir = "uploads"
	}
	return NewLocalStore(dir)
}

// LocalStore keeps uploads on the local disk, one file per upload name.
type LocalStore struct {
	dir string
}

func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "failed to create uploads dir %s", dir)
	}
	return &LocalStore{dir: dir}, nil
}

func (s *LocalStore) Dir() string {
	return s.dir
}

func (s *LocalStore) Save(ctx context.Context, name string, contentType string, r io.Reader) error {
	f, err := os.Create(filepath.Join(s.dir, filepath.Base(name)))
	if err != nil {
		return errors.Wrapf(err, "failed to create upload %s", name)
	}
	defer f.Close()
	if _, err := io.Copy(f, io.LimitReader(r, maxFileSizeMB<<20)); err != nil {
		return errors.Wrapf(err, "failed to write upload %s", name)
	}
	return nil
}

func (s *LocalStore) Delete(ctx context.Context, name string) error {
	err := os.Remove(filepath.Join(s.dir, filepath.Base(name)))
	return errors.Wrapf(err, "failed to delete upload %s", name)
}
