package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

const saveMaxAttempts = 3

var extPattern = regexp.MustCompile(`^\.[a-z0-9]{1,8}$`)

// LocalDir stores blobs as plain files below root/prefix, named by random UUID.
type LocalDir struct {
	root    string
	prefix  string
	newName func() string
}

// NewLocalDir creates a local directory store rooted at root.
func NewLocalDir(root string) (*LocalDir, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("blob store root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, filepath.FromSlash(DefaultPrefix)), 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
		return nil, err
	}
	return &LocalDir{root: abs, prefix: DefaultPrefix, newName: uuid.NewString}, nil
}

// Root returns the absolute storage root.
func (d *LocalDir) Root() string {
	if d == nil {
		return ""
	}
	return d.root
}

// Save streams r into a temp file and renames it to prefix/<uuid><ext>.
func (d *LocalDir) Save(ctx context.Context, r io.Reader, ext string) (string, error) {
	if d == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	if r == nil {
		return "", fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	ext, err := normalizeExt(ext)
	if err != nil {
		return "", err
	}

	tmp, err := os.CreateTemp(filepath.Join(d.root, "tmp"), "save-*")
	if err != nil {
		return "", err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	if _, err := io.Copy(tmp, r); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Sync(); err != nil {
		cleanup()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return "", err
	}

	for attempt := 0; attempt < saveMaxAttempts; attempt++ {
		key := path.Join(d.prefix, d.newName()+ext)
		dst := filepath.Join(d.root, filepath.FromSlash(key))
		if _, err := os.Stat(dst); err == nil {
			continue
		} else if !errors.Is(err, os.ErrNotExist) {
			_ = os.Remove(tmpPath)
			return "", err
		}
		if err := os.Rename(tmpPath, dst); err != nil {
			_ = os.Remove(tmpPath)
			return "", err
		}
		return key, nil
	}

	_ = os.Remove(tmpPath)
	return "", fmt.Errorf("unable to generate unique blob name")
}

// Exists reports whether path names a stored regular file.
func (d *LocalDir) Exists(ctx context.Context, key string) (bool, error) {
	if d == nil {
		return false, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := d.pathFromKey(key)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// Open returns a reader for blob content. The reader is an *os.File.
func (d *LocalDir) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.pathFromKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(p)
}

// Delete removes a blob. Missing files are ignored.
func (d *LocalDir) Delete(ctx context.Context, key string) error {
	if d == nil {
		return fmt.Errorf("blob store is not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.pathFromKey(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns every stored blob path, sorted.
func (d *LocalDir) List(ctx context.Context) ([]string, error) {
	if d == nil {
		return nil, fmt.Errorf("blob store is not configured")
	}
	base := filepath.Join(d.root, filepath.FromSlash(d.prefix))
	keys := make([]string, 0)
	err := filepath.WalkDir(base, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil
			}
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(keys)
	return keys, nil
}

// ValidatePath checks that key is a relative path inside the managed prefix.
func ValidatePath(key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: path is required", ErrInvalidPath)
	}
	if strings.HasPrefix(key, "/") || strings.Contains(key, `\`) {
		return fmt.Errorf("%w: path must be relative", ErrInvalidPath)
	}
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return fmt.Errorf("%w: parent segments are not allowed", ErrInvalidPath)
		}
	}
	if path.Clean(key) != key {
		return fmt.Errorf("%w: path is not canonical", ErrInvalidPath)
	}
	name, ok := strings.CutPrefix(key, DefaultPrefix+"/")
	if !ok || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: path must live under %s", ErrInvalidPath, DefaultPrefix)
	}
	return nil
}

func (d *LocalDir) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if err := ValidatePath(key); err != nil {
		return "", err
	}
	return filepath.Join(d.root, filepath.FromSlash(key)), nil
}

func normalizeExt(ext string) (string, error) {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return "", nil
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if !extPattern.MatchString(ext) {
		return "", fmt.Errorf("invalid extension %q", ext)
	}
	return ext, nil
}
