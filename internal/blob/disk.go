package blob

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// Disk keeps blobs as files under a billy filesystem. Used by the local backend.
type Disk struct {
	fs      billy.Filesystem
	baseURL string
}

// NewDisk roots a Disk store at dir on the host filesystem.
func NewDisk(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return NewDiskFS(osfs.New(dir), "file://"+dir), nil
}

func NewDiskFS(fs billy.Filesystem, baseURL string) *Disk {
	return &Disk{fs: fs, baseURL: baseURL}
}

func (d *Disk) Upload(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if dir := path.Dir(name); dir != "." {
		if err := d.fs.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("upload %s: %w", name, err)
		}
	}
	f, err := d.fs.Create(name)
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return d.baseURL + "/" + name, nil
}

func (d *Disk) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := d.fs.Stat(name); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("delete %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("stat %s: %w", name, err)
	}
	if err := d.fs.Remove(name); err != nil {
		return fmt.Errorf("delete %s: %w", name, err)
	}
	return nil
}

// Exists reports whether a blob is stored at name.
func (d *Disk) Exists(name string) bool {
	_, err := d.fs.Stat(name)
	return err == nil
}
