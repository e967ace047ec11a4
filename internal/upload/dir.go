package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/zinc-sig/easysweep/internal/kvconfig"
)

// DirProvider copies files into a local directory, typically a shared
// filesystem mounted on the cluster front end.
type DirProvider struct {
	root string
}

func NewDirProvider() *DirProvider {
	return &DirProvider{}
}

func (d *DirProvider) Name() string {
	return "dir"
}

// Configure reads the destination directory from the path key.
func (d *DirProvider) Configure(config map[string]any) error {
	root, ok := kvconfig.String(config, "path")
	if !ok {
		return fmt.Errorf("dir: path is required")
	}
	d.root = root
	return nil
}

// Upload writes to a temporary file next to the destination and renames it
// into place.
func (d *DirProvider) Upload(ctx context.Context, reader io.Reader, size int64, remotePath string) error {
	if d.root == "" {
		return fmt.Errorf("dir: provider not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	rel := filepath.Clean(filepath.FromSlash(remotePath))
	if filepath.IsAbs(rel) || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("dir: remote path %q escapes %s", remotePath, d.root)
	}
	dest := filepath.Join(d.root, rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".upload-*")
	if err != nil {
		return fmt.Errorf("dir: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	mode := os.FileMode(0644)
	if info, err := os.Stat(dest); err == nil {
		mode = info.Mode().Perm()
	}
	if err := tmp.Chmod(mode); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("dir: %w", err)
	}

	n, err := io.Copy(tmp, reader)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("dir: failed to write %s: %w", dest, err)
	}
	if size >= 0 && n != size {
		return fmt.Errorf("dir: short write to %s: %d of %d bytes", dest, n, size)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("dir: %w", err)
	}
	return nil
}
