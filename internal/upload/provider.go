// Package upload ships result tables to remote storage after a sweep.
package upload

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
)

// Provider stores files under remote paths.
type Provider interface {
	// Configure sets up the provider from a flat configuration object.
	Configure(config map[string]any) error

	// Upload stores size bytes from reader at remotePath. A negative size
	// means unknown.
	Upload(ctx context.Context, reader io.Reader, size int64, remotePath string) error

	// Name returns the registry name of the provider.
	Name() string
}

// ProviderFactory creates an unconfigured provider.
type ProviderFactory func() Provider

// Registry maps provider names to factories.
var Registry = make(map[string]ProviderFactory)

// RegisterProvider adds or replaces a provider.
func RegisterProvider(name string, factory ProviderFactory) {
	Registry[name] = factory
}

// NewProvider creates a provider by name.
func NewProvider(name string) (Provider, error) {
	factory, ok := Registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown upload provider: %s (available: %v)", name, Names())
	}
	return factory(), nil
}

// Names lists registered providers.
func Names() []string {
	names := make([]string, 0, len(Registry))
	for name := range Registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func init() {
	RegisterProvider("minio", func() Provider { return NewMinioProvider() })
	RegisterProvider("dir", func() Provider { return NewDirProvider() })
}

// File is a local file and the remote path it is uploaded to.
type File struct {
	Local  string
	Remote string
}

// ObjectName places a results table under the sweep that produced it.
func ObjectName(sweepID, local string) string {
	return path.Join(sweepID, filepath.Base(local))
}

// UploadFiles uploads files in order and stops at the first failure.
func UploadFiles(ctx context.Context, p Provider, files []File) error {
	for _, f := range files {
		if err := uploadFile(ctx, p, f); err != nil {
			return err
		}
	}
	return nil
}

func uploadFile(ctx context.Context, p Provider, f File) error {
	reader, err := os.Open(f.Local)
	if err != nil {
		return fmt.Errorf("failed to open %s for upload: %w", f.Local, err)
	}
	defer func() { _ = reader.Close() }()

	size := int64(-1)
	if info, err := reader.Stat(); err == nil {
		size = info.Size()
	}

	if err := p.Upload(ctx, reader, size, f.Remote); err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", f.Local, f.Remote, err)
	}
	return nil
}
