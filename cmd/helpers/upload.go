package helpers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"

	"github.com/zinc-sig/easysweep/cmd/config"
	"github.com/zinc-sig/easysweep/internal/kvconfig"
	"github.com/zinc-sig/easysweep/internal/sweep"
	"github.com/zinc-sig/easysweep/internal/upload"
)

// BuildUploadConfig builds upload configuration from all sources
func BuildUploadConfig(cfg *config.UploadConfig) (map[string]any, error) {
	m, err := kvconfig.Build(kvconfig.Sources{
		EnvPrefix: kvconfig.UploadEnvPrefix,
		File:      cfg.ConfigFile,
		JSON:      cfg.Config,
		KV:        cfg.ConfigKV,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build upload config: %w", err)
	}
	return m, nil
}

// SetupUploadProvider creates and configures an upload provider
func SetupUploadProvider(cfg *config.UploadConfig) (upload.Provider, map[string]any, error) {
	if cfg.Provider == "" {
		return nil, nil, nil
	}

	uploadConf, err := BuildUploadConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	provider, err := upload.NewProvider(cfg.Provider)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create upload provider: %w", err)
	}

	if err := provider.Configure(uploadConf); err != nil {
		return nil, nil, fmt.Errorf("failed to configure upload provider: %w", err)
	}

	return provider, uploadConf, nil
}

// SweepFiles lists the tables a sweep wrote, keyed under the sweep ID.
// Tables that were never created are left out.
func SweepFiles(s *sweep.Summary) []upload.File {
	var files []upload.File
	for _, local := range []string{s.ResultsPath, s.SummaryPath} {
		if local == "" {
			continue
		}
		if _, err := os.Stat(local); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		files = append(files, upload.File{Local: local, Remote: upload.ObjectName(s.ID, local)})
	}
	return files
}

// HandleUploads uploads the sweep's tables and returns their remote names.
func HandleUploads(ctx context.Context, provider upload.Provider, s *sweep.Summary, logger *slog.Logger) ([]string, error) {
	if provider == nil {
		return nil, nil
	}
	files := SweepFiles(s)
	if err := upload.UploadFiles(ctx, provider, files); err != nil {
		return nil, err
	}

	remote := make([]string, len(files))
	for i, f := range files {
		remote[i] = f.Remote
		logger.Info("uploaded", "provider", provider.Name(), "file", f.Local, "remote", f.Remote)
	}
	return remote, nil
}

// PrintUploadInfo prints upload configuration in verbose mode
func PrintUploadInfo(w io.Writer, provider upload.Provider, config map[string]any) {
	fmt.Fprintln(w, "========================================")
	fmt.Fprintln(w, "Upload Configuration")
	fmt.Fprintln(w, "========================================")
	fmt.Fprintf(w, "Provider:       %s\n", provider.Name())

	switch provider.Name() {
	case "minio":
		if endpoint, ok := config["endpoint"]; ok {
			fmt.Fprintf(w, "Endpoint:       %v\n", endpoint)
		}
		if bucket, ok := config["bucket"]; ok {
			fmt.Fprintf(w, "Bucket:         %v\n", bucket)
		}
		if prefix, ok := config["prefix"]; ok && prefix != "" {
			fmt.Fprintf(w, "Prefix:         %v\n", prefix)
		}
	case "dir":
		fmt.Fprintf(w, "Path:           %v\n", config["path"])
	}
	fmt.Fprintln(w, "----------------------------------------")
}
