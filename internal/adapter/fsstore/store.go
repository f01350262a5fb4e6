// Package fsstore writes pipeline outputs to the generated directory and
// publishes them into the web app's data directory.
package fsstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/ecem-data-etl/internal/domain"
)

// ManifestName is the file listing the artifacts of the last run.
const ManifestName = "manifest.json"

const (
	dirPerm  = 0o755
	filePerm = 0o644
)

// Store writes artifacts under GeneratedDir and copies them to AppDataDir.
type Store struct {
	generatedDir string
	appDataDir   string
	logger       *slog.Logger
}

// NewStore creates a store for the two output directories.
func NewStore(generatedDir, appDataDir string, logger *slog.Logger) *Store {
	return &Store{generatedDir: generatedDir, appDataDir: appDataDir, logger: logger}
}

// Save writes data as name in the generated directory, replacing any
// previous file, then copies it to the app data directory.
func (s *Store) Save(ctx context.Context, step, name string, data []byte) (domain.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return domain.Artifact{}, err
	}
	if err := checkName(name); err != nil {
		return domain.Artifact{}, err
	}

	art := domain.NewArtifact(step, name, data)
	art.GeneratedPath = filepath.Join(s.generatedDir, name)
	art.PublishedPath = filepath.Join(s.appDataDir, name)

	if err := writeFileAtomic(art.GeneratedPath, data); err != nil {
		return domain.Artifact{}, err
	}
	if err := copyFile(art.GeneratedPath, art.PublishedPath); err != nil {
		return domain.Artifact{}, err
	}

	s.logger.Debug("artifact published", "artifact", name, "bytes", art.Bytes, "path", art.PublishedPath)
	return art, nil
}

// WriteManifest writes manifest.json into the app data directory.
func (s *Store) WriteManifest(ctx context.Context, m domain.Manifest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("serialize manifest: %w", err)
	}
	path := filepath.Join(s.appDataDir, ManifestName)
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// ReadManifest loads the manifest written by the last run.
func ReadManifest(appDataDir string) (domain.Manifest, error) {
	var m domain.Manifest
	data, err := os.ReadFile(filepath.Join(appDataDir, ManifestName))
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}

func checkName(name string) error {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return nil
}

// writeFileAtomic writes through a temporary file in the target directory
// and renames it into place, so readers never see a partial file.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", path, err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Chmod(filePerm)
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpName, path)
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("publish %s: %w", src, err)
	}
	defer in.Close() //nolint:errcheck // read-only

	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("create directory %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if err = tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	return nil
}

// ReadinessCheck reports ready once every expected artifact exists in Dir.
type ReadinessCheck struct {
	Dir   string
	Names []string
}

// CheckReadiness implements the HTTP server's readiness check.
func (c ReadinessCheck) CheckReadiness(ctx context.Context) error {
	var missing []string
	for _, name := range c.Names {
		if err := ctx.Err(); err != nil {
			return err
		}
		info, err := os.Stat(filepath.Join(c.Dir, name))
		if err != nil || info.IsDir() {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return errors.New("missing artifacts: " + strings.Join(missing, ", "))
	}
	return nil
}
