package data

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/quantsignal/forecast-api/internal/core"
	apperrors "github.com/quantsignal/forecast-api/internal/errors"
)

const artifactExt = ".model"

var versionPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// FileArtifactStore keeps model artifacts as files in one directory.
type FileArtifactStore struct {
	Dir string
}

var _ core.ModelArtifactStore = (*FileArtifactStore)(nil)

// NewFileArtifactStore creates the store. The directory is created on first Save.
func NewFileArtifactStore(dir string) *FileArtifactStore {
	return &FileArtifactStore{Dir: dir}
}

func (s *FileArtifactStore) path(version string) (string, error) {
	if !versionPattern.MatchString(version) || strings.Contains(version, "..") {
		return "", apperrors.ValidationField("version", "invalid model version")
	}
	return filepath.Join(s.Dir, version+artifactExt), nil
}

// Save writes the artifact through a temp file and rename so readers never see a partial file.
func (s *FileArtifactStore) Save(ctx context.Context, version string, artifact []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dst, err := s.path(version)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(s.Dir, 0o750); err != nil {
		return "", fmt.Errorf("create models dir: %w", err)
	}

	tmp, err := os.CreateTemp(s.Dir, ".tmp-"+version+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(artifact); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return dst, nil
}

// Load reads the artifact for version, or the newest one when version is empty.
func (s *FileArtifactStore) Load(ctx context.Context, version string) ([]byte, error) {
	if version == "" {
		versions, err := s.List(ctx)
		if err != nil {
			return nil, err
		}
		if len(versions) == 0 {
			return nil, apperrors.NotFound("no model artifacts available")
		}
		version = versions[0]
	}
	p, err := s.path(version)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperrors.NotFound("model version " + version + " not found")
	}
	return b, err
}

// Delete removes the artifact for version. Deleting a missing artifact succeeds.
func (s *FileArtifactStore) Delete(ctx context.Context, version string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(version)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete artifact: %w", err)
	}
	return nil
}

// List returns artifact versions, newest first.
func (s *FileArtifactStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	type artifact struct {
		version string
		modUnix int64
	}
	var found []artifact
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, artifactExt) || strings.HasPrefix(name, ".") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		found = append(found, artifact{version: strings.TrimSuffix(name, artifactExt), modUnix: info.ModTime().UnixNano()})
	}
	sort.Slice(found, func(i, j int) bool {
		if found[i].modUnix != found[j].modUnix {
			return found[i].modUnix > found[j].modUnix
		}
		return found[i].version > found[j].version
	})

	out := make([]string, len(found))
	for i, a := range found {
		out[i] = a.version
	}
	return out, nil
}
