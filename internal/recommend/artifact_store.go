package recommend

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/flagpost/internal/storage/local"
)

// ArtifactStore persists model artifacts. Load returns nil, nil when no
// artifact has been saved yet.
type ArtifactStore interface {
	Load(ctx context.Context) (*Artifact, error)
	Save(ctx context.Context, a *Artifact) error
}

const (
	modelsCollection = "models"
	currentModelID   = "difficulty"
	archivePrefix    = "difficulty-"
	defaultKeep      = 5
)

// FileArtifactStore keeps the current artifact and a few archived
// versions as JSON files.
type FileArtifactStore struct {
	files *local.Store
	keep  int
}

// NewFileArtifactStore creates an artifact store rooted at dir
func NewFileArtifactStore(dir string) (*FileArtifactStore, error) {
	files, err := local.NewStore(dir)
	if err != nil {
		return nil, err
	}
	return &FileArtifactStore{files: files, keep: defaultKeep}, nil
}

// SetKeep sets how many archived versions are retained
func (s *FileArtifactStore) SetKeep(n int) {
	if n >= 0 {
		s.keep = n
	}
}

// Load reads and verifies the current artifact
func (s *FileArtifactStore) Load(ctx context.Context) (*Artifact, error) {
	raw, err := s.files.LoadRaw(modelsCollection, currentModelID)
	if errors.Is(err, local.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read artifact: %w", err)
	}
	return DecodeArtifact(raw)
}

// Save writes a as the current artifact and archives a copy under its
// version. The current file is replaced atomically.
func (s *FileArtifactStore) Save(ctx context.Context, a *Artifact) error {
	raw, err := EncodeArtifact(a)
	if err != nil {
		return err
	}
	if s.keep > 0 {
		if err := s.files.SaveRaw(modelsCollection, archivePrefix+a.Version, raw); err != nil {
			return fmt.Errorf("archive artifact: %w", err)
		}
	}
	if err := s.files.SaveRaw(modelsCollection, currentModelID, raw); err != nil {
		return fmt.Errorf("write artifact: %w", err)
	}
	return s.prune()
}

// Versions lists archived artifact versions, oldest first
func (s *FileArtifactStore) Versions() ([]string, error) {
	ids, err := s.files.List(modelsCollection)
	if err != nil {
		return nil, err
	}
	var versions []string
	for _, id := range ids {
		if v, ok := strings.CutPrefix(id, archivePrefix); ok {
			versions = append(versions, v)
		}
	}
	return versions, nil
}

func (s *FileArtifactStore) prune() error {
	versions, err := s.Versions()
	if err != nil {
		return err
	}
	for len(versions) > s.keep {
		if err := s.files.Delete(modelsCollection, archivePrefix+versions[0]); err != nil && !errors.Is(err, local.ErrNotFound) {
			return fmt.Errorf("prune artifact %s: %w", versions[0], err)
		}
		versions = versions[1:]
	}
	return nil
}
