package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/goccy/go-yaml"
	"github.com/google/renameio/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	scriptExt   = ".js"
	manifestExt = ".yaml"
	filePerm    = 0o644
)

var ErrNotFound = errors.New("script not installed")

// Manifest describes one installed script
type Manifest struct {
	userapi.Info `yaml:",inline"`

	Revision    string    `json:"revision" yaml:"revision"`
	Checksum    string    `json:"checksum" yaml:"checksum"`
	Size        int       `json:"size" yaml:"size"`
	InstalledAt time.Time `json:"installed_at" yaml:"installed_at"`
	UpdatedAt   time.Time `json:"updated_at" yaml:"updated_at"`
}

// Store handles installed script persistence
type Store struct {
	dir    string
	logger *logging.Logger

	mu        sync.Mutex // serializes writers
	manifests sync.Map   // id -> Manifest
}

// New opens the store rooted at dir, creating it if needed
func New(dir string, logger *logging.Logger) (*Store, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &Store{dir: dir, logger: logger.Named("store")}, nil
}

// Dir returns the store directory
func (s *Store) Dir() string {
	return s.dir
}

// Install validates d and writes its script and manifest. Reinstalling an id
// keeps the original install time and assigns a new revision.
func (s *Store) Install(ctx context.Context, d userapi.Descriptor) (Manifest, error) {
	if err := ctx.Err(); err != nil {
		return Manifest{}, err
	}
	if err := d.Validate(); err != nil {
		return Manifest{}, err
	}
	d = d.Normalize()

	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	m := Manifest{
		Info:        d.Info(),
		Revision:    uuid.NewString(),
		Checksum:    checksum([]byte(d.Script)),
		Size:        len(d.Script),
		InstalledAt: now,
		UpdatedAt:   now,
	}
	if prev, err := s.readManifest(d.ID); err == nil {
		m.InstalledAt = prev.InstalledAt
	}

	data, err := yaml.Marshal(m)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to marshal manifest: %w", err)
	}

	// script first: a manifest never points at a missing script
	if err := renameio.WriteFile(s.scriptPath(d.ID), []byte(d.Script), filePerm); err != nil {
		return Manifest{}, fmt.Errorf("failed to write script: %w", err)
	}
	if err := renameio.WriteFile(s.manifestPath(d.ID), data, filePerm); err != nil {
		return Manifest{}, fmt.Errorf("failed to write manifest: %w", err)
	}

	s.manifests.Store(d.ID, m)
	s.logger.Info("Script installed",
		zap.String("plugin_id", d.ID),
		zap.String("revision", m.Revision),
		zap.Int("size", m.Size))
	return m, nil
}

// Get returns the descriptor and manifest for id
func (s *Store) Get(ctx context.Context, id string) (userapi.Descriptor, Manifest, error) {
	if err := ctx.Err(); err != nil {
		return userapi.Descriptor{}, Manifest{}, err
	}
	if err := checkID(id); err != nil {
		return userapi.Descriptor{}, Manifest{}, err
	}

	m, err := s.manifest(id)
	if err != nil {
		return userapi.Descriptor{}, Manifest{}, err
	}

	script, err := os.ReadFile(s.scriptPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return userapi.Descriptor{}, Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return userapi.Descriptor{}, Manifest{}, fmt.Errorf("failed to read script: %w", err)
	}

	return userapi.Descriptor{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		Version:     m.Version,
		Author:      m.Author,
		Homepage:    m.Homepage,
		Script:      string(script),
	}, m, nil
}

// List scans the directory and returns every manifest, sorted by id.
// Unreadable manifests are logged and skipped.
func (s *Store) List(ctx context.Context) ([]Manifest, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list store: %w", err)
	}

	seen := make(map[string]bool)
	var out []Manifest
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != manifestExt {
			continue
		}
		id := strings.TrimSuffix(name, manifestExt)
		m, err := s.readManifest(id)
		if err != nil {
			s.logger.Warn("Skipping unreadable manifest", zap.String("file", name), zap.Error(err))
			continue
		}
		s.manifests.Store(id, m)
		seen[id] = true
		out = append(out, m)
	}

	// forget entries removed behind our back
	s.manifests.Range(func(key, _ interface{}) bool {
		if !seen[key.(string)] {
			s.manifests.Delete(key)
		}
		return true
	})

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Exists reports whether id is installed
func (s *Store) Exists(id string) bool {
	if checkID(id) != nil {
		return false
	}
	_, err := s.manifest(id)
	return err == nil
}

// Remove deletes the script and manifest for id
func (s *Store) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errManifest := os.Remove(s.manifestPath(id))
	errScript := os.Remove(s.scriptPath(id))
	s.manifests.Delete(id)

	if errors.Is(errManifest, fs.ErrNotExist) && errors.Is(errScript, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	for _, err := range []error{errManifest, errScript} {
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove script: %w", err)
		}
	}

	s.logger.Info("Script removed", zap.String("plugin_id", id))
	return nil
}

func (s *Store) manifest(id string) (Manifest, error) {
	if cached, ok := s.manifests.Load(id); ok {
		return cached.(Manifest), nil
	}
	m, err := s.readManifest(id)
	if err != nil {
		return Manifest{}, err
	}
	s.manifests.Store(id, m)
	return m, nil
}

func (s *Store) readManifest(id string) (Manifest, error) {
	data, err := os.ReadFile(s.manifestPath(id))
	if errors.Is(err, fs.ErrNotExist) {
		return Manifest{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("failed to unmarshal manifest %s: %w", id, err)
	}
	if m.ID != id {
		return Manifest{}, fmt.Errorf("manifest %s has id %q", id, m.ID)
	}
	return m, nil
}

func (s *Store) scriptPath(id string) string {
	return filepath.Join(s.dir, id+scriptExt)
}

func (s *Store) manifestPath(id string) string {
	return filepath.Join(s.dir, id+manifestExt)
}

// checkID rejects ids that could escape the store directory
func checkID(id string) error {
	return userapi.Descriptor{ID: id, Script: "-"}.Validate()
}
