package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/GriffinCanCode/scriptbridge/internal/userapi"
	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
)

// SeedResult counts what Seed did
type SeedResult struct {
	Installed int `json:"installed"`
	Unchanged int `json:"unchanged"`
	Failed    int `json:"failed"`
}

// Seed installs every *.js file under dir. The file name without extension
// becomes the plugin id; scripts already installed with the same content are
// left alone. A missing dir is not an error.
func (s *Store) Seed(ctx context.Context, dir string) (SeedResult, error) {
	var result SeedResult
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		s.logger.Warn("Seed directory not found", zap.String("dir", dir))
		return result, nil
	}

	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "**/*"+scriptExt)
	if err != nil {
		return result, fmt.Errorf("failed to scan seed directory: %w", err)
	}

	for _, match := range matches {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id := strings.TrimSuffix(path.Base(match), scriptExt)
		script, err := fs.ReadFile(fsys, match)
		if err != nil {
			s.logger.Warn("Failed to read seed script", zap.String("file", match), zap.Error(err))
			result.Failed++
			continue
		}

		if m, err := s.manifest(id); err == nil && m.Checksum == checksum(script) {
			result.Unchanged++
			continue
		}

		if _, err := s.Install(ctx, userapi.Descriptor{ID: id, Script: string(script)}); err != nil {
			s.logger.Warn("Failed to install seed script", zap.String("file", match), zap.Error(err))
			result.Failed++
			continue
		}
		result.Installed++
	}

	s.logger.Info("Seeding complete",
		zap.Int("installed", result.Installed),
		zap.Int("unchanged", result.Unchanged),
		zap.Int("failed", result.Failed))
	return result, nil
}

func checksum(script []byte) string {
	sum := sha256.Sum256(script)
	return hex.EncodeToString(sum[:])
}
