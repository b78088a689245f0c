package providers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"

	"github.com/GriffinCanCode/scriptbridge/internal/logging"
	"github.com/GriffinCanCode/scriptbridge/internal/types"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"go.uber.org/zap"
)

// Cache reports and clears on-disk cache usage for a fixed set of
// directories. Entries may be doublestar patterns; the directories
// themselves are never removed.
type Cache struct {
	patterns []string
	logger   *logging.Logger
}

// NewCache creates a cache provider over dirs
func NewCache(dirs []string, logger *logging.Logger) *Cache {
	return &Cache{
		patterns: append([]string{}, dirs...),
		logger:   logger.Named("cache"),
	}
}

// Definition returns service metadata
func (c *Cache) Definition() types.Service {
	return types.Service{
		ID:           "cache",
		Name:         "Cache Service",
		Description:  "Application cache accounting and cleanup",
		Category:     types.CategoryCache,
		Capabilities: []string{"size", "clear"},
		Tools: []types.Tool{
			{
				ID:          "cache.getAppCacheSize",
				Name:        "Get Cache Size",
				Description: "Total bytes used by the cache directories, as a decimal string",
				Parameters:  []types.Parameter{},
				Returns:     "string",
			},
			{
				ID:          "cache.clearAppCache",
				Name:        "Clear Cache",
				Description: "Remove everything inside the cache directories",
				Parameters:  []types.Parameter{},
				Returns:     "object",
			},
		},
	}
}

// Execute runs a cache operation
func (c *Cache) Execute(ctx context.Context, toolID string, params map[string]interface{}, appCtx *types.Context) (*types.Result, error) {
	switch toolID {
	case "cache.getAppCacheSize":
		size, err := c.Size(ctx)
		if err != nil {
			return failure(fmt.Sprintf("size calculation failed: %v", err))
		}
		return stringResult(strconv.FormatInt(size, 10))
	case "cache.clearAppCache":
		removed, err := c.Clear(ctx)
		if err != nil {
			return failure(fmt.Sprintf("clear failed: %v", err))
		}
		return success(map[string]interface{}{"removed": removed})
	default:
		return unknownTool(toolID)
	}
}

// Dirs expands the configured patterns into existing directories
func (c *Cache) Dirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, pattern := range c.patterns {
		matches, err := doublestar.FilepathGlob(pattern)
		if err != nil {
			c.logger.Warn("Invalid cache pattern", zap.String("pattern", pattern), zap.Error(err))
			continue
		}
		for _, m := range matches {
			m = filepath.Clean(m)
			if seen[m] {
				continue
			}
			if info, err := os.Stat(m); err == nil && info.IsDir() {
				seen[m] = true
				dirs = append(dirs, m)
			}
		}
	}
	return dirs
}

// Size returns the aggregate size in bytes of regular files under the cache dirs
func (c *Cache) Size(ctx context.Context) (int64, error) {
	var total atomic.Int64
	conf := fastwalk.Config{Follow: false}

	for _, dir := range c.Dirs() {
		err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			if err != nil || !d.Type().IsRegular() {
				return nil
			}
			info, err := d.Info()
			if err != nil {
				return nil
			}
			total.Add(info.Size())
			return nil
		})
		if err != nil {
			return 0, err
		}
	}
	return total.Load(), nil
}

// Clear removes every entry inside the cache dirs and returns how many
// top-level entries were removed
func (c *Cache) Clear(ctx context.Context) (int, error) {
	removed := 0
	var errs []error
	for _, dir := range c.Dirs() {
		entries, err := os.ReadDir(dir)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if err := os.RemoveAll(filepath.Join(dir, entry.Name())); err != nil {
				errs = append(errs, err)
				continue
			}
			removed++
		}
	}

	c.logger.Info("Cache cleared", zap.Int("removed", removed))
	return removed, errors.Join(errs...)
}
