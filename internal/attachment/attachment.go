// Package attachment removes files that reporters attached to a complaint.
// Uploading happens outside this service; complaints only carry the key.
package attachment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"denuncia/backend/internal/config"
)

// ErrInvalidKey is returned for keys that would escape the store root.
var ErrInvalidKey = errors.New("attachment: invalid key")

// Remover deletes one stored attachment. Removing a missing key is not an
// error.
type Remover interface {
	Remove(ctx context.Context, key string) error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.Attachments, logger *slog.Logger) (Remover, error) {
	switch cfg.Driver {
	case "", "fs":
		logger.Info("attachments on local disk", "dir", cfg.Dir)
		return NewFSStore(cfg.Dir)
	case "s3":
		logger.Info("attachments on s3", "bucket", cfg.S3Bucket, "endpoint", cfg.S3Endpoint)
		return NewS3Store(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			KeyPrefix: cfg.S3KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown attachment driver %q", cfg.Driver)
	}
}

// cleanKey normalises key to a slash separated relative path.
func cleanKey(key string) (string, error) {
	k := strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if k == "" || strings.HasPrefix(k, "/") {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(k, "/") {
		if part == ".." {
			return "", ErrInvalidKey
		}
	}
	k = strings.TrimPrefix(filepath.ToSlash(filepath.Clean(k)), "./")
	if k == "." || k == "" {
		return "", ErrInvalidKey
	}
	return k, nil
}

// FSStore keeps attachments under a root directory.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("attachment dir required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	err = os.Remove(filepath.Join(s.root, filepath.FromSlash(k)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove attachment %s: %w", k, err)
	}
	return nil
}
