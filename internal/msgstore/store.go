// Package msgstore keeps attachment content outside the database. Rows in
// the attachments table refer to blobs here by key.
package msgstore

import (
	"context"
	"errors"
	"path"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrNotFound is returned when no blob exists under a key.
var ErrNotFound = errors.New("msgstore: blob not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("msgstore: invalid key")

// BlobStore stores attachment content by key.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Config holds configuration for creating a BlobStore.
type Config struct {
	Type       string // "local" or "s3"
	Path       string // base directory for local store
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string
	S3Region   string
}

// New creates a BlobStore based on cfg. An empty or unknown type falls back
// to local storage.
func New(ctx context.Context, cfg Config, log zerolog.Logger) (BlobStore, error) {
	switch cfg.Type {
	case "local":
		return NewLocalFileStore(cfg.Path)
	case "s3":
		return NewS3StoreFromConfig(ctx, cfg)
	default:
		log.Warn().
			Str("type", cfg.Type).
			Msg("unsupported or empty store type, defaulting to local")
		return NewLocalFileStore(cfg.Path)
	}
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewKey returns a fresh key for an attachment named filename. Keys are
// unique so a blob is never overwritten by a later upload of the same name.
func NewKey(filename string) string {
	name := unsafeNameChars.ReplaceAllString(path.Base(filename), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		name = "attachment"
	}
	return "attachments/" + uuid.NewString() + "/" + name
}

// cleanKey rejects keys that would resolve outside the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") {
		return "", ErrInvalidKey
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidKey
	}
	return cleaned, nil
}
