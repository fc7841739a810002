// Package storage is the durable blob store for uploaded inputs and enhanced
// results. Keys are slash separated relative paths such as "uploads/<uuid>.jpg".
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
)

type Store interface {
	// Save writes r under key and returns the number of bytes stored.
	Save(ctx context.Context, key string, r io.Reader, size int64, contentType string) (int64, error)
	// Open returns the object body and its size. The caller closes the body.
	Open(ctx context.Context, key string) (io.ReadCloser, int64, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Backend        string `envconfig:"STORAGE_BACKEND" default:"local"`
	Path           string `envconfig:"STORAGE_PATH" default:"/data/media"`
	MinioEndpoint  string `envconfig:"MINIO_ENDPOINT" default:"localhost:9000"`
	MinioBucket    string `envconfig:"MINIO_BUCKET" default:"hdr-media"`
	MinioAccessKey string `envconfig:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `envconfig:"MINIO_SECRET_KEY"`
	MinioUseSSL    bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", "local":
		return NewLocalStore(cfg.Path)
	case "minio":
		return NewMinioStore(ctx,
			WithEndpoint(cfg.MinioEndpoint),
			WithBucket(cfg.MinioBucket),
			WithAccessKey(cfg.MinioAccessKey),
			WithSecretKey(cfg.MinioSecretKey),
			WithSSL(cfg.MinioUseSSL),
		)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// cleanKey rejects absolute keys and keys escaping the store root.
func cleanKey(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.Contains(key, "\\") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	cleaned := path.Clean(key)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return cleaned, nil
}
