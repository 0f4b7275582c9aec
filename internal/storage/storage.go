// Package storage holds the blob stores documents keep their bytes in.
package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned by Get, Stat and Delete when no object exists at key.
	ErrNotFound = errors.New("blob not found")
	// ErrTimeout is returned when a call exceeds the store's operation timeout.
	ErrTimeout = errors.New("blob operation timed out")
	// ErrPresignUnsupported is returned by stores that cannot mint direct URLs.
	ErrPresignUnsupported = errors.New("presigned urls not supported")
)

// BlobStore is durable byte storage addressed by opaque keys. Callers own key
// uniqueness; the store only persists.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Stat returns the stored size without reading the bytes.
	Stat(ctx context.Context, key string) (int64, error)
	Delete(ctx context.Context, key string) error
	PresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// NewKey builds <prefix>/YYYY/MM/<unixnano>-<uuid8>-<name>. The time and uuid
// parts keep two uploads of the same file in the same instant apart.
func NewKey(prefix, filename string, now time.Time) string {
	now = now.UTC()
	dir := fmt.Sprintf("%s/%04d/%02d", prefix, now.Year(), int(now.Month()))
	name := fmt.Sprintf("%d-%s-%s", now.UnixNano(), uuid.New().String()[:8], SanitizeFilename(filename))
	return filepath.ToSlash(filepath.Join(dir, name))
}

// SanitizeFilename strips path components and replaces anything outside
// [A-Za-z0-9._-] with '_'. Long names are cut to 100 bytes keeping the extension.
func SanitizeFilename(filename string) string {
	filename = filepath.Base(filename)
	if filename == "." || filename == "/" {
		filename = ""
	}

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
