// Package blob is the artifact store: key-addressed blobs under the
// audio/chunks/, audio/ and pdfs/ prefixes, plus post-processed covers.
// URLs returned by Put are opaque to callers; the local backend returns
// origin-relative URLs and the object-storage backend absolute ones.
package blob

import (
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"
)

// Store is the artifact-store interface. Writes to distinct paths are
// independent; overwriting the same path is last-write-wins.
type Store interface {
	// Put stores data under path and returns a stable URL for it.
	Put(ctx context.Context, path string, data []byte) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) (bool, error)
	Delete(ctx context.Context, path string) error
	// List returns all stored paths under the prefix.
	List(ctx context.Context, prefix string) ([]string, error)
	Ping(ctx context.Context) error
}

// Artifact paths for one project.

func ChunkPath(projectID uuid.UUID, pageIndex int) string {
	return fmt.Sprintf("audio/chunks/story_%s_page_%d.mp3", projectID, pageIndex)
}

func ChunkPrefix(projectID uuid.UUID) string {
	return fmt.Sprintf("audio/chunks/story_%s_", projectID)
}

func CombinedAudioPath(projectID uuid.UUID) string {
	return fmt.Sprintf("audio/story_%s_full.mp3", projectID)
}

func CoverPath(projectID uuid.UUID) string {
	return fmt.Sprintf("covers/%s.jpg", projectID)
}

// contentTypeFor maps a stored path's extension to its MIME type.
func contentTypeFor(p string) string {
	switch path.Ext(p) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".pdf":
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}
