// Package blob stores the binary payloads behind Document metadata.
package blob

import (
	"context"
	"errors"
	"path"
	"strings"

	"github.com/PeacockIllustrated/project-manager/internal/util"
)

var ErrNotFound = errors.New("blob not found")

// Store uploads and deletes objects addressed by a slash-separated path.
// Delete fails with ErrNotFound when nothing lives at path.
type Store interface {
	Upload(ctx context.Context, path, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, path string) error
}

// DocumentPath builds a fresh storage path: documents/{projectID}/{uuid}-{filename}.
func DocumentPath(projectID, filename string) string {
	return path.Join("documents", cleanSegment(projectID), util.NewID("")+"-"+cleanSegment(filename))
}

func cleanSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_").Replace(s)
	if s == "" || s == "." || s == ".." {
		return "file"
	}
	return s
}
