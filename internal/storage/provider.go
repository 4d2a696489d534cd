// Package storage defines the workspace file-system abstraction the graph engine
// reads documents through.
package storage

import "github.com/starford/speclink/internal/models"

// Provider is the interface for workspace document access. Paths are
// workspace-relative and slash-separated.
type Provider interface {
	// ListArtifactFiles returns metadata for every .md file in the workspace.
	ListArtifactFiles() ([]models.FileMetadata, error)
	// ReadFile returns the raw bytes of the file at path.
	ReadFile(path string) ([]byte, error)
	// WriteFile atomically writes content to path.
	WriteFile(path string, content []byte) error
	// DeleteFile removes the file at path.
	DeleteFile(path string) error
}
