package port

import "context"

// FileStorage defines file storage operations. Paths are opaque storage
// references relative to the storage root: uploaded feeds are read through
// it and generated declaration files are written back through it.
type FileStorage interface {
	Save(ctx context.Context, path string, content []byte) error
	Read(ctx context.Context, path string) ([]byte, error)
	Exists(ctx context.Context, path string) bool
	Delete(ctx context.Context, path string) error
	GetFullPath(relativePath string) string
}
