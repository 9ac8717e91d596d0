package core

import "context"

// Storage persists session artifacts such as transcripts. Load reports a
// missing path with an error wrapping storage.ErrNotFound.
type Storage interface {
	Save(ctx context.Context, path string, data []byte) error
	Load(ctx context.Context, path string) ([]byte, error)
}
