package port

import (
	"context"
	"io"
)

// PutObjectInput describes one object to store. Bucket and encryption are
// fixed by the storage implementation.
type PutObjectInput struct {
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// StoredObject is the result of a successful put.
type StoredObject struct {
	Key      string
	Location string
	ETag     string
}

// ObjectStorage abstracts object storage for case attachments.
type ObjectStorage interface {
	Put(ctx context.Context, input PutObjectInput) (*StoredObject, error)
	Delete(ctx context.Context, key string) error
	PresignGet(ctx context.Context, key string) (string, error)
}
