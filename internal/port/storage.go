package port

import (
	"context"
	"io"
)

// UploadInput describes one object written to the document bucket. Metadata
// is stored alongside the object (session id, document kind) so archived
// declarations can be traced back without the session store.
type UploadInput struct {
	Bucket      string
	Key         string
	Body        io.Reader
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// UploadOutput contains the result of a successful upload.
type UploadOutput struct {
	Location string
	ETag     string
}

// PresignInput describes a time-limited download link. DownloadName, when
// set, is served as the attachment filename.
type PresignInput struct {
	Bucket        string
	Key           string
	DownloadName  string
	ExpirySeconds int64
}

// ObjectStorage stores uploaded source documents and archived declarations.
type ObjectStorage interface {
	Upload(ctx context.Context, input UploadInput) (*UploadOutput, error)
	Delete(ctx context.Context, bucket, key string) error
	GetPresignedURL(ctx context.Context, input PresignInput) (string, error)
}
