// Package archive stores raw fetched HTML for later re-extraction.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
)

// GCSStore writes page snapshots to a Google Cloud Storage bucket.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a GCS-backed archive.
func NewGCSStore(client *storage.Client, bucket string) (*GCSStore, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	return &GCSStore{client: client, bucket: bucket}, nil
}

// Archive uploads data and returns a gs:// URI.
func (s *GCSStore) Archive(ctx context.Context, path, contentType string, data []byte) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fmt.Errorf("path is required")
	}
	writer := s.client.Bucket(s.bucket).Object(path).NewWriter(ctx)
	if contentType != "" {
		writer.ContentType = contentType
	}
	if _, err := io.Copy(writer, bytes.NewReader(data)); err != nil {
		closeErr := writer.Close()
		if closeErr != nil {
			return "", fmt.Errorf("copy object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("copy object: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, path), nil
}
