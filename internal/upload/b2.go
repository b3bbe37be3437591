package upload

import (
	"context"
	"fmt"
	"io"

	"github.com/kurin/blazer/b2"
)

// B2 stores files in a Backblaze B2 bucket. References are object keys.
type B2 struct {
	client *b2.Client
	bucket *b2.Bucket
	prefix string
}

// NewB2 connects to the bucket. Objects are written under prefix.
func NewB2(ctx context.Context, accountID, appKey, bucketName, prefix string) (*B2, error) {
	client, err := b2.NewClient(ctx, accountID, appKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create b2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &B2{client: client, bucket: bucket, prefix: prefix}, nil
}

func (s *B2) Save(ctx context.Context, name string, r io.Reader) (string, error) {
	w := s.bucket.Object(s.prefix + name).NewWriter(ctx)

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return "", fmt.Errorf("failed to write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("failed to close writer: %w", err)
	}
	return name, nil
}

func (s *B2) Open(ctx context.Context, ref string) (io.ReadCloser, error) {
	obj := s.bucket.Object(s.prefix + ref)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}
	return obj.NewReader(ctx), nil
}

func (s *B2) Delete(ctx context.Context, ref string) error {
	if err := s.bucket.Object(s.prefix + ref).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}
