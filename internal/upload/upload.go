// Package upload validates and stores verification screenshots.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/Jabakyo/next-class/internal/domainerr"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

var (
	ErrInvalidImage = domainerr.New("upload", "ErrInvalidImage", http.StatusBadRequest, "screenshot must be a PNG, JPEG, WebP or GIF image")
	ErrTooLarge     = domainerr.New("upload", "ErrFileTooLarge", http.StatusBadRequest, "screenshot is too large")
	ErrEmpty        = domainerr.New("upload", "ErrEmptyFile", http.StatusBadRequest, "screenshot is empty")
	ErrNotFound     = domainerr.New("upload", "ErrFileNotFound", http.StatusNotFound, "file not found")
)

// allowed maps accepted MIME types to the extension used for stored files.
var allowed = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Storage keeps uploaded files under opaque references.
type Storage interface {
	// Save stores r under name and returns the reference to persist.
	Save(ctx context.Context, name string, r io.Reader) (string, error)
	// Open returns the stored content for ref.
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	// Delete removes ref. Deleting a missing file is not an error.
	Delete(ctx context.Context, ref string) error
}

// Image is a validated upload held in memory.
type Image struct {
	Data []byte
	MIME string
	Ext  string
}

// Name returns a fresh time-ordered file name for the image.
func (img Image) Name() string {
	return uuid.Must(uuid.NewV7()).String() + img.Ext
}

// ReadImage reads at most maxBytes from r and checks the content by its magic
// bytes, ignoring any client-declared content type.
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return Image{}, ErrEmpty
	}
	if int64(len(data)) > maxBytes {
		return Image{}, ErrTooLarge.WithDetail(fmt.Sprintf("screenshot exceeds the %d byte limit", maxBytes))
	}

	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if ext, ok := allowed[m.String()]; ok {
			return Image{Data: data, MIME: m.String(), Ext: ext}, nil
		}
	}
	return Image{}, ErrInvalidImage.WithContext(map[string]any{"detected": mt.String()})
}

// SaveImage stores img under a fresh name and returns the storage reference.
func SaveImage(ctx context.Context, s Storage, img Image) (string, error) {
	return s.Save(ctx, img.Name(), bytes.NewReader(img.Data))
}

// ContentType returns the MIME type of a stored reference, judged by the
// extension SaveImage gave it.
func ContentType(ref string) string {
	ext := path.Ext(ref)
	for mime, e := range allowed {
		if e == ext {
			return mime
		}
	}
	return "application/octet-stream"
}
