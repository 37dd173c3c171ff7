package device

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"nutrifacts/internal/domain"
)

// AlbumName is the folder scans are copied into.
const AlbumName = "NutriFacts"

// Album copies captured images into <root>/NutriFacts.
type Album struct {
	dir string
}

// NewAlbum returns an Album under root.
func NewAlbum(root string) *Album {
	return &Album{dir: filepath.Join(root, AlbumName)}
}

// Save copies img into the album and returns the new file's path.
func (a *Album) Save(img domain.CapturedImage) (string, error) {
	src, err := os.Open(img.Path())
	if err != nil {
		return "", fmt.Errorf("error opening image: %w", err)
	}
	defer func() { _ = src.Close() }()

	if err := os.MkdirAll(a.dir, 0o755); err != nil {
		return "", fmt.Errorf("error creating album: %w", err)
	}
	dst := filepath.Join(a.dir, uuid.NewString()+".jpg")
	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("error creating album file: %w", err)
	}
	if _, err := io.Copy(out, src); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return "", fmt.Errorf("error copying image: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", err
	}
	return dst, nil
}
