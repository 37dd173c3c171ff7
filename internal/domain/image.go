package domain

import (
	"context"
	"net/url"
	"strings"
)

// Source is where a label image comes from.
type Source int

// Image sources.
const (
	SourceCamera Source = iota + 1
	SourceGallery
)

func (s Source) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceGallery:
		return "gallery"
	default:
		return "unknown"
	}
}

// CapturedImage is a handle to image data on the device.
type CapturedImage struct {
	ID       string
	LocalURI string
	Source   Source
}

// Path returns the filesystem path behind LocalURI, accepting both plain
// paths and file:// URIs.
func (c CapturedImage) Path() string {
	if strings.HasPrefix(c.LocalURI, "file://") {
		if u, err := url.Parse(c.LocalURI); err == nil {
			return u.Path
		}
	}
	return c.LocalURI
}

// ImageSource is the port for camera and gallery acquisition. It fails with
// ErrPermissionDenied or ErrCancelled.
type ImageSource interface {
	Acquire(ctx context.Context, src Source) (CapturedImage, error)
}
