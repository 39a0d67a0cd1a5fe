package ports

import "context"

// ImageVariant is one rendition of an image.
type ImageVariant struct {
	URL string `json:"url"`
}

// Image is a stored image with optional renditions.
type Image struct {
	Full      *ImageVariant `json:"full"`
	Thumbnail *ImageVariant `json:"thumbnail"`
}

// ImagePort resolves image ids. ref names the owning reference, e.g.
// "profile:42:avatar", so the image service can authorize the read.
type ImagePort interface {
	GetImage(ctx context.Context, imageID int64, ref string) (*Image, error)
}
