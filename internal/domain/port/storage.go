package port

import "context"

// MediaStorage moves media between its durable location and the worker's scratch space.
type MediaStorage interface {
	// Fetch makes the media at location readable on the local filesystem and
	// returns the local path. destPath is a suggestion the backend may ignore.
	Fetch(ctx context.Context, location, destPath string) (string, error)
	// Publish stores the local file at location.
	Publish(ctx context.Context, localPath, location, contentType string) error
	// Remove deletes the media at location. Removing a missing object is not an error.
	Remove(ctx context.Context, location string) error
}
