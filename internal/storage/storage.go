// Package storage holds uploaded food photos. Listings keep only the public URL
// returned by Put; Delete accepts that same URL.
package storage

import (
	"context"
	"errors"
	"io"
	"strings"
)

// ErrForeignURL is returned when Delete is given a URL this store did not issue.
var ErrForeignURL = errors.New("url does not belong to this store")

// BlobStore stores opaque blobs and serves them under public URLs.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (url string, err error)
	Delete(ctx context.Context, url string) error
}

// keyFromURL strips base from url, rejecting URLs outside of it.
func keyFromURL(base, url string) (string, error) {
	prefix := strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", ErrForeignURL
	}
	key := strings.TrimPrefix(url, prefix)
	if key == "" || strings.Contains(key, "..") {
		return "", ErrForeignURL
	}
	return key, nil
}

func joinURL(base, key string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(key, "/")
}
