package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

// MaxDownloadBytes bounds object reads; CV uploads are capped well below it.
const MaxDownloadBytes = 25 << 20

var ErrObjectNotFound = errors.New("storage: object not found")

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader, size int64) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

type Downloader interface {
	Download(ctx context.Context, objectName string) ([]byte, error)
}

// Store is the full object store contract the CV pipeline needs.
type Store interface {
	Uploader
	Signer
	Downloader
	Delete(ctx context.Context, objectName string) error
	Close() error
}

func readAllLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxDownloadBytes {
		return nil, errors.New("storage: object exceeds download limit")
	}
	return b, nil
}
