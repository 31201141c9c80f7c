package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("not found")

// Documents is a keyed blob store. Each collection is one JSON document.
type Documents interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Put(ctx context.Context, name string, body []byte) error
	Ping(ctx context.Context) error
	Close() error
}
