package session

import (
	"context"
	"fmt"
	"io"
)

// Backend names accepted by Open.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// OpenOptions selects and configures a Store backend.
type OpenOptions struct {
	Backend     string
	Path        string // file and sqlite
	RedisURL    string
	RedisPrefix string
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured Store. The returned Closer releases backend
// connections and is never nil.
func Open(ctx context.Context, opts OpenOptions) (Store, io.Closer, error) {
	switch opts.Backend {
	case BackendMemory:
		return NewMemoryStore(), nopCloser{}, nil
	case BackendFile, "":
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("file store needs a path")
		}
		return NewFileStore(opts.Path), nopCloser{}, nil
	case BackendSQLite:
		if opts.Path == "" {
			return nil, nil, fmt.Errorf("sqlite store needs a path")
		}
		store, err := NewSQLiteStore(ctx, opts.Path)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	case BackendRedis:
		store, err := NewRedisStore(ctx, opts.RedisURL, opts.RedisPrefix)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown session store backend %q", opts.Backend)
	}
}
