package cache

import (
	"context"
	"strings"
	"time"
)

// Namespace scopes every key of store under prefix. Handles acquired with
// different storage keys never observe each other's entries.
func Namespace(store Store, prefix string) Store {
	if store == nil {
		store = noopStore{}
	}
	prefix = strings.TrimSuffix(prefix, ":")
	if prefix == "" {
		return store
	}
	return namespaced{store: store, prefix: prefix + ":"}
}

type namespaced struct {
	store  Store
	prefix string
}

func (n namespaced) key(key string) string {
	if key == "" {
		return ""
	}
	return n.prefix + key
}

func (n namespaced) Get(ctx context.Context, key string) ([]byte, error) {
	if key == "" {
		return nil, ErrCacheMiss
	}
	return n.store.Get(ctx, n.key(key))
}

func (n namespaced) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return n.store.Set(ctx, n.key(key), value, ttl)
}

func (n namespaced) Delete(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	return n.store.Delete(ctx, n.key(key))
}
