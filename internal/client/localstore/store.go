// Package localstore persists client state that outlives a single client
// instance. A store is shared by every instance of one client profile; writes
// are last-write-wins without transactions across keys.
package localstore

import "context"

// Store is a string key-value store.
type Store interface {
	// Get returns the value of key and whether it is present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	// Keys returns the keys starting with prefix in lexical order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	// RemovePrefix deletes every key starting with prefix and returns their number.
	RemovePrefix(ctx context.Context, prefix string) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// StoreFactory is a function that creates a new Store instance.
type StoreFactory func(ctx context.Context) (Store, error)
