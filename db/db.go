package db

// DB defines the interface for database operations
type DB interface {
	Put(key, value []byte) error
	Get(key []byte) ([]byte, error)
	Delete(key []byte) error
	// Iterate calls fn for every key with the given prefix, in key order. The
	// slices passed to fn are only valid for the duration of the call.
	Iterate(prefix []byte, fn func(key, value []byte) error) error
	Close() error
}
