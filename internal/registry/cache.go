package registry

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// ExistsCache memoizes path-existence checks with a TTL, so a registry
// holding many stale project paths doesn't re-stat every one of them on
// every Reload. Backed by an embedded badger store rather than an
// in-process map so the cache survives a daemon restart.
type ExistsCache struct {
	db  *badger.DB
	ttl time.Duration
}

// OpenExistsCache opens (creating if absent) a badger store rooted at
// dir, caching exists checks for ttl.
func OpenExistsCache(dir string, ttl time.Duration) (*ExistsCache, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("registry: opening exists cache at %s: %w", dir, err)
	}
	return &ExistsCache{db: db, ttl: ttl}, nil
}

// Close releases the underlying store.
func (c *ExistsCache) Close() error {
	return c.db.Close()
}

// Exists reports whether path is present on disk, consulting the cache
// first and falling back to os.Stat on a miss or expiry.
func (c *ExistsCache) Exists(path string) (bool, error) {
	if exists, ok, err := c.lookup(path); err != nil {
		return false, err
	} else if ok {
		return exists, nil
	}

	_, statErr := os.Stat(path)
	exists := statErr == nil
	if statErr != nil && !os.IsNotExist(statErr) {
		return false, fmt.Errorf("registry: statting %s: %w", path, statErr)
	}
	return exists, c.store(path, exists)
}

func (c *ExistsCache) lookup(path string) (exists, ok bool, err error) {
	txnErr := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(path))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			exists = len(val) == 1 && val[0] == 1
			ok = true
			return nil
		})
	})
	if txnErr == nil {
		return exists, ok, nil
	}
	if errors.Is(txnErr, badger.ErrKeyNotFound) {
		return false, false, nil
	}
	return false, false, txnErr
}

func (c *ExistsCache) store(path string, exists bool) error {
	val := byte(0)
	if exists {
		val = 1
	}
	return c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(path), []byte{val}).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
}
