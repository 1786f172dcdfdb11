// Package sharedb persists the shared-file index: per share the file list,
// the pre-encoded browse stream and the directory mtime, plus the word and
// file indexes used to answer searches. Each of the five tables exists once
// for public shares and once for buddy shares.
package sharedb

import (
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

var bucketName = []byte("entries")

// Entry is one key/value pair of a table
type Entry struct {
	Key   string
	Value []byte
}

// Table is an on-disk key/value table in a single bbolt file
type Table struct {
	db   *bolt.DB
	path string
}

// OpenTable opens the table at path, creating it when missing. A file bbolt
// cannot open is reported as an error; the caller decides whether to
// recreate it.
func OpenTable(path string) (*Table, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &Table{db: db, path: path}, nil
}

// CreateTable replaces whatever is at path with a fresh empty table
func CreateTable(path string) (*Table, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("remove %s: %w", path, err)
	}
	return OpenTable(path)
}

// Path returns the backing file
func (t *Table) Path() string {
	return t.path
}

// Put stores one value
func (t *Table) Put(key string, v []byte) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put([]byte(key), v)
	})
}

// PutAll stores entries in one transaction
func (t *Table) PutAll(entries []Entry) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketName)
		for _, e := range entries {
			if err := b.Put([]byte(e.Key), e.Value); err != nil {
				return fmt.Errorf("put %q: %w", e.Key, err)
			}
		}
		return nil
	})
}

// Get returns a copy of the value stored under key
func (t *Table) Get(key string) ([]byte, bool, error) {
	var out []byte
	found := false
	err := t.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get([]byte(key))
		if v != nil {
			found = true
			out = append([]byte{}, v...)
		}
		return nil
	})
	return out, found, err
}

// Delete removes key
func (t *Table) Delete(key string) error {
	return t.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete([]byte(key))
	})
}

// ForEach calls fn for every entry in key order. The value is only valid
// during the call.
func (t *Table) ForEach(fn func(key string, v []byte) error) error {
	return t.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).ForEach(func(k, v []byte) error {
			return fn(string(k), v)
		})
	})
}

// Keys returns every key in key order
func (t *Table) Keys() ([]string, error) {
	var keys []string
	err := t.ForEach(func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	return keys, err
}

// Len returns the number of entries
func (t *Table) Len() (int, error) {
	n := 0
	err := t.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketName).Stats().KeyN
		return nil
	})
	return n, err
}

// Close releases the file
func (t *Table) Close() error {
	if t == nil || t.db == nil {
		return nil
	}
	return t.db.Close()
}
