package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/boltdb/bolt"

	"github.com/wzshiming/gitassets/pkg/hash"
)

var (
	objectsBucket = []byte("objects")
)

// Record is the catalog entry for one stored object.
type Record struct {
	Hash     hash.Hash `json:"-"`
	Size     int64     `json:"size"`
	Path     string    `json:"path,omitempty"`
	StoredAt time.Time `json:"stored_at"`
}

// Catalog keeps metadata about stored objects in a boltdb file. It is
// bookkeeping only: the data directory stays the source of truth and the
// catalog can be rebuilt from it with Store.Reindex.
type Catalog struct {
	path    string
	timeout time.Duration
}

// NewCatalog returns a catalog backed by the boltdb file at path. The file
// is opened for each operation, since filter processes are short lived.
func NewCatalog(path string) *Catalog {
	return &Catalog{
		path:    path,
		timeout: 5 * time.Second,
	}
}

func (c *Catalog) update(fn func(b *bolt.Bucket) error) error {
	db, err := bolt.Open(c.path, 0644, &bolt.Options{Timeout: c.timeout})
	if err != nil {
		return fmt.Errorf("opening catalog %s: %w", c.path, err)
	}
	defer db.Close()

	return db.Update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(objectsBucket)
		if err != nil {
			return err
		}
		return fn(bucket)
	})
}

func (c *Catalog) view(fn func(b *bolt.Bucket) error) error {
	if _, err := os.Stat(c.path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	db, err := bolt.Open(c.path, 0644, &bolt.Options{Timeout: c.timeout, ReadOnly: true})
	if err != nil {
		return fmt.Errorf("opening catalog %s: %w", c.path, err)
	}
	defer db.Close()

	return db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(objectsBucket)
		if bucket == nil {
			return nil
		}
		return fn(bucket)
	})
}

// Add records rec unless the object is already cataloged, so the first
// path an object was seen under is kept.
func (c *Catalog) Add(rec Record) error {
	key := []byte(rec.Hash.String())
	return c.update(func(b *bolt.Bucket) error {
		if b.Get(key) != nil {
			return nil
		}
		data, err := json.Marshal(&rec)
		if err != nil {
			return err
		}
		return b.Put(key, data)
	})
}

// Get returns the record for h.
func (c *Catalog) Get(h hash.Hash) (rec Record, ok bool, err error) {
	err = c.view(func(b *bolt.Bucket) error {
		data := b.Get([]byte(h.String()))
		if data == nil {
			return nil
		}
		ok = true
		return decodeRecord(h.String(), data, &rec)
	})
	return rec, ok, err
}

// List returns all records ordered by hash.
func (c *Catalog) List() ([]Record, error) {
	var records []Record
	err := c.view(func(b *bolt.Bucket) error {
		return b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := decodeRecord(string(k), v, &rec); err != nil {
				return err
			}
			records = append(records, rec)
			return nil
		})
	})
	return records, err
}

// Replace swaps the catalog contents for records. Path and StoredAt of
// objects that were already cataloged are preserved.
func (c *Catalog) Replace(records []Record) error {
	return c.update(func(b *bolt.Bucket) error {
		existing := map[string]Record{}
		err := b.ForEach(func(k, v []byte) error {
			var rec Record
			if err := decodeRecord(string(k), v, &rec); err != nil {
				// Corrupt records are dropped by the rebuild.
				return nil
			}
			existing[string(k)] = rec
			return nil
		})
		if err != nil {
			return err
		}

		keys := make([][]byte, 0, len(existing))
		err = b.ForEach(func(k, _ []byte) error {
			keys = append(keys, append([]byte(nil), k...))
			return nil
		})
		if err != nil {
			return err
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}

		for _, rec := range records {
			key := rec.Hash.String()
			if old, ok := existing[key]; ok {
				rec.Path = old.Path
				rec.StoredAt = old.StoredAt
			}
			data, err := json.Marshal(&rec)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(key), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func decodeRecord(key string, data []byte, rec *Record) error {
	h, err := hash.Parse(key)
	if err != nil {
		return fmt.Errorf("catalog key: %w", err)
	}
	if err := json.Unmarshal(data, rec); err != nil {
		return fmt.Errorf("catalog record %s: %w", key, err)
	}
	rec.Hash = h
	return nil
}
