package container

import (
	"database/sql"
	"errors"
	"fmt"
)

// Reader gives read access to a finalized container.
type Reader struct {
	db   *sql.DB
	path string
}

// Item is a stored blob as returned by Reader.Get.
type Item struct {
	Key         string
	Fragment    string
	ContentType string
	Data        []byte
}

// Open opens a finalized container read only.
func Open(path string) (*Reader, error) {
	db, err := openDB("file:" + path + "?mode=ro")
	if err != nil {
		return nil, err
	}
	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type='table' AND name='refs'`).Scan(&name)
	if err != nil {
		_ = db.Close()
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s is not a dictionary container", path)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &Reader{db: db, path: path}, nil
}

// Close releases the database handle.
func (r *Reader) Close() error {
	return r.db.Close()
}

// Get returns the first item stored under key.
func (r *Reader) Get(key string) (Item, error) {
	var (
		item        Item
		compression string
		stored      []byte
	)
	err := r.db.QueryRow(`
		SELECT r.key, r.fragment, b.content_type, b.compression, b.data
		FROM refs r JOIN blobs b ON b.blob_id = r.blob_id
		WHERE r.key = ?
		ORDER BY r.ref_id LIMIT 1
	`, key).Scan(&item.Key, &item.Fragment, &item.ContentType, &compression, &stored)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	if err != nil {
		return Item{}, fmt.Errorf("failed to get %s: %w", key, err)
	}
	item.Data, err = decompress(stored, compression)
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// Tags returns all metadata tags.
func (r *Reader) Tags() (map[string]string, error) {
	rows, err := r.db.Query(`SELECT name, value FROM tags`)
	if err != nil {
		return nil, fmt.Errorf("failed to read tags: %w", err)
	}
	defer rows.Close()

	tags := make(map[string]string)
	for rows.Next() {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		tags[name] = value
	}
	return tags, rows.Err()
}

// Count returns the number of keys.
func (r *Reader) Count() (int64, error) {
	var n int64
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM refs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count keys: %w", err)
	}
	return n, nil
}

// Keys returns up to limit keys in index order, each with its fragment
// appended as "key#fragment". A limit of zero or less returns all keys.
func (r *Reader) Keys(limit int) ([]string, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.Query(`SELECT key, fragment FROM refs ORDER BY ref_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key, fragment string
		if err := rows.Scan(&key, &fragment); err != nil {
			return nil, err
		}
		if fragment != "" {
			key += "#" + fragment
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
