// Package container writes and reads dictionary containers: a single
// SQLite file holding compressed article blobs, a sorted key index and
// metadata tags.
package container

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zlib"
	_ "modernc.org/sqlite"

	"github.com/dtnitsch/mw2dict/internal/common"
)

// Extension is the file extension of containers.
const Extension = ".dict"

const (
	CompressionZlib = "zlib"
	CompressionNone = "none"
)

var (
	// ErrLocked is returned by Create when another process is writing the
	// same output file.
	ErrLocked = errors.New("container is locked by another writer")
	// ErrNotFound is returned by Reader.Get for unknown keys.
	ErrNotFound = errors.New("key not found")
	// ErrClosed is returned when writing to a finalized or aborted container.
	ErrClosed = errors.New("container is closed")
)

// Writer is what the conversion pipeline needs from an output container.
type Writer interface {
	Add(data []byte, contentType string, keys ...string) error
	Tag(name, value string) error
}

// Options configures Create.
type Options struct {
	// Compression is "zlib" (default) or "none".
	Compression string
	// WorkDir holds the temporary file while the container is built.
	WorkDir string
	Logger  *slog.Logger
}

// Container is a container under construction. Add and Tag may be called
// from one goroutine at a time.
type Container struct {
	mu          sync.Mutex
	db          *sql.DB
	path        string
	tmpPath     string
	lock        *flock.Flock
	compression string
	logger      *slog.Logger
	closed      bool
}

// openDB opens a SQLite database at the given path
func openDB(dbPath string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single connection keeps pragmas and the write order consistent.
	sqlDB.SetMaxOpenConns(1)
	return sqlDB, nil
}

// Create starts a new container that will be written to path on Finalize.
func Create(path string, opts Options) (*Container, error) {
	compression := opts.Compression
	if compression == "" {
		compression = CompressionZlib
	}
	if compression != CompressionZlib && compression != CompressionNone {
		return nil, fmt.Errorf("unsupported compression %q", compression)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	workDir := opts.WorkDir
	if workDir == "" {
		workDir = "."
	}

	lock := flock.New(path + ".lock")
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}

	tmp, err := os.CreateTemp(workDir, filepath.Base(path)+".*.tmp")
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	db, err := openDB(tmpPath)
	if err == nil {
		_, err = db.Exec(pragmas + schema)
		if err != nil {
			_ = db.Close()
		}
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to initialize container: %w", err)
	}

	c := &Container{
		db:          db,
		path:        path,
		tmpPath:     tmpPath,
		lock:        lock,
		compression: compression,
		logger:      logger,
	}
	if err := c.Tag("uuid", uuid.NewString()); err != nil {
		_ = c.Abort()
		return nil, err
	}
	logger.Debug("Created container", "path", path, "tmp", tmpPath, "compression", compression)
	return c, nil
}

// Path returns the final path of the container.
func (c *Container) Path() string {
	return c.path
}

// Tag sets a metadata tag, replacing an earlier value.
func (c *Container) Tag(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	_, err := c.db.Exec(`INSERT INTO tags (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, name, value)
	if err != nil {
		return fmt.Errorf("failed to set tag %s: %w", name, err)
	}
	return nil
}

// Add stores data once and records every key for it. A key may carry a
// fragment as "key#fragment".
func (c *Container) Add(data []byte, contentType string, keys ...string) error {
	if len(keys) == 0 {
		return errors.New("add requires at least one key")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	blobID, err := c.storeBlob(tx, data, contentType)
	if err != nil {
		return err
	}
	for _, k := range keys {
		key, fragment := SplitKey(k)
		if _, err := tx.Exec(`INSERT INTO staged_refs (key, fragment, blob_id) VALUES (?, ?, ?)`,
			key, fragment, blobID); err != nil {
			return fmt.Errorf("failed to add key %q: %w", k, err)
		}
	}
	return tx.Commit()
}

func (c *Container) storeBlob(tx *sql.Tx, data []byte, contentType string) (int64, error) {
	hash := common.ContentHash(append([]byte(contentType+"\x00"), data...))

	var blobID int64
	err := tx.QueryRow(`SELECT blob_id FROM blobs WHERE content_hash = ?`, hash).Scan(&blobID)
	if err == nil {
		return blobID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("failed to look up blob: %w", err)
	}

	stored, err := compress(data, c.compression)
	if err != nil {
		return 0, err
	}
	res, err := tx.Exec(`INSERT INTO blobs (content_hash, content_type, compression, size_bytes, data)
		VALUES (?, ?, ?, ?, ?)`, hash, contentType, c.compression, len(data), stored)
	if err != nil {
		return 0, fmt.Errorf("failed to store blob: %w", err)
	}
	return res.LastInsertId()
}

// Finalize sorts the key index, writes the summary tags and moves the
// container into place. The container cannot be used afterwards.
func (c *Container) Finalize() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	defer c.release()

	var blobCount int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM blobs`).Scan(&blobCount); err != nil {
		c.discard()
		return fmt.Errorf("failed to count blobs: %w", err)
	}

	start := time.Now()
	steps := []struct {
		query string
		args  []any
	}{
		{finalizeRefs, nil},
		{`INSERT OR REPLACE INTO tags (name, value) VALUES ('created.at', ?)`, []any{time.Now().UTC().Format(time.RFC3339)}},
		{`INSERT OR REPLACE INTO tags (name, value) VALUES ('blob.count', ?)`, []any{fmt.Sprint(blobCount)}},
	}
	for _, step := range steps {
		if _, err := c.db.Exec(step.query, step.args...); err != nil {
			c.discard()
			return fmt.Errorf("failed to finalize container: %w", err)
		}
	}

	if err := c.db.Close(); err != nil {
		_ = os.Remove(c.tmpPath)
		return fmt.Errorf("failed to close container: %w", err)
	}
	if err := os.Rename(c.tmpPath, c.path); err != nil {
		_ = os.Remove(c.tmpPath)
		return fmt.Errorf("failed to move container into place: %w", err)
	}
	c.logger.Info("Finalized container", "path", c.path, "blobs", blobCount, "sort_time", time.Since(start))
	return nil
}

// Abort discards the container. It is safe to call after Finalize.
func (c *Container) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	defer c.release()
	c.discard()
	c.logger.Info("Discarded container", "path", c.path)
	return nil
}

func (c *Container) discard() {
	_ = c.db.Close()
	if err := os.Remove(c.tmpPath); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("Failed to remove temporary file", "path", c.tmpPath, "error", err)
	}
}

func (c *Container) release() {
	if err := c.lock.Unlock(); err != nil {
		c.logger.Warn("Failed to release container lock", "path", c.lock.Path(), "error", err)
	}
	_ = os.Remove(c.lock.Path())
}

// SplitKey separates "title#fragment" into title and fragment.
func SplitKey(k string) (key, fragment string) {
	key, fragment, _ = strings.Cut(k, "#")
	return key, fragment
}

func compress(data []byte, compression string) ([]byte, error) {
	if compression == CompressionNone {
		return data, nil
	}
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(data); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to compress: %w", err)
	}
	return buf.Bytes(), nil
}

func decompress(data []byte, compression string) ([]byte, error) {
	switch compression {
	case CompressionNone:
		return data, nil
	case CompressionZlib:
		zr, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress: %w", err)
		}
		defer zr.Close()
		return io.ReadAll(zr)
	}
	return nil, fmt.Errorf("unsupported compression %q", compression)
}
