// Package store implements a content addressed store on the local
// filesystem. Every entry is a read-only file named after the SHA-256 hash
// of its content, so entries are never rewritten and identical content is
// stored once.
//
// Writers coordinate only through the filesystem: content is staged in a
// temp file and then hard linked into place, or renamed where the
// filesystem has no hard links. A reader never sees a partially written
// entry and concurrent writers of the same content from separate processes
// cannot corrupt each other.
package store

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"

	"github.com/wzshiming/gitassets/pkg/hash"
)

const (
	dataDirName    = "data"
	stagingDirName = "staging"
	catalogName    = "catalog.db"
	// refDirName is reserved. Stores created by earlier versions of the
	// tool have it, always empty.
	refDirName     = "ref"
)

var (
	ErrNotFound = errors.New("content not found")
)

// NotFoundError is returned by Get when no entry exists for Hash.
type NotFoundError struct {
	Hash hash.Hash
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("content %s not found", e.Hash)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// Object describes the result of a put.
type Object struct {
	Hash hash.Hash
	Size int64
	// Created is false when the entry already existed, or when a
	// concurrent writer created it first.
	Created bool
}

// Store is a content addressed store rooted at a directory.
type Store struct {
	root       string
	dataDir    string
	stagingDir string

	catalog *Catalog
	logger  *slog.Logger
}

type Option func(*Store)

// WithLogger sets the logger used for debug output.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithCatalog enables or disables the object catalog. It is enabled by
// default.
func WithCatalog(enabled bool) Option {
	return func(s *Store) {
		if !enabled {
			s.catalog = nil
		}
	}
}

// Open opens the store at root, creating its directories if needed.
func Open(root string, opts ...Option) (*Store, error) {
	s := &Store{
		root:       root,
		dataDir:    filepath.Join(root, dataDirName),
		stagingDir: filepath.Join(root, stagingDirName),
		catalog:    NewCatalog(filepath.Join(root, catalogName)),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	for _, dir := range []string{s.root, s.dataDir, s.stagingDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}
	return s, nil
}

// Root returns the store root directory.
func (s *Store) Root() string {
	return s.root
}

// Path returns the path of the entry for h, whether or not it exists.
func (s *Store) Path(h hash.Hash) string {
	return filepath.Join(s.dataDir, h.String())
}

// Catalog returns the object catalog, or nil if it is disabled.
func (s *Store) Catalog() *Catalog {
	return s.catalog
}

// Contains reports whether an entry exists for h.
func (s *Store) Contains(h hash.Hash) (bool, error) {
	info, err := os.Stat(s.Path(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	if !info.Mode().IsRegular() {
		return false, fmt.Errorf("store entry %s is not a regular file", h)
	}
	return true, nil
}

// Put reads r to the end and stores its content. The returned Object
// carries the hash whether or not a new entry was written.
func (s *Store) Put(r io.Reader) (Object, error) {
	tmp, err := os.CreateTemp(s.stagingDir, "put-*")
	if err != nil {
		return Object{}, fmt.Errorf("creating staging file: %w", err)
	}
	defer os.Remove(tmp.Name())

	hasher := hash.New()
	if _, err := io.Copy(io.MultiWriter(hasher, tmp), r); err != nil {
		tmp.Close()
		return Object{}, fmt.Errorf("writing staging file: %w", err)
	}

	obj := Object{
		Hash: hasher.Hash(),
		Size: hasher.Written(),
	}

	exists, err := s.Contains(obj.Hash)
	if err != nil {
		tmp.Close()
		return Object{}, err
	}
	if exists {
		tmp.Close()
		s.logger.Debug("content already stored", "hash", obj.Hash.Short(), "size", obj.Size)
		return obj, nil
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return Object{}, fmt.Errorf("syncing staging file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Object{}, fmt.Errorf("closing staging file: %w", err)
	}

	obj.Created, err = s.commit(tmp.Name(), obj.Hash)
	if err != nil {
		return Object{}, err
	}
	if obj.Created {
		s.logger.Debug("stored content", "hash", obj.Hash.Short(), "size", obj.Size)
	} else {
		s.logger.Debug("lost store race, content already stored", "hash", obj.Hash.Short())
	}
	return obj, nil
}

// PutBytes stores b. Unlike Put it hashes first, so storing content that is
// already present performs no write at all.
func (s *Store) PutBytes(b []byte) (Object, error) {
	h := hash.Sum(b)
	exists, err := s.Contains(h)
	if err != nil {
		return Object{}, err
	}
	if exists {
		return Object{Hash: h, Size: int64(len(b))}, nil
	}
	return s.Put(bytes.NewReader(b))
}

// link is os.Link, replaced in tests.
var link = os.Link

// commit moves a fully written staging file into place under h. It
// reports false if another writer got there first.
func (s *Store) commit(tmpPath string, h hash.Hash) (bool, error) {
	final := s.Path(h)
	if err := os.Chmod(tmpPath, 0444); err != nil {
		return false, fmt.Errorf("chmod staging file: %w", err)
	}

	err := link(tmpPath, final)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrExist) {
		return false, nil
	}
	if !linkUnsupported(err) {
		return false, fmt.Errorf("linking content %s into store: %w", h, err)
	}

	// The filesystem has no hard links. Rename cannot refuse to replace,
	// so only rename when no entry appeared since the first check.
	exists, err := s.Contains(h)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return false, fmt.Errorf("moving content %s into store: %w", h, err)
	}
	return true, nil
}

// linkUnsupported reports whether err from os.Link means the filesystem
// cannot hard link, as opposed to a real failure.
func linkUnsupported(err error) bool {
	return errors.Is(err, errors.ErrUnsupported) ||
		errors.Is(err, syscall.EPERM) ||
		errors.Is(err, syscall.EXDEV)
}

// Entry is an open store entry.
type Entry struct {
	*os.File
	hash hash.Hash
	size int64
}

func (e *Entry) Hash() hash.Hash {
	return e.hash
}

// Size returns the length of the content.
func (e *Entry) Size() int64 {
	return e.size
}

// Get opens the entry for h. The caller must close it.
func (s *Store) Get(h hash.Hash) (*Entry, error) {
	f, err := os.Open(s.Path(h))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &NotFoundError{Hash: h}
		}
		return nil, fmt.Errorf("opening content %s: %w", h, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat content %s: %w", h, err)
	}
	if !stat.Mode().IsRegular() {
		f.Close()
		return nil, fmt.Errorf("store entry %s is not a regular file", h)
	}
	return &Entry{File: f, hash: h, size: stat.Size()}, nil
}

// ReadAll returns the content stored under h.
func (s *Store) ReadAll(h hash.Hash) ([]byte, error) {
	e, err := s.Get(h)
	if err != nil {
		return nil, err
	}
	defer e.Close()
	return io.ReadAll(e)
}
