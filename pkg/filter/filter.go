// Package filter implements the git clean and smudge transforms on top of
// the content store.
//
// Clean runs when content moves from the working tree into the index: it
// stores the bytes and emits a pointer. Smudge runs on checkout: it reads a
// pointer and emits the stored bytes. Both read all of their input and write
// nothing on failure before the store has answered.
package filter

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/wzshiming/gitassets/pkg/pointer"
	"github.com/wzshiming/gitassets/pkg/store"
)

// Filter runs clean and smudge against one store.
type Filter struct {
	store  *store.Store
	logger *slog.Logger
}

type Option func(*Filter)

func WithLogger(logger *slog.Logger) Option {
	return func(f *Filter) {
		f.logger = logger
	}
}

// New returns a Filter backed by st.
func New(st *store.Store, opts ...Option) *Filter {
	f := &Filter{
		store:  st,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Clean stores everything read from r and writes the pointer for it to w.
// path is the working tree path of the file and may be empty.
func (f *Filter) Clean(ctx context.Context, r io.Reader, w io.Writer, path string) (pointer.Pointer, error) {
	if err := ctx.Err(); err != nil {
		return pointer.Pointer{}, &Error{Kind: KindIO, Path: path, Err: err}
	}

	obj, err := f.store.Put(r)
	if err != nil {
		return pointer.Pointer{}, &Error{Kind: KindIO, Path: path, Err: fmt.Errorf("storing content: %w", err)}
	}
	if obj.Created {
		f.catalog(obj, path)
	}

	p := pointer.New(obj.Hash, obj.Size)
	if _, err := p.WriteTo(w); err != nil {
		return pointer.Pointer{}, &Error{Kind: KindIO, Path: path, Hash: obj.Hash, Root: f.store.Root(), Err: fmt.Errorf("writing pointer: %w", err)}
	}
	f.logger.Debug("clean", "path", path, "hash", obj.Hash.Short(), "size", obj.Size, "created", obj.Created)
	return p, nil
}

// catalog records a newly created object. Failures are logged only: the
// content is already durable and the catalog can be rebuilt.
func (f *Filter) catalog(obj store.Object, path string) {
	c := f.store.Catalog()
	if c == nil {
		return
	}
	err := c.Add(store.Record{
		Hash:     obj.Hash,
		Size:     obj.Size,
		Path:     path,
		StoredAt: time.Now().UTC(),
	})
	if err != nil {
		f.logger.Warn("failed to update catalog, run git-assets validate --reindex", "hash", obj.Hash.Short(), "err", err)
	}
}

// Smudge reads a pointer from r and writes the referenced content to w.
func (f *Filter) Smudge(ctx context.Context, r io.Reader, w io.Writer, path string) (pointer.Pointer, error) {
	if err := ctx.Err(); err != nil {
		return pointer.Pointer{}, &Error{Kind: KindIO, Path: path, Err: err}
	}

	// Drain the rest so git does not see a broken pipe on large
	// non-pointer input.
	defer io.Copy(io.Discard, r)

	p, err := pointer.Decode(r)
	if err != nil {
		if errors.Is(err, pointer.ErrMalformedPointer) {
			return pointer.Pointer{}, &Error{Kind: KindMalformedPointer, Path: path, Err: err}
		}
		return pointer.Pointer{}, &Error{Kind: KindIO, Path: path, Err: fmt.Errorf("reading pointer: %w", err)}
	}

	entry, err := f.store.Get(p.Hash)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return p, &Error{Kind: KindNotFound, Path: path, Hash: p.Hash, Root: f.store.Root(), Err: err}
		}
		return p, &Error{Kind: KindIO, Path: path, Hash: p.Hash, Root: f.store.Root(), Err: err}
	}
	defer entry.Close()

	if p.HasSize() && entry.Size() != p.Size {
		return p, &Error{
			Kind: KindCorrupt,
			Path: path,
			Hash: p.Hash,
			Root: f.store.Root(),
			Err:  fmt.Errorf("size %d does not match pointer size %d", entry.Size(), p.Size),
		}
	}

	if err := ctx.Err(); err != nil {
		return p, &Error{Kind: KindIO, Path: path, Hash: p.Hash, Root: f.store.Root(), Err: err}
	}
	if _, err := io.Copy(w, entry); err != nil {
		return p, &Error{Kind: KindIO, Path: path, Hash: p.Hash, Root: f.store.Root(), Err: fmt.Errorf("writing content: %w", err)}
	}
	f.logger.Debug("smudge", "path", path, "hash", p.Hash.Short(), "size", entry.Size())
	return p, nil
}
