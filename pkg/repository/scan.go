package repository

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/wzshiming/gitassets/pkg/pointer"
)

// TrackedFile is a file in a commit that the filter applies to.
type TrackedFile struct {
	Path    string
	Pointer pointer.Pointer
	// Err is set when the committed blob is not a pointer, typically
	// because it was committed before the filter was configured.
	Err error
}

// GitAttributes reads every .gitattributes file in the tree at rev and
// returns the patterns for filter.
func (r *Repository) GitAttributes(rev, filter string) (*GitAttributes, error) {
	tree, err := r.tree(rev)
	if err != nil {
		return nil, err
	}
	return gitAttributesFromTree(tree, filter)
}

// ScanPointers decodes every file tracked by filter in the tree at rev.
// An empty rev means HEAD.
func (r *Repository) ScanPointers(rev, filter string) ([]TrackedFile, error) {
	tree, err := r.tree(rev)
	if err != nil {
		return nil, err
	}
	attrs, err := gitAttributesFromTree(tree, filter)
	if err != nil {
		return nil, err
	}

	var files []TrackedFile
	err = tree.Files().ForEach(func(f *object.File) error {
		if !f.Mode.IsFile() || !attrs.Tracked(f.Name) {
			return nil
		}

		reader, err := f.Reader()
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.Name, err)
		}
		p, err := pointer.Decode(reader)
		_ = reader.Close()

		tf := TrackedFile{Path: f.Name, Pointer: p}
		if err != nil {
			if !errors.Is(err, pointer.ErrMalformedPointer) {
				return fmt.Errorf("reading %s: %w", f.Name, err)
			}
			tf.Err = err
		}
		files = append(files, tf)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

func (r *Repository) tree(rev string) (*object.Tree, error) {
	if rev == "" {
		rev = "HEAD"
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve revision %q: %w", rev, err)
	}
	commit, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get commit %s: %w", hash, err)
	}
	return commit.Tree()
}

func gitAttributesFromTree(tree *object.Tree, filter string) (*GitAttributes, error) {
	var files []*object.File
	err := tree.Files().ForEach(func(f *object.File) error {
		if path.Base(f.Name) == ".gitattributes" && f.Mode.IsFile() {
			files = append(files, f)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Shallower files first so that deeper ones take precedence.
	sort.SliceStable(files, func(i, j int) bool {
		return strings.Count(files[i].Name, "/") < strings.Count(files[j].Name, "/")
	})

	attrs := &GitAttributes{filter: filter}
	for _, f := range files {
		content, err := f.Contents()
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f.Name, err)
		}
		base := path.Dir(f.Name)
		if base == "." {
			base = ""
		}
		attrs.add(base, content)
	}
	return attrs, nil
}
