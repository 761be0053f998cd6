package repository

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// DefaultStoreDir is the store directory name inside the git directory.
const DefaultStoreDir = "x-assets"

var (
	ErrNotRepository = errors.New("not in a git repository")
)

// Repository is a local git repository that uses the asset filter.
type Repository struct {
	repo     *git.Repository
	gitDir   string
	workTree string
}

// Discover opens the repository containing dir, looking in parent
// directories as git does.
func Discover(dir string) (*Repository, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	repo, err := git.PlainOpenWithOptions(abs, &git.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, abs)
		}
		return nil, err
	}

	r := &Repository{repo: repo}

	storage, ok := repo.Storer.(*filesystem.Storage)
	if !ok {
		return nil, fmt.Errorf("repository at %s is not stored on disk", abs)
	}
	r.gitDir = storage.Filesystem().Root()

	wt, err := repo.Worktree()
	switch {
	case err == nil:
		r.workTree = wt.Filesystem.Root()
	case errors.Is(err, git.ErrIsBareRepository):
	default:
		return nil, err
	}
	return r, nil
}

// GitDir returns the path of the .git directory.
func (r *Repository) GitDir() string {
	return r.gitDir
}

// WorkTree returns the root of the working tree, or "" for a bare
// repository.
func (r *Repository) WorkTree() string {
	return r.workTree
}

// StorePath returns the store root for this repository. The assets.store
// option in the repository config overrides the default of x-assets inside
// the git directory. Relative paths are resolved against the working tree.
func (r *Repository) StorePath() (string, error) {
	cfg, err := r.repo.Config()
	if err != nil {
		return "", fmt.Errorf("reading repository config: %w", err)
	}

	if path := cfg.Raw.Section("assets").Option("store"); path != "" {
		if filepath.IsAbs(path) {
			return path, nil
		}
		base := r.workTree
		if base == "" {
			base = r.gitDir
		}
		return filepath.Join(base, path), nil
	}
	return filepath.Join(r.gitDir, DefaultStoreDir), nil
}
