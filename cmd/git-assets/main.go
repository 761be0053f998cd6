// Command git-assets is a git clean/smudge filter that keeps large file
// contents in a local content addressed store and commits small pointer
// records in their place.
//
// Configure it in a repository with:
//
//	git config filter.assets.clean "git-assets clean %f"
//	git config filter.assets.smudge "git-assets smudge %f"
//	git config filter.assets.required true
//	echo '*.bin filter=assets -text' >> .gitattributes
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/wzshiming/gitassets/pkg/filter"
	"github.com/wzshiming/gitassets/pkg/repository"
	"github.com/wzshiming/gitassets/pkg/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "git-assets: %v\n", err)
		os.Exit(filter.ExitCode(err))
	}
}

type globalOptions struct {
	store    string
	dir      string
	logLevel string

	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:           "git-assets",
		Short:         "Binary asset handling for git",
		Long:          `git-assets stores large file contents outside of git history and commits small pointer records instead.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(cmd.ErrOrStderr(), opts.logLevel)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.store, "store", "s", os.Getenv("GIT_ASSETS_STORE"), "Path of the asset store (default: assets.store from git config, or .git/x-assets)")
	flags.StringVarP(&opts.dir, "directory", "C", ".", "Run as if started in this directory")
	flags.StringVarP(&opts.logLevel, "log-level", "", envOr("GIT_ASSETS_LOG_LEVEL", "warn"), "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		newCleanCommand(opts),
		newSmudgeCommand(opts),
		newValidateCommand(opts),
		newLsCommand(opts),
		newScanCommand(opts),
	)
	return rootCmd
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// newLogger writes colored logs when w is a terminal. Git shows filter
// stderr to the user, so the default level is warn.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	noColor := true
	if f, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(f.Fd())
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      lvl,
		TimeFormat: "15:04:05.000",
		NoColor:    noColor,
	})), nil
}

// storeRoot resolves the store directory: the --store flag or
// GIT_ASSETS_STORE first, then the enclosing repository. The repository is
// only opened when needed or when withRepo is set.
func (o *globalOptions) storeRoot(withRepo bool) (string, *repository.Repository, error) {
	var repo *repository.Repository
	if o.store == "" || withRepo {
		r, err := repository.Discover(o.dir)
		if err != nil {
			if errors.Is(err, repository.ErrNotRepository) {
				return "", nil, &filter.Error{
					Kind: filter.KindNotRepository,
					Err:  fmt.Errorf("%w; pass --store to use a store outside of a repository", err),
				}
			}
			return "", nil, err
		}
		repo = r
	}

	if o.store != "" {
		return o.store, repo, nil
	}
	root, err := repo.StorePath()
	if err != nil {
		return "", nil, err
	}
	return root, repo, nil
}

func (o *globalOptions) openStore() (*store.Store, error) {
	st, _, err := o.open(false)
	return st, err
}

func (o *globalOptions) open(withRepo bool) (*store.Store, *repository.Repository, error) {
	root, repo, err := o.storeRoot(withRepo)
	if err != nil {
		return nil, nil, err
	}
	st, err := store.Open(root, store.WithLogger(o.logger))
	if err != nil {
		return nil, nil, &filter.Error{Kind: filter.KindIO, Err: err}
	}
	o.logger.Debug("opened store", "root", st.Root())
	return st, repo, nil
}

// workTreePath returns the path git passes as %f, if any.
func workTreePath(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}
