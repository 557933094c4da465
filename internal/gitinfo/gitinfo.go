// Package gitinfo looks up when a source file last changed, preferring the
// committer time of the newest commit touching it and falling back to the
// file's modification time.
package gitinfo

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/spf13/afero"

	"github.com/conneroisu/folio/internal/logging"
	"github.com/conneroisu/folio/internal/paths"
)

var errStop = errors.New("stop iteration")

// Resolver answers lastUpdated queries for files under one directory tree.
// It is safe for concurrent use.
type Resolver struct {
	fs     afero.Fs
	logger logging.Logger

	repo *git.Repository
	top  string

	mu    sync.Mutex
	cache map[string]time.Time
}

// NewResolver opens the git repository containing dir, if any. A missing
// repository is not an error; every lookup then uses file times from fs.
// Git history is only consulted when fs is the OS filesystem.
func NewResolver(dir string, fs afero.Fs, logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Resolver{
		fs:     fs,
		logger: logger.WithComponent("gitinfo"),
		cache:  make(map[string]time.Time),
	}

	if _, ok := fs.(*afero.OsFs); !ok {
		return r
	}
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		r.logger.Debug(context.Background(), "no git repository, using file times", "dir", dir)
		return r
	}
	wt, err := repo.Worktree()
	if err != nil {
		return r
	}
	r.repo = repo
	r.top = wt.Filesystem.Root()
	return r
}

// HasRepository reports whether lookups consult git history.
func (r *Resolver) HasRepository() bool {
	return r.repo != nil
}

// LastUpdated returns the last change time of the file at the absolute path
// file. The zero time means nothing is known about it.
func (r *Resolver) LastUpdated(ctx context.Context, file string) time.Time {
	r.mu.Lock()
	if t, ok := r.cache[file]; ok {
		r.mu.Unlock()
		return t
	}
	r.mu.Unlock()

	t, err := r.fromGit(file)
	if err != nil || t.IsZero() {
		if err != nil {
			r.logger.Debug(ctx, "git lookup failed", "file", file, "error", err.Error())
		}
		t = r.fromFs(file)
	}

	r.mu.Lock()
	r.cache[file] = t
	r.mu.Unlock()
	return t
}

// Forget drops cached answers for the given files.
func (r *Resolver) Forget(files ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range files {
		delete(r.cache, f)
	}
}

func (r *Resolver) fromGit(file string) (time.Time, error) {
	if r.repo == nil {
		return time.Time{}, nil
	}
	abs, err := filepath.Abs(file)
	if err != nil {
		return time.Time{}, err
	}
	rel, err := paths.Rel(r.top, abs)
	if err != nil {
		return time.Time{}, nil
	}

	head, err := r.repo.Head()
	if err != nil {
		return time.Time{}, err
	}
	iter, err := r.repo.Log(&git.LogOptions{From: head.Hash(), FileName: &rel})
	if err != nil {
		return time.Time{}, err
	}
	defer iter.Close()

	var when time.Time
	err = iter.ForEach(func(c *object.Commit) error {
		when = c.Committer.When
		return errStop
	})
	if err != nil && !errors.Is(err, errStop) {
		return time.Time{}, err
	}
	return when, nil
}

func (r *Resolver) fromFs(file string) time.Time {
	if r.fs == nil {
		return time.Time{}
	}
	info, err := r.fs.Stat(file)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
