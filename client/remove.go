package client

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sagarc03/manta"
)

// removeListLimit is the page size used while walking a tree.
const removeListLimit = 10240

// RemoveAll deletes p and everything below it.
//
// The tree is walked concurrently. Objects are deleted as soon as they are
// listed; directories are collected and, once the walk has drained, deleted
// one at a time in descending lexicographic order so every directory goes
// after its descendants. Namespace roots are emptied but never deleted.
//
// The first failure stops new work from being issued. Requests already in
// flight are allowed to finish, and nothing already deleted is restored.
// RemoveAll returns once, with nil or the first error observed.
func (c *Client) RemoveAll(ctx context.Context, p string, opts RequestOptions) error {
	target := c.resolve(p)
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}

	w := &treeWalk{
		c:    c,
		opts: opts,
		log:  c.log.With("op", "rmr", "path", target.String(), "req_id", opts.RequestID),
	}
	if c.concurrency > 0 {
		w.sem = semaphore.NewWeighted(int64(c.concurrency))
	}
	w.log.Debug("rmr: entered")

	var g errgroup.Group
	w.walk(ctx, &g, target.String())
	if err := g.Wait(); err != nil {
		w.log.Debug("rmr: error", "err", err)
		return err
	}

	dirs := w.directories()
	sort.Sort(sort.Reverse(sort.StringSlice(dirs)))
	for _, dir := range dirs {
		if manta.ParsePath(dir).IsRoot() {
			continue
		}
		if err := w.unlink(ctx, dir); err != nil {
			w.log.Debug("rmr: error", "dir", dir, "err", err)
			return err
		}
	}

	w.log.Debug("rmr: done", "dirs", len(dirs))
	return nil
}

// treeWalk holds the state shared by every branch of one RemoveAll.
type treeWalk struct {
	c    *Client
	opts RequestOptions
	log  *slog.Logger
	sem  *semaphore.Weighted

	failed atomic.Bool

	mu   sync.Mutex
	dirs []string
}

// walk records dir and lists it on its own goroutine. Objects found are
// deleted on goroutines of their own, directories are walked recursively.
func (w *treeWalk) walk(ctx context.Context, g *errgroup.Group, dir string) {
	w.mu.Lock()
	w.dirs = append(w.dirs, dir)
	w.mu.Unlock()

	w.spawn(g, func() error {
		listing, err := w.list(ctx, dir)
		if err != nil {
			return err
		}
		defer func() { _ = listing.Close() }()

		for entry, err := range listing.All() {
			if err != nil {
				return err
			}
			if w.failed.Load() {
				return nil
			}

			child := dir + "/" + entry.Name
			switch entry.Kind {
			case manta.KindDirectory:
				w.walk(ctx, g, child)
			case manta.KindObject:
				w.spawn(g, func() error {
					return w.unlink(ctx, child)
				})
			}
		}
		return nil
	})
}

// spawn runs fn on g unless a branch has already failed.
func (w *treeWalk) spawn(g *errgroup.Group, fn func() error) {
	if w.failed.Load() {
		return
	}
	g.Go(func() error {
		if w.failed.Load() {
			return nil
		}
		if err := fn(); err != nil {
			w.failed.Store(true)
			return err
		}
		return nil
	})
}

func (w *treeWalk) list(ctx context.Context, dir string) (*Listing, error) {
	release, err := w.acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	return w.c.List(ctx, dir, ListOptions{RequestOptions: w.opts, Limit: removeListLimit})
}

func (w *treeWalk) unlink(ctx context.Context, p string) error {
	release, err := w.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()

	if err := w.c.Unlink(ctx, p, w.opts); err != nil {
		return err
	}
	w.c.metrics.Deleted()
	return nil
}

// acquire bounds the requests in flight. The slot covers only the request
// itself so a branch waiting on its children never holds one.
func (w *treeWalk) acquire(ctx context.Context) (func(), error) {
	if w.sem == nil {
		return func() {}, nil
	}
	if err := w.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { w.sem.Release(1) }, nil
}

func (w *treeWalk) directories() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}
