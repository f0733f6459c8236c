package client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/sagarc03/manta"
)

// Mkdirp creates the directory at p along with every missing parent below
// the namespace root. Directories are created one at a time, parents first,
// and the first failure stops the chain. Directories created before the
// failure are left in place.
//
// A path that resolves to a namespace root, or to no storage hierarchy at
// all, fails with *manta.InvalidDirectoryError before any request is sent.
func (c *Client) Mkdirp(ctx context.Context, p string, opts RequestOptions) error {
	target := c.resolve(p)
	chain := target.Ancestors()
	if target.Root() == "" || len(chain) == 0 {
		return &manta.InvalidDirectoryError{Path: target.String()}
	}

	// one correlation id across the whole chain
	if opts.RequestID == "" {
		opts.RequestID = uuid.NewString()
	}

	log := c.log.With("op", "mkdirp", "path", target.String(), "req_id", opts.RequestID)
	log.Debug("mkdirp: entered", "dirs", len(chain))

	for _, dir := range chain {
		if err := c.Mkdir(ctx, dir, opts); err != nil {
			log.Debug("mkdirp: error", "dir", dir, "err", err)
			return fmt.Errorf("mkdirp %s: %w", dir, err)
		}
	}

	log.Debug("mkdirp: done")
	return nil
}
