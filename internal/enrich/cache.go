// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package enrich

import (
	"errors"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/pdiddy/litmine/internal/fulltext"
)

// resolveCache memoises PMID to PMCID lookups for the lifetime of one pass.
// Only settled answers are kept: a link, or the absence of one. Transport
// failures are not cached so a duplicate later in the pass tries again.
type resolveCache struct {
	mu      sync.Mutex
	entries map[string]resolution
	group   singleflight.Group
}

type resolution struct {
	pmcid string
	err   error
}

func newResolveCache() *resolveCache {
	return &resolveCache{entries: make(map[string]resolution)}
}

// resolve returns the cached answer for pmid or calls lookup once, sharing
// its result with concurrent callers for the same pmid.
func (c *resolveCache) resolve(pmid string, lookup func() (string, error)) (string, error) {
	c.mu.Lock()
	r, ok := c.entries[pmid]
	c.mu.Unlock()
	if ok {
		return r.pmcid, r.err
	}

	v, err, _ := c.group.Do(pmid, func() (any, error) {
		c.mu.Lock()
		r, ok := c.entries[pmid]
		c.mu.Unlock()
		if ok {
			return r.pmcid, r.err
		}
		pmcid, err := lookup()
		if err == nil || errors.Is(err, fulltext.ErrNoSecondaryID) {
			c.mu.Lock()
			c.entries[pmid] = resolution{pmcid: pmcid, err: err}
			c.mu.Unlock()
		}
		return pmcid, err
	})
	pmcid, _ := v.(string)
	return pmcid, err
}
