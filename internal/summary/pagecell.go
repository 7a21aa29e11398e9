package summary

import (
	"context"
	"sync"
)

// PageCell is a write-once container for a fetched watch page. Several
// consumers in one request share the single fetch through it.
type PageCell struct {
	once     sync.Once
	done     chan struct{}
	body     []byte
	rendered bool
	err      error
}

// NewPageCell returns an unfulfilled cell.
func NewPageCell() *PageCell {
	return &PageCell{done: make(chan struct{})}
}

// Fulfill stores the fetch outcome. Calls after the first are ignored.
func (c *PageCell) Fulfill(body []byte, rendered bool, err error) {
	c.once.Do(func() {
		c.body = body
		c.rendered = rendered
		c.err = err
		close(c.done)
	})
}

// Await blocks until the cell is fulfilled or the context ends.
func (c *PageCell) Await(ctx context.Context) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case <-c.done:
		return c.body, c.rendered, c.err
	}
}
