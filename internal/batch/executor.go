// Package batch drives a remote operation over many items with a fixed
// number of calls in flight.
package batch

import (
	"context"

	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"catalog/importer/internal/result"

	log "github.com/sirupsen/logrus"
)

// DefaultLimit keeps bulk calls under the catalog service's rate limits.
const DefaultLimit = 20

type options struct {
	limit   int
	name    string
	counter *result.Counter
	onError func(error)
}

type Option func(*options)

// WithLimit sets the maximum number of operations in flight. Values below
// one fall back to DefaultLimit.
func WithLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.limit = n
		}
	}
}

// WithCounter records every item on c: the total before dispatch and one
// settle per item.
func WithCounter(c *result.Counter) Option {
	return func(o *options) {
		o.counter = c
	}
}

// WithName labels log lines for this batch.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithOnError is called once for every failed item, from the worker that
// ran it.
func WithOnError(fn func(error)) Option {
	return func(o *options) {
		o.onError = fn
	}
}

// Run calls op once for every item, never more than the configured limit at
// a time, and returns the number of items whose op failed. A failed item
// never stops the others; retrying is up to op. Once ctx is done the items
// not yet started are skipped instead of dispatched. Run returns only after
// every item has settled.
func Run[T any](ctx context.Context, items []T, op func(context.Context, T) error, opts ...Option) int {
	o := &options{limit: DefaultLimit, name: "batch"}
	for _, apply := range opts {
		if apply != nil {
			apply(o)
		}
	}

	if o.counter != nil {
		o.counter.AddTotal(len(items))
	}
	if len(items) == 0 {
		return 0
	}

	log.Debugf("🚀 Running %s: %d items, %d in flight", o.name, len(items), o.limit)

	var (
		g       errgroup.Group
		failed  atomic.Int64
		skipped atomic.Int64
	)
	g.SetLimit(o.limit)

	for _, item := range items {
		g.Go(func() error {
			if ctx.Err() != nil {
				skipped.Inc()
				if o.counter != nil {
					o.counter.Skip()
				}
				return nil
			}
			err := op(ctx, item)
			if err != nil {
				failed.Inc()
				log.Debugf("❌ %s item failed: %v", o.name, err)
				if o.onError != nil {
					o.onError(err)
				}
			}
			if o.counter != nil {
				o.counter.Settle(err)
			}
			// Failures stay with the item; the group must never cancel siblings.
			return nil
		})
	}

	_ = g.Wait()

	n := int(failed.Load())
	if k := skipped.Load(); k > 0 {
		log.Warnf("🛑 %s stopped: %d/%d items skipped: %v", o.name, k, len(items), context.Cause(ctx))
	}
	if n > 0 {
		log.Warnf("⚠️ %s finished with %d/%d failed items", o.name, n, len(items))
	} else {
		log.Debugf("✅ %s finished: %d items", o.name, len(items))
	}
	return n
}
