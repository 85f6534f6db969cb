// Package coordinator provides single-flight request coalescing for the
// orchestration pipeline: concurrent callers asking for the same
// fingerprint share one in-flight origin call instead of each driving
// their own.
package coordinator

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// Result is what Do returns to every waiter sharing a call, including
// whether this particular waiter got a freshly computed value or one
// shared from another in-flight caller.
type Result struct {
	Value   any
	Shared  bool
	Err     error
}

// SingleFlightCoordinator coalesces concurrent calls keyed by fingerprint
// so only one of them executes fn at a time; the rest block on its
// result. It wraps golang.org/x/sync/singleflight.Group with context
// awareness, since the bare Group has no way for an individual caller to
// abandon a wait once their own deadline elapses.
type SingleFlightCoordinator struct {
	group singleflight.Group
}

// New creates a coordinator with no in-flight calls.
func New() *SingleFlightCoordinator {
	return &SingleFlightCoordinator{}
}

// shared is the process-wide coordinator every OrchestratedOperation
// instantiation coalesces through; safe to share across features since
// every caller's key is already namespaced by feature name.
var shared = New()

// Shared returns the process-wide SingleFlightCoordinator.
func Shared() *SingleFlightCoordinator {
	return shared
}

// Do executes fn for key, or waits for an identical in-flight call to
// finish and reuses its result. If ctx is cancelled before the shared
// call completes, Do returns ctx.Err() for this caller without affecting
// the in-flight call or any other waiter.
//
// Known divergence: the leader call runs until fn returns on its own,
// with no per-fingerprint deadline and no cancellation even if every
// waiter (including the one that started it) abandons ctx. A future
// caller for the same key still joins whatever is left running. Wiring
// in an all-callers-abandoned cancellation would need a waiter refcount
// around group.DoChan, which singleflight.Group doesn't expose.
func (c *SingleFlightCoordinator) Do(ctx context.Context, key string, fn func(context.Context) (any, error)) Result {
	resultCh := c.group.DoChan(key, func() (any, error) {
		// The origin context belongs to whichever caller happened to start
		// the call; it intentionally outlives any single waiter's ctx so a
		// cancelled waiter doesn't abort the work other callers depend on.
		return fn(context.WithoutCancel(ctx))
	})

	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	case res := <-resultCh:
		return Result{Value: res.Val, Shared: res.Shared, Err: res.Err}
	}
}

// Forget drops any in-flight or cached call state for key so the next Do
// starts fresh. Used after an invalidation so a stale in-flight result
// isn't handed to new callers.
func (c *SingleFlightCoordinator) Forget(key string) {
	c.group.Forget(key)
}
