// Package quota implements QuotaEngine: per-user rate caps on expensive
// operations, aligned to calendar windows in the user's timezone, with
// atomic consume-or-reject semantics.
//
// Grounded in the teacher's pkg/middleware/ratelimit.go token-bucket
// tryConsume CAS loop (generalized here from a leaky/refilling bucket to
// a calendar-aligned counter backed by KVStore.IncrBy), and in
// cache-manager/service.go's atomic.Int64 counters for the read-only
// check path. allUsage fans out per-kind reads with
// golang.org/x/sync/errgroup, the same fan-out idiom used for
// Kubernetes resource-quota aggregation in the wider example pack.
package quota

import (
	"context"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"encore.app/pkg/apperr"
	"encore.app/pkg/kv"
	"encore.app/pkg/models"
	"encore.app/pkg/observability"
)

// BackendFailurePolicy governs consume's behavior when the KVStore is
// unreachable.
type BackendFailurePolicy string

const (
	// PolicyAllow fails open: consume succeeds optimistically and the
	// event is logged. Available for deployments that favor availability
	// over strict enforcement, but not the engine's default.
	PolicyAllow BackendFailurePolicy = "allow"
	// PolicyDeny fails closed: consume is rejected with an
	// UpstreamUnavailable error rather than risk uncapped spend. This is the
	// engine's default: a KVStore outage should not silently turn into
	// free, uncapped model/catalog spend.
	PolicyDeny BackendFailurePolicy = "deny"
)

// Config tunes backend-failure behavior. MaxCASAttempts is carried but not
// read: Consume makes a single atomic IncrBy and never retries.
type Config struct {
	OnBackendFailure BackendFailurePolicy
	MaxCASAttempts   int
}

// DefaultConfig is the conservative default: fail closed on backend
// failure, MaxCASAttempts 8. Overridable per deployment.
func DefaultConfig() Config {
	return Config{OnBackendFailure: PolicyDeny, MaxCASAttempts: 8}
}

// Usage is the read-facing view of a user's standing for one QuotaKind.
type Usage struct {
	Kind        models.QuotaKind `json:"type"`
	Limit       int              `json:"limit"`
	Used        int              `json:"used"`
	Remaining   int              `json:"remaining"`
	PeriodStart time.Time        `json:"periodStart"`
	PeriodEnd   time.Time        `json:"periodEnd"`
	ResetsAt    time.Time        `json:"resetsAt"`
	Exceeded    bool             `json:"exceeded"`
	Degraded    bool             `json:"degraded,omitempty"`
}

// Clock is injectable so window computation is deterministic in tests.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Engine is the QuotaEngine implementation.
type Engine struct {
	store  kv.Store
	clock  Clock
	config Config
	log    *zap.Logger
	hooks  *observability.Hooks
}

// New constructs an Engine.
func New(store kv.Store, clock Clock, config Config, log *zap.Logger, hooks *observability.Hooks) *Engine {
	if clock == nil {
		clock = systemClock{}
	}
	return &Engine{store: store, clock: clock, config: config, log: log, hooks: hooks}
}

// window computes the open window for kind as of now, in loc (the
// caller's timezone, falling back to server-local per spec §9).
func window(kind models.QuotaKind, now time.Time, loc *time.Location) (start, end time.Time) {
	limit := models.DefaultQuotaLimits[kind]
	now = now.In(loc)

	switch limit.Period {
	case models.WindowWeekly:
		// Monday 00:00 local as week start.
		offset := (int(now.Weekday()) + 6) % 7 // Monday=0 ... Sunday=6
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		start = dayStart.AddDate(0, 0, -offset)
		end = start.AddDate(0, 0, 7)
	default: // daily
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		end = start.AddDate(0, 0, 1)
	}
	return start, end
}

// recordKey follows the wire grammar quota:<kind>:<user_id>:<window_start>,
// window_start being the ISO date the window opens on (daily date or
// weekly Monday).
func recordKey(userID string, kind models.QuotaKind, windowStart time.Time) string {
	return "quota:" + string(kind) + ":" + userID + ":" + windowStart.Format("2006-01-02")
}

// Check is a pure read: it never mutates the backing record.
func (e *Engine) Check(ctx context.Context, userID string, kind models.QuotaKind, loc *time.Location) (Usage, error) {
	limit, ok := models.DefaultQuotaLimits[kind]
	if !ok {
		return Usage{}, apperr.ValidationFailed("unknown quota kind")
	}
	if loc == nil {
		loc = time.Local
	}

	start, end := window(kind, e.clock.Now(), loc)
	key := recordKey(userID, kind, start)

	raw, hit, err := e.store.Get(ctx, key)
	if err != nil {
		return Usage{
			Kind: kind, Limit: limit.Limit, PeriodStart: start, PeriodEnd: end,
			ResetsAt: end, Degraded: true,
		}, nil
	}

	used := 0
	if hit {
		used = parseCount(raw)
	}

	return Usage{
		Kind:        kind,
		Limit:       limit.Limit,
		Used:        used,
		Remaining:   max0(limit.Limit - used),
		PeriodStart: start,
		PeriodEnd:   end,
		ResetsAt:    end,
		Exceeded:    used >= limit.Limit,
	}, nil
}

// Consume atomically increments usage by units and returns the resulting
// Usage, or an apperr QUOTA_EXCEEDED error if the increment pushed used
// past limit (in which case the increment is compensated/rolled back).
func (e *Engine) Consume(ctx context.Context, userID string, kind models.QuotaKind, units int, loc *time.Location) (Usage, error) {
	limit, ok := models.DefaultQuotaLimits[kind]
	if !ok {
		return Usage{}, apperr.ValidationFailed("unknown quota kind")
	}
	if loc == nil {
		loc = time.Local
	}
	if units <= 0 {
		units = 1
	}

	start, end := window(kind, e.clock.Now(), loc)
	key := recordKey(userID, kind, start)
	ttl := time.Until(end) + time.Hour

	newUsed, err := e.store.IncrBy(ctx, key, int64(units), ttl)
	if err != nil {
		if e.config.OnBackendFailure == PolicyDeny {
			return Usage{}, apperr.UpstreamUnavailable(err)
		}
		e.log.Warn("quota backend unavailable, failing open",
			zap.String("user_id", userID), zap.String("kind", string(kind)), zap.Error(err))
		return Usage{
			Kind: kind, Limit: limit.Limit, Used: 0, Remaining: limit.Limit,
			PeriodStart: start, PeriodEnd: end, ResetsAt: end, Degraded: true,
		}, nil
	}

	if int(newUsed) > limit.Limit {
		// Compensate: this caller's increment pushed past the cap, undo it
		// so the counter reflects only successful consumes.
		_, _ = e.store.IncrBy(ctx, key, -int64(units), ttl)
		e.hooks.QuotaConsumed(string(kind), true)
		return Usage{}, apperr.QuotaExceeded("quota exceeded for " + string(kind))
	}

	e.hooks.QuotaConsumed(string(kind), false)
	return Usage{
		Kind:        kind,
		Limit:       limit.Limit,
		Used:        int(newUsed),
		Remaining:   max0(limit.Limit - int(newUsed)),
		PeriodStart: start,
		PeriodEnd:   end,
		ResetsAt:    end,
	}, nil
}

// Reset deletes the backing record for (user, kind)'s current window.
func (e *Engine) Reset(ctx context.Context, userID string, kind models.QuotaKind, loc *time.Location) error {
	if _, ok := models.DefaultQuotaLimits[kind]; !ok {
		return apperr.ValidationFailed("unknown quota kind")
	}
	if loc == nil {
		loc = time.Local
	}
	start, _ := window(kind, e.clock.Now(), loc)
	return e.store.Delete(ctx, recordKey(userID, kind, start))
}

// AllUsage reads every QuotaKind's Usage for userID in parallel.
func (e *Engine) AllUsage(ctx context.Context, userID string, loc *time.Location) (map[models.QuotaKind]Usage, error) {
	results := make(map[models.QuotaKind]Usage, len(models.DefaultQuotaLimits))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for kind := range models.DefaultQuotaLimits {
		kind := kind
		g.Go(func() error {
			usage, err := e.Check(gctx, userID, kind, loc)
			if err != nil {
				return err
			}
			mu.Lock()
			results[kind] = usage
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func parseCount(raw []byte) int {
	n, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0
	}
	return n
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
