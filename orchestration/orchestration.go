// Package orchestration implements OrchestratedOperation: the canonical
// fingerprint→cache→quota→singleflight→model→consume→persist→fallback
// pipeline shared by every expensive user-facing feature.
//
// Grounded in the teacher's cache-manager/service.go Get (cache lookup →
// singleflight → fetchWithFallback), generalized from a 2-stage
// cache-aside read into the full 8-stage pipeline, and in
// warming/service.go's Strategy-interface composition style for how
// per-feature hooks plug into one shared pipeline body.
package orchestration

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"encore.app/pkg/apperr"
	"encore.app/pkg/coordinator"
	"encore.app/pkg/models"
	"encore.app/pkg/observability"
	"encore.app/pkg/typedcache"
	"encore.app/quota"
)

// Request is the inbound ask for one run of the pipeline: a feature-
// specific payload plus the identity needed to fingerprint and meter it.
type Request struct {
	UserID     string
	ProfileRev string
	RawInput   map[string]any
}

// Hooks are the feature-specific behaviors the pipeline calls out to.
// Each OrchestratedOperation instantiation (meal plan, insight, recipe,
// search) supplies its own.
type Hooks struct {
	// FeatureName identifies the operation for fingerprinting, metrics
	// and cache namespacing, e.g. "meal_plan_generation".
	FeatureName string

	// Kind discriminates which feature produced an Artifact in the
	// shared typedcache.Store[Artifact]. Set once here rather than by
	// Persist, which only ever sees its own by-value copy of the
	// artifact the pipeline caches and returns.
	Kind models.ArtifactKind

	// QuotaKind is the quota metered against this operation, or "" if the
	// operation is unmetered (search's ExternalCatalog-only path).
	QuotaKind models.QuotaKind

	// Normalize derives stable, order-independent input bytes from
	// Request.RawInput for fingerprinting: keys sorted, whitespace
	// collapsed, case-folded where semantically irrelevant.
	Normalize func(req Request) (string, error)

	// Invoke calls the model/external catalog and returns the raw
	// artifact payload plus the source it should be attributed to.
	// Invoked only by the single-flight leader.
	Invoke func(ctx context.Context, req Request) ([]byte, models.ArtifactSource, error)

	// Persist durably stores the artifact; called before caching so the
	// cache never references an un-persisted id.
	Persist func(ctx context.Context, artifact models.Artifact) error

	// Fallback synthesizes a template artifact when Invoke fails and a
	// fallback is configured. Nil means no fallback: failures surface.
	Fallback func(ctx context.Context, req Request) ([]byte, error)

	// AdvisoryCheck reports whether the produced artifact deviates from
	// the user's targets enough to flag AdvisoryMismatch. Optional.
	AdvisoryCheck func(req Request, payload []byte) bool

	// Sanitize tolerantly parses Invoke's raw payload into the artifact
	// shape this feature expects — stripping prose/code fences and
	// validating a schema — before it is cached, persisted or advisory-
	// checked. Nil means the payload is used as-is, for features whose
	// artifact isn't a JSON object. A non-nil Sanitize that errors is a
	// stage-5 parse failure: the same path as an Invoke error, routed to
	// Fallback (or surfaced as MODEL_MALFORMED with no fallback
	// configured). Build one with JSONArtifactSanitizer.
	Sanitize func(payload []byte) ([]byte, error)

	NormalTTL    time.Duration
	FallbackTTL  time.Duration
	ModelTimeout time.Duration
}

// Operation is one instantiated OrchestratedOperation, e.g. meal plan
// generation bound to its own Hooks.
type Operation struct {
	hooks        Hooks
	cache        *typedcache.Store[models.Artifact]
	quotaEngine  *quota.Engine
	singleFlight *coordinator.SingleFlightCoordinator
	log          *zap.Logger
	observe      *observability.Hooks
}

// New constructs an Operation. cache must be a typedcache.Store[Artifact]
// namespaced for this feature.
func New(hooks Hooks, cache *typedcache.Store[models.Artifact], quotaEngine *quota.Engine,
	singleFlight *coordinator.SingleFlightCoordinator, log *zap.Logger, observe *observability.Hooks) *Operation {
	return &Operation{
		hooks: hooks, cache: cache, quotaEngine: quotaEngine,
		singleFlight: singleFlight, log: log, observe: observe,
	}
}

// Run executes the pipeline end to end and returns the resulting
// Artifact, or a taxonomy error.
func (o *Operation) Run(ctx context.Context, req Request) (models.Artifact, error) {
	start := time.Now()

	// Stage 1: fingerprint. Including the profile revision means a
	// profile edit naturally produces a cache miss instead of needing
	// explicit drift detection.
	inputHash, err := o.hooks.Normalize(req)
	if err != nil {
		return models.Artifact{}, apperr.ValidationFailed("invalid operation input: " + err.Error())
	}
	fp := models.OperationFingerprint{
		FeatureName: o.hooks.FeatureName,
		UserID:      req.UserID,
		InputHash:   inputHash,
		ProfileRev:  req.ProfileRev,
	}
	cacheKey := o.hooks.FeatureName + ":" + fp.CacheKey()
	indexKey := req.UserID + ":idx:" + o.hooks.FeatureName

	// Stage 2: cache lookup. A hit with source != fallback short-circuits
	// and does not consume quota.
	if artifact, hit := o.cache.Get(ctx, cacheKey); hit && artifact.Source != models.SourceFallback {
		o.recordCompletion(start, string(artifact.Source), "hit")
		return artifact, nil
	}

	// Stage 3: quota check. Unmetered operations (QuotaKind == "") always
	// pass, per the search feature's no-quota binding.
	if o.hooks.QuotaKind != "" {
		usage, err := o.quotaEngine.Check(ctx, req.UserID, o.hooks.QuotaKind, nil)
		if err != nil {
			return models.Artifact{}, err
		}
		if usage.Exceeded {
			o.recordCompletion(start, "none", "quota_exceeded")
			return models.Artifact{}, apperr.QuotaExceeded("quota exceeded for " + string(o.hooks.QuotaKind))
		}
	}

	// Stage 4: single-flight. Followers receive the leader's result.
	result := o.singleFlight.Do(ctx, cacheKey, func(leaderCtx context.Context) (any, error) {
		return o.produce(leaderCtx, req, fp, cacheKey, indexKey)
	})

	if result.Err != nil {
		if result.Err == context.DeadlineExceeded || result.Err == context.Canceled {
			return models.Artifact{}, apperr.DeadlineExceeded(result.Err)
		}
		o.recordCompletion(start, "none", "error")
		return models.Artifact{}, result.Err
	}

	artifact := result.Value.(models.Artifact)
	o.recordCompletion(start, string(artifact.Source), "ok")
	return artifact, nil
}

// produce runs stages 5-8 for the single-flight leader: model invocation,
// quota consume, persist, cache, and fallback-on-failure.
func (o *Operation) produce(ctx context.Context, req Request, fp models.OperationFingerprint, cacheKey, indexKey string) (models.Artifact, error) {
	modelCtx := ctx
	var cancel context.CancelFunc
	if o.hooks.ModelTimeout > 0 {
		modelCtx, cancel = context.WithTimeout(ctx, o.hooks.ModelTimeout)
		defer cancel()
	}

	modelStart := time.Now()
	payload, source, invokeErr := o.hooks.Invoke(modelCtx, req)
	o.observe.ModelCallDuration(o.hooks.FeatureName, time.Since(modelStart).Seconds())

	if invokeErr != nil {
		return o.fallback(ctx, req, fp, cacheKey, indexKey, invokeErr)
	}

	// Stage 5b: tolerant parse. A model/catalog response that never
	// resolves to a valid artifact is a parse failure, not a usable
	// result — it must not reach quota consume, persist or cache below.
	if o.hooks.Sanitize != nil {
		sanitized, sanitizeErr := o.hooks.Sanitize(payload)
		if sanitizeErr != nil {
			return o.fallback(ctx, req, fp, cacheKey, indexKey, apperr.ModelMalformed(sanitizeErr))
		}
		payload = sanitized
	}

	artifact := models.Artifact{Kind: o.hooks.Kind, Fingerprint: fp, Payload: payload, GeneratedAt: time.Now(), Source: source}
	if o.hooks.AdvisoryCheck != nil {
		artifact.AdvisoryMismatch = o.hooks.AdvisoryCheck(req, payload)
	}

	// Stage 6: quota consume, leader-only, after a successful model call.
	// A race-lost consume still returns the artifact to this caller, just
	// uncached and unpersisted — the caller already paid with latency.
	if o.hooks.QuotaKind != "" {
		if _, err := o.quotaEngine.Consume(ctx, req.UserID, o.hooks.QuotaKind, 1, nil); err != nil {
			if apperr.CodeOf(err) == apperr.CodeQuotaExceeded {
				return artifact, nil
			}
			return models.Artifact{}, err
		}
	}

	// Stage 7: persist then cache, in that order, so the cache never
	// references an un-persisted artifact.
	if err := o.hooks.Persist(ctx, artifact); err != nil {
		return models.Artifact{}, apperr.PersistenceFailed(err)
	}
	if err := o.cache.PutWithTTL(ctx, indexKey, cacheKey, artifact, o.hooks.NormalTTL); err != nil {
		o.log.Warn("artifact cache write degraded", zap.String("feature", o.hooks.FeatureName), zap.Error(err))
	}
	return artifact, nil
}

// fallback handles stage 8: synthesize, persist, and cache a degraded
// artifact at a quarter TTL when the model stage failed and a fallback
// producer is configured.
func (o *Operation) fallback(ctx context.Context, req Request, fp models.OperationFingerprint, cacheKey, indexKey string, cause error) (models.Artifact, error) {
	if o.hooks.Fallback == nil {
		return models.Artifact{}, classifyModelFailure(cause)
	}

	payload, err := o.hooks.Fallback(ctx, req)
	if err != nil {
		return models.Artifact{}, classifyModelFailure(cause)
	}

	artifact := models.Artifact{Kind: o.hooks.Kind, Fingerprint: fp, Payload: payload, GeneratedAt: time.Now(), Source: models.SourceFallback}
	if err := o.hooks.Persist(ctx, artifact); err != nil {
		return models.Artifact{}, apperr.PersistenceFailed(err)
	}

	fallbackTTL := o.hooks.FallbackTTL
	if fallbackTTL <= 0 {
		fallbackTTL = o.hooks.NormalTTL / 4
	}
	if err := o.cache.PutWithTTL(ctx, indexKey, cacheKey, artifact, fallbackTTL); err != nil {
		o.log.Warn("fallback artifact cache write degraded", zap.String("feature", o.hooks.FeatureName), zap.Error(err))
	}
	return artifact, nil
}

func classifyModelFailure(cause error) error {
	if ae, ok := apperr.As(cause); ok {
		return ae
	}
	return apperr.ModelUnavailable(cause)
}

func (o *Operation) recordCompletion(start time.Time, source, outcome string) {
	o.observe.OperationCompleted(o.hooks.FeatureName, source, outcome)
	o.observe.OperationDuration(o.hooks.FeatureName, source, time.Since(start).Seconds())
}

// NormalizeWhitespace is a helper Normalize implementations can use to
// collapse and case-fold free-text fields before hashing.
func NormalizeWhitespace(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ArtifactResponse is the wire shape every feature HTTP endpoint returns,
// shared so the four feature services don't each redeclare an identical
// response envelope.
type ArtifactResponse struct {
	Source           models.ArtifactSource `json:"source"`
	GeneratedAt      string                `json:"generatedAt"`
	Payload          []byte                `json:"payload"`
	AdvisoryMismatch bool                  `json:"advisoryMismatch"`
}

// NewArtifactResponse adapts a models.Artifact to its wire shape.
func NewArtifactResponse(artifact models.Artifact) *ArtifactResponse {
	return &ArtifactResponse{
		Source:           artifact.Source,
		GeneratedAt:      artifact.GeneratedAt.Format(time.RFC3339),
		Payload:          artifact.Payload,
		AdvisoryMismatch: artifact.AdvisoryMismatch,
	}
}
