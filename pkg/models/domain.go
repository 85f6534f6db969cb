package models

import "time"

// QuotaKind enumerates the quota-metered operations tracked by QuotaEngine.
type QuotaKind string

const (
	QuotaAIRecipeGeneration  QuotaKind = "AI_RECIPE_GENERATION"
	QuotaAINutritionAdvice   QuotaKind = "AI_NUTRITION_ADVICE"
	QuotaPoseAnalysis        QuotaKind = "POSE_ANALYSIS"
)

// WindowPeriod describes how a QuotaKind's reset window is aligned.
type WindowPeriod string

const (
	WindowDaily  WindowPeriod = "daily"
	WindowWeekly WindowPeriod = "weekly" // resets Monday 00:00 local
)

// QuotaLimit is the static configuration for a QuotaKind: its ceiling and
// how its window is aligned to the calendar.
type QuotaLimit struct {
	Kind   QuotaKind
	Limit  int
	Period WindowPeriod
}

// DefaultQuotaLimits mirrors the fixed table: AI_RECIPE_GENERATION is
// daily/10, AI_NUTRITION_ADVICE is weekly(Monday)/5, POSE_ANALYSIS is
// daily/20.
var DefaultQuotaLimits = map[QuotaKind]QuotaLimit{
	QuotaAIRecipeGeneration: {Kind: QuotaAIRecipeGeneration, Limit: 10, Period: WindowDaily},
	QuotaAINutritionAdvice:  {Kind: QuotaAINutritionAdvice, Limit: 5, Period: WindowWeekly},
	QuotaPoseAnalysis:       {Kind: QuotaPoseAnalysis, Limit: 20, Period: WindowDaily},
}

// QuotaRecord is a single user's consumption counter for one QuotaKind
// within the window that is currently open.
type QuotaRecord struct {
	UserID      string
	Kind        QuotaKind
	WindowStart time.Time
	WindowEnd   time.Time
	Consumed    int64 // atomic via QuotaEngine's storage layer
}

// Remaining returns how many more operations the user may perform before
// hitting the limit, never negative.
func (r QuotaRecord) Remaining(limit int) int {
	left := int64(limit) - r.Consumed
	if left < 0 {
		return 0
	}
	return int(left)
}

// IsWithinWindow reports whether now still falls inside this record's
// open window; once it returns false the engine must roll the record to
// a freshly computed window before consuming further.
func (r QuotaRecord) IsWithinWindow(now time.Time) bool {
	return !now.Before(r.WindowStart) && now.Before(r.WindowEnd)
}

// OperationFingerprint identifies a cacheable unit of work passed into
// OrchestratedOperation: same fingerprint means same cached result is
// reusable, different inputs change it.
type OperationFingerprint struct {
	FeatureName string // e.g. "meal_plan_generation"
	UserID      string
	InputHash   string // stable hash of normalized operation inputs
	ProfileRev  string // profile revision the inputs were derived from
}

// CacheKey derives the "<user>:<input hash>:<profile rev>" part of the
// cache key; FeatureName is not part of it, and the orchestration pipeline
// prefixes it to form the facade-level key.
func (f OperationFingerprint) CacheKey() string {
	return f.UserID + ":" + f.InputHash + ":" + f.ProfileRev
}

// ArtifactSource records how an Artifact came to exist.
type ArtifactSource string

const (
	SourceCache    ArtifactSource = "cache"
	SourceModel    ArtifactSource = "model"
	SourceFallback ArtifactSource = "fallback"
	SourceExternal ArtifactSource = "external"
)

// ArtifactKind distinguishes which feature produced an Artifact, so one
// TypedCacheStore[Artifact] and one OrchestratedOperation pipeline type
// can serve every feature.
type ArtifactKind string

const (
	KindMealPlan         ArtifactKind = "meal_plan"
	KindNutritionInsight ArtifactKind = "nutrition_insight"
	KindRecipe           ArtifactKind = "recipe"
	KindSearchResult     ArtifactKind = "search_result"
)

// Artifact is the typed result of an orchestrated operation, wrapping the
// origin payload together with the provenance needed to decide whether a
// cached copy is still trustworthy.
type Artifact struct {
	Kind        ArtifactKind
	Fingerprint OperationFingerprint
	Payload     []byte
	GeneratedAt time.Time
	Source      ArtifactSource

	// AdvisoryMismatch flags that the model's output deviates from the
	// user's intrinsic targets by more than the tolerated margin; this is
	// surfaced to the UI, it is not treated as a failure.
	AdvisoryMismatch bool
}

// LeaderboardEntry is one ranked row of a LeaderboardSnapshot.
type LeaderboardEntry struct {
	UserID      string
	DisplayName string
	Score       float64
	Streak      int
	StreakStart time.Time
	Rank        int
}

// LeaderboardSnapshot is an immutable, versioned view of a scope's
// ranking, recomputed on a schedule or on demand and served from cache
// between recomputes.
type LeaderboardSnapshot struct {
	Scope       string
	Version     int64
	ComputedAt  time.Time
	Entries     []LeaderboardEntry
}

// TopN returns at most n entries from the snapshot, already rank-ordered.
func (s LeaderboardSnapshot) TopN(n int) []LeaderboardEntry {
	if n >= len(s.Entries) {
		return s.Entries
	}
	return s.Entries[:n]
}
