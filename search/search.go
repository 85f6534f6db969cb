// Package search wires OrchestratedOperation for catalog search: it
// never calls ChatModel, only ExternalCatalog, so it carries no
// QuotaKind — spec.md's quota kinds are explicitly AI-operation scoped,
// and search is a third-party lookup, not a model generation.
package search

import (
	"context"
	"time"

	"encore.app/orchestration"
	"encore.app/pkg/external"
	"encore.app/pkg/models"
)

// Hooks returns the orchestration.Hooks for catalog search.
func Hooks(catalog external.ExternalCatalog, store external.PersistenceStore) orchestration.Hooks {
	return orchestration.Hooks{
		FeatureName: "catalog_search",
		Kind:        models.KindSearchResult,
		Normalize: func(req orchestration.Request) (string, error) {
			return orchestration.NormalizeMap(req.RawInput)
		},
		Invoke: func(ctx context.Context, req orchestration.Request) ([]byte, models.ArtifactSource, error) {
			query, _ := req.RawInput["query"].(string)
			filters, _ := req.RawInput["filters"].(map[string]string)
			payload, err := catalog.Search(ctx, query, filters)
			if err != nil {
				return nil, "", err
			}
			return payload, models.SourceExternal, nil
		},
		// ExternalCatalog's contract is a JSON object with at least
		// "query" and "results"; a response that doesn't parse into that
		// shape is as unusable as a catalog error.
		Sanitize: orchestration.JSONArtifactSanitizer("query", "results"),
		Persist: func(ctx context.Context, artifact models.Artifact) error {
			return store.Save(ctx, artifact)
		},
		// No Fallback: a failed catalog lookup has no sensible template
		// result, it must surface as an error per spec.md §7.
		NormalTTL:    30 * time.Minute,
		FallbackTTL:  7*time.Minute + 30*time.Second,
		ModelTimeout: 5 * time.Second,
	}
}
