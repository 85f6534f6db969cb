package search

import (
	"time"

	"encore.app/cachefacade"
	"encore.app/pkg/coordinator"
	"encore.app/pkg/external"
	"encore.app/pkg/models"
	"encore.app/pkg/observability"
	"encore.app/pkg/typedcache"
	"encore.app/quota"

	"encore.app/orchestration"
)

var (
	catalog = external.StaticExternalCatalog{}
	store   = external.NewInMemoryPersistenceStore()

	cache = typedcache.New[models.Artifact](cachefacade.Shared(), "catalog_search", 30*time.Minute, typedcache.JSONCodec[models.Artifact]{})

	shared = orchestration.New(
		Hooks(catalog, store),
		cache,
		quota.Shared(),
		coordinator.Shared(),
		observability.Shared().Logger(),
		observability.Shared(),
	)
)

// Shared returns the process-wide catalog search Operation.
func Shared() *orchestration.Operation {
	return shared
}
