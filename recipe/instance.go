package recipe

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
	model = external.StaticChatModel{}
	store = external.NewInMemoryPersistenceStore()

	cache = typedcache.New[models.Artifact](cachefacade.Shared(), "recipe_generation", 24*time.Hour, typedcache.JSONCodec[models.Artifact]{})

	shared = orchestration.New(
		Hooks(model, store),
		cache,
		quota.Shared(),
		coordinator.Shared(),
		observability.Shared().Logger(),
		observability.Shared(),
	)
)

// Shared returns the process-wide recipe generation Operation.
func Shared() *orchestration.Operation {
	return shared
}
