package cachefacade

import (
	"context"

	"encore.app/invalidation"
	"encore.app/pkg/kv"
	"encore.app/pkg/observability"
)

// invalidationNotifier adapts the invalidation package's HTTP-exposed
// operations to the Notifier interface, so a Facade's invalidations are
// broadcast and audited the same way regardless of which feature service
// triggered them.
type invalidationNotifier struct{}

func (invalidationNotifier) NotifyEntry(ctx context.Context, namespace, indexKey, key string) {
	_, _ = invalidation.InvalidateEntries(ctx, &invalidation.InvalidateEntriesRequest{
		Namespace:   namespace,
		IndexKey:    indexKey,
		Keys:        []string{key},
		TriggeredBy: "cache_facade",
	})
}

func (invalidationNotifier) NotifyNamespace(ctx context.Context, namespace, indexKey string) {
	_, _ = invalidation.InvalidateNamespace(ctx, &invalidation.InvalidateNamespaceRequest{
		Namespace:   namespace,
		IndexKey:    indexKey,
		TriggeredBy: "cache_facade",
	})
}

// shared is the single Facade instance every feature service caches
// artifacts through. Encore apps in a single deployable import each
// other's packages directly rather than through a separate composition
// root, so this mirrors how cache-manager/service.go's singleton is
// reached from warming/service.go.
var shared = New(kv.NewInMemoryStore(), DefaultConfig(), observability.Shared().Logger(), observability.Shared())

func init() {
	shared.SetNotifier(invalidationNotifier{})
}

// Shared returns the process-wide Facade every OrchestratedOperation
// instantiation caches artifacts through.
func Shared() *Facade {
	return shared
}
