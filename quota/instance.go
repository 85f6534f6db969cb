package quota

import (
	"encore.app/pkg/kv"
	"encore.app/pkg/observability"
)

// shared is the single Engine instance every OrchestratedOperation and
// the quota HTTP surface (service.go) reads and consumes against.
var shared = New(kv.NewInMemoryStore(), nil, DefaultConfig(), observability.Shared().Logger(), observability.Shared())

// Shared returns the process-wide Engine.
func Shared() *Engine {
	return shared
}
