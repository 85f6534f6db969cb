// Package external declares the narrow interfaces this layer depends on
// for the collaborators that sit outside the Request Orchestration &
// Caching Layer's scope — the LLM chat model, the third-party recipe/
// video catalog, and durable persistence — plus minimal stand-ins so the
// orchestration pipeline has something concrete to run against. Real
// clients (an actual chat completion API, a catalog HTTP client, a SQL
// table) are out of scope the same way ProfileRevisionLookup draws a
// boundary around profile data and ActivitySource around streak data.
package external

import (
	"context"
	"fmt"

	"encore.app/pkg/models"
)

// ChatModel completes a prompt against a large language model.
type ChatModel interface {
	Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error)
}

// ExternalCatalog looks up third-party recipe/video results for a query.
type ExternalCatalog interface {
	Search(ctx context.Context, query string, filters map[string]string) ([]byte, error)
}

// PersistenceStore durably stores a produced Artifact.
type PersistenceStore interface {
	Save(ctx context.Context, artifact models.Artifact) error
}

// StaticChatModel is a ChatModel stand-in that echoes a deterministic
// payload derived from the prompt, so the pipeline's model stage has
// something real to call without an actual completion API wired.
type StaticChatModel struct{}

func (StaticChatModel) Complete(ctx context.Context, prompt string, maxTokens int, temperature float64) (string, error) {
	if prompt == "" {
		return "", fmt.Errorf("empty prompt")
	}
	return fmt.Sprintf(`{"prompt_echo":%q,"max_tokens":%d}`, prompt, maxTokens), nil
}

// StaticExternalCatalog is an ExternalCatalog stand-in returning a fixed
// shape keyed by the query, so search has a real (if canned) source.
type StaticExternalCatalog struct{}

func (StaticExternalCatalog) Search(ctx context.Context, query string, filters map[string]string) ([]byte, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query")
	}
	return []byte(fmt.Sprintf(`{"query":%q,"results":[]}`, query)), nil
}

// InMemoryPersistenceStore is a PersistenceStore stand-in backed by a
// process-local map, standing in for the relational store this layer
// depends on but does not own.
type InMemoryPersistenceStore struct {
	artifacts map[string]models.Artifact
}

func NewInMemoryPersistenceStore() *InMemoryPersistenceStore {
	return &InMemoryPersistenceStore{artifacts: make(map[string]models.Artifact)}
}

func (s *InMemoryPersistenceStore) Save(ctx context.Context, artifact models.Artifact) error {
	s.artifacts[artifact.Fingerprint.CacheKey()] = artifact
	return nil
}
