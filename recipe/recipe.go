// Package recipe wires OrchestratedOperation for single-recipe
// generation: fingerprint the caller's ingredient/constraint inputs,
// cache-aside against ChatModel, meter against AI_RECIPE_GENERATION —
// the same quota kind meal plans share, since both are recipe-bearing AI
// generations per spec.md's QuotaKind table.
package recipe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"encore.app/orchestration"
	"encore.app/pkg/external"
	"encore.app/pkg/models"
)

// Hooks returns the orchestration.Hooks for recipe generation.
func Hooks(model external.ChatModel, store external.PersistenceStore) orchestration.Hooks {
	return orchestration.Hooks{
		FeatureName: "recipe_generation",
		Kind:        models.KindRecipe,
		QuotaKind:   models.QuotaAIRecipeGeneration,
		Normalize: func(req orchestration.Request) (string, error) {
			return orchestration.NormalizeMap(req.RawInput)
		},
		Invoke: func(ctx context.Context, req orchestration.Request) ([]byte, models.ArtifactSource, error) {
			prompt := fmt.Sprintf("generate a recipe using ingredients=%v excluding=%v",
				req.RawInput["ingredients"], req.RawInput["exclude"])
			text, err := model.Complete(ctx, prompt, 600, 0.5)
			if err != nil {
				return nil, "", err
			}
			return []byte(text), models.SourceModel, nil
		},
		Sanitize: orchestration.JSONArtifactSanitizer("prompt_echo"),
		Persist: func(ctx context.Context, artifact models.Artifact) error {
			return store.Save(ctx, artifact)
		},
		Fallback: func(ctx context.Context, req orchestration.Request) ([]byte, error) {
			return json.Marshal(map[string]any{
				"template":    "pantry_staple",
				"ingredients": req.RawInput["ingredients"],
			})
		},
		NormalTTL:    24 * time.Hour,
		FallbackTTL:  6 * time.Hour,
		ModelTimeout: 10 * time.Second,
	}
}
