// Package nutrition wires OrchestratedOperation for nutrition insight
// generation: fingerprint the caller's logged-intake window, cache-aside
// against ChatModel, meter against AI_NUTRITION_ADVICE.
package nutrition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"encore.app/orchestration"
	"encore.app/pkg/external"
	"encore.app/pkg/models"
)

// Hooks returns the orchestration.Hooks for nutrition insight generation.
func Hooks(model external.ChatModel, store external.PersistenceStore) orchestration.Hooks {
	return orchestration.Hooks{
		FeatureName: "nutrition_insight",
		Kind:        models.KindNutritionInsight,
		QuotaKind:   models.QuotaAINutritionAdvice,
		Normalize: func(req orchestration.Request) (string, error) {
			return orchestration.NormalizeMap(req.RawInput)
		},
		Invoke: func(ctx context.Context, req orchestration.Request) ([]byte, models.ArtifactSource, error) {
			prompt := fmt.Sprintf("summarize nutrition trends for week starting %v", req.RawInput["weekStart"])
			text, err := model.Complete(ctx, prompt, 500, 0.3)
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
				"template":  "insufficient_data",
				"weekStart": req.RawInput["weekStart"],
			})
		},
		NormalTTL:    24 * time.Hour,
		FallbackTTL:  6 * time.Hour,
		ModelTimeout: 10 * time.Second,
	}
}
