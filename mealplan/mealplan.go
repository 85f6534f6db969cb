// Package mealplan wires OrchestratedOperation for meal-plan generation:
// fingerprint the caller's goal/day-count inputs, cache-aside against
// ChatModel, meter against AI_RECIPE_GENERATION, persist and fall back to
// a template plan when the model is unavailable.
package mealplan

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"encore.app/orchestration"
	"encore.app/pkg/external"
	"encore.app/pkg/models"
)

// Hooks returns the orchestration.Hooks for meal-plan generation, bound
// to model and persistence.
func Hooks(model external.ChatModel, store external.PersistenceStore) orchestration.Hooks {
	return orchestration.Hooks{
		FeatureName: "meal_plan_generation",
		Kind:        models.KindMealPlan,
		QuotaKind:   models.QuotaAIRecipeGeneration,
		Normalize: func(req orchestration.Request) (string, error) {
			return orchestration.NormalizeMap(req.RawInput)
		},
		Invoke: func(ctx context.Context, req orchestration.Request) ([]byte, models.ArtifactSource, error) {
			prompt := fmt.Sprintf("generate a meal plan for goal=%v days=%v",
				req.RawInput["goal"], req.RawInput["days"])
			text, err := model.Complete(ctx, prompt, 800, 0.4)
			if err != nil {
				return nil, "", err
			}
			return []byte(text), models.SourceModel, nil
		},
		// A ChatModel response is expected to be a JSON object that
		// echoes the prompt it was given, for traceability; that's the
		// one field this pipeline can validate without a fuller
		// domain-specific meal-plan schema.
		Sanitize: orchestration.JSONArtifactSanitizer("prompt_echo"),
		Persist: func(ctx context.Context, artifact models.Artifact) error {
			return store.Save(ctx, artifact)
		},
		Fallback: func(ctx context.Context, req orchestration.Request) ([]byte, error) {
			return json.Marshal(map[string]any{
				"template": "balanced_3_meal",
				"goal":     req.RawInput["goal"],
			})
		},
		AdvisoryCheck: func(req orchestration.Request, payload []byte) bool {
			target, ok := req.RawInput["dailyCalorieTarget"].(float64)
			if !ok {
				return false
			}
			var decoded struct {
				EstimatedCalories float64 `json:"estimated_calories"`
			}
			if err := json.Unmarshal(payload, &decoded); err != nil {
				return false
			}
			if decoded.EstimatedCalories == 0 {
				return false
			}
			diff := decoded.EstimatedCalories - target
			if diff < 0 {
				diff = -diff
			}
			return diff/target > 0.15
		},
		NormalTTL:    24 * time.Hour,
		FallbackTTL:  6 * time.Hour,
		ModelTimeout: 10 * time.Second,
	}
}
