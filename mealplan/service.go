package mealplan

import (
	"context"

	"encore.dev/beta/auth"

	"encore.app/orchestration"
	"encore.app/pkg/apperr"
)

// GenerateRequest is the wire shape for POST /meal-plans/generate.
type GenerateRequest struct {
	ProfileRev         string  `json:"profileRev"`
	Goal               string  `json:"goal"`
	Days               int     `json:"days"`
	DailyCalorieTarget float64 `json:"dailyCalorieTarget,omitempty"`
}

// Generate runs the meal-plan generation pipeline for the caller.
//
//encore:api auth method=POST path=/meal-plans/generate
func Generate(ctx context.Context, req *GenerateRequest) (*orchestration.ArtifactResponse, error) {
	uid, _ := auth.UserID()
	artifact, err := Shared().Run(ctx, orchestration.Request{
		UserID:     string(uid),
		ProfileRev: req.ProfileRev,
		RawInput: map[string]any{
			"goal":               req.Goal,
			"days":               req.Days,
			"dailyCalorieTarget": req.DailyCalorieTarget,
		},
	})
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return orchestration.NewArtifactResponse(artifact), nil
}
