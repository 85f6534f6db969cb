package recipe

import (
	"context"

	"encore.dev/beta/auth"

	"encore.app/orchestration"
	"encore.app/pkg/apperr"
)

// GenerateRequest is the wire shape for POST /recipes/generate.
type GenerateRequest struct {
	ProfileRev  string   `json:"profileRev"`
	Ingredients []string `json:"ingredients"`
	Exclude     []string `json:"exclude,omitempty"`
}

// Generate runs the recipe generation pipeline for the caller.
//
//encore:api auth method=POST path=/recipes/generate
func Generate(ctx context.Context, req *GenerateRequest) (*orchestration.ArtifactResponse, error) {
	uid, _ := auth.UserID()
	artifact, err := Shared().Run(ctx, orchestration.Request{
		UserID:     string(uid),
		ProfileRev: req.ProfileRev,
		RawInput: map[string]any{
			"ingredients": req.Ingredients,
			"exclude":     req.Exclude,
		},
	})
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return orchestration.NewArtifactResponse(artifact), nil
}
