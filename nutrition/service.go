package nutrition

import (
	"context"

	"encore.dev/beta/auth"

	"encore.app/orchestration"
	"encore.app/pkg/apperr"
)

// InsightRequest is the wire shape for POST /nutrition/insight.
type InsightRequest struct {
	ProfileRev string `json:"profileRev"`
	WeekStart  string `json:"weekStart"`
}

// GetInsight runs the nutrition insight pipeline for the caller.
//
//encore:api auth method=POST path=/nutrition/insight
func GetInsight(ctx context.Context, req *InsightRequest) (*orchestration.ArtifactResponse, error) {
	uid, _ := auth.UserID()
	artifact, err := Shared().Run(ctx, orchestration.Request{
		UserID:     string(uid),
		ProfileRev: req.ProfileRev,
		RawInput:   map[string]any{"weekStart": req.WeekStart},
	})
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return orchestration.NewArtifactResponse(artifact), nil
}
