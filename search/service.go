package search

import (
	"context"

	"encore.dev/beta/auth"

	"encore.app/orchestration"
	"encore.app/pkg/apperr"
)

// SearchRequest is the wire shape for POST /search.
type SearchRequest struct {
	ProfileRev string            `json:"profileRev"`
	Query      string            `json:"query"`
	Filters    map[string]string `json:"filters,omitempty"`
}

// Search runs the catalog search pipeline for the caller.
//
//encore:api auth method=POST path=/search
func Search(ctx context.Context, req *SearchRequest) (*orchestration.ArtifactResponse, error) {
	uid, _ := auth.UserID()
	artifact, err := Shared().Run(ctx, orchestration.Request{
		UserID:     string(uid),
		ProfileRev: req.ProfileRev,
		RawInput: map[string]any{
			"query":   req.Query,
			"filters": req.Filters,
		},
	})
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return orchestration.NewArtifactResponse(artifact), nil
}
