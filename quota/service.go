package quota

import (
	"context"

	"encore.dev/beta/auth"

	"encore.app/pkg/apperr"
	"encore.app/pkg/models"
)

// QuotasResponse is the wire shape for GET /quotas.
type QuotasResponse struct {
	Data map[models.QuotaKind]Usage `json:"data"`
}

// QuotaResponse is the wire shape for GET /quotas/:kind.
type QuotaResponse struct {
	Data Usage `json:"data"`
}

// GetQuotas reports the caller's standing against every QuotaKind. The
// caller is whoever authn.AuthHandler resolved the bearer token to, never
// a client-supplied id.
//
//encore:api auth method=GET path=/quotas
func GetQuotas(ctx context.Context) (*QuotasResponse, error) {
	uid, _ := auth.UserID()
	all, err := Shared().AllUsage(ctx, string(uid), nil)
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return &QuotasResponse{Data: all}, nil
}

// GetQuota reports the caller's standing against a single QuotaKind.
//
//encore:api auth method=GET path=/quotas/:kind
func GetQuota(ctx context.Context, kind models.QuotaKind) (*QuotaResponse, error) {
	uid, _ := auth.UserID()
	usage, err := Shared().Check(ctx, string(uid), kind, nil)
	if err != nil {
		return nil, apperr.AsEncoreError(err)
	}
	return &QuotaResponse{Data: usage}, nil
}
