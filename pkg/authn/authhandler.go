// Package authn supplies the Encore auth handler that every //encore:api
// auth endpoint in this layer relies on to resolve the calling user. The
// upstream identity provider is out of scope for this layer; handler
// trusts a bearer token that already carries the resolved user id, the
// same boundary-narrowing this layer draws around profile data in
// orchestration.ProfileRevisionLookup.
package authn

import (
	"context"
	"strings"

	"encore.dev/beta/auth"
	"encore.dev/beta/errs"
)

// UserData is attached to the request context for every auth endpoint;
// handlers needing more than the uid can extend this as profile
// management grows.
type UserData struct {
	UserID string
}

//encore:authhandler
func AuthHandler(ctx context.Context, token string) (auth.UID, *UserData, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", nil, &errs.Error{Code: errs.Unauthenticated, Message: "missing bearer token"}
	}
	return auth.UID(token), &UserData{UserID: token}, nil
}
