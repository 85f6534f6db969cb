package orchestration

import "context"

// ProfileRevisionLookup resolves the revision stamp OperationFingerprint
// needs from Request.ProfileRev. Profile management lives outside this
// layer; the pipeline only ever needs the revision, never the profile
// body, so feature services depend on this narrow interface instead of
// importing a profile package directly.
type ProfileRevisionLookup interface {
	RevisionFor(ctx context.Context, userID string) (rev string, err error)
}

// StaticRevisionLookup returns a fixed revision for every user. Useful for
// callers that stamp the revision themselves before building a Request,
// or in tests where profile drift isn't under test.
type StaticRevisionLookup string

func (s StaticRevisionLookup) RevisionFor(ctx context.Context, userID string) (string, error) {
	return string(s), nil
}
