package orchestration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"encore.app/pkg/apperr"
	"encore.app/pkg/models"
)

func TestJSONArtifactSanitizer_ValidObjectPasses(t *testing.T) {
	sanitize := JSONArtifactSanitizer("title")
	out, err := sanitize([]byte(`{"title":"soup","servings":4}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"soup","servings":4}`, string(out))
}

func TestJSONArtifactSanitizer_StripsCodeFence(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	out, err := sanitize([]byte("```json\n{\"title\":\"soup\"}\n```"))
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"soup"}`, string(out))
}

func TestJSONArtifactSanitizer_ExtractsFromSurroundingProse(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	out, err := sanitize([]byte(`Sure, here's the plan: {"title":"soup"} — enjoy!`))
	require.NoError(t, err)
	require.JSONEq(t, `{"title":"soup"}`, string(out))
}

func TestJSONArtifactSanitizer_BracesInsideStringDontUnbalance(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	out, err := sanitize([]byte(`{"note":"use a {cup} of rice","title":"soup"}`))
	require.NoError(t, err)
	require.JSONEq(t, `{"note":"use a {cup} of rice","title":"soup"}`, string(out))
}

func TestJSONArtifactSanitizer_RejectsMissingRequiredField(t *testing.T) {
	sanitize := JSONArtifactSanitizer("title")
	_, err := sanitize([]byte(`{"servings":4}`))
	require.Error(t, err)
}

func TestJSONArtifactSanitizer_RejectsProseWithNoObject(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	_, err := sanitize([]byte("I'm sorry, I can't help with that."))
	require.Error(t, err)
}

func TestJSONArtifactSanitizer_RejectsUnbalancedObject(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	_, err := sanitize([]byte(`{"title":"soup"`))
	require.Error(t, err)
}

func TestJSONArtifactSanitizer_RejectsInvalidJSON(t *testing.T) {
	sanitize := JSONArtifactSanitizer()
	_, err := sanitize([]byte(`{title: soup}`))
	require.Error(t, err)
}

func TestOperation_Run_SanitizeFailureRoutesToFallback(t *testing.T) {
	hooks := baseHooks()
	hooks.Invoke = func(ctx context.Context, req Request) ([]byte, models.ArtifactSource, error) {
		return []byte("not a json object"), models.SourceModel, nil
	}
	hooks.Sanitize = JSONArtifactSanitizer("title")
	hooks.Fallback = func(ctx context.Context, req Request) ([]byte, error) {
		return []byte(`{"template":"fallback"}`), nil
	}
	op, _ := newTestOperation(t, hooks)
	req := Request{UserID: "user-1", ProfileRev: "rev-1", RawInput: map[string]any{"goal": "lose weight"}}

	artifact, err := op.Run(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.SourceFallback, artifact.Source)
}

func TestOperation_Run_SanitizeFailureWithNoFallbackSurfacesModelMalformed(t *testing.T) {
	hooks := baseHooks()
	hooks.Invoke = func(ctx context.Context, req Request) ([]byte, models.ArtifactSource, error) {
		return []byte("not a json object"), models.SourceModel, nil
	}
	hooks.Sanitize = JSONArtifactSanitizer("title")
	op, _ := newTestOperation(t, hooks)
	req := Request{UserID: "user-1", ProfileRev: "rev-1", RawInput: map[string]any{"goal": "lose weight"}}

	_, err := op.Run(context.Background(), req)
	require.Equal(t, apperr.CodeModelMalformed, apperr.CodeOf(err))
}

func TestOperation_Run_SanitizeFailureDoesNotConsumeQuota(t *testing.T) {
	hooks := baseHooks()
	hooks.Invoke = func(ctx context.Context, req Request) ([]byte, models.ArtifactSource, error) {
		return []byte("not a json object"), models.SourceModel, nil
	}
	hooks.Sanitize = JSONArtifactSanitizer("title")
	op, _ := newTestOperation(t, hooks)
	ctx := context.Background()

	for i := 0; i < 20; i++ {
		req := Request{UserID: "user-1", ProfileRev: "rev-1", RawInput: map[string]any{"goal": "goal-" + string(rune('a'+i))}}
		_, err := op.Run(ctx, req)
		require.Equal(t, apperr.CodeModelMalformed, apperr.CodeOf(err), "a sanitize failure must never consume quota")
	}
}
