package service

import (
	"context"
	"errors"
	"testing"

	"ScoutFeed/internal/model"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapFetchError(t *testing.T) {
	t.Run("exhausted carries per-source reasons", func(t *testing.T) {
		err := mapFetchError(&model.ExhaustedError{
			Capability: "top_prospects",
			Failures: []model.SourceFailure{
				{Source: "fangraphs", Kind: model.OutcomeTransport, Reason: "connection refused"},
				{Source: "mlb_statsapi", Kind: model.OutcomeCircuitOpen, Reason: "circuit open, source skipped"},
			},
		})

		ke := kerrors.FromError(err)
		assert.Equal(t, int32(503), ke.Code)
		assert.Equal(t, "ALL_SOURCES_EXHAUSTED", ke.Reason)
		require.Len(t, ke.Metadata, 2)
		assert.Contains(t, ke.Metadata["fangraphs"], "connection refused")
		assert.Contains(t, ke.Metadata["mlb_statsapi"], "circuit_open")
	})

	t.Run("unknown capability", func(t *testing.T) {
		ke := kerrors.FromError(mapFetchError(model.ErrUnknownCapability))
		assert.Equal(t, int32(404), ke.Code)
		assert.Equal(t, "UNKNOWN_CAPABILITY", ke.Reason)
	})

	t.Run("cancellation", func(t *testing.T) {
		ke := kerrors.FromError(mapFetchError(context.Canceled))
		assert.Equal(t, int32(499), ke.Code)
	})

	t.Run("generic failure", func(t *testing.T) {
		ke := kerrors.FromError(mapFetchError(errors.New("boom")))
		assert.Equal(t, int32(500), ke.Code)
	})
}

func TestMapLookupError(t *testing.T) {
	assert.Equal(t, "UNKNOWN_SOURCE", kerrors.FromError(mapLookupError(model.ErrUnknownSource)).Reason)
	assert.Equal(t, "UNKNOWN_CHECK", kerrors.FromError(mapLookupError(model.ErrUnknownCheck)).Reason)
	assert.Equal(t, "UNKNOWN_CAPABILITY", kerrors.FromError(mapLookupError(model.ErrUnknownCapability)).Reason)
	assert.Equal(t, int32(500), kerrors.FromError(mapLookupError(errors.New("boom"))).Code)
}

func TestEncodePayload(t *testing.T) {
	assert.Equal(t, "", encodePayload(nil))
	assert.Equal(t, `{"a":1}`, encodePayload([]byte(`{"a":1}`)))
	assert.Equal(t, "plain", encodePayload("plain"))
	assert.Equal(t, "", encodePayload(42))
}
