package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssetError_IsMatchesKind(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewAssetError(ErrUpstreamAssetFailure, "upload image", cause)

	assert.ErrorIs(t, err, ErrUpstreamAssetFailure)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidFileType)
}

func TestAssetError_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("update avatar: %w", NewAssetError(ErrInvalidFileType, "upload image", errors.New("text/plain")))

	var ae *AssetError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "upload image", ae.Op)
	assert.ErrorIs(t, err, ErrInvalidFileType)
}

func TestAssetError_Message(t *testing.T) {
	assert.Equal(t, "upload image: invalid file type", NewAssetError(ErrInvalidFileType, "upload image", nil).Error())
	assert.Equal(t, "destroy image: asset store failure: boom",
		NewAssetError(ErrUpstreamAssetFailure, "destroy image", errors.New("boom")).Error())
}
