package types

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cuemby/memoryengine/pkg/memerr"
)

func TestValidateStartEpisodeAcceptsWellFormedInput(t *testing.T) {
	assert.NoError(t, ValidateStartEpisode("fix the flaky login test", "backend"))
}

func TestValidateStartEpisodeRejectsEmptyDescription(t *testing.T) {
	err := ValidateStartEpisode("", "backend")
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestValidateStartEpisodeRejectsEmptyDomain(t *testing.T) {
	err := ValidateStartEpisode("fix the bug", "")
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestValidateStartEpisodeRejectsOversizedDescription(t *testing.T) {
	oversized := make([]byte, 4097)
	for i := range oversized {
		oversized[i] = 'a'
	}
	err := ValidateStartEpisode(string(oversized), "backend")
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}

func TestValidateQualityScoreAcceptsBoundaryValues(t *testing.T) {
	assert.NoError(t, ValidateQualityScore(0))
	assert.NoError(t, ValidateQualityScore(1))
	assert.NoError(t, ValidateQualityScore(0.5))
}

func TestValidateQualityScoreRejectsOutOfRange(t *testing.T) {
	assert.True(t, memerr.KindIs(ValidateQualityScore(-0.01), memerr.KindInvalidInput))
	assert.True(t, memerr.KindIs(ValidateQualityScore(1.01), memerr.KindInvalidInput))
}

func TestValidateStepNumberAcceptsMatchingValue(t *testing.T) {
	assert.NoError(t, ValidateStepNumber(3, 3))
}

func TestValidateStepNumberRejectsMismatch(t *testing.T) {
	err := ValidateStepNumber(3, 5)
	assert.True(t, memerr.KindIs(err, memerr.KindInvalidInput))
}
