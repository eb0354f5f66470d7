package workflow

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateScore(t *testing.T) {
	policy := DefaultPolicy()

	cases := []struct {
		score float64
		ok    bool
	}{
		{0, true},
		{20, true},
		{17.25, true},
		{9.75, true},
		{-0.25, false},
		{20.25, false},
		{12.3, false},
		{math.NaN(), false},
		{math.Inf(1), false},
	}
	for _, tc := range cases {
		err := ValidateScore(policy, tc.score)
		if tc.ok {
			assert.NoError(t, err, "score=%v", tc.score)
		} else {
			assert.ErrorIs(t, err, ErrValidation, "score=%v", tc.score)
		}
	}

	assert.NoError(t, ValidateScore(Policy{ScoreMax: 100}, 33.3), "步长为 0 时不限制粒度")
}

func TestMeanScore(t *testing.T) {
	assert.Equal(t, 17.33, MeanScore(map[string]float64{"a": 18.0, "b": 16.5, "c": 17.5}))
	assert.Equal(t, 0.0, MeanScore(nil))
	assert.Equal(t, 16.67, Round2(50.0/3))
}

func TestFinalScore(t *testing.T) {
	jury := []string{"a", "b", "c"}

	_, done := FinalScore(jury, map[string]float64{"a": 10, "b": 12})
	assert.False(t, done)

	score, done := FinalScore(jury, map[string]float64{"a": 10, "b": 12, "c": 14})
	assert.True(t, done)
	assert.Equal(t, 12.0, score)

	_, done = FinalScore(nil, nil)
	assert.False(t, done)
}
