package ftl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimitsApply(t *testing.T) {
	tests := []struct {
		name    string
		numFree uint64
		want    Level
	}{
		{"Empty", 0, LevelCrit},
		{"AtCrit", 1, LevelCrit},
		{"AtHigh", 2, LevelHigh},
		{"AtLow", 3, LevelLow},
		{"BetweenLowAndStart", 4, LevelStart},
		{"AtStart", 5, LevelStart},
		{"AboveStart", 6, LevelNone},
		{"AllFree", 100, LevelNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := NewLimits(DefaultLimitThresholds())
			assert.Equal(t, tt.want, l.Apply(tt.numFree, 100))
			assert.Equal(t, tt.want, l.Level())
		})
	}
}

func TestLimitsThresholds(t *testing.T) {
	t.Run("RoundDown", func(t *testing.T) {
		l := NewLimits(DefaultLimitThresholds())
		l.Apply(0, 250)

		assert.Equal(t, uint64(2), l.Threshold(LevelCrit))
		assert.Equal(t, uint64(5), l.Threshold(LevelHigh))
		assert.Equal(t, uint64(7), l.Threshold(LevelLow))
		assert.Equal(t, uint64(12), l.Threshold(LevelStart))
		assert.Equal(t, uint64(0), l.Threshold(LevelNone))
	})

	t.Run("SmallDeviceIsCriticalOnlyWhenEmpty", func(t *testing.T) {
		l := NewLimits(DefaultLimitThresholds())
		assert.Equal(t, LevelCrit, l.Apply(0, 10))
		assert.Equal(t, LevelNone, l.Apply(1, 10))
	})

	t.Run("StartsAtNone", func(t *testing.T) {
		assert.Equal(t, LevelNone, NewLimits(DefaultLimitThresholds()).Level())
	})

	t.Run("CountsHits", func(t *testing.T) {
		l := NewLimits(DefaultLimitThresholds())
		l.Apply(0, 100)
		l.Apply(1, 100)
		l.Apply(5, 100)
		l.Apply(50, 100)

		assert.Equal(t, uint64(2), l.Hits(LevelCrit))
		assert.Equal(t, uint64(0), l.Hits(LevelHigh))
		assert.Equal(t, uint64(1), l.Hits(LevelStart))
		assert.Equal(t, uint64(0), l.Hits(LevelNone))
	})
}

func TestLimitThresholdsValidate(t *testing.T) {
	t.Run("Default", func(t *testing.T) {
		assert.NoError(t, DefaultLimitThresholds().Validate())
	})

	t.Run("Equal", func(t *testing.T) {
		assert.NoError(t, LimitThresholds{3, 3, 3, 3}.Validate())
	})

	t.Run("Decreasing", func(t *testing.T) {
		err := LimitThresholds{1, 5, 3, 7}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "low")
	})

	t.Run("OverHundred", func(t *testing.T) {
		assert.Error(t, LimitThresholds{1, 2, 3, 101}.Validate())
	})
}

func TestParseLevel(t *testing.T) {
	for l := LevelCrit; l <= LevelNone; l++ {
		got, err := ParseLevel(l.String())
		require.NoError(t, err)
		assert.Equal(t, l, got)
	}

	got, err := ParseLevel("HIGH")
	require.NoError(t, err)
	assert.Equal(t, LevelHigh, got)

	_, err = ParseLevel("urgent")
	assert.Error(t, err)
	assert.Equal(t, "level(9)", Level(9).String())
}
