package domain_test

import (
	"testing"

	"github.com/couchcryptid/floodguard/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seriesOf(n int) domain.Series {
	s := make(domain.Series, n)
	for i := range s {
		s[i] = domain.Reading{Timestamp: int64(i), Level: float64(i) / 2}
	}
	return s
}

func TestSeries_LatestLevelDefaultsToZero(t *testing.T) {
	var empty domain.Series
	_, ok := empty.Latest()
	assert.False(t, ok)
	assert.Zero(t, empty.LatestLevel())
	assert.Equal(t, domain.TierNormal, empty.Tier())
}

func TestSeries_RecentReturnsLastTenNewestFirst(t *testing.T) {
	s := seriesOf(15)

	recent := s.Recent(10)
	require.Len(t, recent, 10)
	for i, r := range recent {
		assert.Equal(t, int64(14-i), r.Timestamp)
	}
}

func TestSeries_RecentShorterThanLimit(t *testing.T) {
	recent := seriesOf(3).Recent(10)
	require.Len(t, recent, 3)
	assert.Equal(t, int64(2), recent[0].Timestamp)
	assert.Equal(t, int64(0), recent[2].Timestamp)

	assert.Empty(t, seriesOf(3).Recent(0))
	assert.Empty(t, domain.Series(nil).Recent(10))
}

func TestSeries_RecentDoesNotAlias(t *testing.T) {
	s := seriesOf(4)
	recent := s.Recent(2)
	recent[0].Level = 99
	assert.InDelta(t, 1.5, s[3].Level, 1e-9)
}

func TestReading_LevelText(t *testing.T) {
	assert.Equal(t, "2.50", domain.Reading{Level: 2.5}.LevelText())
	assert.Equal(t, "4.10", domain.Reading{Level: 4.1}.LevelText())
}
