package ads

import (
	"context"
	"testing"
	"time"

	"github.com/phrazzld/arcana/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedLifecycle(t *testing.T) {
	s := NewSimulated(0, 0, nil)
	ctx := context.Background()

	assert.False(t, s.IsReady())
	assert.ErrorIs(t, s.Show(ctx, nil), ErrNotLoaded)

	require.NoError(t, s.Load(ctx))
	assert.True(t, s.IsReady())

	rewarded := false
	require.NoError(t, s.Show(ctx, func() { rewarded = true }))
	assert.True(t, rewarded)
	assert.False(t, s.IsReady(), "showing consumes the ad")
	assert.Equal(t, 1, s.Impressions())
}

func TestSimulatedDismissedEarly(t *testing.T) {
	s := NewSimulated(time.Hour, 0, nil)
	require.NoError(t, s.Load(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	rewarded := false
	require.NoError(t, s.Show(ctx, func() { rewarded = true }))
	assert.False(t, rewarded)
}

func TestSimulatedBanner(t *testing.T) {
	s := NewSimulated(0, 0, nil)
	assert.Empty(t, s.Banner())
	require.NoError(t, s.ShowBanner(context.Background(), domain.BannerTop))
	assert.Equal(t, domain.BannerTop, s.Banner())
}
