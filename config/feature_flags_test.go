package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsEnabled_Defaults(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "11111111-1111-1111-1111-111111111111"}

	assert.True(t, ff.IsEnabled(FeatureSimBusiness, ctx))
	assert.True(t, ff.IsEnabled(FeatureProgressionDailyCap, ctx))
	assert.True(t, ff.IsEnabled(FeatureProgressionCounterCache, ctx))
	assert.False(t, ff.IsEnabled(FeatureExperimentalAnalytics, ctx))
	assert.False(t, ff.IsEnabled("no.such.feature", ctx))
}

// Process-level wiring (worker ticks, archival cron, cache tiers) consults
// these flags with a nil context, so they must answer without one.
func TestIsEnabled_NilContextDefaults(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.True(t, ff.IsEnabled(FeatureSimMarket, nil))
	assert.True(t, ff.IsEnabled(FeatureSimArchival, nil))
	assert.True(t, ff.IsEnabled(FeatureLimiterCacheTier, nil))
	assert.True(t, ff.IsEnabled(FeatureProgressionCounterCache, nil))

	require.NoError(t, ff.DisableFeature(FeatureSimMarket))
	assert.False(t, ff.IsEnabled(FeatureSimMarket, nil))
}

func TestIsEnabled_AdminBypassesRollout(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureSimFastTrack, 0))

	admin := &FeatureContext{LearnerID: "22222222-2222-2222-2222-222222222222", IsAdmin: true}
	assert.True(t, ff.IsEnabled(FeatureSimFastTrack, admin))
}

func TestIsEnabled_LearnerOverrideWins(t *testing.T) {
	ff := LoadFeatureFlags()
	learnerID := "33333333-3333-3333-3333-333333333333"
	ctx := &FeatureContext{LearnerID: learnerID}

	ff.SetLearnerOverride(learnerID, FeatureSimBusiness, false)
	assert.False(t, ff.IsEnabled(FeatureSimBusiness, ctx))

	ff.ClearLearnerOverrides(learnerID)
	assert.True(t, ff.IsEnabled(FeatureSimBusiness, ctx))
}

func TestIsEnabled_RolloutBucketIsStable(t *testing.T) {
	ff := LoadFeatureFlags()
	require.NoError(t, ff.SetRolloutPercent(FeatureSimFastTrack, 50))

	ctx := &FeatureContext{LearnerID: "44444444-4444-4444-4444-444444444444"}
	first := ff.IsEnabled(FeatureSimFastTrack, ctx)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureSimFastTrack, ctx))
	}
}

func TestSetRolloutPercent_Validation(t *testing.T) {
	ff := LoadFeatureFlags()

	assert.ErrorIs(t, ff.SetRolloutPercent("no.such.feature", 50), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureSimMarket, 101), ErrInvalidRolloutPercent)
}

func TestEnableDisableFeature(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "55555555-5555-5555-5555-555555555555"}

	require.NoError(t, ff.DisableFeature(FeatureSimMarket))
	assert.False(t, ff.IsEnabled(FeatureSimMarket, ctx))

	require.NoError(t, ff.EnableFeature(FeatureSimMarket))
	assert.True(t, ff.IsEnabled(FeatureSimMarket, ctx))
}

func TestGetVariant(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "66666666-6666-6666-6666-666666666666"}

	// No variants configured by default.
	assert.Equal(t, "", ff.GetVariant(FeatureSimBusiness, ctx))

	// Nil context never gets a variant.
	assert.Equal(t, "", ff.GetVariant(FeatureSimBusiness, nil))
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_SIM_FAST_TRACK", featureNameToEnvKey("sim.fast_track"))
	assert.Equal(t, "FEATURE_LIMITER_CACHE_TIER", featureNameToEnvKey("limiter.cache_tier"))
}

func TestLoadFromEnvironment_BoolOverride(t *testing.T) {
	t.Setenv("FEATURE_SIM_MARKET", "false")

	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "77777777-7777-7777-7777-777777777777"}

	assert.False(t, ff.IsEnabled(FeatureSimMarket, ctx))
}

func TestLoadFromEnvironment_PercentOverride(t *testing.T) {
	t.Setenv("FEATURE_EXPERIMENTAL_ANALYTICS", "100")

	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "88888888-8888-8888-8888-888888888888"}

	assert.True(t, ff.IsEnabled(FeatureExperimentalAnalytics, ctx))
}

func TestBusinessTrackEnabled(t *testing.T) {
	ff := LoadFeatureFlags()
	ctx := &FeatureContext{LearnerID: "99999999-9999-9999-9999-999999999999"}

	assert.True(t, ff.BusinessTrackEnabled(ctx))

	require.NoError(t, ff.DisableFeature(FeatureSimBusiness))
	assert.False(t, ff.BusinessTrackEnabled(ctx))
}
