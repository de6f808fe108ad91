package config

import (
	"hash/fnv"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages feature toggles and A/B testing.
// Supports gradual rollout, learner targeting, and cohort-based experiments.
type FeatureFlags struct {
	mu sync.RWMutex

	// Core features
	features map[string]*Feature

	// Override rules (for testing/debugging)
	learnerOverrides map[string]map[string]bool // learnerID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on hash of their ID
	RolloutPercent int

	// Cohort targeting (e.g., "2026-spring", "2026-fall")
	// Empty means all cohorts
	TargetCohorts []string

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time

	// A/B test variant (for experiments)
	Variants []string
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	LearnerID string // learner UUID

	Cohort  string // learner cohort (e.g., "2026-spring")
	IsAdmin bool   // is admin user
}

// Predefined feature flag names.
const (
	// === Simulation Features ===
	FeatureSimBusiness    = "sim.business"     // business registration track
	FeatureSimMarket      = "sim.market"       // market cash fluctuation
	FeatureSimFastTrack   = "sim.fast_track"   // skill-based delay reduction
	FeatureSimPendingView = "sim.pending_view" // expose pending consequences
	FeatureSimAutoRealize = "sim.auto_realize" // realize on read, not just sweep
	FeatureSimArchival    = "sim.archival"     // compress and archive old sessions

	// === Progression Features ===
	FeatureProgressionDailyCap     = "progression.daily_cap"     // daily XP cap
	FeatureProgressionLabs         = "progression.labs"          // once-per-day lab awards
	FeatureProgressionMissions     = "progression.missions"      // repeatable missions
	FeatureProgressionCounterCache = "progression.counter_cache" // redis mirror of the daily XP counter

	// === Limiter Features ===
	FeatureLimiterCooldown  = "limiter.cooldown"   // mission cooldown window
	FeatureLimiterCacheTier = "limiter.cache_tier" // redis fast path for limiter
	FeatureLimiterBreaker   = "limiter.breaker"    // circuit breaker around cache

	// === Experimental Features ===
	FeatureExperimentalRules     = "experimental.rule_reload" // live catalog reload
	FeatureExperimentalAnalytics = "experimental.analytics"   // advanced analytics
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		learnerOverrides: make(map[string]map[string]bool),
	}

	// Initialize all features with defaults
	ff.initializeDefaults()

	// Load overrides from environment
	ff.loadFromEnvironment()

	return ff
}

// initializeDefaults sets up all features with default values.
func (ff *FeatureFlags) initializeDefaults() {
	// Simulation features - core loop, enabled by default
	ff.features[FeatureSimBusiness] = &Feature{
		Name:           FeatureSimBusiness,
		Description:    "Business registration and lifecycle",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSimMarket] = &Feature{
		Name:           FeatureSimMarket,
		Description:    "Market fluctuation of the business balance",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSimFastTrack] = &Feature{
		Name:           FeatureSimFastTrack,
		Description:    "Skill-based consequence delay reduction",
		Enabled:        true,
		RolloutPercent: 50, // Gradual rollout
	}

	ff.features[FeatureSimPendingView] = &Feature{
		Name:           FeatureSimPendingView,
		Description:    "Show scheduled consequences in the session view",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSimAutoRealize] = &Feature{
		Name:           FeatureSimAutoRealize,
		Description:    "Realize matured consequences on the request path",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureSimArchival] = &Feature{
		Name:           FeatureSimArchival,
		Description:    "Archive completed sessions past retention",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Progression features
	ff.features[FeatureProgressionDailyCap] = &Feature{
		Name:           FeatureProgressionDailyCap,
		Description:    "Enforce the daily XP cap",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionLabs] = &Feature{
		Name:           FeatureProgressionLabs,
		Description:    "Once-per-day lab XP awards",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionMissions] = &Feature{
		Name:           FeatureProgressionMissions,
		Description:    "Repeatable mission completions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureProgressionCounterCache] = &Feature{
		Name:           FeatureProgressionCounterCache,
		Description:    "Redis mirror of the daily XP counter",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Limiter features
	ff.features[FeatureLimiterCooldown] = &Feature{
		Name:           FeatureLimiterCooldown,
		Description:    "Cooldown window after the daily mission threshold",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLimiterCacheTier] = &Feature{
		Name:           FeatureLimiterCacheTier,
		Description:    "Redis fast path for limiter state",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureLimiterBreaker] = &Feature{
		Name:           FeatureLimiterBreaker,
		Description:    "Circuit breaker around the limiter cache",
		Enabled:        true,
		RolloutPercent: 100,
	}

	// Experimental features - disabled by default
	ff.features[FeatureExperimentalRules] = &Feature{
		Name:           FeatureExperimentalRules,
		Description:    "Live reload of the decision rule catalog",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureExperimentalAnalytics] = &Feature{
		Name:           FeatureExperimentalAnalytics,
		Description:    "Advanced analytics dashboard",
		Enabled:        false,
		RolloutPercent: 0,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_SIM_FAST_TRACK=true
// Example: FEATURE_SIM_FAST_TRACK=50 (50% rollout)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		envKey := featureNameToEnvKey(name)
		if val := os.Getenv(envKey); val != "" {
			// Try parsing as boolean
			if b, err := strconv.ParseBool(val); err == nil {
				feature.Enabled = b
				if b {
					feature.RolloutPercent = 100
				} else {
					feature.RolloutPercent = 0
				}
				continue
			}

			// Try parsing as percentage
			if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
				feature.Enabled = p > 0
				feature.RolloutPercent = p
			}
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "sim.fast_track" -> "FEATURE_SIM_FAST_TRACK"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	// Check learner overrides first
	if ctx != nil && ctx.LearnerID != "" {
		if overrides, ok := ff.learnerOverrides[ctx.LearnerID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok {
		return false
	}

	// Admin users get all features
	if ctx != nil && ctx.IsAdmin {
		return true
	}

	// Check if feature is enabled at all
	if !feature.Enabled {
		return false
	}

	// Check time-based activation
	now := time.Now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	// Check cohort targeting
	if len(feature.TargetCohorts) > 0 && ctx != nil && ctx.Cohort != "" {
		cohortMatch := false
		for _, c := range feature.TargetCohorts {
			if c == ctx.Cohort {
				cohortMatch = true
				break
			}
		}
		if !cohortMatch {
			return false
		}
	}

	// Check rollout percentage
	if feature.RolloutPercent < 100 && ctx != nil && ctx.LearnerID != "" {
		return ff.isInRollout(ctx.LearnerID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout determines if a learner is in the rollout percentage.
// Uses consistent hashing so learners stay in their bucket.
func (ff *FeatureFlags) isInRollout(learnerID string, featureName string, percent int) bool {
	// Create a consistent hash for this learner+feature combination
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(learnerID))
	hash := h.Sum32()

	// Map to 0-99 range
	bucket := int(hash % 100)

	return bucket < percent
}

// GetVariant returns the A/B test variant for a learner.
// Returns empty string if no variants defined or feature disabled.
func (ff *FeatureFlags) GetVariant(featureName string, ctx *FeatureContext) string {
	if ctx == nil || !ff.IsEnabled(featureName, ctx) {
		return ""
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ""
	}

	if len(feature.Variants) == 0 {
		return ""
	}

	// Use consistent hashing to assign variant
	h := fnv.New32a()
	h.Write([]byte(featureName + "_variant"))
	h.Write([]byte(ctx.LearnerID))
	hash := h.Sum32()

	variantIndex := int(hash % uint32(len(feature.Variants)))
	return feature.Variants[variantIndex]
}

// SetLearnerOverride sets a feature override for a specific learner.
// Useful for testing and debugging.
func (ff *FeatureFlags) SetLearnerOverride(learnerID string, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.learnerOverrides[learnerID]; !ok {
		ff.learnerOverrides[learnerID] = make(map[string]bool)
	}
	ff.learnerOverrides[learnerID][featureName] = enabled
}

// ClearLearnerOverrides removes all overrides for a learner.
func (ff *FeatureFlags) ClearLearnerOverrides(learnerID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.learnerOverrides, learnerID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
// Thread-safe for live updates.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns a copy of all feature configurations.
func (ff *FeatureFlags) GetAllFeatures() map[string]*Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make(map[string]*Feature, len(ff.features))
	for k, v := range ff.features {
		// Return a copy
		featureCopy := *v
		result[k] = &featureCopy
	}
	return result
}

// --- Convenience methods for common checks ---

// BusinessTrackEnabled checks if the business simulation track is enabled.
func (ff *FeatureFlags) BusinessTrackEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureSimBusiness, ctx)
}

// ProgressionEnabled checks if any progression features are enabled.
func (ff *FeatureFlags) ProgressionEnabled(ctx *FeatureContext) bool {
	return ff.IsEnabled(FeatureProgressionLabs, ctx) ||
		ff.IsEnabled(FeatureProgressionMissions, ctx)
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
