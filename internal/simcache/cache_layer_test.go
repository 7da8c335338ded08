package simcache

import (
	"context"
	"log/slog"
	"testing"
)

// TestCacheLayerCreation requires Redis running locally and is skipped
// otherwise.
func TestCacheLayerCreation(t *testing.T) {
	config := CacheConfig{Host: "localhost", Port: 6379}
	logger := slog.Default()

	cache, err := NewCacheLayer(config, logger)
	if err != nil {
		t.Skip("Redis not available, skipping test")
	}
	defer cache.Close()

	if cache == nil {
		t.Error("cache layer should not be nil")
	}
}

func TestCacheConversionFactorsRoundTrip(t *testing.T) {
	config := CacheConfig{Host: "localhost", Port: 6379}
	logger := slog.Default()

	cache, err := NewCacheLayer(config, logger)
	if err != nil {
		t.Skip("Redis not available, skipping test")
	}
	defer cache.Close()

	ctx := context.Background()
	factors := ConversionFactors{AmortizedUnitVolume: 0.5, GhgIntensity: 1430, EnergyIntensity: 2}

	if err := cache.CacheConversionFactors(ctx, "domestic refrigeration", "HFC-134a", 2025, factors); err != nil {
		t.Fatalf("failed to cache conversion factors: %v", err)
	}

	got, err := cache.GetCachedConversionFactors(ctx, "domestic refrigeration", "HFC-134a", 2025)
	if err != nil {
		t.Fatalf("failed to retrieve cached conversion factors: %v", err)
	}
	if got != factors {
		t.Errorf("retrieved factors mismatch: got %+v, want %+v", got, factors)
	}

	if err := cache.InvalidateConversionFactors(ctx, "domestic refrigeration", "HFC-134a", 2025); err != nil {
		t.Fatalf("failed to invalidate conversion factors: %v", err)
	}
	if _, err := cache.GetCachedConversionFactors(ctx, "domestic refrigeration", "HFC-134a", 2025); err == nil {
		t.Error("expected a cache miss after invalidation")
	}
}

func TestCacheTrialResultRoundTrip(t *testing.T) {
	config := CacheConfig{Host: "localhost", Port: 6379}
	logger := slog.Default()

	cache, err := NewCacheLayer(config, logger)
	if err != nil {
		t.Skip("Redis not available, skipping test")
	}
	defer cache.Close()

	ctx := context.Background()
	data := map[string]interface{}{"trial": 0, "years": 3}

	if err := cache.CacheTrialResult(ctx, "business as usual", 0, data); err != nil {
		t.Fatalf("failed to cache trial result: %v", err)
	}

	var retrieved map[string]interface{}
	if err := cache.GetCachedTrialResult(ctx, "business as usual", 0, &retrieved); err != nil {
		t.Fatalf("failed to retrieve cached trial result: %v", err)
	}
	if retrieved["trial"] != float64(0) {
		t.Errorf("retrieved trial result mismatch: %+v", retrieved)
	}
}
