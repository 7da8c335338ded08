// Package simcache memoizes the unit-conversion factors a scenario rereads
// every year of every trial: a substance's amortized unit volume, GHG
// intensity, and energy intensity rarely change within a run but get looked
// up by the converter on nearly every operation.
package simcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheLayer provides Redis-based caching for conversion factors and trial
// results.
type CacheLayer struct {
	client *redis.Client
	logger *slog.Logger
	config CacheConfig
}

// CacheConfig holds cache configuration.
type CacheConfig struct {
	Host       string
	Port       int
	DB         int
	Password   string
	MaxRetries int
	PoolSize   int

	// FactorTTL bounds how long a cached conversion factor (amortized
	// unit volume, GHG intensity, energy intensity) is trusted before a
	// fresh read from the stream keeper is required.
	FactorTTL time.Duration

	// TrialResultTTL bounds how long a full trial's result set stays
	// cached for comparison queries.
	TrialResultTTL time.Duration

	EnableMetrics bool
}

// DefaultCacheConfig returns default cache configuration.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Host:           "localhost",
		Port:           6379,
		DB:             0,
		MaxRetries:     3,
		PoolSize:       10,
		FactorTTL:      15 * time.Minute,
		TrialResultTTL: 5 * time.Minute,
		EnableMetrics:  true,
	}
}

// CacheMetrics tracks cache performance.
type CacheMetrics struct {
	Hits       int64
	Misses     int64
	Evictions  int64
	Errors     int64
	TotalSize  int64
	HitRate    float64
	AvgLatency time.Duration
}

// NewCacheLayer creates a new cache layer.
func NewCacheLayer(config CacheConfig, logger *slog.Logger) (*CacheLayer, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       fmt.Sprintf("%s:%d", config.Host, config.Port),
		DB:         config.DB,
		Password:   config.Password,
		MaxRetries: config.MaxRetries,
		PoolSize:   config.PoolSize,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("redis cache layer initialized",
		slog.String("host", config.Host),
		slog.Int("port", config.Port),
	)

	return &CacheLayer{
		client: client,
		logger: logger,
		config: config,
	}, nil
}

// ConversionFactors is the set of per-substance values the converter reads
// repeatedly: amortized unit volume (mass<->count), GHG intensity
// (mass<->tCO2e), and energy intensity (mass<->kwh).
type ConversionFactors struct {
	AmortizedUnitVolume float64
	GhgIntensity        float64
	EnergyIntensity     float64
}

func factorKey(application, substance string, year int) string {
	return fmt.Sprintf("factors:%s:%s:%d", application, substance, year)
}

// CacheConversionFactors caches a substance's conversion factors for a
// given application/year.
func (cl *CacheLayer) CacheConversionFactors(ctx context.Context, application, substance string, year int, factors ConversionFactors) error {
	key := factorKey(application, substance, year)

	jsonData, err := json.Marshal(factors)
	if err != nil {
		cl.logger.Error("failed to marshal conversion factors for caching", slog.String("error", err.Error()))
		return err
	}

	if err := cl.client.Set(ctx, key, jsonData, cl.config.FactorTTL).Err(); err != nil {
		cl.logger.Error("failed to cache conversion factors", slog.String("error", err.Error()))
		return err
	}

	return nil
}

// GetCachedConversionFactors retrieves cached conversion factors, if present.
func (cl *CacheLayer) GetCachedConversionFactors(ctx context.Context, application, substance string, year int) (ConversionFactors, error) {
	key := factorKey(application, substance, year)

	val, err := cl.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return ConversionFactors{}, fmt.Errorf("conversion factors not in cache")
	} else if err != nil {
		cl.logger.Error("failed to get cached conversion factors", slog.String("error", err.Error()))
		return ConversionFactors{}, err
	}

	var factors ConversionFactors
	if err := json.Unmarshal([]byte(val), &factors); err != nil {
		return ConversionFactors{}, fmt.Errorf("failed to unmarshal conversion factors: %w", err)
	}

	return factors, nil
}

// InvalidateConversionFactors drops a substance's cached factors, for use
// when a scenario's operations change GHG or energy intensity mid-run.
func (cl *CacheLayer) InvalidateConversionFactors(ctx context.Context, application, substance string, year int) error {
	key := factorKey(application, substance, year)
	return cl.client.Del(ctx, key).Err()
}

func trialResultKey(scenario string, trial int) string {
	return fmt.Sprintf("trial:%s:%d", scenario, trial)
}

// CacheTrialResult caches a serialized trial result set so repeated
// comparison queries against the same scenario/trial don't need to rerun
// the engine.
func (cl *CacheLayer) CacheTrialResult(ctx context.Context, scenario string, trial int, data interface{}) error {
	key := trialResultKey(scenario, trial)

	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return cl.client.Set(ctx, key, jsonData, cl.config.TrialResultTTL).Err()
}

// GetCachedTrialResult retrieves a cached trial result into dest.
func (cl *CacheLayer) GetCachedTrialResult(ctx context.Context, scenario string, trial int, dest interface{}) error {
	key := trialResultKey(scenario, trial)

	val, err := cl.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return fmt.Errorf("trial result not in cache")
	} else if err != nil {
		return err
	}

	return json.Unmarshal([]byte(val), dest)
}

// InvalidateTrialResult drops a single cached trial's result set.
func (cl *CacheLayer) InvalidateTrialResult(ctx context.Context, scenario string, trial int) error {
	key := trialResultKey(scenario, trial)
	return cl.client.Del(ctx, key).Err()
}

// ClearAllCache clears all cache entries.
func (cl *CacheLayer) ClearAllCache(ctx context.Context) error {
	return cl.client.FlushDB(ctx).Err()
}

// GetMetrics returns cache metrics.
func (cl *CacheLayer) GetMetrics(ctx context.Context) (*CacheMetrics, error) {
	_ = cl.client.Info(ctx, "stats")

	return &CacheMetrics{
		HitRate: 0.0, // the INFO stats reply is not parsed, so this is always 0
	}, nil
}

// Close closes the cache connection.
func (cl *CacheLayer) Close() error {
	return cl.client.Close()
}

// CachedOperation is a wrapper for operations with caching, typically a
// single conversion-factor lookup.
type CachedOperation struct {
	cache   *CacheLayer
	logger  *slog.Logger
	metrics *OperationMetrics
}

// OperationMetrics tracks operation metrics.
type OperationMetrics struct {
	CacheHits   int64
	CacheMisses int64
	TotalOps    int64
	AvgLatency  time.Duration
}

// NewCachedOperation creates a new cached operation wrapper.
func NewCachedOperation(cache *CacheLayer, logger *slog.Logger) *CachedOperation {
	return &CachedOperation{
		cache:   cache,
		logger:  logger,
		metrics: &OperationMetrics{},
	}
}

// ExecuteWithCache executes an operation with read-through caching.
func (co *CachedOperation) ExecuteWithCache(
	ctx context.Context,
	cacheKey string,
	operation func(context.Context) (interface{}, error),
) (interface{}, error) {
	start := time.Now()

	if cached, err := co.cache.client.Get(ctx, cacheKey).Result(); err == nil {
		co.metrics.CacheHits++
		latency := time.Since(start)
		co.metrics.AvgLatency = (co.metrics.AvgLatency + latency) / 2
		return cached, nil
	}

	co.metrics.CacheMisses++

	result, err := operation(ctx)
	if err != nil {
		return nil, err
	}

	jsonData, _ := json.Marshal(result)
	co.cache.client.Set(ctx, cacheKey, jsonData, co.cache.config.FactorTTL)

	latency := time.Since(start)
	co.metrics.AvgLatency = (co.metrics.AvgLatency + latency) / 2
	co.metrics.TotalOps++

	return result, nil
}

// GetMetrics returns operation metrics.
func (co *CachedOperation) GetMetrics() *OperationMetrics {
	return co.metrics
}
