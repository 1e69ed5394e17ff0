package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/config"
	"github.com/alicemq/LT-electricity-full-price-NordPool/pkg/models"
)

// RedisClient is a short-TTL cache for hot price lookups. A cache miss
// or a Redis failure always falls through to the database.
type RedisClient struct {
	client *redis.Client
	logger *logrus.Entry
	cfg    *config.RedisConfig
	ttl    time.Duration
}

// NewRedisClient creates a new Redis client
func NewRedisClient(cfg *config.RedisConfig, logger *logrus.Logger) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolTimeout:  4 * time.Second,
		IdleTimeout:  5 * time.Minute,
		MaxRetries:   2,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisClient{
		client: client,
		logger: logger.WithField("component", "redis"),
		cfg:    cfg,
		ttl:    cfg.CacheTTL,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

// Health checks Redis health
func (rc *RedisClient) Health(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetLatestPrice caches the latest price for a country.
func (rc *RedisClient) SetLatestPrice(ctx context.Context, country string, record *models.PriceRecord) error {
	key := fmt.Sprintf("price:latest:%s", country)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal price record: %w", err)
	}

	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}

// GetLatestPrice returns the cached latest price for a country, or nil
// on a miss.
func (rc *RedisClient) GetLatestPrice(ctx context.Context, country string) (*models.PriceRecord, error) {
	key := fmt.Sprintf("price:latest:%s", country)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}

	var record models.PriceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price record: %w", err)
	}
	return &record, nil
}

// SetCurrentPrice caches the price for the hourly interval starting at ts.
func (rc *RedisClient) SetCurrentPrice(ctx context.Context, country string, ts int64, record *models.PriceRecord) error {
	key := fmt.Sprintf("price:at:%s:%d", country, ts)

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal price record: %w", err)
	}

	return rc.client.Set(ctx, key, data, rc.ttl).Err()
}

// GetCurrentPrice returns the cached price for the hourly interval
// starting at ts, or nil on a miss.
func (rc *RedisClient) GetCurrentPrice(ctx context.Context, country string, ts int64) (*models.PriceRecord, error) {
	key := fmt.Sprintf("price:at:%s:%d", country, ts)

	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current price: %w", err)
	}

	var record models.PriceRecord
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price record: %w", err)
	}
	return &record, nil
}
