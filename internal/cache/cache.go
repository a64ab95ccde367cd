package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dharmasatrya/flightpoll/internal/models"
)

// Cache stores result sets of converged epochs. A miss and a broken backend
// look the same to callers: the controller simply polls.
type Cache interface {
	Get(ctx context.Context, key string) (*models.ResultSet, bool)
	Set(ctx context.Context, key string, set models.ResultSet) error
	Close() error
}

type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	TTL      time.Duration
}

func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Host:     "localhost",
		Port:     "6379",
		Password: "",
		DB:       0,
		TTL:      5 * time.Minute,
	}
}

func NewRedisCache(cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return &RedisCache{
		client: client,
		ttl:    cfg.TTL,
	}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) (*models.ResultSet, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}

	var set models.ResultSet
	if err := json.Unmarshal(data, &set); err != nil {
		return nil, false
	}

	return &set, true
}

func (c *RedisCache) Set(ctx context.Context, key string, set models.ResultSet) error {
	data, err := json.Marshal(set)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, key, data, c.ttl).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

type NoOpCache struct{}

func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

func (c *NoOpCache) Get(ctx context.Context, key string) (*models.ResultSet, bool) {
	return nil, false
}

func (c *NoOpCache) Set(ctx context.Context, key string, set models.ResultSet) error {
	return nil
}

func (c *NoOpCache) Close() error {
	return nil
}

// Key identifies one epoch: the session plus the exact filter it polled with.
// encoding/json sorts map keys, so equal payloads hash equally.
func Key(searchID string, payload models.Payload) string {
	keyData := struct {
		SearchID string         `json:"search_id"`
		Filter   models.Payload `json:"filter"`
	}{
		SearchID: searchID,
		Filter:   payload,
	}
	if keyData.Filter == nil {
		keyData.Filter = models.Payload{}
	}

	data, _ := json.Marshal(keyData)
	hash := sha256.Sum256(data)
	return "flightpoll:" + hex.EncodeToString(hash[:])
}
