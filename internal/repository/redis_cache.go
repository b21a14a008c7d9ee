package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// TTL кэша по умолчанию, если в конфигурации не задан другой
const defaultCacheTTL = 15 * time.Minute

// NewRedisClient создает клиент Redis и проверяет соединение
func NewRedisClient(addr, password string, db int, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		log.Errorw("Failed to connect to Redis", "error", err)
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Infow("Connected to Redis successfully", "addr", addr)
	return client, nil
}

// cacheClient часть клиента Redis, нужная кэшу
type cacheClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisCache кэширует JSON-представления записей в Redis
type RedisCache struct {
	client cacheClient
	ttl    time.Duration
	log    *logger.Logger
}

// NewRedisCache создает новый экземпляр кэша поверх готового клиента
func NewRedisCache(client *redis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
		log:    log,
	}
}

// Get читает запись из кэша в dest. Возвращает false, если ключа нет.
func (c *RedisCache) Get(ctx context.Context, key string, dest any) (bool, error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return false, nil
		}
		c.log.Errorw("Error getting value from Redis", "error", err, "key", key)
		return false, fmt.Errorf("failed to get value from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Errorw("Failed to unmarshal cached value", "error", err, "key", key)
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}

	return true, nil
}

// Set кладет запись в кэш с настроенным TTL
func (c *RedisCache) Set(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		c.log.Errorw("Failed to marshal value for caching", "error", err, "key", key)
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Errorw("Failed to cache value in Redis", "error", err, "key", key)
		return fmt.Errorf("failed to cache value: %w", err)
	}

	return nil
}

// Delete удаляет ключи из кэша
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}

	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Errorw("Failed to delete keys from cache", "error", err, "keys", keys)
		return fmt.Errorf("failed to delete keys from cache: %w", err)
	}

	return nil
}
