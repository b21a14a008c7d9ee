package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/enrollhub/enrollment-service/pkg/logger"
)

// Ошибки блокировок
var (
	// ErrBusy блокировку держит другая операция
	ErrBusy = errors.New("lock is held by another operation")

	// ErrUnavailable хранилище блокировок недоступно
	ErrUnavailable = errors.New("lock store unavailable")
)

// Все ключи блокировок живут в одном пространстве имен
const keyPrefix = "lock:"

// releaseScript атомарно удаляет ключ, только если токен совпадает.
// Так истекшая блокировка, перехваченная другим запросом, не будет
// снята прежним владельцем.
const releaseScript = `if redis.call("get", KEYS[1]) == ARGV[1] then return redis.call("del", KEYS[1]) else return 0 end`

// Manager интерфейс распределенных блокировок с TTL
type Manager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)
	AcquireWithRetry(ctx context.Context, key string, ttl, maxWait time.Duration) (string, error)
	Release(ctx context.Context, key, token string) (bool, error)
}

// redisClient часть клиента Redis, нужная менеджеру
type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisManager реализует блокировки поверх Redis через SET NX EX
type RedisManager struct {
	client        redisClient
	retryInterval time.Duration
	log           *logger.Logger
}

// NewManager создает новый менеджер блокировок
func NewManager(client *redis.Client, retryInterval time.Duration, log *logger.Logger) *RedisManager {
	if retryInterval <= 0 {
		retryInterval = 100 * time.Millisecond
	}
	return &RedisManager{
		client:        client,
		retryInterval: retryInterval,
		log:           log,
	}
}

// Acquire пытается захватить блокировку одной попыткой. Возвращает
// токен владельца, по которому блокировку можно снять.
func (m *RedisManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()

	ok, err := m.client.SetNX(ctx, keyPrefix+key, token, ttl).Result()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if !ok {
		return "", ErrBusy
	}

	return token, nil
}

// AcquireWithRetry повторяет попытки захвата с постоянным интервалом,
// пока не истечет maxWait. Недоступность хранилища прекращает попытки
// сразу: без работающих блокировок операции не выполняются.
func (m *RedisManager) AcquireWithRetry(ctx context.Context, key string, ttl, maxWait time.Duration) (string, error) {
	var token string

	operation := func() error {
		var err error
		token, err = m.Acquire(ctx, key, ttl)
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				return backoff.Permanent(err)
			}
			return err
		}
		return nil
	}

	// Настройка backoff
	retries := uint64(maxWait / m.retryInterval)
	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.retryInterval), retries),
		ctx,
	)

	if err := backoff.Retry(operation, bo); err != nil {
		return "", err
	}

	return token, nil
}

// Release снимает блокировку, если токен все еще принадлежит вызывающему.
// Возвращает false, если ключ уже истек или перехвачен.
func (m *RedisManager) Release(ctx context.Context, key, token string) (bool, error) {
	res, err := m.client.Eval(ctx, releaseScript, []string{keyPrefix + key}, token).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	n, ok := res.(int64)
	return ok && n == 1, nil
}
