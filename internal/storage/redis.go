package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix はクライアントごとのハッシュキーの接頭辞。
const keyPrefix = "porttfolio:localstorage:"

// RedisBackend はクライアントごとに1つのRedisハッシュへ値を保存するBackend。
// ttlが正の場合、書き込みのたびにハッシュの有効期限を延長する。
type RedisBackend struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisBackend はRedisBackendを生成する。
// ttlにはclient_id Cookieの有効期間を渡す。0の場合は期限を設定しない。
func NewRedisBackend(client redis.UniversalClient, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

// OpenRedis はURLからRedisクライアントを生成し、疎通を確認する。
func OpenRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

func (r *RedisBackend) Get(ctx context.Context, clientID, key string) (string, bool, error) {
	value, err := r.client.HGet(ctx, hashKey(clientID), key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis HGET failed: %w", err)
	}
	return value, true, nil
}

func (r *RedisBackend) Set(ctx context.Context, clientID, key, value string) error {
	hk := hashKey(clientID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, hk, key, value)
		if r.ttl > 0 {
			pipe.Expire(ctx, hk, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis HSET failed: %w", err)
	}
	return nil
}

func hashKey(clientID string) string {
	return keyPrefix + clientID
}

// compile-time interface check
var _ Backend = (*RedisBackend)(nil)
