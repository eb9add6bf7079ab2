package database

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/CodeFormerCodeFormer/shorty/internal/config"
)

var Redis *redis.Client
var Ctx = context.Background()

func InitRedis() {
	Redis = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       0,
	})

	_, err := Redis.Ping(Ctx).Result()
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Token revocation and stats caching will be disabled.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}

// Token revocation (logout)

func BlacklistToken(jti string, ttl time.Duration) error {
	if Redis == nil {
		return nil
	}
	return Redis.Set(Ctx, "token_blacklist:"+jti, "1", ttl).Err()
}

func IsTokenBlacklisted(jti string) bool {
	if Redis == nil || jti == "" {
		return false
	}
	exists, err := Redis.Exists(Ctx, "token_blacklist:"+jti).Result()
	if err != nil {
		// Fail open: an unreachable Redis must not lock everyone out
		return false
	}
	return exists > 0
}

// Short-lived caching for owner-facing stats (country breakdown)

func CacheSet(key string, value interface{}, expiration time.Duration) error {
	if Redis == nil {
		return nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return Redis.Set(Ctx, key, payload, expiration).Err()
}

func CacheGet(key string, dest interface{}) error {
	if Redis == nil {
		return redis.Nil
	}
	val, err := Redis.Get(Ctx, key).Result()
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(val), dest)
}

func CacheDelete(keys ...string) error {
	if Redis == nil || len(keys) == 0 {
		return nil
	}
	return Redis.Del(Ctx, keys...).Err()
}
