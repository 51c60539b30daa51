package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mir-codes/PhoSocial/internal/config"
	"github.com/redis/go-redis/v9"
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
		log.Printf("Warning: Failed to connect to Redis: %v. Per-user send throttling will be disabled.", err)
	} else {
		log.Println("Connected to Redis successfully")
	}
}

// CheckRateLimit counts actions per user within duration. Returns false when
// the limit is exceeded. When Redis is unavailable the caller should fail open.
func CheckRateLimit(userID int64, action string, limit int, duration time.Duration) (bool, error) {
	key := fmt.Sprintf("rate_limit:%s:%d", action, userID)
	count, err := Redis.Incr(Ctx, key).Result()
	if err != nil {
		return false, err
	}

	if count == 1 {
		Redis.Expire(Ctx, key, duration)
	}

	if count > int64(limit) {
		return false, nil
	}
	return true, nil
}
