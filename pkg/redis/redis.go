package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"ProctorEngine/internal/entity"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Live session state shared with dashboard consumers: the stats snapshot is
// cached under a TTL'd key, accepted violations are fanned out on a pub/sub
// channel.
type IRedis interface {
	SetSessionStats(ctx context.Context, sessionID string, stats entity.ProctorStats, expiration time.Duration) error
	GetSessionStats(ctx context.Context, sessionID string) (entity.ProctorStats, error)
	PublishViolation(ctx context.Context, sessionID string, violation entity.Violation) error
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func statsKey(sessionID string) string {
	return fmt.Sprintf("proctor:stats:%s", sessionID)
}

func violationChannel(sessionID string) string {
	return fmt.Sprintf("proctor:violations:%s", sessionID)
}

func (r *redisClient) SetSessionStats(ctx context.Context, sessionID string, stats entity.ProctorStats, expiration time.Duration) error {
	payload, err := json.Marshal(stats)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, statsKey(sessionID), payload, expiration).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error caching stats for session %s: %v", sessionID, err))
		return err
	}
	return nil
}

func (r *redisClient) GetSessionStats(ctx context.Context, sessionID string) (entity.ProctorStats, error) {
	val, err := r.client.Get(ctx, statsKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		logrus.Debug(fmt.Sprintf("No cached stats for session %s", sessionID))
		return entity.ProctorStats{}, err
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error getting stats for session %s: %v", sessionID, err))
		return entity.ProctorStats{}, err
	}

	var stats entity.ProctorStats
	if err := json.Unmarshal([]byte(val), &stats); err != nil {
		return entity.ProctorStats{}, err
	}
	return stats, nil
}

func (r *redisClient) PublishViolation(ctx context.Context, sessionID string, violation entity.Violation) error {
	payload, err := json.Marshal(violation)
	if err != nil {
		return err
	}

	if err := r.client.Publish(ctx, violationChannel(sessionID), payload).Err(); err != nil {
		logrus.Error(fmt.Sprintf("Error publishing violation for session %s: %v", sessionID, err))
		return err
	}
	return nil
}
