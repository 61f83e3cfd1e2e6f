package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/boardpilot/itemagent/internal/agent/model"
	errx "github.com/boardpilot/itemagent/internal/core/error"
	logx "github.com/boardpilot/itemagent/pkg/logger"
)

type RedisCheckpointRepository struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCheckpointRepository(rdb redis.Cmdable, ttl time.Duration) *RedisCheckpointRepository {
	return &RedisCheckpointRepository{rdb: rdb, ttl: ttl}
}

func (r *RedisCheckpointRepository) checkpointKey(threadID string) string {
	return fmt.Sprintf("thread:%s:checkpoint", threadID)
}

func (r *RedisCheckpointRepository) Save(ctx context.Context, checkpoint *model.Checkpoint) error {
	checkpoint.UpdatedAt = time.Now().UTC()

	b, err := json.Marshal(checkpoint)
	if err != nil {
		logx.Error().Err(err).Str("threadID", checkpoint.ThreadID).Msg("failed to marshal checkpoint")
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	key := r.checkpointKey(checkpoint.ThreadID)

	if err := r.rdb.Set(ctx, key, b, r.ttl).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to save checkpoint to redis")
		return errx.WrapRedis(err)
	}
	return nil
}

func (r *RedisCheckpointRepository) Load(ctx context.Context, threadID string) (*model.Checkpoint, error) {
	key := r.checkpointKey(threadID)

	raw, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errx.New(err, http.StatusNotFound, errx.CheckpointNotFoundMessage)
		}
		logx.Error().Err(err).Str("key", key).Msg("failed to load checkpoint from redis")
		return nil, errx.WrapRedis(err)
	}

	var cp model.Checkpoint
	if err := json.Unmarshal([]byte(raw), &cp); err != nil {
		logx.Error().Err(err).Str("threadID", threadID).Msg("failed to unmarshal checkpoint")
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

func (r *RedisCheckpointRepository) Delete(ctx context.Context, threadID string) error {
	key := r.checkpointKey(threadID)
	if err := r.rdb.Del(ctx, key).Err(); err != nil {
		logx.Error().Err(err).Str("key", key).Msg("failed to delete checkpoint from redis")
		return errx.WrapRedis(err)
	}
	return nil
}

var _ model.CheckpointRepository = (*RedisCheckpointRepository)(nil)
