package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vogiaan1904/barberqueue/internal/models"
	"github.com/vogiaan1904/barberqueue/internal/repository"
	"github.com/vogiaan1904/barberqueue/pkg/logger"
)

type redisRevenueRepository struct {
	cli    *redis.Client
	l      logger.Logger
	prefix string
}

func NewRevenueRepository(cli *redis.Client, l logger.Logger, keyPrefix string) repository.RevenueRepository {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &redisRevenueRepository{
		cli:    cli,
		l:      l,
		prefix: keyPrefix,
	}
}

func (r *redisRevenueRepository) Append(ctx context.Context, log *models.RevenueLog) (string, error) {
	cp := *log
	cp.ID = newID()

	data, err := json.Marshal(cp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal revenue log: %w", err)
	}

	if err := r.cli.RPush(ctx, r.logKey(), data).Err(); err != nil {
		r.l.Errorf(ctx, "redisRevenueRepository.Append: %v", err)
		return "", err
	}

	r.l.Debugf(ctx, "revenue logged: id=%s amount=%v service=%q", cp.ID, cp.Amount, cp.ServiceType)

	return cp.ID, nil
}

func (r *redisRevenueRepository) List(ctx context.Context) ([]models.RevenueLog, error) {
	raw, err := r.cli.LRange(ctx, r.logKey(), 0, -1).Result()
	if err != nil {
		r.l.Errorf(ctx, "redisRevenueRepository.List: %v", err)
		return nil, err
	}

	logs := make([]models.RevenueLog, 0, len(raw))
	for _, item := range raw {
		var log models.RevenueLog
		if err := json.Unmarshal([]byte(item), &log); err != nil {
			r.l.Errorf(ctx, "redisRevenueRepository.List: skipping malformed log: %v", err)
			continue
		}
		logs = append(logs, log)
	}

	return logs, nil
}

func (r *redisRevenueRepository) logKey() string {
	return fmt.Sprintf("%s:revenue:log", r.prefix)
}
