package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"campusrooms/internal/config"
	"campusrooms/internal/domain"
	"campusrooms/internal/models"

	"github.com/redis/go-redis/v9"
)

const auditLogKey = "audit:log"

// RedisAuditRepository persists audit records in a capped redis list, newest
// first.
type RedisAuditRepository struct {
	client *redis.Client
	maxLen int64
}

// NewRedisClient creates a redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisAuditRepository(client *redis.Client, maxLen int64) *RedisAuditRepository {
	if maxLen <= 0 {
		maxLen = models.AuditLogMaxEntries
	}
	return &RedisAuditRepository{client: client, maxLen: maxLen}
}

func (r *RedisAuditRepository) Record(ctx context.Context, rec domain.AuditRecord) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, auditLogKey, data)
	pipe.LTrim(ctx, auditLogKey, 0, r.maxLen-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to push audit record: %w", err)
	}
	return nil
}

func (r *RedisAuditRepository) Recent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if limit <= 0 {
		limit = int(r.maxLen)
	}
	raw, err := r.client.LRange(ctx, auditLogKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read audit log: %w", err)
	}

	out := make([]domain.AuditRecord, 0, len(raw))
	for _, item := range raw {
		var rec domain.AuditRecord
		if err := json.Unmarshal([]byte(item), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit record: %w", err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// Ping verifies the redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
