package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/baseresearch/echopod-companion-chatbot/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "session:"

type Redis struct {
	rdb *redis.Client
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

func NewRedis(cfg RedisConfig) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Redis{rdb: rdb}
}

func (r *Redis) Get(ctx context.Context, userID int64) (model.Session, error) {
	val, err := r.rdb.Get(ctx, sessionKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return model.Session{}, nil
		}

		return model.Session{}, fmt.Errorf("get session from redis: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal([]byte(val), &s); err != nil {
		return model.Session{}, fmt.Errorf("decode session: %w", err)
	}

	return s, nil
}

func (r *Redis) Put(ctx context.Context, userID int64, s model.Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := r.rdb.Set(ctx, sessionKey(userID), raw, 0).Err(); err != nil {
		return fmt.Errorf("store session in redis: %w", err)
	}

	return nil
}

func (r *Redis) ScanUserIDs(ctx context.Context, cursor uint64, count int64) ([]int64, uint64, error) {
	keys, next, err := r.rdb.Scan(ctx, cursor, keyPrefix+"*", count).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("scan sessions in redis: %w", err)
	}

	ids := make([]int64, 0, len(keys))
	for _, key := range keys {
		id, err := strconv.ParseInt(strings.TrimPrefix(key, keyPrefix), 10, 64)
		if err != nil {
			// Foreign key in the keyspace; not ours to interpret.
			continue
		}
		ids = append(ids, id)
	}

	return ids, next, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}

func sessionKey(userID int64) string {
	return keyPrefix + strconv.FormatInt(userID, 10)
}
