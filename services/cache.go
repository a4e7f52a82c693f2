package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bus-bay-prediction-api/config"

	"github.com/bluele/gcache"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Pub/sub channels shared by the recorder and the live websocket.
const (
	LiveChannel     = "businfo:live"
	ArrivalsChannel = "businfo:arrivals"
)

var ErrCacheMiss = errors.New("cache miss")

// CacheService stores JSON values in Redis. When Redis is unreachable it
// keeps serving Get/Set from an in-process LRU; pub/sub is unavailable then.
type CacheService struct {
	client *redis.Client
	local  gcache.Cache
}

func NewCacheService(cfg config.RedisConfig) (*CacheService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Retry up to 10 times (covers sidecar startup delay)
	var lastErr error
	for i := 0; i < 10; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		lastErr = client.Ping(ctx).Err()
		cancel()
		if lastErr == nil {
			return &CacheService{client: client}, nil
		}
		log.Warn().Err(lastErr).Int("attempt", i+1).Msg("redis ping failed")
		time.Sleep(2 * time.Second)
	}

	client.Close()
	return NewLocalCacheService(), fmt.Errorf("redis ping failed after 10 attempts: %w", lastErr)
}

func NewLocalCacheService() *CacheService {
	return &CacheService{local: gcache.New(256).LRU().Build()}
}

func (s *CacheService) Client() *redis.Client {
	return s.client
}

// Available reports whether Redis backs the cache.
func (s *CacheService) Available() bool {
	return s.client != nil
}

func (s *CacheService) Ping(ctx context.Context) error {
	if s.client == nil {
		return errors.New("redis unavailable, using local cache")
	}
	return s.client.Ping(ctx).Err()
}

// Get decodes the value under key into dest, or returns ErrCacheMiss.
func (s *CacheService) Get(ctx context.Context, key string, dest interface{}) error {
	var data []byte
	if s.client != nil {
		val, err := s.client.Get(ctx, key).Bytes()
		if err == redis.Nil {
			return ErrCacheMiss
		}
		if err != nil {
			return err
		}
		data = val
	} else {
		val, err := s.local.Get(key)
		if err != nil {
			return ErrCacheMiss
		}
		data = val.([]byte)
	}
	return json.Unmarshal(data, dest)
}

func (s *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	if s.client == nil {
		return s.local.SetWithExpire(key, data, ttl)
	}
	return s.client.Set(ctx, key, data, ttl).Err()
}

func (s *CacheService) Delete(ctx context.Context, key string) error {
	if s.client == nil {
		s.local.Remove(key)
		return nil
	}
	return s.client.Del(ctx, key).Err()
}

func (s *CacheService) Publish(ctx context.Context, channel string, message interface{}) error {
	if s.client == nil {
		return nil
	}
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, channel, data).Err()
}

// Subscribe returns nil when Redis is unavailable.
func (s *CacheService) Subscribe(ctx context.Context, channel string) *redis.PubSub {
	if s.client == nil {
		return nil
	}
	return s.client.Subscribe(ctx, channel)
}

func (s *CacheService) Close() error {
	if s.client == nil {
		s.local.Purge()
		return nil
	}
	return s.client.Close()
}
