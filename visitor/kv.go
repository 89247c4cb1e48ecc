package visitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// KV is the minimal key/value contract behind the visitor store. Redis backs
// it in production; MemoryKV backs tests.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

type RedisKV struct {
	Client *redis.Client
}

func (kv RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := kv.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	} else if err != nil {
		return "", false, err
	}
	return value, true, nil
}

func (kv RedisKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return kv.Client.Set(ctx, key, value, ttl).Err()
}

func (kv RedisKV) Del(ctx context.Context, key string) error {
	return kv.Client.Del(ctx, key).Err()
}

// MemoryKV is a map-backed KV for tests. TTLs are honored with absolute
// deadlines checked on read.
type MemoryKV struct {
	mu       sync.Mutex
	data     map[string]string
	deadline map[string]time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: map[string]string{}, deadline: map[string]time.Time{}}
}

func (kv *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	value, ok := kv.data[key]
	if !ok {
		return "", false, nil
	}
	if deadline, has := kv.deadline[key]; has && time.Now().After(deadline) {
		delete(kv.data, key)
		delete(kv.deadline, key)
		return "", false, nil
	}
	return value, true, nil
}

func (kv *MemoryKV) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	kv.data[key] = value
	if ttl > 0 {
		kv.deadline[key] = time.Now().Add(ttl)
	} else {
		delete(kv.deadline, key)
	}
	return nil
}

func (kv *MemoryKV) Del(ctx context.Context, key string) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	delete(kv.data, key)
	delete(kv.deadline, key)
	return nil
}
