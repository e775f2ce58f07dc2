package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps one browser session's credentials in Redis so a restart
// of the web front-end does not sign everybody out.
type RedisStore struct {
	Client *redis.Client
	Key    string
	TTL    time.Duration
}

var _ Store = RedisStore{}

func (s RedisStore) Load() (*Snapshot, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := s.Client.Get(ctx, s.Key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &snap, nil
}

func (s RedisStore) Save(snap *Snapshot) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.Client.Set(ctx, s.Key, data, s.TTL).Err()
}

func (s RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.Client.Del(ctx, s.Key).Err()
}
