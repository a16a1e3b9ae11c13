package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RedisStorage keeps a partition in Redis under "session:<profile>:" and
// announces writes on the "session:<profile>:changes" channel. Each handle
// tags its messages with its own origin id and skips them on receipt.
type RedisStorage struct {
	rdb     *redis.Client
	profile string
	origin  string
}

// changeMessage is the pub/sub envelope
type changeMessage struct {
	Origin  string `json:"origin"`
	Key     string `json:"key"`
	Value   string `json:"value,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
}

// NewRedisStorage returns a new handle on the profile's partition
func NewRedisStorage(rdb *redis.Client, profile string) *RedisStorage {
	return &RedisStorage{rdb: rdb, profile: profile, origin: uuid.NewString()}
}

func (r *RedisStorage) key(k string) string {
	return "session:" + r.profile + ":" + k
}

func (r *RedisStorage) channel() string {
	return "session:" + r.profile + ":changes"
}

func (r *RedisStorage) Get(ctx context.Context, key string) (string, bool, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, true, nil
}

func (r *RedisStorage) Set(ctx context.Context, key, value string) error {
	if err := r.rdb.Set(ctx, r.key(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return r.publish(ctx, changeMessage{Key: key, Value: value})
}

func (r *RedisStorage) SetIfAbsent(ctx context.Context, key, value string) (bool, error) {
	ok, err := r.rdb.SetNX(ctx, r.key(key), value, 0).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}
	return true, r.publish(ctx, changeMessage{Key: key, Value: value})
}

func (r *RedisStorage) Delete(ctx context.Context, key string) error {
	n, err := r.rdb.Del(ctx, r.key(key)).Result()
	if err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	if n == 0 {
		return nil
	}
	return r.publish(ctx, changeMessage{Key: key, Deleted: true})
}

func (r *RedisStorage) publish(ctx context.Context, msg changeMessage) error {
	msg.Origin = r.origin
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	if err := r.rdb.Publish(ctx, r.channel(), b).Err(); err != nil {
		return fmt.Errorf("redis publish: %w", err)
	}
	return nil
}

// Subscribe listens on the partition's change channel. The subscription is
// confirmed before Subscribe returns, so writes made afterwards are seen.
func (r *RedisStorage) Subscribe(ctx context.Context) (<-chan Change, error) {
	ps := r.rdb.Subscribe(ctx, r.channel())
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("redis subscribe: %w", err)
	}

	out := make(chan Change, 64)
	go func() {
		defer close(out)
		defer func() { _ = ps.Close() }()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					return
				}
				var cm changeMessage
				if err := json.Unmarshal([]byte(m.Payload), &cm); err != nil {
					logrus.WithError(err).WithField("channel", m.Channel).Warn("Dropping malformed session change")
					continue
				}
				if cm.Origin == r.origin {
					continue
				}
				select {
				case out <- Change{Key: cm.Key, Value: cm.Value, Deleted: cm.Deleted}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
