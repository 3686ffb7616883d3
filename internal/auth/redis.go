package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const sessionKeyPrefix = "jsonwidget:session:"

var _ SessionStore = (*RedisSessions)(nil)

// RedisSessions stores sessions as JSON values with a Redis TTL, so expiry
// is enforced by Redis itself.
type RedisSessions struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client, now: time.Now}
}

func (r *RedisSessions) Put(ctx context.Context, s Session) error {
	ttl := s.ExpiresAt.Sub(r.now())
	if ttl <= 0 {
		return fmt.Errorf("auth: session %s already expired", s.ID)
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("auth: encode session: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+s.ID, data, ttl).Err(); err != nil {
		return fmt.Errorf("auth: store session: %w", err)
	}
	return nil
}

func (r *RedisSessions) Get(ctx context.Context, id string) (Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, ErrSessionExpired
	}
	if err != nil {
		return Session{}, fmt.Errorf("auth: load session: %w", err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return Session{}, fmt.Errorf("auth: decode session: %w", err)
	}
	s.ID = id
	return s, nil
}

// Check pings Redis for the readiness check.
func (r *RedisSessions) Check(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
