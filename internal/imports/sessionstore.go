package imports

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultSessionTTL bounds how long an abandoned wizard is kept.
const DefaultSessionTTL = 24 * time.Hour

// RedisSessionStore keeps sessions as JSON documents with a TTL.
type RedisSessionStore struct {
	client redis.UniversalClient
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore constructs the store.
func NewRedisSessionStore(client redis.UniversalClient, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{client: client, ttl: ttl, now: time.Now}
}

// SessionKey returns the redis key of a session.
func SessionKey(batchID uuid.UUID) string {
	return "imports:session:" + batchID.String()
}

// Save writes the session and refreshes its TTL.
func (s *RedisSessionStore) Save(ctx context.Context, sess *ImportSession) error {
	if sess == nil || sess.BatchID == uuid.Nil {
		return errors.New("imports: session without batch id")
	}
	sess.UpdatedAt = s.now().UTC()
	payload, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("imports: encode session: %w", err)
	}
	if err := s.client.Set(ctx, SessionKey(sess.BatchID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("imports: save session: %w", err)
	}
	return nil
}

// Load reads a session, returning ErrSessionNotFound when it expired or never
// existed.
func (s *RedisSessionStore) Load(ctx context.Context, batchID uuid.UUID) (*ImportSession, error) {
	payload, err := s.client.Get(ctx, SessionKey(batchID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("imports: load session: %w", err)
	}
	var sess ImportSession
	if err := json.Unmarshal(payload, &sess); err != nil {
		return nil, fmt.Errorf("imports: decode session: %w", err)
	}
	return &sess, nil
}

// Delete removes a session.
func (s *RedisSessionStore) Delete(ctx context.Context, batchID uuid.UUID) error {
	return s.client.Del(ctx, SessionKey(batchID)).Err()
}
