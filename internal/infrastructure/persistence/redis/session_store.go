package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"video-rag-api/internal/domain/entity"
	"video-rag-api/internal/domain/repository"
)

const sessionKeyPrefix = "session:active_video:"

// SessionStore 基于 Redis 的会话状态存储，每个用户一个键，写入即覆盖
type SessionStore struct {
	client *Client
	ttl    time.Duration
}

var _ repository.SessionRepository = (*SessionStore)(nil)

// NewSessionStore 创建会话存储，ttl 为 0 时不过期
func NewSessionStore(client *Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

// SessionKey 会话键
func SessionKey(userID string) string {
	return sessionKeyPrefix + userID
}

// SetActiveVideo 设置用户当前视频
func (s *SessionStore) SetActiveVideo(ctx context.Context, userID, videoID string) (*entity.ActiveSession, error) {
	ctx, span := tracer.Start(ctx, "redis.SessionStore.SetActiveVideo",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	now := time.Now().UTC()
	sess := &entity.ActiveSession{
		UserID:    userID,
		VideoID:   videoID,
		UpdatedAt: now,
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := s.client.Set(ctx, SessionKey(userID), data, s.ttl); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to save session: %w", err)
	}
	if s.ttl > 0 {
		sess.ExpiresAt = now.Add(s.ttl)
	}
	return sess, nil
}

// GetActiveVideo 获取用户当前视频
func (s *SessionStore) GetActiveVideo(ctx context.Context, userID string) (*entity.ActiveSession, error) {
	ctx, span := tracer.Start(ctx, "redis.SessionStore.GetActiveVideo",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	key := SessionKey(userID)
	data, err := s.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess entity.ActiveSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}

	// TTL 查询失败不影响读取结果
	if s.ttl > 0 {
		if remaining, err := s.client.TTL(ctx, key); err == nil && remaining > 0 {
			sess.ExpiresAt = time.Now().UTC().Add(remaining)
		}
	}
	return &sess, nil
}

// ClearActiveVideo 清除用户当前视频
func (s *SessionStore) ClearActiveVideo(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "redis.SessionStore.ClearActiveVideo",
		trace.WithAttributes(attribute.String("user_id", userID)))
	defer span.End()

	if err := s.client.Del(ctx, SessionKey(userID)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
