package repository

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"chat-sessions/internal/domain"
)

// MessageRepository es un log append-only de mensajes por sesion.
type MessageRepository interface {
	ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error)
	Create(ctx context.Context, sessionID, role, content string) (domain.Message, error)
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

const messageKeyPrefix = "messages:"

func messageKey(sessionID string) string {
	return messageKeyPrefix + sessionID
}

// messageRecord es el formato persistido de cada entrada de la lista.
type messageRecord struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

func newMessageRecord(m domain.Message) messageRecord {
	return messageRecord{ID: m.ID, SessionID: m.SessionID, Role: m.Role, Content: m.Content, CreatedAt: m.CreatedAt}
}

func (r messageRecord) toDomain() domain.Message {
	return domain.Message{ID: r.ID, SessionID: r.SessionID, Role: r.Role, Content: r.Content, CreatedAt: r.CreatedAt}
}

func newMessage(sessionID, role, content string) domain.Message {
	return domain.Message{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}

// MemoryMessageRepository guarda los mensajes de cada sesion en un slice
// en orden de llegada.
type MemoryMessageRepository struct {
	mu       sync.RWMutex
	messages map[string][]domain.Message
}

func NewMemoryMessageRepository() *MemoryMessageRepository {
	return &MemoryMessageRepository{messages: make(map[string][]domain.Message)}
}

func (r *MemoryMessageRepository) ListBySessionID(_ context.Context, sessionID string) ([]domain.Message, error) {
	r.mu.RLock()
	out := make([]domain.Message, len(r.messages[sessionID]))
	copy(out, r.messages[sessionID])
	r.mu.RUnlock()

	// El orden de insercion ya deberia ser cronologico; el sort defensivo
	// cubre appends que compiten o relojes corridos.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryMessageRepository) Create(_ context.Context, sessionID, role, content string) (domain.Message, error) {
	message := newMessage(sessionID, role, content)
	r.mu.Lock()
	r.messages[sessionID] = append(r.messages[sessionID], message)
	r.mu.Unlock()
	return message, nil
}

func (r *MemoryMessageRepository) DeleteBySessionID(_ context.Context, sessionID string) error {
	r.mu.Lock()
	delete(r.messages, sessionID)
	r.mu.Unlock()
	return nil
}

// RedisMessageRepository persiste los mensajes de una sesion como lista
// bajo messages:<sessionId>; cada append es un push al final.
type RedisMessageRepository struct {
	conn   connector
	logger *zap.Logger
}

func NewRedisMessageRepository(conn connector, logger *zap.Logger) *RedisMessageRepository {
	return &RedisMessageRepository{conn: conn, logger: logger}
}

func (r *RedisMessageRepository) ListBySessionID(ctx context.Context, sessionID string) ([]domain.Message, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	values, err := client.LRange(ctx, messageKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Message, 0, len(values))
	for _, raw := range values {
		var record messageRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			r.logger.Warn("skipping malformed message record",
				zap.String("session_id", sessionID), zap.Error(err))
			continue
		}
		out = append(out, record.toDomain())
	}
	return out, nil
}

func (r *RedisMessageRepository) Create(ctx context.Context, sessionID, role, content string) (domain.Message, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return domain.Message{}, err
	}
	message := newMessage(sessionID, role, content)
	blob, err := json.Marshal(newMessageRecord(message))
	if err != nil {
		return domain.Message{}, err
	}
	if err := client.RPush(ctx, messageKey(sessionID), blob).Err(); err != nil {
		return domain.Message{}, err
	}
	return message, nil
}

func (r *RedisMessageRepository) DeleteBySessionID(ctx context.Context, sessionID string) error {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	return client.Del(ctx, messageKey(sessionID)).Err()
}
