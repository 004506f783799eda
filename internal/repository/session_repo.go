package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"chat-sessions/internal/domain"
	"chat-sessions/internal/storage"
)

// SessionRepository define el contrato que ambos backends cumplen identico.
type SessionRepository interface {
	List(ctx context.Context) ([]domain.Session, error)
	GetByID(ctx context.Context, id string) (domain.Session, error)
	Create(ctx context.Context, title string) (domain.Session, error)
	Update(ctx context.Context, id string, patch domain.SessionPatch) (domain.Session, error)
	Delete(ctx context.Context, id string) error
}

// connector entrega la conexion compartida al backend durable.
type connector interface {
	Acquire(ctx context.Context) (storage.Client, error)
}

const (
	sessionKeyPrefix = "session:"
	sessionIndexKey  = "sessions:index"
)

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// sessionRecord es el formato persistido en el backend durable.
// Los timestamps se serializan como ISO-8601 (RFC 3339) con precision de ms.
type sessionRecord struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newSessionRecord(s domain.Session) sessionRecord {
	return sessionRecord{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

func (r sessionRecord) toDomain() domain.Session {
	return domain.Session{ID: r.ID, Title: r.Title, CreatedAt: r.CreatedAt, UpdatedAt: r.UpdatedAt}
}

func newSession(title string) domain.Session {
	now := time.Now().UTC()
	return domain.Session{
		ID:        uuid.NewString(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func applySessionPatch(s domain.Session, patch domain.SessionPatch) domain.Session {
	if patch.Title != nil {
		s.Title = *patch.Title
	}
	if patch.UpdatedAt != nil {
		s.UpdatedAt = *patch.UpdatedAt
	} else {
		s.UpdatedAt = time.Now().UTC()
	}
	return s
}

// MemorySessionRepository guarda sesiones en un mapa del proceso.
// El orden se computa al leer; la insercion desempata updatedAt iguales.
type MemorySessionRepository struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	order    []string
}

func NewMemorySessionRepository() *MemorySessionRepository {
	return &MemorySessionRepository{sessions: make(map[string]domain.Session)}
}

func (r *MemorySessionRepository) List(_ context.Context) ([]domain.Session, error) {
	r.mu.RLock()
	out := make([]domain.Session, 0, len(r.sessions))
	for _, id := range r.order {
		if s, ok := r.sessions[id]; ok {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

func (r *MemorySessionRepository) GetByID(_ context.Context, id string) (domain.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s, nil
}

func (r *MemorySessionRepository) Create(_ context.Context, title string) (domain.Session, error) {
	session := newSession(title)
	r.mu.Lock()
	r.sessions[session.ID] = session
	r.order = append(r.order, session.ID)
	r.mu.Unlock()
	return session, nil
}

func (r *MemorySessionRepository) Update(_ context.Context, id string, patch domain.SessionPatch) (domain.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, ok := r.sessions[id]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	updated := applySessionPatch(existing, patch)
	r.sessions[id] = updated
	return updated, nil
}

func (r *MemorySessionRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return nil
	}
	delete(r.sessions, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// RedisSessionRepository persiste cada sesion bajo session:<id> y mantiene
// un sorted set sessions:index con score = updatedAt en epoch millis.
type RedisSessionRepository struct {
	conn   connector
	logger *zap.Logger
}

func NewRedisSessionRepository(conn connector, logger *zap.Logger) *RedisSessionRepository {
	return &RedisSessionRepository{conn: conn, logger: logger}
}

func (r *RedisSessionRepository) List(ctx context.Context) ([]domain.Session, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return nil, err
	}

	ids, err := client.ZRevRange(ctx, sessionIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []domain.Session{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = sessionKey(id)
	}
	values, err := client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	out := make([]domain.Session, 0, len(ids))
	var stale []string
	for i, value := range values {
		raw, ok := value.(string)
		if !ok {
			// Drift entre indice y registros: el id indexado ya no existe.
			stale = append(stale, ids[i])
			continue
		}
		var record sessionRecord
		if err := json.Unmarshal([]byte(raw), &record); err != nil {
			r.logger.Warn("skipping malformed session record",
				zap.String("id", ids[i]), zap.Error(err))
			continue
		}
		out = append(out, record.toDomain())
	}

	if len(stale) > 0 {
		go r.pruneIndex(client, stale)
	}
	return out, nil
}

// pruneIndex limpia entradas de indice sin registro, fuera del camino de lectura.
func (r *RedisSessionRepository) pruneIndex(client storage.Client, ids []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	members := make([]interface{}, len(ids))
	for i, id := range ids {
		members[i] = id
	}
	if err := client.ZRem(ctx, sessionIndexKey, members...).Err(); err != nil {
		r.logger.Warn("pruning stale index entries failed",
			zap.Strings("ids", ids), zap.Error(err))
		return
	}
	r.logger.Info("pruned stale index entries", zap.Strings("ids", ids))
}

func (r *RedisSessionRepository) GetByID(ctx context.Context, id string) (domain.Session, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	raw, err := client.Get(ctx, sessionKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, err
	}
	var record sessionRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return domain.Session{}, err
	}
	return record.toDomain(), nil
}

func (r *RedisSessionRepository) Create(ctx context.Context, title string) (domain.Session, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	session := newSession(title)
	if err := writeSession(ctx, client, session); err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

func (r *RedisSessionRepository) Update(ctx context.Context, id string, patch domain.SessionPatch) (domain.Session, error) {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return domain.Session{}, err
	}
	existing, err := r.GetByID(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	updated := applySessionPatch(existing, patch)
	if err := writeSession(ctx, client, updated); err != nil {
		return domain.Session{}, err
	}
	return updated, nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	client, err := r.conn.Acquire(ctx)
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, sessionIndexKey, id)
		return nil
	})
	return err
}

// writeSession escribe registro y entrada de indice en un solo comando
// batched: nunca queda uno visible sin el otro.
func writeSession(ctx context.Context, client storage.Client, session domain.Session) error {
	blob, err := json.Marshal(newSessionRecord(session))
	if err != nil {
		return err
	}
	_, err = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(session.ID), blob, 0)
		pipe.ZAdd(ctx, sessionIndexKey, redis.Z{
			Score:  float64(session.UpdatedAt.UnixMilli()),
			Member: session.ID,
		})
		return nil
	})
	return err
}
