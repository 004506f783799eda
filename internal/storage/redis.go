package storage

import (
	"context"
	"errors"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// ErrBackendUnavailable indica que no hay REDIS_URL configurada.
// No es una falla: los callers eligen el backend en memoria al arranque.
var ErrBackendUnavailable = errors.New("storage backend unavailable")

// Client es el subconjunto de comandos de redis que usan los repositorios.
// *redis.Client lo satisface; los tests lo implementan a mano.
type Client interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	ZRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	ZRevRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
	TxPipelined(ctx context.Context, fn func(redis.Pipeliner) error) ([]redis.Cmder, error)
}

// Connector establece de forma perezosa una unica conexion compartida a redis.
// Llamadas concurrentes durante el setup comparten el mismo intento en vuelo;
// un intento fallido no queda cacheado, el siguiente Acquire reintenta.
type Connector struct {
	url    string
	logger *zap.Logger
	dial   func(ctx context.Context) (Client, error)

	group  singleflight.Group
	mu     sync.RWMutex
	cached Client
}

func NewConnector(url string, logger *zap.Logger) *Connector {
	c := &Connector{url: url, logger: logger}
	c.dial = c.dialRedis
	return c
}

// Acquire devuelve la conexion compartida, conectando si hace falta.
func (c *Connector) Acquire(ctx context.Context) (Client, error) {
	if c.url == "" {
		return nil, ErrBackendUnavailable
	}

	c.mu.RLock()
	cached := c.cached
	c.mu.RUnlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := c.group.Do("connect", func() (interface{}, error) {
		client, err := c.dial(ctx)
		if err != nil {
			c.logger.Error("redis connect failed", zap.Error(err))
			return nil, err
		}
		c.mu.Lock()
		c.cached = client
		c.mu.Unlock()
		return client, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Client), nil
}

func (c *Connector) dialRedis(ctx context.Context) (Client, error) {
	opts, err := redis.ParseURL(c.url)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
