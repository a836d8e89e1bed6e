package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	coorderr "github.com/sayedulabrar/distributed-rediscache/internal/errors"
)

// Conn is the storage-shard command surface consumed by the coordinator.
// Implementations own one long-lived connection to a single endpoint.
type Conn interface {
	Addr() string
	Host() string
	Port() string

	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetEx(ctx context.Context, key string, ttl time.Duration, value string) error
	Del(ctx context.Context, key string) (int64, error)
	Wait(ctx context.Context, numReplicas int, timeout time.Duration) (int64, error)
	ConfigSet(ctx context.Context, parameter, value string) error
	ReplicaOf(ctx context.Context, host, port string) error
	Info(ctx context.Context, section string) (string, error)
	Close() error
}

// ErrKeyMissing is returned by Get when the key does not exist on the shard.
// It is distinct from transport errors: callers must not treat it as an
// endpoint failure.
var ErrKeyMissing = coorderr.New(coorderr.KindKeyNotFound, "key does not exist")

var _ Conn = (*Endpoint)(nil)

// Endpoint wraps a go-redis client for one storage endpoint with per-command
// deadlines.
type Endpoint struct {
	addr    string
	host    string
	port    string
	rdb     *redis.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewEndpoint creates a client for one storage endpoint. It does not wait for
// a connection to be established; liveness is the health monitor's job, so no
// connect-time ping is performed.
func NewEndpoint(addr string, commandTimeout time.Duration, logger *zap.Logger) (*Endpoint, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, coorderr.Wrap(coorderr.KindConfigError, fmt.Sprintf("invalid endpoint address %q", addr), err)
	}
	if commandTimeout <= 0 {
		commandTimeout = 5 * time.Second
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  commandTimeout,
		ReadTimeout:  commandTimeout,
		WriteTimeout: commandTimeout,
		PoolSize:     4,
		MinIdleConns: 1,
	})

	return &Endpoint{
		addr:    addr,
		host:    host,
		port:    port,
		rdb:     rdb,
		timeout: commandTimeout,
		logger:  logger,
	}, nil
}

// Addr returns the host:port this endpoint was created with.
func (e *Endpoint) Addr() string { return e.addr }

// Host returns the host part of the endpoint address.
func (e *Endpoint) Host() string { return e.host }

// Port returns the port part of the endpoint address.
func (e *Endpoint) Port() string { return e.port }

func (e *Endpoint) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.timeout)
}

// Ping checks endpoint liveness.
func (e *Endpoint) Ping(ctx context.Context) error {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.Ping(ctx).Err()
}

// Get fetches a key. Returns ErrKeyMissing when the key is absent.
func (e *Endpoint) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()

	val, err := e.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrKeyMissing
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores a key without expiry.
func (e *Endpoint) Set(ctx context.Context, key, value string) error {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.Set(ctx, key, value, 0).Err()
}

// SetEx stores a key with a TTL.
func (e *Endpoint) SetEx(ctx context.Context, key string, ttl time.Duration, value string) error {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.SetEx(ctx, key, value, ttl).Err()
}

// Del removes a key and returns the number of keys removed.
func (e *Endpoint) Del(ctx context.Context, key string) (int64, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.Del(ctx, key).Result()
}

// Wait blocks until numReplicas acknowledge the preceding writes or the
// timeout elapses, returning the acknowledged replica count.
func (e *Endpoint) Wait(ctx context.Context, numReplicas int, timeout time.Duration) (int64, error) {
	// WAIT itself bounds the block; add slack so the command deadline does
	// not fire first.
	ctx, cancel := context.WithTimeout(ctx, timeout+e.timeout)
	defer cancel()
	return e.rdb.Wait(ctx, numReplicas, timeout).Result()
}

// ConfigSet applies a runtime configuration parameter on the endpoint.
func (e *Endpoint) ConfigSet(ctx context.Context, parameter, value string) error {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.ConfigSet(ctx, parameter, value).Err()
}

// ReplicaOf repoints replication. Pass "NO", "ONE" to detach the endpoint
// into a standalone primary.
func (e *Endpoint) ReplicaOf(ctx context.Context, host, port string) error {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.SlaveOf(ctx, host, port).Err()
}

// Info returns the raw text of one INFO section.
func (e *Endpoint) Info(ctx context.Context, section string) (string, error) {
	ctx, cancel := e.withDeadline(ctx)
	defer cancel()
	return e.rdb.Info(ctx, section).Result()
}

// Close releases the underlying connection pool.
func (e *Endpoint) Close() error {
	return e.rdb.Close()
}
