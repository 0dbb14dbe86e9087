package redislock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bsm/redislock"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/nutrition-etl/internal/modules/load"
	"github.com/yungbote/nutrition-etl/internal/platform/logger"
)

// ErrNotObtained means another writer holds the lease.
var ErrNotObtained = errors.New("writer lease held by another process")

type Config struct {
	Addr string
	TTL  time.Duration
	// Wait bounds how long Obtain retries while the lease is held elsewhere.
	Wait time.Duration
}

// Locker hands out single-writer leases backed by redis.
type Locker struct {
	rdb    *goredis.Client
	client *redislock.Client
	cfg    Config
	log    *logger.Logger
}

func New(ctx context.Context, log *logger.Logger, cfg Config) (*Locker, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, fmt.Errorf("missing redis address")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		DialTimeout: 5 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return NewWithClient(rdb, log, cfg), nil
}

func NewWithClient(rdb *goredis.Client, log *logger.Logger, cfg Config) *Locker {
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &Locker{
		rdb:    rdb,
		client: redislock.New(rdb),
		cfg:    cfg,
		log:    log.With("service", "WriterLease"),
	}
}

func (l *Locker) Obtain(ctx context.Context, key string) (load.Lease, error) {
	opts := &redislock.Options{}
	if l.cfg.Wait > 0 {
		opts.RetryStrategy = redislock.LimitRetry(redislock.LinearBackoff(500*time.Millisecond), int(l.cfg.Wait/(500*time.Millisecond)))
	}
	lock, err := l.client.Obtain(ctx, key, l.cfg.TTL, opts)
	if errors.Is(err, redislock.ErrNotObtained) {
		l.log.Warn("Writer lease not obtained", "key", key)
		return nil, fmt.Errorf("%w: %s", ErrNotObtained, key)
	}
	if err != nil {
		return nil, fmt.Errorf("obtain lease %s: %w", key, err)
	}
	l.log.Debug("Writer lease obtained", "key", key, "ttl", l.cfg.TTL.String())
	return &lease{lock: lock}, nil
}

func (l *Locker) Close() error {
	return l.rdb.Close()
}

type lease struct {
	lock *redislock.Lock
}

func (ls *lease) Release(ctx context.Context) error {
	err := ls.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil
	}
	return err
}
