package runlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/orderrecon/internal/config"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	ErrLocked  = errors.New("run_in_progress")
	ErrNotHeld = errors.New("run_lock_not_held")
)

var Module = fx.Module("runlock",
	fx.Provide(New),
)

// Release gives up a held lock.
type Release func(ctx context.Context) error

// Locker keeps two reconciliation runs from writing the fact table at the
// same time.
type Locker interface {
	Acquire(ctx context.Context) (Release, error)
}

type Param struct {
	fx.In

	Cfg   config.Config
	Log   *zap.Logger
	Node  *snowflake.Node
	Redis *redis.Client `optional:"true"`
}

// New returns a Redis lock when a client is configured and a no-op lock
// otherwise.
func New(p Param) Locker {
	if p.Redis == nil {
		return Noop{}
	}
	return NewRedisLocker(p.Redis, p.Node, p.Cfg.Lock.Key, p.Cfg.Lock.TTL, p.Log)
}

type Noop struct{}

func (Noop) Acquire(context.Context) (Release, error) {
	return func(context.Context) error { return nil }, nil
}

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the TTL only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds the lock for as long as the run is alive: the key expires
// after ttl only if the holder stops renewing it, e.g. when the process dies.
type RedisLocker struct {
	client  *redis.Client
	node    *snowflake.Node
	key     string
	ttl     time.Duration
	refresh time.Duration
	log     *zap.Logger
}

func NewRedisLocker(client *redis.Client, node *snowflake.Node, key string, ttl time.Duration, log *zap.Logger) *RedisLocker {
	return &RedisLocker{
		client:  client,
		node:    node,
		key:     key,
		ttl:     ttl,
		refresh: ttl / 3,
		log:     log.Named("runlock"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context) (Release, error) {
	token := l.node.Generate().String()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		holder, _ := l.client.Get(ctx, l.key).Result()
		l.log.Warn("run lock held elsewhere", zap.String("key", l.key), zap.String("holder", holder))
		return nil, ErrLocked
	}
	l.log.Debug("run lock acquired", zap.String("key", l.key), zap.String("token", token))

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(token, stop, done)

	var once sync.Once
	return func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
		})
		n, err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Int()
		if err != nil {
			return fmt.Errorf("release run lock: %w", err)
		}
		if n == 0 {
			return ErrNotHeld
		}
		return nil
	}, nil
}

// keepAlive extends the TTL every refresh interval until stop is closed or
// the lock turns out to belong to someone else.
func (l *RedisLocker) keepAlive(token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	if l.refresh <= 0 {
		return
	}
	ticker := time.NewTicker(l.refresh)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			held, err := l.extend(context.Background(), token)
			if err != nil {
				l.log.Warn("extend run lock", zap.Error(err))
				continue
			}
			if !held {
				l.log.Error("run lock lost", zap.String("key", l.key))
				return
			}
		}
	}
}

func (l *RedisLocker) extend(ctx context.Context, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, l.refresh)
	defer cancel()
	n, err := extendScript.Run(ctx, l.client, []string{l.key}, token, l.ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
