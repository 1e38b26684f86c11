// Package redislock keeps two runs for the same account and trip from
// polling at once, across processes.
package redislock

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/srt-reserver/internal/logging"
	"github.com/google/uuid"
	backend "github.com/redis/go-redis/v9"
)

const DefaultTTL = 2 * time.Minute

var (
	releaseScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
else
	return 0
end`)

	extendScript = backend.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
else
	return 0
end`)
)

// Guard hands out one lease per key. A held lease is extended in the
// background until released, so runs may outlive the TTL; a crashed holder
// frees the key after at most one TTL.
type Guard struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

func New(client *backend.Client, prefix string, ttl time.Duration, logger *slog.Logger) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Guard{client: client, prefix: prefix, ttl: ttl, logger: logging.OrNop(logger)}
}

// Dial connects to the Redis server at url (redis://...) and checks it answers.
func Dial(ctx context.Context, url, prefix string, logger *slog.Logger) (*Guard, error) {
	opts, err := backend.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	client := backend.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(client, prefix, DefaultTTL, logger), nil
}

func (g *Guard) Close() error { return g.client.Close() }

// TryAcquire takes key if nobody holds it. ok is false when another holder
// has it. release gives the key back and may be called more than once.
func (g *Guard) TryAcquire(ctx context.Context, key string) (release func(context.Context) error, ok bool, err error) {
	k := g.prefix + "run:" + key
	token := uuid.NewString()

	ok, err = g.client.SetNX(ctx, k, token, g.ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("redis error acquiring %s: %w", k, err)
	}
	if !ok {
		return nil, false, nil
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	go g.keepAlive(k, token, stop, done)

	var (
		once       sync.Once
		releaseErr error
	)
	release = func(ctx context.Context) error {
		once.Do(func() {
			close(stop)
			<-done
			releaseErr = releaseScript.Run(ctx, g.client, []string{k}, token).Err()
		})
		return releaseErr
	}
	return release, true, nil
}

func (g *Guard) keepAlive(key, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(g.ttl / 3)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			held, err := g.extend(context.Background(), key, token)
			if err != nil {
				g.logger.Warn("extend run lease", "key", key, "error", err)
				continue
			}
			if !held {
				g.logger.Warn("run lease lost", "key", key)
				return
			}
		}
	}
}

func (g *Guard) extend(ctx context.Context, key, token string) (bool, error) {
	n, err := extendScript.Run(ctx, g.client, []string{key}, token, g.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
