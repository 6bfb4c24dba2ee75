package lease

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// releaseScript deletes the lease key only when it still holds our token,
// so a holder whose lease expired cannot release a successor's lease.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only when the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("pexpire", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker implements Locker on a shared redis, for deployments running
// more than one worker process.
type RedisLocker struct {
	client *redis.Client
	logger zerolog.Logger
}

func NewRedisLocker(client *redis.Client, logger zerolog.Logger) *RedisLocker {
	return &RedisLocker{client: client, logger: logger}
}

func leaseKey(jobID string) string {
	return "mediagen:lease:" + jobID
}

func (l *RedisLocker) Acquire(ctx context.Context, jobID string, ttl time.Duration) (Lease, bool, error) {
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, leaseKey(jobID), token, ttl).Result()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	return &redisLease{locker: l, jobID: jobID, token: token}, true, nil
}

type redisLease struct {
	locker *RedisLocker
	jobID  string
	token  string
}

func (r *redisLease) Extend(ctx context.Context, ttl time.Duration) error {
	res, err := extendScript.Run(ctx, r.locker.client, []string{leaseKey(r.jobID)}, r.token, ttl.Milliseconds()).Int()
	if err != nil {
		return err
	}
	if res == 0 {
		return ErrLeaseLost
	}
	return nil
}

func (r *redisLease) Release() {
	// Release with a fresh context: the job context may already be done.
	releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := releaseScript.Run(releaseCtx, r.locker.client, []string{leaseKey(r.jobID)}, r.token).Err(); err != nil && err != redis.Nil {
		r.locker.logger.Warn().Err(err).Str("job_id", r.jobID).Msg("lease: release failed, relying on TTL")
	}
}

var _ Locker = (*RedisLocker)(nil)
