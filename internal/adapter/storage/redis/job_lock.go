package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only if this holder still owns it.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock implements ports.JobLock with SET NX PX and an owner token, so
// several scheduler replicas never run the same pass concurrently.
type JobLock struct {
	client *goredis.Client
	prefix string
	owner  string
}

// NewJobLock creates a lock handle owned by this process.
func NewJobLock(client *goredis.Client) *JobLock {
	return &JobLock{
		client: client,
		prefix: "joblock:",
		owner:  uuid.NewString(),
	}
}

// Acquire returns true when the lock was free and is now held for ttl.
func (l *JobLock) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	result, err := l.client.SetArgs(ctx, l.prefix+name, l.owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis job lock acquire: %w", err)
	}
	return result == "OK", nil
}

// Release frees the lock if still owned; a lock that expired and was taken
// over by another holder is left alone.
func (l *JobLock) Release(ctx context.Context, name string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + name}, l.owner).Err(); err != nil {
		return fmt.Errorf("redis job lock release: %w", err)
	}
	return nil
}
