package cache

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrLocked is returned when another holder owns the lock.
var ErrLocked = errors.New("lock held by another owner")

// AcquireLock takes key for owner with SetNX. The returned release function
// deletes the key only while owner still holds it.
func AcquireLock(ctx context.Context, p Provider, key, owner string, ttl time.Duration) (func(context.Context) error, error) {
	ok, err := p.SetNX(ctx, key, []byte(owner), ttl)
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		holder, _ := p.Get(ctx, key)
		return nil, fmt.Errorf("%w: %s is held by %q", ErrLocked, key, holder)
	}
	release := func(ctx context.Context) error {
		current, err := p.Get(ctx, key)
		if errors.Is(err, ErrCacheMiss) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		if string(current) != owner {
			return nil
		}
		return p.Del(ctx, key)
	}
	return release, nil
}
