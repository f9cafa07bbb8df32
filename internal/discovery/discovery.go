// Package discovery advertises a region cache instance's presence to
// its peers through a Redis lease: each instance periodically refreshes
// a TTL'd key under a shared prefix, and any instance can list who else
// is currently live. It's advertisement only — the cache contents stay
// per-process, consistent with spec.md's Non-goals around distributed
// cache coherence.
package discovery

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "regioncache:instances:"

// Registrar holds a renewing lease for one instance ID.
type Registrar struct {
	rdb        *redis.Client
	instanceID string
	ttl        time.Duration
}

// New constructs a Registrar against addr. instanceID should be unique
// per process (e.g. hostname:pid); ttl controls how quickly a crashed
// instance disappears from peers' view once heartbeats stop.
func New(addr, instanceID string, ttl time.Duration) *Registrar {
	return &Registrar{
		rdb:        redis.NewClient(&redis.Options{Addr: addr}),
		instanceID: instanceID,
		ttl:        ttl,
	}
}

// newWithClient lets tests inject a client pointed at a miniredis
// instance instead of dialing a real address.
func newWithClient(rdb *redis.Client, instanceID string, ttl time.Duration) *Registrar {
	return &Registrar{rdb: rdb, instanceID: instanceID, ttl: ttl}
}

func (r *Registrar) key() string {
	return keyPrefix + r.instanceID
}

// Heartbeat (re)acquires the lease for ttl. Safe to call repeatedly;
// an existing lease is simply refreshed.
func (r *Registrar) Heartbeat(ctx context.Context) error {
	if err := r.rdb.Set(ctx, r.key(), time.Now().UTC().Format(time.RFC3339), r.ttl).Err(); err != nil {
		return fmt.Errorf("discovery: heartbeat: %w", err)
	}
	return nil
}

// Run heartbeats on interval until ctx is canceled, then deregisters.
func (r *Registrar) Run(ctx context.Context, interval time.Duration) error {
	if err := r.Heartbeat(ctx); err != nil {
		return err
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = r.Deregister(context.Background())
			return nil
		case <-ticker.C:
			if err := r.Heartbeat(ctx); err != nil {
				return err
			}
		}
	}
}

// Deregister removes this instance's lease immediately instead of
// waiting for it to expire.
func (r *Registrar) Deregister(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("discovery: deregister: %w", err)
	}
	return nil
}

// Peers lists every instance ID with a currently-live lease.
func (r *Registrar) Peers(ctx context.Context) ([]string, error) {
	var out []string
	iter := r.rdb.Scan(ctx, 0, keyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		out = append(out, iter.Val()[len(keyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("discovery: scan peers: %w", err)
	}
	return out, nil
}

// Close releases the underlying Redis connection pool.
func (r *Registrar) Close() error {
	return r.rdb.Close()
}
