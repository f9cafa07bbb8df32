package discovery

import (
	"context"
	"sort"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newMini(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

func registrarFor(mr *miniredis.Miniredis, instanceID string, ttl time.Duration) *Registrar {
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return newWithClient(rdb, instanceID, ttl)
}

func TestHeartbeat_RegistersInstance(t *testing.T) {
	mr := newMini(t)
	r := registrarFor(mr, "node-a", time.Minute)
	defer r.Close()

	ctx := context.Background()
	if err := r.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}

	peers, err := r.Peers(ctx)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 1 || peers[0] != "node-a" {
		t.Fatalf("peers = %v, want [node-a]", peers)
	}
}

func TestPeers_ListsEveryLiveLease(t *testing.T) {
	mr := newMini(t)
	ctx := context.Background()

	a := registrarFor(mr, "node-a", time.Minute)
	defer a.Close()
	b := registrarFor(mr, "node-b", time.Minute)
	defer b.Close()

	if err := a.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat a: %v", err)
	}
	if err := b.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat b: %v", err)
	}

	peers, err := a.Peers(ctx)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	sort.Strings(peers)
	want := []string{"node-a", "node-b"}
	if len(peers) != 2 || peers[0] != want[0] || peers[1] != want[1] {
		t.Fatalf("peers = %v, want %v", peers, want)
	}
}

func TestDeregister_RemovesLeaseImmediately(t *testing.T) {
	mr := newMini(t)
	r := registrarFor(mr, "node-a", time.Minute)
	defer r.Close()

	ctx := context.Background()
	if err := r.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	if err := r.Deregister(ctx); err != nil {
		t.Fatalf("Deregister: %v", err)
	}
	peers, err := r.Peers(ctx)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("peers = %v, want none after deregister", peers)
	}
}

func TestHeartbeat_ExpiresAfterTTL(t *testing.T) {
	mr := newMini(t)
	r := registrarFor(mr, "node-a", time.Second)
	defer r.Close()

	ctx := context.Background()
	if err := r.Heartbeat(ctx); err != nil {
		t.Fatalf("Heartbeat: %v", err)
	}
	mr.FastForward(2 * time.Second)

	peers, err := r.Peers(ctx)
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("peers = %v, want none after TTL expiry", peers)
	}
}

func TestRun_StopsAndDeregistersOnContextCancel(t *testing.T) {
	mr := newMini(t)
	r := registrarFor(mr, "node-a", time.Minute)
	defer r.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx, 10*time.Millisecond) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}

	peers, err := r.Peers(context.Background())
	if err != nil {
		t.Fatalf("Peers: %v", err)
	}
	if len(peers) != 0 {
		t.Fatalf("peers = %v, want none after Run shuts down", peers)
	}
}
