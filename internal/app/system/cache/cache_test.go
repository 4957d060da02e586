package cache_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/dalemusser/taskhub/internal/app/system/cache"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type view struct {
	IDs []string `json:"ids"`
}

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()

	if err := m.Set(ctx, "k", view{IDs: []string{"a", "b"}}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got view
	ok, err := m.Get(ctx, "k", &got)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v; want hit", ok, err)
	}
	if len(got.IDs) != 2 {
		t.Errorf("IDs = %v", got.IDs)
	}

	if err := m.Invalidate(ctx, "k", "missing"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	ok, _ = m.Get(ctx, "k", &got)
	if ok {
		t.Error("expected miss after Invalidate")
	}
}

func TestMemory_PassiveExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	m := cache.NewMemory()
	m.SetClock(func() time.Time { return now })

	_ = m.Set(ctx, "k", view{IDs: []string{"a"}}, cache.DefaultTTL)

	now = now.Add(cache.DefaultTTL - time.Second)
	var got view
	if ok, _ := m.Get(ctx, "k", &got); !ok {
		t.Fatal("expected hit before TTL")
	}

	now = now.Add(time.Second)
	if ok, _ := m.Get(ctx, "k", &got); ok {
		t.Fatal("expected miss at TTL")
	}
	if m.Len() != 0 {
		t.Errorf("expired entry should be dropped on read, Len = %d", m.Len())
	}
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	m := cache.NewMemory()

	v := view{IDs: []string{"a"}}
	_ = m.Set(ctx, "k", v, time.Minute)
	v.IDs[0] = "mutated"

	var got view
	_, _ = m.Get(ctx, "k", &got)
	if got.IDs[0] != "a" {
		t.Errorf("cache shares memory with caller: %v", got.IDs)
	}
}

func TestUserKeys(t *testing.T) {
	a := primitive.NewObjectID()
	b := primitive.NewObjectID()

	keys := cache.UserKeys(a, b, a, primitive.NilObjectID)
	if len(keys) != 4 {
		t.Fatalf("keys = %v, want 4 entries", keys)
	}
	want := map[string]bool{
		"user_teams_" + a.Hex():  true,
		"user_boards_" + a.Hex(): true,
		"user_teams_" + b.Hex():  true,
		"user_boards_" + b.Hex(): true,
	}
	for _, k := range keys {
		if !want[k] {
			t.Errorf("unexpected key %q", k)
		}
	}
}

func TestRedis_SetGetInvalidate(t *testing.T) {
	addr := os.Getenv("TASKHUB_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TASKHUB_TEST_REDIS_ADDR not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r, err := cache.NewRedis(ctx, cache.RedisConfig{Addr: addr, Prefix: "taskhub_test:" + primitive.NewObjectID().Hex() + ":"})
	if err != nil {
		t.Skipf("redis unavailable: %v", err)
	}
	defer r.Close()

	if err := r.Set(ctx, "k", view{IDs: []string{"x"}}, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var got view
	ok, err := r.Get(ctx, "k", &got)
	if err != nil || !ok || got.IDs[0] != "x" {
		t.Fatalf("Get = %v, %v, %v", ok, err, got)
	}
	if err := r.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if ok, _ := r.Get(ctx, "k", &got); ok {
		t.Error("expected miss after Invalidate")
	}
}
