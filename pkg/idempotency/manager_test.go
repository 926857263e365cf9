package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/getsum-node/pkg/config"
	"github.com/angelmondragon/getsum-node/pkg/redis"
)

type fakeStore struct {
	setNXResult bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	return f.setNXResult, f.setNXError
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "getsum:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	if len(keys) > 0 {
		f.lastDeleted = keys[0]
	}
	return nil
}

func TestNewManagerValidation(t *testing.T) {
	if _, err := NewManager(nil, time.Hour); err == nil {
		t.Fatal("expected error for nil store")
	}
	if _, err := NewManager(&fakeStore{}, -time.Second); err == nil {
		t.Fatal("expected error for negative ttl")
	}
}

func TestCheckAndMarkProcessed_FirstTime(t *testing.T) {
	store := &fakeStore{setNXResult: true}
	manager, err := NewManager(store, 24*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	messageID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(context.Background(), "getsum", messageID)
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if already {
		t.Fatalf("expected first call to return false, got true")
	}

	expectedKey := "getsum:idempotency:msg:processed:getsum:" + messageID.String()
	if store.lastKey != expectedKey {
		t.Fatalf("unexpected key: %q", store.lastKey)
	}
	if store.lastTTL != 24*time.Hour {
		t.Fatalf("unexpected ttl: %v", store.lastTTL)
	}
}

func TestCheckAndMarkProcessed_AlreadyProcessed(t *testing.T) {
	store := &fakeStore{setNXResult: false}
	manager, err := NewManager(store, 12*time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	already, err := manager.CheckAndMarkProcessed(context.Background(), "getsum", uuid.New())
	if err != nil {
		t.Fatalf("CheckAndMarkProcessed: %v", err)
	}
	if !already {
		t.Fatalf("expected already processed, got false")
	}
}

func TestCheckAndMarkProcessed_Errors(t *testing.T) {
	store := &fakeStore{setNXError: errors.New("boom")}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	if _, err := manager.CheckAndMarkProcessed(context.Background(), "getsum", uuid.New()); err == nil {
		t.Fatal("expected store error")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "", uuid.New()); err == nil {
		t.Fatal("expected error for empty consumer")
	}
	if _, err := manager.CheckAndMarkProcessed(context.Background(), "getsum", uuid.Nil); err == nil {
		t.Fatal("expected error for nil message id")
	}
}

func TestDeleteProcessed(t *testing.T) {
	store := &fakeStore{}
	manager, err := NewManager(store, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	messageID := uuid.New()
	if err := manager.Delete(context.Background(), "getsum", messageID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	expected := "getsum:idempotency:msg:processed:getsum:" + messageID.String()
	if store.lastDeleted != expected {
		t.Fatalf("unexpected deleted key %q", store.lastDeleted)
	}
}

func TestManagerWithRedis(t *testing.T) {
	m, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer m.Close()

	ctx := context.Background()
	client, err := redis.New(ctx, config.RedisConfig{Address: m.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis: %v", err)
	}
	defer client.Close()

	manager, err := NewManager(client, time.Hour)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	messageID := uuid.New()
	already, err := manager.CheckAndMarkProcessed(ctx, "getsum", messageID)
	if err != nil || already {
		t.Fatalf("first check: already=%v err=%v", already, err)
	}
	already, err = manager.CheckAndMarkProcessed(ctx, "getsum", messageID)
	if err != nil || !already {
		t.Fatalf("second check: already=%v err=%v", already, err)
	}
	if err := manager.Delete(ctx, "getsum", messageID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	already, err = manager.CheckAndMarkProcessed(ctx, "getsum", messageID)
	if err != nil || already {
		t.Fatalf("check after delete: already=%v err=%v", already, err)
	}
}
