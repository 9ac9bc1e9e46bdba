package stripewebhook

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/angelmondragon/grocery-backend/pkg/config"
	redisclient "github.com/angelmondragon/grocery-backend/pkg/redis"
)

func TestEventGuardMarksOnce(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client, err := redisclient.New(ctx, config.RedisConfig{Address: mr.Addr()}, nil)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	guard, err := NewEventGuard(client, time.Hour)
	if err != nil {
		t.Fatalf("new guard: %v", err)
	}

	seen, err := guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("first delivery should be new, seen=%v err=%v", seen, err)
	}
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || !seen {
		t.Fatalf("redelivery should be detected, seen=%v err=%v", seen, err)
	}
	if !mr.Exists(client.WebhookEventKey("stripe", "evt_1")) {
		t.Fatal("expected namespaced webhook key")
	}

	if err := guard.Delete(ctx, "evt_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	seen, err = guard.CheckAndMark(ctx, "evt_1")
	if err != nil || seen {
		t.Fatalf("deleted event should be processable again, seen=%v err=%v", seen, err)
	}

	mr.FastForward(2 * time.Hour)
	seen, _ = guard.CheckAndMark(ctx, "evt_1")
	if seen {
		t.Fatal("expected key to expire")
	}

	if _, err := guard.CheckAndMark(ctx, ""); err == nil {
		t.Fatal("expected error for empty event id")
	}
}

func TestNewEventGuardValidation(t *testing.T) {
	if _, err := NewEventGuard(nil, time.Hour); err == nil {
		t.Fatal("expected error without store")
	}
}
