package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/technosupport/ts-camstream/internal/ratelimit"
	"gopkg.in/yaml.v3"
)

func TestCheckRateLimit_WindowResets(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	l := ratelimit.NewLimiter(rdb, "salt")
	cfg := ratelimit.LimitConfig{Rate: 2, Window: time.Second}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		d, err := l.CheckRateLimit(ctx, "rl:test", cfg)
		if err != nil {
			t.Fatal(err)
		}
		if !d.Allowed {
			t.Fatalf("hit %d should be allowed", i+1)
		}
	}

	d, _ := l.CheckRateLimit(ctx, "rl:test", cfg)
	if d.Allowed {
		t.Errorf("third hit in window should be blocked")
	}
	if d.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", d.Remaining)
	}

	mr.FastForward(2 * time.Second)
	d, _ = l.CheckRateLimit(ctx, "rl:test", cfg)
	if !d.Allowed {
		t.Errorf("expired window should allow again")
	}
}

func TestLimitConfig_YAMLDurations(t *testing.T) {
	var cfg ratelimit.LimitConfig
	if err := yaml.Unmarshal([]byte("rate: 30\nwindow: 500ms\n"), &cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.Rate != 30 || cfg.Window != 500*time.Millisecond {
		t.Errorf("unexpected config: %+v", cfg)
	}

	if err := yaml.Unmarshal([]byte("rate: 1\nwindow: nonsense\n"), &cfg); err == nil {
		t.Errorf("expected error for bad duration")
	}
}
