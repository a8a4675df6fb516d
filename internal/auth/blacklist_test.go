package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/technosupport/ts-camstream/internal/auth"
)

func TestBlacklist(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	bl := auth.NewRedisBlacklist(rdb)
	ctx := context.Background()

	listed, err := bl.IsBlacklisted(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if listed {
		t.Errorf("fresh jti should not be blacklisted")
	}

	if err := bl.AddToBlacklist(ctx, "jti-1", time.Minute); err != nil {
		t.Fatal(err)
	}

	listed, err = bl.IsBlacklisted(ctx, "jti-1")
	if err != nil {
		t.Fatal(err)
	}
	if !listed {
		t.Errorf("revoked jti should be blacklisted")
	}

	// Entry expires with the token
	mr.FastForward(2 * time.Minute)
	listed, _ = bl.IsBlacklisted(ctx, "jti-1")
	if listed {
		t.Errorf("expired entry should drop off the blacklist")
	}
}
