package cache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mikey/mail-triage/internal/adapters/cache"
	"github.com/mikey/mail-triage/internal/core"
)

func sampleEntry(fingerprint string, ttl time.Duration) *core.CacheEntry {
	now := time.Now()
	return &core.CacheEntry{
		Fingerprint: fingerprint,
		Result: &core.TriageResult{
			ID: "r-1",
			Classification: &core.ClassificationResult{
				Label:      core.LabelProductive,
				Confidence: 0.9,
				Reasoning:  "action_request",
			},
			Reply:    &core.SuggestedReply{Body: "Recebemos sua solicitação."},
			Priority: core.PriorityHigh,
			Stage:    core.StageCompleted,
		},
		LastSeen:  now,
		ExpiresAt: now.Add(ttl),
	}
}

func TestMemoryCache_SetGet(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	if err := c.Set(ctx, sampleEntry("abc", time.Hour)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Result.ID != "r-1" || got.Result.Classification.Label != core.LabelProductive {
		t.Errorf("Get() result = %+v", got.Result)
	}
	if got.Result.Reply.Body != "Recebemos sua solicitação." {
		t.Errorf("Get() reply = %q", got.Result.Reply.Body)
	}
}

func TestMemoryCache_ReturnsCopies(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	entry := sampleEntry("abc", time.Hour)
	if err := c.Set(ctx, entry); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	entry.Result.Classification.Label = core.LabelUnproductive

	first, _ := c.Get(ctx, "abc")
	first.Result.Reply.Body = "changed"

	second, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if second.Result.Classification.Label != core.LabelProductive {
		t.Errorf("cached label changed through caller's entry")
	}
	if second.Result.Reply.Body == "changed" {
		t.Errorf("cached reply changed through a previous Get()")
	}
}

func TestMemoryCache_Misses(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	if err := c.Set(ctx, sampleEntry("old", -time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	tests := []struct {
		name        string
		fingerprint string
		want        error
	}{
		{name: "unknown", fingerprint: "nope", want: cache.ErrNotFound},
		{name: "expired", fingerprint: "old", want: cache.ErrExpired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Get(ctx, tt.fingerprint)
			if !errors.Is(err, tt.want) {
				t.Errorf("Get() error = %v, want %v", err, tt.want)
			}
			if !errors.Is(err, core.ErrCacheMiss) {
				t.Errorf("Get() error = %v does not match core.ErrCacheMiss", err)
			}
		})
	}
}

func TestMemoryCache_CleanupAndDelete(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(zap.NewNop(), 0)
	defer c.Stop()
	ctx := context.Background()

	_ = c.Set(ctx, sampleEntry("live", time.Hour))
	_ = c.Set(ctx, sampleEntry("dead", -time.Second))

	if err := c.Cleanup(ctx); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after Cleanup() = %d, want 1", c.Len())
	}

	if err := c.Delete(ctx, "live"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "live"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v, want ErrNotFound", err)
	}
}

func TestMemoryCache_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	c := cache.NewMemoryCache(zap.NewNop(), time.Millisecond)
	c.Stop()
	c.Stop()
}

func TestSQLiteCache(t *testing.T) {
	t.Parallel()

	c, err := cache.NewSQLiteCache(":memory:", zap.NewNop(), 0)
	if err != nil {
		t.Fatalf("NewSQLiteCache() error = %v", err)
	}
	defer c.Stop()
	ctx := context.Background()

	if err := c.Set(ctx, sampleEntry("abc", time.Hour)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := c.Set(ctx, sampleEntry("old", -time.Minute)); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	got, err := c.Get(ctx, "abc")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Result.Classification.Confidence != 0.9 {
		t.Errorf("Get() confidence = %v, want 0.9", got.Result.Classification.Confidence)
	}

	if _, err := c.Get(ctx, "old"); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("Get() on expired entry error = %v, want ErrNotFound", err)
	}

	if err := c.Cleanup(ctx); err != nil {
		t.Errorf("Cleanup() error = %v", err)
	}
	if err := c.Delete(ctx, "abc"); err != nil {
		t.Errorf("Delete() error = %v", err)
	}
	if _, err := c.Get(ctx, "abc"); !errors.Is(err, core.ErrCacheMiss) {
		t.Errorf("Get() after Delete() error = %v, want cache miss", err)
	}
}
