package natskv_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/relaymesh/coordinator/internal/adapter/nats"
	"github.com/relaymesh/coordinator/internal/adapter/natskv"
	"github.com/relaymesh/coordinator/internal/port/cache"
)

// testKV connects to NATS and provisions a scratch KV bucket, or skips the
// test if NATS_URL is not set. Mirrors adapter/nats's testConnect skip gate.
func testKV(t *testing.T) cache.Cache {
	t.Helper()

	url := os.Getenv("NATS_URL")
	if url == "" {
		t.Skip("requires NATS_URL")
	}

	ctx := context.Background()
	p, err := nats.Connect(ctx, url)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() {
		if err := p.Close(); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	kv, err := p.KeyValue(ctx, "TEST_CACHE_"+t.Name(), time.Minute)
	if err != nil {
		t.Fatalf("KeyValue: %v", err)
	}
	return natskv.New(kv)
}

func TestCache_Compliance(t *testing.T) {
	c := testKV(t)
	cache.RunComplianceTests(t, c)
}
