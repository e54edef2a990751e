package worker

import (
	"context"
	"testing"
	"time"

	"service-marketplace/internal/queue"
	"service-marketplace/pkg/logging"
)

func TestRateLimiterAllowsBurst(t *testing.T) {
	rl := NewRateLimiter(10, 3)
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := 0; i < 3; i++ {
		if err := rl.Wait(ctx); err != nil {
			t.Fatalf("burst token %d: %v", i, err)
		}
	}
}

func TestRateLimiterBlocksWhenEmpty(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	defer rl.Stop()

	ctx := context.Background()
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("first token: %v", err)
	}

	// Limiter not started, so no refill: the next wait must block until
	// the context gives up.
	blockCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if err := rl.Wait(blockCtx); err == nil {
		t.Fatal("expected wait to block with empty bucket")
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(50, 1)
	rl.Start()
	defer rl.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("initial token: %v", err)
	}
	if err := rl.Wait(ctx); err != nil {
		t.Fatalf("refilled token: %v", err)
	}
}

func TestRateLimiterInvalidInputs(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	defer rl.Stop()
	if rl.capacity != 1 {
		t.Errorf("capacity = %d, want 1", rl.capacity)
	}
}

func TestApplyConfigResizesPools(t *testing.T) {
	log, err := logging.NewLogger(logging.LogConfig{Level: logging.LevelError, Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	defer log.Close()

	e := NewEngine(nil, nil, nil, DefaultConfig(), log)
	deliveries := make(chan queue.Delivery)
	p := &pool{spec: QueueSpec{Name: queue.QueueEmbedding}, deliveries: deliveries}
	e.pools[queue.QueueEmbedding] = p
	e.poolMu.Lock()
	for i := 0; i < 2; i++ {
		e.startWorker(p)
	}
	e.poolMu.Unlock()

	e.ApplyConfig(map[string]int{queue.QueueEmbedding: 5})
	if len(p.stops) != 5 {
		t.Errorf("workers after scale up = %d, want 5", len(p.stops))
	}
	if got := e.GetStats().WorkerCount; got != 5 {
		t.Errorf("stats worker count = %d, want 5", got)
	}

	e.ApplyConfig(map[string]int{queue.QueueEmbedding: 1})
	if len(p.stops) != 1 {
		t.Errorf("workers after scale down = %d, want 1", len(p.stops))
	}

	// Unknown queues and non-positive counts leave pools untouched.
	e.ApplyConfig(map[string]int{"unknown": 3, queue.QueueEmbedding: 0})
	if len(p.stops) != 1 {
		t.Errorf("workers after no-op apply = %d, want 1", len(p.stops))
	}

	close(deliveries)
	if err := e.Stop(time.Second); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JobTimeout <= 0 || cfg.RPS <= 0 || cfg.Burst <= 0 {
		t.Errorf("default config has zero fields: %+v", cfg)
	}
}
