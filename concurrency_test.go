package batchinsert_test

import (
	"context"
	"sync"
	"testing"

	"github.com/rushairer/batchinsert"
)

func TestConcurrency_SharedInserter(t *testing.T) {
	ins := newItemInserter(batchinsert.DefaultSQLServerDriver)
	metrics := &recordingMetrics{}
	ins.WithMetricsReporter(metrics)

	const numGoroutines = 10
	const callsPerGoroutine = 20
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		stagings = map[string]bool{}
	)

	for g := 0; g < numGoroutines; g++ {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()
			for j := 0; j < callsPerGoroutine; j++ {
				base := int64(goroutineID*1000 + j*10)
				conn := newSpyConn([]string{"id"}, []any{base + 1}, []any{base + 2})
				out, err := ins.Insert(context.Background(), namedItems("a", "b"), conn, nil, nil)
				if err != nil {
					t.Errorf("goroutine %d call %d: %v", goroutineID, j, err)
					return
				}
				if out[0].ID != base+1 || out[1].ID != base+2 {
					t.Errorf("goroutine %d call %d: ids %d,%d", goroutineID, j, out[0].ID, out[1].ID)
				}
				mu.Lock()
				stagings[conn.queries[0].query] = true
				mu.Unlock()
			}
		}(g)
	}
	wg.Wait()

	// 每次调用使用不同的暂存表
	if len(stagings) != numGoroutines*callsPerGoroutine {
		t.Fatalf("expected %d distinct staging tables, got %d", numGoroutines*callsPerGoroutine, len(stagings))
	}
	if metrics.inflight != 0 {
		t.Fatalf("inflight gauge not balanced: %d", metrics.inflight)
	}
	if len(metrics.statuses) != numGoroutines*callsPerGoroutine {
		t.Fatalf("expected one observation per call, got %d", len(metrics.statuses))
	}
}
