package defra

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingDefra simulates DefraDB mutation responses and records each query.
type recordingDefra struct {
	count   atomic.Int32
	mu      sync.Mutex
	queries []string
}

func (d *recordingDefra) handler(w http.ResponseWriter, r *http.Request) {
	d.count.Add(1)

	var req GQLRequest
	json.NewDecoder(r.Body).Decode(&req)
	d.mu.Lock()
	d.queries = append(d.queries, req.Query)
	d.mu.Unlock()

	// "mutation { create_Book(" -> "create_Book"
	key := strings.TrimPrefix(req.Query, "mutation { ")
	if i := strings.Index(key, "("); i > 0 {
		key = key[:i]
	}
	resp := GQLResponse{
		Data: map[string]any{
			key: []any{map[string]any{"_docID": "doc123"}},
		},
	}
	json.NewEncoder(w).Encode(resp)
}

func (d *recordingDefra) recorded() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

func startSink(t *testing.T, batchSize int, interval time.Duration) (*Sink, *recordingDefra) {
	t.Helper()
	defra := &recordingDefra{}
	server := httptest.NewServer(http.HandlerFunc(defra.handler))
	t.Cleanup(server.Close)

	sink := NewSink(SinkConfig{
		Client:        NewClient(server.URL),
		BatchSize:     batchSize,
		FlushInterval: interval,
	})
	sink.Start(context.Background())
	return sink, defra
}

func TestSink_SendSync_Create(t *testing.T) {
	sink, _ := startSink(t, 10, 100*time.Millisecond)
	defer sink.Stop()

	result, err := sink.SendSync(context.Background(), WriteOp{
		Collection: "Bookmark",
		Document:   map[string]any{"text": "call me Ishmael"},
		Op:         OpCreate,
	})

	if err != nil {
		t.Fatalf("SendSync failed: %v", err)
	}
	if result.DocID != "doc123" {
		t.Errorf("expected docID 'doc123', got %q", result.DocID)
	}
}

func TestSink_Send_FireAndForget(t *testing.T) {
	sink, defra := startSink(t, 10, 50*time.Millisecond)

	sink.Send(WriteOp{
		Collection: "Quote",
		Document:   map[string]any{"page": 42},
		Op:         OpCreate,
	})

	// Give time for flush
	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if defra.count.Load() != 1 {
		t.Errorf("expected 1 request, got %d", defra.count.Load())
	}
}

func TestSink_BatchBySize(t *testing.T) {
	// Long interval so batch size triggers first
	sink, defra := startSink(t, 3, 10*time.Second)

	for i := 0; i < 3; i++ {
		sink.Send(WriteOp{
			Collection: "Bookmark",
			Document:   map[string]any{"page": i},
			Op:         OpCreate,
		})
	}

	deadline := time.Now().Add(time.Second)
	for defra.count.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if defra.count.Load() != 3 {
		t.Errorf("expected 3 requests before the interval, got %d", defra.count.Load())
	}
	sink.Stop()
}

func TestSink_BatchByTime(t *testing.T) {
	sink, defra := startSink(t, 100, 50*time.Millisecond)

	sink.Send(WriteOp{
		Collection: "Bookmark",
		Document:   map[string]any{"page": 1},
		Op:         OpCreate,
	})

	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if defra.count.Load() != 1 {
		t.Errorf("expected 1 request from time flush, got %d", defra.count.Load())
	}
}

func TestSink_GracefulShutdown(t *testing.T) {
	// Large batch so nothing flushes before stop
	sink, defra := startSink(t, 100, 10*time.Second)

	for i := 0; i < 5; i++ {
		sink.Send(WriteOp{
			Collection: "Quote",
			Document:   map[string]any{"page": i},
			Op:         OpCreate,
		})
	}

	// Stop should flush remaining
	sink.Stop()

	if defra.count.Load() != 5 {
		t.Errorf("expected 5 requests after graceful shutdown, got %d", defra.count.Load())
	}
}

func TestSink_ConcurrentSends(t *testing.T) {
	sink, defra := startSink(t, 100, 50*time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sink.Send(WriteOp{
				Collection: "Bookmark",
				Document:   map[string]any{"page": idx},
				Op:         OpCreate,
			})
		}(i)
	}

	wg.Wait()
	time.Sleep(100 * time.Millisecond)
	sink.Stop()

	if defra.count.Load() != 10 {
		t.Errorf("expected 10 requests, got %d", defra.count.Load())
	}
}

func TestSink_UpdateAndDelete(t *testing.T) {
	sink, defra := startSink(t, 10, 50*time.Millisecond)
	defer sink.Stop()
	ctx := context.Background()

	result, err := sink.SendSync(ctx, WriteOp{
		Collection: "Rental",
		DocID:      "doc123",
		Document:   map[string]any{"active": false},
		Op:         OpUpdate,
	})
	if err != nil {
		t.Fatalf("SendSync update failed: %v", err)
	}
	if result.DocID != "doc123" {
		t.Errorf("expected docID 'doc123', got %q", result.DocID)
	}

	result, err = sink.SendSync(ctx, WriteOp{
		Collection: "Bookmark",
		DocID:      "doc123",
		Op:         OpDelete,
	})
	if err != nil {
		t.Fatalf("SendSync delete failed: %v", err)
	}
	if result.DocID != "doc123" {
		t.Errorf("expected docID 'doc123', got %q", result.DocID)
	}

	queries := defra.recorded()
	if len(queries) != 2 || !strings.HasPrefix(queries[0], "mutation { update_Rental(") || !strings.HasPrefix(queries[1], "mutation { delete_Bookmark(") {
		t.Errorf("unexpected queries: %v", queries)
	}
}

func TestSink_UpsertCoalescesByKey(t *testing.T) {
	// Large batch and interval so every op waits in the same batch.
	sink, defra := startSink(t, 100, 10*time.Second)

	for page := 1; page <= 5; page++ {
		sink.Send(WriteOp{
			Collection: "ReadingPosition",
			Key:        "reader/bae-1",
			Filter:     map[string]any{"key": map[string]any{"_eq": "reader/bae-1"}},
			Document:   map[string]any{"page": page},
			Op:         OpUpsert,
		})
	}
	sink.Send(WriteOp{
		Collection: "ReadingPosition",
		Key:        "reader/bae-2",
		Filter:     map[string]any{"key": map[string]any{"_eq": "reader/bae-2"}},
		Document:   map[string]any{"page": 9},
		Op:         OpUpsert,
	})
	sink.Stop()

	queries := defra.recorded()
	if len(queries) != 2 {
		t.Fatalf("expected 2 upserts after coalescing, got %d: %v", len(queries), queries)
	}
	var sawLatest bool
	for _, q := range queries {
		if strings.Contains(q, `reader/bae-1`) {
			sawLatest = strings.Contains(q, "update: {page: 5}")
		}
	}
	if !sawLatest {
		t.Errorf("coalesced upsert did not carry the latest page: %v", queries)
	}
}

func TestSink_CoalescedWaitersReceiveResult(t *testing.T) {
	sink, defra := startSink(t, 100, 10*time.Second)
	defer sink.Stop()
	ctx := context.Background()

	op := WriteOp{
		Collection: "ReadingPosition",
		Key:        "reader/bae-1",
		Filter:     map[string]any{"key": map[string]any{"_eq": "reader/bae-1"}},
		Document:   map[string]any{"page": 1},
		Op:         OpUpsert,
	}

	first := make(chan error, 1)
	go func() {
		_, err := sink.SendSync(ctx, op)
		first <- err
	}()
	time.Sleep(20 * time.Millisecond)

	op.Document = map[string]any{"page": 2}
	second := make(chan error, 1)
	go func() {
		_, err := sink.SendSync(ctx, op)
		second <- err
	}()
	time.Sleep(20 * time.Millisecond)
	sink.Flush(ctx)

	for _, ch := range []chan error{first, second} {
		select {
		case err := <-ch:
			if err != nil {
				t.Errorf("SendSync error = %v", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("waiter never received a result")
		}
	}
	if defra.count.Load() != 1 {
		t.Errorf("expected 1 request, got %d", defra.count.Load())
	}
}

func TestSink_ManualFlush(t *testing.T) {
	sink, defra := startSink(t, 100, 10*time.Second)
	defer sink.Stop()
	ctx := context.Background()

	sink.Send(WriteOp{
		Collection: "Quote",
		Document:   map[string]any{"text": "test"},
		Op:         OpCreate,
	})

	// Small delay to ensure op is in batch
	time.Sleep(10 * time.Millisecond)

	sink.Flush(ctx)

	// Wait for flush to process
	time.Sleep(100 * time.Millisecond)

	if defra.count.Load() != 1 {
		t.Errorf("expected 1 request after manual flush, got %d", defra.count.Load())
	}
}

func TestSink_OnDoneCalledForReplacedOps(t *testing.T) {
	sink, defra := startSink(t, 100, 10*time.Second)

	var mu sync.Mutex
	var pages []int
	for page := 1; page <= 3; page++ {
		sink.Send(WriteOp{
			Collection: "ReadingPosition",
			Key:        "reader/bae-1",
			Filter:     map[string]any{"key": map[string]any{"_eq": "reader/bae-1"}},
			Document:   map[string]any{"page": page},
			Op:         OpUpsert,
			OnDone: func(r WriteResult) {
				mu.Lock()
				defer mu.Unlock()
				if r.Err != nil {
					t.Errorf("page %d result error = %v", page, r.Err)
				}
				pages = append(pages, page)
			},
		})
	}
	sink.Stop()

	mu.Lock()
	defer mu.Unlock()
	if len(pages) != 3 {
		t.Errorf("OnDone called for pages %v, want all three", pages)
	}
	if defra.count.Load() != 1 {
		t.Errorf("expected 1 request, got %d", defra.count.Load())
	}
}

func TestSink_OnDoneAfterStop(t *testing.T) {
	sink, defra := startSink(t, 100, 10*time.Second)
	sink.Stop()

	done := make(chan error, 1)
	sink.Send(WriteOp{
		Collection: "ReadingPosition",
		Document:   map[string]any{"page": 1},
		Op:         OpUpsert,
		OnDone:     func(r WriteResult) { done <- r.Err },
	})

	select {
	case err := <-done:
		if err != ErrSinkClosed {
			t.Errorf("OnDone error = %v, want ErrSinkClosed", err)
		}
	default:
		t.Fatal("OnDone not called for an op sent after Stop")
	}
	if defra.count.Load() != 0 {
		t.Errorf("expected no requests, got %d", defra.count.Load())
	}
}
