package queue

import (
	"slices"
	"sync"
	"testing"
)

// testItem is a simple struct for testing the generic queue
type testItem struct {
	ID   string
	Rev  int
	Name string
}

func newTestQueue() *Coalescing[string, testItem] {
	return New(func(it testItem) string { return it.ID })
}

func ids(items []testItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestQueue_New(t *testing.T) {
	q := newTestQueue()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if got := q.Drain(); got != nil {
		t.Errorf("expected nil drain, got %v", got)
	}
}

func TestQueue_PutCoalesces(t *testing.T) {
	q := newTestQueue()

	q.Put(testItem{ID: "a", Rev: 1}, testItem{ID: "b", Rev: 1})
	q.Put(testItem{ID: "a", Rev: 2})
	if q.Len() != 2 {
		t.Errorf("expected length 2, got %d", q.Len())
	}

	got := q.Drain()
	if !slices.Equal(ids(got), []string{"a", "b"}) {
		t.Errorf("expected a keeps first position, got %v", ids(got))
	}
	if got[0].Rev != 2 {
		t.Errorf("expected latest a, got rev %d", got[0].Rev)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_Requeue(t *testing.T) {
	tests := []struct {
		name   string
		failed []testItem
		since  []testItem
		want   []string
		wantA  int
	}{
		{
			name:   "failed batch goes first",
			failed: []testItem{{ID: "a", Rev: 1}, {ID: "b", Rev: 1}},
			since:  []testItem{{ID: "c", Rev: 1}},
			want:   []string{"a", "b", "c"},
			wantA:  1,
		},
		{
			name:   "newer copy wins",
			failed: []testItem{{ID: "a", Rev: 1}, {ID: "b", Rev: 1}},
			since:  []testItem{{ID: "a", Rev: 2}},
			want:   []string{"b", "a"},
			wantA:  2,
		},
		{
			name:   "nothing queued since",
			failed: []testItem{{ID: "a", Rev: 1}},
			want:   []string{"a"},
			wantA:  1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := newTestQueue()
			q.Put(tt.failed...)
			batch := q.Drain()
			q.Put(tt.since...)
			q.Requeue(batch)

			if got, _ := q.Get("a"); got.Rev != tt.wantA {
				t.Errorf("expected a rev %d, got %d", tt.wantA, got.Rev)
			}
			if got := ids(q.Drain()); !slices.Equal(got, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestQueue_Remove(t *testing.T) {
	q := newTestQueue()
	q.Put(testItem{ID: "a"}, testItem{ID: "b"}, testItem{ID: "c"})

	if !q.Remove("b") {
		t.Error("expected b to be removed")
	}
	if q.Remove("b") {
		t.Error("expected second remove to report false")
	}
	if _, ok := q.Get("b"); ok {
		t.Error("expected b gone")
	}
	if got := ids(q.Drain()); !slices.Equal(got, []string{"a", "c"}) {
		t.Errorf("expected [a c], got %v", got)
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := newTestQueue()
	var wg sync.WaitGroup

	// 100 writers over 10 keys
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			q.Put(testItem{ID: string(rune('a' + n%10)), Rev: n})
		}(i)
	}
	wg.Wait()

	if q.Len() != 10 {
		t.Errorf("expected 10 keys, got %d", q.Len())
	}
}

func TestQueue_ConcurrentDrain(t *testing.T) {
	q := New(func(n int) int { return n })
	for i := 0; i < 100; i++ {
		q.Put(i)
	}

	var wg sync.WaitGroup
	results := make(chan []int, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- q.Drain()
		}()
	}
	wg.Wait()
	close(results)

	// Total items across all results should be 100
	total := 0
	for r := range results {
		total += len(r)
	}
	if total != 100 {
		t.Errorf("expected total 100 items, got %d", total)
	}
}
