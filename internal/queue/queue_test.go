package queue

import (
	"sync"
	"testing"
)

type testItem struct {
	Seq  int
	Name string
}

func TestQueue_New(t *testing.T) {
	q := New[testItem]()
	if q == nil {
		t.Fatal("expected non-nil queue")
	}
	if !q.Empty() {
		t.Error("expected empty queue")
	}
	if q.Len() != 0 {
		t.Errorf("expected length 0, got %d", q.Len())
	}
}

func TestQueue_Push(t *testing.T) {
	q := New[testItem]()

	q.Push(testItem{Seq: 1, Name: "first"})
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}

	if dropped := q.Push(testItem{Seq: 2}, testItem{Seq: 3}); dropped != 0 {
		t.Errorf("unbounded queue dropped %d items", dropped)
	}
	if q.Len() != 3 {
		t.Errorf("expected length 3, got %d", q.Len())
	}
}

func TestQueue_Pop(t *testing.T) {
	q := New[testItem]()

	if _, ok := q.Pop(); ok {
		t.Error("expected pop from empty queue to fail")
	}

	q.Push(testItem{Seq: 1, Name: "first"}, testItem{Seq: 2, Name: "second"})
	first, ok := q.Pop()
	if !ok || first.Seq != 1 || first.Name != "first" {
		t.Errorf("expected {1, first}, got %+v", first)
	}
	if q.Len() != 1 {
		t.Errorf("expected length 1, got %d", q.Len())
	}
}

func TestQueue_BoundedEvictsOldest(t *testing.T) {
	q := NewBounded[testItem](3)

	for i := 1; i <= 3; i++ {
		q.Push(testItem{Seq: i})
	}
	if dropped := q.Push(testItem{Seq: 4}, testItem{Seq: 5}); dropped != 2 {
		t.Errorf("expected 2 dropped, got %d", dropped)
	}

	items := q.Drain(0)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}
	for i, want := range []int{3, 4, 5} {
		if items[i].Seq != want {
			t.Errorf("item %d: expected seq %d, got %d", i, want, items[i].Seq)
		}
	}
	if q.Dropped() != 2 {
		t.Errorf("expected dropped total 2, got %d", q.Dropped())
	}
}

func TestQueue_BoundedZeroIsUnbounded(t *testing.T) {
	q := NewBounded[int](0)
	for i := 0; i < 1000; i++ {
		q.Push(i)
	}
	if q.Len() != 1000 {
		t.Errorf("expected 1000 items, got %d", q.Len())
	}
}

func TestQueue_DrainPartial(t *testing.T) {
	q := New[int]()
	q.Push(1, 2, 3, 4, 5)

	got := q.Drain(2)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("expected [1 2], got %v", got)
	}
	if q.Len() != 3 {
		t.Errorf("expected 3 left, got %d", q.Len())
	}

	rest := q.Drain(10)
	if len(rest) != 3 || rest[0] != 3 {
		t.Errorf("expected [3 4 5], got %v", rest)
	}
	if !q.Empty() {
		t.Error("expected empty queue after drain")
	}
}

func TestQueue_DrainDoesNotAlias(t *testing.T) {
	q := New[int]()
	q.Push(1, 2)
	got := q.Drain(0)
	q.Push(9)
	if got[0] != 1 {
		t.Errorf("drained slice changed after push: %v", got)
	}
}

func TestQueue_Concurrent(t *testing.T) {
	q := New[testItem]()
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			q.Push(testItem{Seq: id})
		}(i)
	}
	wg.Wait()

	if q.Len() != 100 {
		t.Errorf("expected 100 items, got %d", q.Len())
	}

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q.Pop()
		}()
	}
	wg.Wait()

	if q.Len() != 50 {
		t.Errorf("expected 50 items after pops, got %d", q.Len())
	}
}

func TestQueue_ConcurrentDrain(t *testing.T) {
	q := NewBounded[int](10000)
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Push(j)
			}
		}()
		go func() {
			defer wg.Done()
			n := len(q.Drain(0))
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()

	total += len(q.Drain(0))
	if total != 1000 {
		t.Errorf("expected 1000 items across drains, got %d", total)
	}
}
