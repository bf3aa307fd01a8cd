package connection

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestQueue_BasicPushPop(t *testing.T) {
	q := NewQueue[int](10, 100)

	for i := 0; i < 5; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
	}

	if q.Len() != 5 {
		t.Errorf("Len() = %d, want 5", q.Len())
	}

	for i := 0; i < 5; i++ {
		val, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop() returned false for item %d", i)
		}
		if val != i {
			t.Errorf("popped %d, want %d", val, i)
		}
	}

	if q.Len() != 0 {
		t.Errorf("Len() = %d after draining, want 0", q.Len())
	}
}

func TestQueue_GrowAt70Percent(t *testing.T) {
	q := NewQueue[int](10, 100)

	for i := 0; i < 7; i++ {
		q.Push(i)
	}

	stats := q.Stats()
	if stats.Capacity <= 10 {
		t.Errorf("Capacity = %d, expected growth after 70%% fill", stats.Capacity)
	}
	if stats.ResizeCount != 1 {
		t.Errorf("ResizeCount = %d, want 1", stats.ResizeCount)
	}
}

func TestQueue_FullAtCeiling(t *testing.T) {
	q := NewQueue[int](2, 8)

	for i := 0; i < 8; i++ {
		if err := q.Push(i); err != nil {
			t.Fatalf("Push(%d) failed: %v", i, err)
		}
	}

	if err := q.Push(8); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Push at ceiling error = %v, want ErrQueueFull", err)
	}

	stats := q.Stats()
	if stats.Capacity != 8 {
		t.Errorf("Capacity = %d, want 8", stats.Capacity)
	}
	if stats.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", stats.Dropped)
	}

	// Draining one slot makes room again.
	q.Pop()
	if err := q.Push(9); err != nil {
		t.Errorf("Push after pop failed: %v", err)
	}
}

func TestQueue_WrapAround(t *testing.T) {
	q := NewQueue[int](5, 64)

	q.Push(1)
	q.Push(2)
	q.Push(3)

	q.Pop()
	q.Pop()

	for i := 4; i <= 8; i++ {
		q.Push(i)
	}

	for _, want := range []int{3, 4, 5, 6, 7, 8} {
		got, ok := q.Pop()
		if !ok {
			t.Fatalf("Pop failed, expected %d", want)
		}
		if got != want {
			t.Errorf("got %d, want %d", got, want)
		}
	}
}

func TestQueue_BlockingPop(t *testing.T) {
	q := NewQueue[int](10, 10)

	received := make(chan int, 1)
	go func() {
		val, ok := q.Pop()
		if ok {
			received <- val
		}
	}()

	time.Sleep(10 * time.Millisecond)
	q.Push(42)

	select {
	case val := <-received:
		if val != 42 {
			t.Errorf("received %d, want 42", val)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for blocked Pop")
	}
}

func TestQueue_Close(t *testing.T) {
	q := NewQueue[int](10, 10)
	q.Push(1)
	q.Push(2)
	q.Close()

	if err := q.Push(3); !errors.Is(err, ErrClosed) {
		t.Errorf("Push after Close error = %v, want ErrClosed", err)
	}

	// Queued items survive Close.
	for _, want := range []int{1, 2} {
		val, ok := q.Pop()
		if !ok || val != want {
			t.Errorf("Pop() = %d, %v; want %d, true", val, ok, want)
		}
	}

	if _, ok := q.Pop(); ok {
		t.Error("Pop should return false when closed and empty")
	}
}

func TestQueue_CloseUnblocksPop(t *testing.T) {
	q := NewQueue[int](10, 10)

	done := make(chan bool, 1)
	go func() {
		_, ok := q.Pop()
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case ok := <-done:
		if ok {
			t.Error("Pop should return false when closed and empty")
		}
	case <-time.After(time.Second):
		t.Fatal("Close did not unblock Pop")
	}
}

func TestQueue_ConcurrentPushPop(t *testing.T) {
	q := NewQueue[int](4, 2048)
	const numItems = 1000

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			if err := q.Push(i); err != nil {
				t.Errorf("Push(%d) failed: %v", i, err)
			}
		}
	}()

	received := make([]int, 0, numItems)
	go func() {
		defer wg.Done()
		for i := 0; i < numItems; i++ {
			val, ok := q.Pop()
			if !ok {
				return
			}
			received = append(received, val)
		}
	}()

	wg.Wait()

	if len(received) != numItems {
		t.Fatalf("received %d items, want %d", len(received), numItems)
	}
	// Single producer, single consumer: FIFO order holds.
	for i, val := range received {
		if val != i {
			t.Fatalf("received[%d] = %d, want %d", i, val, i)
		}
	}
}

func TestNewQueue_Bounds(t *testing.T) {
	q := NewQueue[int](0, 0)
	if c := q.Stats().Capacity; c != 1 {
		t.Errorf("Capacity = %d, want 1 for initial capacity 0", c)
	}

	q = NewQueue[int](16, 4)
	if c := q.Stats().Capacity; c != 16 {
		t.Errorf("Capacity = %d, want 16", c)
	}
	for i := 0; i < 16; i++ {
		q.Push(i)
	}
	if err := q.Push(16); !errors.Is(err, ErrQueueFull) {
		t.Errorf("ceiling below initial capacity should clamp to initial: err = %v", err)
	}
}
