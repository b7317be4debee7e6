package queue

import "testing"

func TestBounded_FIFO(t *testing.T) {
	q := NewBounded[int](3)
	for i := 1; i <= 3; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed below capacity", i)
		}
	}

	t.Run("enqueue past capacity fails", func(t *testing.T) {
		if q.Enqueue(4) {
			t.Error("enqueue succeeded past capacity")
		}
		if q.Len() != 3 {
			t.Errorf("Len = %d, want 3", q.Len())
		}
	})

	t.Run("dequeue order matches enqueue order", func(t *testing.T) {
		for i := 1; i <= 3; i++ {
			v, ok := q.Dequeue()
			if !ok || v != i {
				t.Errorf("dequeue = %d/%v, want %d/true", v, ok, i)
			}
		}
		if _, ok := q.Dequeue(); ok {
			t.Error("dequeue on empty queue succeeded")
		}
	})
}

func TestNewBounded_ClampsCapacity(t *testing.T) {
	q := NewBounded[string](0)
	if q.Cap() != 1 {
		t.Errorf("Cap = %d, want 1", q.Cap())
	}
}
