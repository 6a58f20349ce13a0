package transport

import "testing"

func TestIndexedDequeSetGet(t *testing.T) {
	d := newIndexedDeque[string]()
	d.set(5, "five")
	d.set(8, "eight")
	if v, ok := d.get(5); !ok || v != "five" {
		t.Fatalf("get(5) = %q, %v", v, ok)
	}
	if v, ok := d.get(6); ok {
		t.Fatalf("get(6) should be empty, got %q", v)
	}
	if v, ok := d.get(8); !ok || v != "eight" {
		t.Fatalf("get(8) = %q, %v", v, ok)
	}
	if _, ok := d.get(4); ok {
		t.Fatal("get below base should miss")
	}
	if largest, ok := d.largest(); !ok || largest != 8 {
		t.Fatalf("largest() = %d, %v", largest, ok)
	}
}

func TestIndexedDequeRemoveAndCompact(t *testing.T) {
	d := newIndexedDeque[int]()
	for i := uint64(0); i < 5; i++ {
		d.set(i, int(i))
	}
	d.remove(0)
	d.remove(1)
	d.compact()
	if _, ok := d.get(0); ok {
		t.Fatal("removed index should be gone")
	}
	if v, ok := d.get(2); !ok || v != 2 {
		t.Fatalf("get(2) = %d, %v", v, ok)
	}
	if d.len() != 3 {
		t.Fatalf("len() = %d, want 3", d.len())
	}
}

func TestIndexedDequeSetBelowBaseIgnored(t *testing.T) {
	d := newIndexedDeque[int]()
	d.set(10, 1)
	d.remove(10)
	d.compact()
	d.set(3, 99) // stale, must not resurrect the deque at a lower base
	if got := d.len(); got != 0 {
		t.Fatalf("len() = %d, want 0", got)
	}
}

func TestIndexedDequeForEachOrder(t *testing.T) {
	d := newIndexedDeque[int]()
	d.set(2, 20)
	d.set(0, 0)
	d.set(4, 40)
	var seen []uint64
	d.forEach(func(index uint64, value int) bool {
		seen = append(seen, index)
		return true
	})
	want := []uint64{0, 2, 4}
	if len(seen) != len(want) {
		t.Fatalf("forEach visited %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("forEach visited %v, want %v", seen, want)
		}
	}
}
