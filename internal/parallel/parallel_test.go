package parallel

import (
	"sync/atomic"
	"testing"
)

func TestFor(t *testing.T) {
	cfg := DefaultConfig()

	var counter int64
	n := 1000

	For(n, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != int64(n) {
		t.Errorf("Expected %d, got %d", n, counter)
	}
}

func TestForUnits(t *testing.T) {
	cfg := Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}

	samples, levels := 5, 3
	var hits [5][3]int32

	ForUnits(samples, levels, func(s, l int) {
		atomic.AddInt32(&hits[s][l], 1)
	}, cfg)

	for s := 0; s < samples; s++ {
		for l := 0; l < levels; l++ {
			if hits[s][l] != 1 {
				t.Errorf("unit (%d,%d) visited %d times", s, l, hits[s][l])
			}
		}
	}
}

func TestFor_Sequential(t *testing.T) {
	var order []int
	For(10, func(i int) {
		order = append(order, i)
	}, Sequential())

	for i, v := range order {
		if v != i {
			t.Fatalf("sequential order broken at %d: %v", i, order)
		}
	}
}

func TestFor_SmallChunk(t *testing.T) {
	// Small work units fall back to sequential.
	cfg := DefaultConfig()
	cfg.MinChunkSize = 1000

	var counter int64
	For(10, func(_ int) {
		atomic.AddInt64(&counter, 1)
	}, cfg)

	if counter != 10 {
		t.Errorf("Expected 10, got %d", counter)
	}
}

func TestForUnits_SampleMajorOrder(t *testing.T) {
	type unit struct{ sample, level int }
	var order []unit
	ForUnits(2, 3, func(s, l int) {
		order = append(order, unit{s, l})
	}, Sequential())

	want := []unit{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	if len(order) != len(want) {
		t.Fatalf("Expected %d units, got %d", len(want), len(order))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("unit %d: expected %v, got %v", i, want[i], order[i])
		}
	}
}
