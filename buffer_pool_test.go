package serial

import "testing"

func TestBufferPoolGetPut(t *testing.T) {
	bp := NewBufferPool(64)
	buf := bp.Get()
	if len(buf) != 64 {
		t.Fatalf("buffer length = %d, want 64", len(buf))
	}
	buf[0] = 0xFF
	bp.Put(buf)

	again := bp.Get()
	if again[0] != 0 {
		t.Error("buffer not cleared on Put")
	}

	stats := bp.Stats()
	if stats.Gets != 2 || stats.Puts != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestBufferPoolRejectsWrongSize(t *testing.T) {
	bp := NewBufferPool(64)
	bp.Put(make([]byte, 32))
	if got := bp.Stats().Puts; got != 0 {
		t.Errorf("Puts = %d, want 0", got)
	}
}

func TestBufferPoolDefaultSize(t *testing.T) {
	bp := NewBufferPool(0)
	if got := len(bp.Get()); got != 1024 {
		t.Errorf("default buffer length = %d, want 1024", got)
	}
}

func TestPoolStatsHitRatio(t *testing.T) {
	if got := (PoolStats{}).HitRatio(); got != 0.0 {
		t.Errorf("empty hit ratio = %f", got)
	}
	ps := PoolStats{Gets: 10, Creates: 2}
	if got := ps.HitRatio(); got != 0.8 {
		t.Errorf("hit ratio = %f, want 0.8", got)
	}
}
