/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"sync"
	"testing"
)

func TestPortAllocatorPairShape(t *testing.T) {
	alloc := NewPortAllocator(20000, 20098)

	for i := 0; i < 10; i++ {
		rtp, rtcp, err := alloc.Allocate()
		if err != nil {
			t.Fatalf("Allocate() failed: %v", err)
		}
		if rtp%2 != 0 {
			t.Errorf("rtp port %d is odd", rtp)
		}
		if rtcp != rtp+1 {
			t.Errorf("rtcp port %d != rtp+1 (%d)", rtcp, rtp+1)
		}
	}
}

func TestPortAllocatorOddBase(t *testing.T) {
	alloc := NewPortAllocator(20001, 20100)

	rtp, _, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate() failed: %v", err)
	}
	if rtp != 20002 {
		t.Errorf("expected base rounded up to 20002, got %d", rtp)
	}
}

func TestPortAllocatorNoOverlap(t *testing.T) {
	alloc := NewPortAllocator(20000, 20998)

	var mu sync.Mutex
	seen := make(map[int]bool)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rtp, rtcp, err := alloc.Allocate()
			if err != nil {
				t.Errorf("Allocate() failed: %v", err)
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if seen[rtp] || seen[rtcp] {
				t.Errorf("port pair (%d, %d) overlaps a live reservation", rtp, rtcp)
			}
			seen[rtp] = true
			seen[rtcp] = true
		}()
	}
	wg.Wait()

	if got := alloc.InUse(); got != 200 {
		t.Errorf("expected 200 ports in use, got %d", got)
	}
}

func TestPortAllocatorExhaustion(t *testing.T) {
	alloc := NewPortAllocator(20000, 20005)

	// Range holds exactly three pairs.
	for i := 0; i < 3; i++ {
		if _, _, err := alloc.Allocate(); err != nil {
			t.Fatalf("Allocate() %d failed: %v", i, err)
		}
	}

	if _, _, err := alloc.Allocate(); err != ErrNoPortsAvailable {
		t.Errorf("expected ErrNoPortsAvailable, got %v", err)
	}
}

func TestPortAllocatorReuseAfterFree(t *testing.T) {
	alloc := NewPortAllocator(20000, 20005)

	rtp1, rtcp1, _ := alloc.Allocate()
	alloc.Allocate()
	alloc.Allocate()

	alloc.Free(rtp1, rtcp1)

	rtp, rtcp, err := alloc.Allocate()
	if err != nil {
		t.Fatalf("Allocate() after Free() failed: %v", err)
	}
	if rtp != rtp1 || rtcp != rtcp1 {
		t.Errorf("expected freed pair (%d, %d) to be reused, got (%d, %d)", rtp1, rtcp1, rtp, rtcp)
	}
}

func TestPortAllocatorFreeUnknownIsNoop(t *testing.T) {
	alloc := NewPortAllocator(20000, 20098)

	alloc.Free(30000, 30001)

	if got := alloc.InUse(); got != 0 {
		t.Errorf("expected 0 ports in use, got %d", got)
	}
}

func BenchmarkPortAllocator(b *testing.B) {
	alloc := NewPortAllocator(20000, 60000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		rtp, rtcp, err := alloc.Allocate()
		if err != nil {
			b.Fatalf("Allocate() failed: %v", err)
		}
		alloc.Free(rtp, rtcp)
	}
}
