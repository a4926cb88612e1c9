/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 *
 * Port Allocator - 回环端口池
 * 为每条转码管线分配互不重叠的偶/奇 RTP/RTCP 端口对
 */
package relay

import (
	"sync"
)

// PortAllocator hands out even/odd RTP/RTCP port pairs from a bounded range.
// The scan starts at the high-water mark and wraps to the base once the top
// of the range is reached, so freed pairs become reusable after a wrap.
type PortAllocator struct {
	mu    sync.Mutex
	base  int
	max   int
	next  int
	inUse map[int]bool
}

// NewPortAllocator creates a pool over [base, max]. base is rounded up to
// the next even port; max must leave room for at least one pair.
func NewPortAllocator(base, max int) *PortAllocator {
	if base%2 != 0 {
		base++
	}
	return &PortAllocator{
		base:  base,
		max:   max,
		next:  base,
		inUse: make(map[int]bool),
	}
}

// Allocate reserves the next free (rtp, rtcp) pair. rtp is always even and
// rtcp is always rtp+1. Returns ErrNoPortsAvailable when every pair in the
// range is reserved.
func (a *PortAllocator) Allocate() (rtp, rtcp int, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	total := (a.max - a.base + 1) / 2
	for i := 0; i < total; i++ {
		candidate := a.next
		a.next += 2
		if a.next+1 > a.max {
			a.next = a.base
		}
		if a.inUse[candidate] || a.inUse[candidate+1] {
			continue
		}
		a.inUse[candidate] = true
		a.inUse[candidate+1] = true
		return candidate, candidate + 1, nil
	}
	return 0, 0, ErrNoPortsAvailable
}

// Free releases a previously allocated pair. Freeing an unreserved pair is
// a no-op.
func (a *PortAllocator) Free(rtp, rtcp int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	delete(a.inUse, rtp)
	delete(a.inUse, rtcp)
}

// InUse reports how many ports are currently reserved.
func (a *PortAllocator) InUse() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	return len(a.inUse)
}
