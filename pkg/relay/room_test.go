/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"testing"
)

func TestRoomCapacity(t *testing.T) {
	room := newRoom("R1")

	if err := room.Add("a"); err != nil {
		t.Fatalf("first Add failed: %v", err)
	}
	if err := room.Add("b"); err != nil {
		t.Fatalf("second Add failed: %v", err)
	}
	if err := room.Add("c"); err != ErrRoomFull {
		t.Errorf("expected ErrRoomFull, got %v", err)
	}
	if got := room.MemberCount(); got != 2 {
		t.Errorf("membership changed on rejected join: %d members", got)
	}
}

func TestRoomAddIsIdempotent(t *testing.T) {
	room := newRoom("R1")

	room.Add("a")
	if err := room.Add("a"); err != nil {
		t.Fatalf("re-adding a member failed: %v", err)
	}
	if got := room.MemberCount(); got != 1 {
		t.Errorf("expected 1 member, got %d", got)
	}
}

func TestRoomJoinOrder(t *testing.T) {
	room := newRoom("R1")

	room.Add("a")
	room.Add("b")

	if got := room.First(); got != "a" {
		t.Errorf("First() = %q, expected first joiner \"a\"", got)
	}
	if got := room.Other("a"); got != "b" {
		t.Errorf("Other(a) = %q, expected \"b\"", got)
	}
	if got := room.Other("b"); got != "a" {
		t.Errorf("Other(b) = %q, expected \"a\"", got)
	}
}

func TestRoomOtherWhenAlone(t *testing.T) {
	room := newRoom("R1")
	room.Add("a")

	if got := room.Other("a"); got != "" {
		t.Errorf("Other() = %q for a lone member, expected empty", got)
	}
}

func TestRoomRemove(t *testing.T) {
	room := newRoom("R1")
	room.Add("a")
	room.Add("b")

	room.Remove("a")

	if room.Contains("a") {
		t.Error("removed member still present")
	}
	if got := room.First(); got != "b" {
		t.Errorf("First() = %q after removal, expected \"b\"", got)
	}

	// Removing a non-member is a no-op.
	room.Remove("zz")
	if got := room.MemberCount(); got != 1 {
		t.Errorf("expected 1 member, got %d", got)
	}
}
