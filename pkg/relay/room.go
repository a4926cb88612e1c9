/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"sync"
)

// maxRoomMembers is the hard cap of the two-party product.
const maxRoomMembers = 2

// Room pairs at most two participants under one meeting code. Join order
// matters: the first joiner is the designated offerer once the second
// member arrives.
type Room struct {
	mu   sync.RWMutex
	code string

	// members in join order
	members []string
}

// newRoom creates an empty room for the given meeting code.
func newRoom(code string) *Room {
	return &Room{code: code}
}

// Code returns the meeting code.
func (r *Room) Code() string {
	return r.code
}

// Add appends a participant. Returns ErrRoomFull when the room already has
// two members; membership is unchanged in that case.
func (r *Room) Add(participantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, id := range r.members {
		if id == participantID {
			return nil
		}
	}
	if len(r.members) >= maxRoomMembers {
		return ErrRoomFull
	}
	r.members = append(r.members, participantID)
	return nil
}

// Remove drops a participant. Removing a non-member is a no-op.
func (r *Room) Remove(participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, id := range r.members {
		if id == participantID {
			r.members = append(r.members[:i], r.members[i+1:]...)
			return
		}
	}
}

// Other returns the id of the member that is not participantID, or "" if
// the participant is alone (or not a member at all).
func (r *Room) Other(participantID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.members {
		if id != participantID {
			return id
		}
	}
	return ""
}

// First returns the first joiner's id, or "" for an empty room.
func (r *Room) First() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.members) == 0 {
		return ""
	}
	return r.members[0]
}

// Contains reports whether participantID is a member.
func (r *Room) Contains(participantID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, id := range r.members {
		if id == participantID {
			return true
		}
	}
	return false
}

// MemberCount returns the number of members.
func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// Members returns the member ids in join order.
func (r *Room) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.members))
	copy(out, r.members)
	return out
}
