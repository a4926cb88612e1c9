/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"sync"

	"github.com/duocall/relay_core/pkg/signaling"
	"github.com/duocall/relay_core/pkg/utils"
)

// Messenger delivers a signaling event to one connected participant. The
// websocket layer implements it; tests use a fake.
type Messenger interface {
	SendTo(participantID string, event string, data interface{})
}

// Coordinator pairs participants into rooms and relays the WebRTC
// offer/answer/ICE handshake between the two members. Relay operations for
// unknown rooms or absent peers are silent no-ops: such messages routinely
// arrive after the peer has already left.
type Coordinator struct {
	mu        sync.RWMutex
	logger    *utils.Logger
	messenger Messenger
	rooms     map[string]*Room

	// participantID -> roomCode
	memberships map[string]string
}

// NewCoordinator creates a coordinator.
func NewCoordinator(messenger Messenger, logger *utils.Logger) *Coordinator {
	return &Coordinator{
		logger:      logger.With("rooms"),
		messenger:   messenger,
		rooms:       make(map[string]*Room),
		memberships: make(map[string]string),
	}
}

// Join adds a participant to the room with the given meeting code, creating
// the room if absent. The first member is told to wait; when the second
// arrives both members are notified and the first joiner is prompted to
// initiate the offer. A full room returns ErrRoomFull with membership
// unchanged.
func (c *Coordinator) Join(participantID, roomCode string) error {
	c.mu.Lock()
	room, ok := c.rooms[roomCode]
	if !ok {
		room = newRoom(roomCode)
		c.rooms[roomCode] = room
	}
	if err := room.Add(participantID); err != nil {
		c.mu.Unlock()
		c.logger.Warn("join %s: room %s is full", participantID, roomCode)
		return err
	}
	c.memberships[participantID] = roomCode
	count := room.MemberCount()
	first := room.First()
	other := room.Other(participantID)
	c.mu.Unlock()

	c.logger.Info("participant %s joined room %s (%d member(s))", participantID, roomCode, count)

	if count < maxRoomMembers {
		c.messenger.SendTo(participantID, signaling.EventWaiting, nil)
		return nil
	}

	payload := signaling.PartnerConnectedData{RoomCode: roomCode}
	c.messenger.SendTo(participantID, signaling.EventPartnerConnected, payload)
	c.messenger.SendTo(other, signaling.EventPartnerConnected, payload)

	// The first joiner always initiates the offer.
	c.messenger.SendTo(first, signaling.EventSendOffer, payload)
	return nil
}

// Leave removes a participant from its room, deletes the room once empty,
// and notifies the remaining member. Unknown participants are a no-op.
func (c *Coordinator) Leave(participantID string) {
	c.mu.Lock()
	roomCode, ok := c.memberships[participantID]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.memberships, participantID)

	room := c.rooms[roomCode]
	var other string
	if room != nil {
		room.Remove(participantID)
		other = room.Other("")
		if room.MemberCount() == 0 {
			delete(c.rooms, roomCode)
		}
	}
	c.mu.Unlock()

	c.logger.Info("participant %s left room %s", participantID, roomCode)

	if other != "" && other != participantID {
		c.messenger.SendTo(other, signaling.EventUserDisconnected, nil)
	}
}

// RoomOf returns the room a participant is in, or nil.
func (c *Coordinator) RoomOf(participantID string) *Room {
	c.mu.RLock()
	defer c.mu.RUnlock()

	roomCode, ok := c.memberships[participantID]
	if !ok {
		return nil
	}
	return c.rooms[roomCode]
}

// Relay forwards a payload verbatim to the other member of the room. An
// unknown room or an absent peer is logged and dropped.
func (c *Coordinator) Relay(roomCode, senderID, event string, data interface{}) {
	c.mu.RLock()
	room := c.rooms[roomCode]
	c.mu.RUnlock()

	if room == nil {
		c.logger.Debug("relay %s: room %s unknown, dropped", event, roomCode)
		return
	}

	other := room.Other(senderID)
	if other == "" {
		c.logger.Debug("relay %s: no peer in room %s, dropped", event, roomCode)
		return
	}

	c.messenger.SendTo(other, event, data)
}

// RoomCount returns the number of live rooms.
func (c *Coordinator) RoomCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.rooms)
}
