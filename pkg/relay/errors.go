/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import "errors"

var (
	// ErrRoomFull indicates the room already has two members
	ErrRoomFull = errors.New("room is full")

	// ErrRoomNotFound indicates the room was not found
	ErrRoomNotFound = errors.New("room not found")

	// ErrParticipantNotFound indicates the participant was not found
	ErrParticipantNotFound = errors.New("participant not found")

	// ErrTransportNotFound indicates the transport was not found
	ErrTransportNotFound = errors.New("transport not found")

	// ErrProducerNotFound indicates the producer was not found
	ErrProducerNotFound = errors.New("producer not found")

	// ErrConsumerNotFound indicates the consumer was not found
	ErrConsumerNotFound = errors.New("consumer not found")

	// ErrIncompatibleCaps indicates the receiver cannot consume the producer
	ErrIncompatibleCaps = errors.New("incompatible rtp capabilities")

	// ErrPipelineClosed indicates the transcoding pipeline has been closed
	ErrPipelineClosed = errors.New("pipeline is closed")

	// ErrNoPortsAvailable indicates the port pool is exhausted
	ErrNoPortsAvailable = errors.New("no port pair available")

	// ErrEngineClosed indicates the media engine has been shut down
	ErrEngineClosed = errors.New("media engine is closed")
)
