/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package signaling

import (
	"encoding/json"

	"github.com/jiyeyuran/mediasoup-go/v2"
)

// Inbound event names (browser -> relay).
const (
	EventJoin             = "join-meeting"
	EventOffer            = "offer"
	EventAnswer           = "answer"
	EventIceCandidate     = "ice-candidate"
	EventCreateTransport  = "create-transport"
	EventConnectTransport = "connect-transport"
	EventGetRouterCaps    = "get-router-capabilities"
	EventProduce          = "produce"
	EventConsume          = "consume"
	EventConsumerResume   = "consumer-resume"
	EventOverlayData      = "overlay-data"
	EventChangeOverlay    = "change-overlay"
	EventChangeOpacity    = "change-opacity"
	EventToggleOverlay    = "toggle-overlay"
)

// Outbound event names (relay -> browser).
const (
	EventWaiting            = "waiting"
	EventPartnerConnected   = "partner-connected"
	EventSendOffer          = "send-offer"
	EventUserDisconnected   = "user-disconnected"
	EventError              = "error"
	EventTransportCreated   = "transport-created"
	EventTransportConnected = "transport-connected"
	EventProducerCreated    = "producer-created"
	EventNewProducer        = "new-producer"
	EventConsumerCreated    = "consumer-created"
	EventRouterCaps         = "router-capabilities"
	EventOverlayChanged     = "overlay-changed"
	EventOpacityChanged     = "opacity-changed"
	EventOverlayToggled     = "overlay-toggled"
)

// Message is the websocket envelope for every signaling event.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// JoinData requests room membership.
type JoinData struct {
	RoomCode string `json:"roomCode"`
	Name     string `json:"name,omitempty"`
}

// SDPData carries an offer or answer relayed between the two members.
type SDPData struct {
	RoomID string          `json:"roomId"`
	SDP    json.RawMessage `json:"sdp"`
}

// CandidateData carries a trickled ICE candidate.
type CandidateData struct {
	RoomID    string          `json:"roomId"`
	Candidate json.RawMessage `json:"candidate"`
	Type      string          `json:"type,omitempty"`
}

// CreateTransportData requests a new send or receive transport.
type CreateTransportData struct {
	Direction string `json:"direction"`
}

// ConnectTransportData completes the DTLS handshake on a transport.
type ConnectTransportData struct {
	TransportID    string                    `json:"transportId"`
	DtlsParameters *mediasoup.DtlsParameters `json:"dtlsParameters"`
}

// ProduceData publishes a media stream on a transport.
type ProduceData struct {
	TransportID   string                   `json:"transportId"`
	Kind          string                   `json:"kind"`
	RtpParameters *mediasoup.RtpParameters `json:"rtpParameters"`
}

// ConsumeData subscribes to a producer.
type ConsumeData struct {
	TransportID     string                     `json:"transportId"`
	ProducerID      string                     `json:"producerId"`
	RtpCapabilities *mediasoup.RtpCapabilities `json:"rtpCapabilities"`
}

// ConsumerResumeData resumes a paused consumer.
type ConsumerResumeData struct {
	ConsumerID string `json:"consumerId"`
}

// OverlayData carries per-frame facial geometry plus the sender's current
// overlay choice. It is forwarded verbatim to the peer and also feeds the
// server-side compositor.
type OverlayData struct {
	RoomCode   string          `json:"roomCode"`
	Landmarks  json.RawMessage `json:"landmarks"`
	OverlayURL string          `json:"overlayUrl,omitempty"`
	Opacity    *float64        `json:"opacity,omitempty"`
}

// ChangeOverlayData selects a different overlay image.
type ChangeOverlayData struct {
	OverlayURL string `json:"overlayUrl"`
}

// ChangeOpacityData adjusts overlay opacity.
type ChangeOpacityData struct {
	Opacity float64 `json:"opacity"`
}

// ToggleOverlayData enables or disables compositing.
type ToggleOverlayData struct {
	Enabled bool `json:"enabled"`
}

// PartnerConnectedData announces that both members are present.
type PartnerConnectedData struct {
	RoomCode string `json:"roomCode"`
}

// ErrorData is the participant-facing error event.
type ErrorData struct {
	Message string `json:"message"`
}

// TransportConnectedData acknowledges a completed DTLS handshake.
type TransportConnectedData struct {
	TransportID string `json:"transportId"`
}

// ProducerCreatedData acknowledges a produce request.
type ProducerCreatedData struct {
	ID string `json:"id"`
}

// NewProducerData announces a producer the peer can consume.
type NewProducerData struct {
	ProducerID string `json:"producerId"`
	Kind       string `json:"kind"`
}

// ConsumerCreatedData answers a consume request with everything the
// receiving browser needs to create its local consumer.
type ConsumerCreatedData struct {
	ID            string                   `json:"id"`
	ProducerID    string                   `json:"producerId"`
	Kind          string                   `json:"kind"`
	RtpParameters *mediasoup.RtpParameters `json:"rtpParameters"`
}
