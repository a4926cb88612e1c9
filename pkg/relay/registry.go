/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"fmt"
	"sync"

	"github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/duocall/relay_core/pkg/overlay"
	"github.com/duocall/relay_core/pkg/utils"
)

// TransportInfo is everything the browser needs to connect a transport.
type TransportInfo struct {
	ID             string                   `json:"id"`
	IceParameters  mediasoup.IceParameters  `json:"iceParameters"`
	IceCandidates  []mediasoup.IceCandidate `json:"iceCandidates"`
	DtlsParameters mediasoup.DtlsParameters `json:"dtlsParameters"`
}

// Registry owns every participant-facing media object: transports,
// producers, consumers, and per-participant overlay settings. Each object
// lives in exactly one map, and removal always closes the underlying engine
// object before the entry is dropped.
type Registry struct {
	mu     sync.RWMutex
	logger *utils.Logger
	cfg    *Config
	router *mediasoup.Router

	participants map[string]*Participant
	transports   map[string]*mediasoup.Transport
	producers    map[string]*mediasoup.Producer
	consumers    map[string]*mediasoup.Consumer

	// object id -> owning participant id
	transportOwner map[string]string
	producerOwner  map[string]string
	consumerOwner  map[string]string

	// onAudioProducer announces an audio producer to the peer as-is.
	// onVideoProducer routes a raw video producer into the transcoding
	// pipeline instead of announcing it.
	onAudioProducer func(ownerID string, producer *mediasoup.Producer)
	onVideoProducer func(ownerID string, producer *mediasoup.Producer)
}

// NewRegistry creates a registry bound to the engine's router.
func NewRegistry(router *mediasoup.Router, cfg *Config, logger *utils.Logger) *Registry {
	return &Registry{
		logger:         logger.With("registry"),
		cfg:            cfg,
		router:         router,
		participants:   make(map[string]*Participant),
		transports:     make(map[string]*mediasoup.Transport),
		producers:      make(map[string]*mediasoup.Producer),
		consumers:      make(map[string]*mediasoup.Consumer),
		transportOwner: make(map[string]string),
		producerOwner:  make(map[string]string),
		consumerOwner:  make(map[string]string),
	}
}

// OnAudioProducer sets the audio announce hook.
func (r *Registry) OnAudioProducer(fn func(ownerID string, producer *mediasoup.Producer)) {
	r.onAudioProducer = fn
}

// OnVideoProducer sets the raw-video pipeline hook.
func (r *Registry) OnVideoProducer(fn func(ownerID string, producer *mediasoup.Producer)) {
	r.onVideoProducer = fn
}

// AddParticipant registers a new connection with default settings.
func (r *Registry) AddParticipant(id string) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p := NewParticipant(id)
	r.participants[id] = p
	return p
}

// SetName stores the display name sent with the join request.
func (r *Registry) SetName(participantID, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[participantID]; ok {
		p.Name = name
	}
}

// GetParticipant looks a participant up, or returns nil.
func (r *Registry) GetParticipant(id string) *Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.participants[id]
}

// CreateTransport asks the engine for a new WebRTC transport and stores it
// keyed by transport id. On engine failure no partial state is retained.
func (r *Registry) CreateTransport(participantID, direction string) (*TransportInfo, error) {
	transport, err := r.router.CreateWebRtcTransport(&mediasoup.WebRtcTransportOptions{
		ListenInfos: []mediasoup.TransportListenInfo{
			{
				Protocol:         mediasoup.TransportProtocolUDP,
				Ip:               r.cfg.ListenIP,
				AnnouncedAddress: r.cfg.AnnouncedIP,
				PortRange: mediasoup.TransportPortRange{
					Min: r.cfg.RtcMinPort,
					Max: r.cfg.RtcMaxPort,
				},
			},
		},
		AppData: mediasoup.H{"participantId": participantID, "direction": direction},
	})
	if err != nil {
		return nil, fmt.Errorf("create %s transport: %w", direction, err)
	}

	r.mu.Lock()
	r.transports[transport.Id()] = transport
	r.transportOwner[transport.Id()] = participantID
	r.mu.Unlock()

	r.logger.Debug("transport %s created for %s (%s)", transport.Id(), participantID, direction)

	data := transport.Data().WebRtcTransportData
	return &TransportInfo{
		ID:             transport.Id(),
		IceParameters:  data.IceParameters,
		IceCandidates:  data.IceCandidates,
		DtlsParameters: data.DtlsParameters,
	}, nil
}

// ConnectTransport completes the DTLS handshake on a stored transport.
func (r *Registry) ConnectTransport(transportID string, dtlsParameters *mediasoup.DtlsParameters) error {
	r.mu.RLock()
	transport, ok := r.transports[transportID]
	r.mu.RUnlock()
	if !ok {
		return ErrTransportNotFound
	}

	return transport.Connect(&mediasoup.TransportConnectOptions{
		DtlsParameters: dtlsParameters,
	})
}

// Produce creates a producer on the given transport. Audio producers are
// announced immediately through the audio hook; raw video producers go to
// the transcoding pipeline and are never announced themselves.
func (r *Registry) Produce(participantID, transportID, kind string, rtpParameters *mediasoup.RtpParameters) (*mediasoup.Producer, error) {
	r.mu.RLock()
	transport, ok := r.transports[transportID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTransportNotFound
	}

	producer, err := transport.Produce(&mediasoup.ProducerOptions{
		Kind:          mediasoup.MediaKind(kind),
		RtpParameters: rtpParameters,
		AppData:       mediasoup.H{"participantId": participantID},
	})
	if err != nil {
		return nil, fmt.Errorf("produce %s: %w", kind, err)
	}

	r.mu.Lock()
	r.producers[producer.Id()] = producer
	r.producerOwner[producer.Id()] = participantID
	r.mu.Unlock()

	r.logger.Info("producer %s (%s) created by %s", producer.Id(), kind, participantID)

	switch kind {
	case "audio":
		if r.onAudioProducer != nil {
			r.onAudioProducer(participantID, producer)
		}
	case "video":
		if r.onVideoProducer != nil {
			r.onVideoProducer(participantID, producer)
		}
	}
	return producer, nil
}

// Consume validates receiver capabilities against the producer and creates
// a paused consumer. Incompatible capabilities fail with a logged
// diagnostic and no consumer is retained.
func (r *Registry) Consume(participantID, transportID, producerID string, rtpCapabilities *mediasoup.RtpCapabilities) (*mediasoup.Consumer, error) {
	r.mu.RLock()
	transport, ok := r.transports[transportID]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrTransportNotFound
	}

	if !r.router.CanConsume(producerID, rtpCapabilities) {
		r.logger.Warn("participant %s cannot consume producer %s: incompatible capabilities", participantID, producerID)
		return nil, ErrIncompatibleCaps
	}

	// Created paused; the receiving side resumes once its local consumer
	// is wired up.
	consumer, err := transport.Consume(&mediasoup.ConsumerOptions{
		ProducerId:      producerID,
		RtpCapabilities: rtpCapabilities,
		Paused:          true,
		AppData:         mediasoup.H{"participantId": participantID},
	})
	if err != nil {
		return nil, fmt.Errorf("consume producer %s: %w", producerID, err)
	}

	r.mu.Lock()
	r.consumers[consumer.Id()] = consumer
	r.consumerOwner[consumer.Id()] = participantID
	r.mu.Unlock()

	r.logger.Debug("consumer %s created for %s on producer %s", consumer.Id(), participantID, producerID)
	return consumer, nil
}

// ResumeConsumer resumes a paused consumer and asks the producing side for
// a keyframe so video starts rendering immediately.
func (r *Registry) ResumeConsumer(consumerID string) error {
	r.mu.RLock()
	consumer, ok := r.consumers[consumerID]
	r.mu.RUnlock()
	if !ok {
		return ErrConsumerNotFound
	}

	if err := consumer.Resume(); err != nil {
		return fmt.Errorf("resume consumer %s: %w", consumerID, err)
	}
	if consumer.Kind() == mediasoup.MediaKindVideo {
		if err := consumer.RequestKeyFrame(); err != nil {
			r.logger.Debug("keyframe request for %s failed: %v", consumerID, err)
		}
	}
	return nil
}

// SetOverlay updates the participant's overlay image reference.
func (r *Registry) SetOverlay(participantID, imageURL string) (OverlaySettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return OverlaySettings{}, ErrParticipantNotFound
	}
	p.Settings.ImageURL = imageURL
	return p.Settings, nil
}

// SetOpacity updates overlay opacity, clamped to [0,1].
func (r *Registry) SetOpacity(participantID string, opacity float64) (OverlaySettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return OverlaySettings{}, ErrParticipantNotFound
	}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	p.Settings.Opacity = opacity
	return p.Settings, nil
}

// SetOverlayEnabled toggles compositing for the participant.
func (r *Registry) SetOverlayEnabled(participantID string, enabled bool) (OverlaySettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.participants[participantID]
	if !ok {
		return OverlaySettings{}, ErrParticipantNotFound
	}
	p.Settings.Enabled = enabled
	return p.Settings, nil
}

// SetLandmarks caches the most recent facial geometry for the participant.
func (r *Registry) SetLandmarks(participantID string, landmarks []overlay.Landmark) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.participants[participantID]; ok {
		p.Landmarks = landmarks
	}
}

// SettingsOf returns a copy of the participant's overlay settings.
func (r *Registry) SettingsOf(participantID string) (OverlaySettings, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[participantID]
	if !ok {
		return OverlaySettings{}, false
	}
	return p.Settings, true
}

// LandmarksOf returns the participant's cached landmarks.
func (r *Registry) LandmarksOf(participantID string) []overlay.Landmark {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.participants[participantID]
	if !ok {
		return nil
	}
	return p.Landmarks
}

// VideoProducersOf returns the ids of raw video producers owned by the
// participant. The lifecycle manager feeds these to the orchestrator.
func (r *Registry) VideoProducersOf(participantID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var ids []string
	for id, producer := range r.producers {
		if r.producerOwner[id] == participantID && producer.Kind() == mediasoup.MediaKindVideo {
			ids = append(ids, id)
		}
	}
	return ids
}

// CleanupParticipant closes and removes every object the participant owns.
// Close errors are recorded in the report, never fatal.
func (r *Registry) CleanupParticipant(participantID string, report *CleanupReport) {
	r.mu.Lock()
	var consumers []*mediasoup.Consumer
	for id, owner := range r.consumerOwner {
		if owner != participantID {
			continue
		}
		consumers = append(consumers, r.consumers[id])
		delete(r.consumers, id)
		delete(r.consumerOwner, id)
	}
	var producers []*mediasoup.Producer
	for id, owner := range r.producerOwner {
		if owner != participantID {
			continue
		}
		producers = append(producers, r.producers[id])
		delete(r.producers, id)
		delete(r.producerOwner, id)
	}
	var transports []*mediasoup.Transport
	for id, owner := range r.transportOwner {
		if owner != participantID {
			continue
		}
		transports = append(transports, r.transports[id])
		delete(r.transports, id)
		delete(r.transportOwner, id)
	}
	delete(r.participants, participantID)
	r.mu.Unlock()

	for _, consumer := range consumers {
		report.Record("close consumer", consumer.Close())
	}
	for _, producer := range producers {
		report.Record("close producer", producer.Close())
	}
	// Closing a transport also closes anything still attached to it.
	for _, transport := range transports {
		report.Record("close transport", transport.Close())
	}

	r.logger.Info("cleaned up %d transport(s), %d producer(s), %d consumer(s) for %s",
		len(transports), len(producers), len(consumers), participantID)
}
