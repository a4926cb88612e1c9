/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-20
 */
package main

import (
	"encoding/json"
	"errors"

	"github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/duocall/relay_core/pkg/overlay"
	"github.com/duocall/relay_core/pkg/relay"
	"github.com/duocall/relay_core/pkg/signaling"
	"github.com/duocall/relay_core/pkg/utils"
)

// App wires the signaling hub to the relay components. Every handler here
// runs on the hub's event loop.
type App struct {
	logger       *utils.Logger
	cfg          *relay.Config
	engine       *relay.Engine
	hub          *signaling.Hub
	registry     *relay.Registry
	coordinator  *relay.Coordinator
	orchestrator *relay.Orchestrator
	lifecycle    *relay.Lifecycle
}

// NewApp builds the full component graph.
func NewApp(cfg *relay.Config, engine *relay.Engine, logger *utils.Logger) *App {
	hub := signaling.NewHub(logger)
	registry := relay.NewRegistry(engine.Router(), cfg, logger)
	coordinator := relay.NewCoordinator(hub, logger)
	ports := relay.NewPortAllocator(cfg.PipePortBase, cfg.PipePortMax)
	orchestrator := relay.NewOrchestrator(engine.Router(), ports, registry, hub, cfg, logger)
	lifecycle := relay.NewLifecycle(orchestrator, registry, coordinator, logger)

	app := &App{
		logger:       logger.With("app"),
		cfg:          cfg,
		engine:       engine,
		hub:          hub,
		registry:     registry,
		coordinator:  coordinator,
		orchestrator: orchestrator,
		lifecycle:    lifecycle,
	}

	hub.OnConnect(app.handleConnect)
	hub.OnDisconnect(app.handleDisconnect)
	hub.OnMessage(app.handleMessage)

	registry.OnAudioProducer(func(ownerID string, producer *mediasoup.Producer) {
		app.announceProducer(ownerID, producer.Id(), string(producer.Kind()))
	})
	registry.OnVideoProducer(func(ownerID string, producer *mediasoup.Producer) {
		if err := orchestrator.StartPipeline(ownerID, producer); err != nil {
			app.logger.Error("start pipeline for producer %s: %v", producer.Id(), err)
		}
	})
	orchestrator.OnProcessedProducer(func(ownerID string, producer *mediasoup.Producer) {
		app.announceProducer(ownerID, producer.Id(), string(producer.Kind()))
	})

	return app
}

// Hub returns the signaling hub for HTTP wiring.
func (a *App) Hub() *signaling.Hub {
	return a.hub
}

func (a *App) handleConnect(participantID string) {
	a.registry.AddParticipant(participantID)
}

func (a *App) handleDisconnect(participantID string) {
	a.lifecycle.CleanupParticipant(participantID)
}

// announceProducer tells the other room member there is a new producer to
// consume. The raw video producer never reaches here; only its processed
// replacement does.
func (a *App) announceProducer(ownerID, producerID, kind string) {
	room := a.coordinator.RoomOf(ownerID)
	if room == nil {
		a.logger.Debug("producer %s has no room to announce into", producerID)
		return
	}
	other := room.Other(ownerID)
	if other == "" {
		return
	}
	a.hub.SendTo(other, signaling.EventNewProducer, signaling.NewProducerData{
		ProducerID: producerID,
		Kind:       kind,
	})
}

// sendError emits the participant-facing error event.
func (a *App) sendError(participantID, message string) {
	a.hub.SendTo(participantID, signaling.EventError, signaling.ErrorData{Message: message})
}

func (a *App) handleMessage(participantID string, msg signaling.Message) {
	switch msg.Event {
	case signaling.EventJoin:
		a.handleJoin(participantID, msg.Data)

	case signaling.EventOffer, signaling.EventAnswer:
		var data signaling.SDPData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			a.logger.Warn("malformed %s from %s: %v", msg.Event, participantID, err)
			return
		}
		a.coordinator.Relay(data.RoomID, participantID, msg.Event, msg.Data)

	case signaling.EventIceCandidate:
		var data signaling.CandidateData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			a.logger.Warn("malformed ice-candidate from %s: %v", participantID, err)
			return
		}
		a.coordinator.Relay(data.RoomID, participantID, msg.Event, msg.Data)

	case signaling.EventCreateTransport:
		a.handleCreateTransport(participantID, msg.Data)

	case signaling.EventConnectTransport:
		a.handleConnectTransport(participantID, msg.Data)

	case signaling.EventGetRouterCaps:
		a.hub.SendTo(participantID, signaling.EventRouterCaps, a.engine.RtpCapabilities())

	case signaling.EventProduce:
		a.handleProduce(participantID, msg.Data)

	case signaling.EventConsume:
		a.handleConsume(participantID, msg.Data)

	case signaling.EventConsumerResume:
		var data signaling.ConsumerResumeData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		if err := a.registry.ResumeConsumer(data.ConsumerID); err != nil {
			a.sendError(participantID, "consumer not found")
		}

	case signaling.EventOverlayData:
		a.handleOverlayData(participantID, msg.Data)

	case signaling.EventChangeOverlay:
		var data signaling.ChangeOverlayData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		settings, err := a.registry.SetOverlay(participantID, data.OverlayURL)
		if err != nil {
			a.sendError(participantID, "participant not found")
			return
		}
		a.hub.SendTo(participantID, signaling.EventOverlayChanged, settings)

	case signaling.EventChangeOpacity:
		var data signaling.ChangeOpacityData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		settings, err := a.registry.SetOpacity(participantID, data.Opacity)
		if err != nil {
			a.sendError(participantID, "participant not found")
			return
		}
		a.hub.SendTo(participantID, signaling.EventOpacityChanged, settings)

	case signaling.EventToggleOverlay:
		var data signaling.ToggleOverlayData
		if err := json.Unmarshal(msg.Data, &data); err != nil {
			return
		}
		settings, err := a.registry.SetOverlayEnabled(participantID, data.Enabled)
		if err != nil {
			a.sendError(participantID, "participant not found")
			return
		}
		a.hub.SendTo(participantID, signaling.EventOverlayToggled, settings)

	default:
		a.logger.Debug("unknown event %q from %s", msg.Event, participantID)
	}
}

func (a *App) handleJoin(participantID string, raw json.RawMessage) {
	var data signaling.JoinData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.sendError(participantID, "malformed join request")
		return
	}
	if data.Name != "" {
		a.registry.SetName(participantID, data.Name)
	}
	if err := a.coordinator.Join(participantID, data.RoomCode); err != nil {
		if errors.Is(err, relay.ErrRoomFull) {
			a.sendError(participantID, "room is full")
			return
		}
		a.sendError(participantID, "join failed")
	}
}

func (a *App) handleCreateTransport(participantID string, raw json.RawMessage) {
	var data signaling.CreateTransportData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.sendError(participantID, "malformed create-transport request")
		return
	}
	info, err := a.registry.CreateTransport(participantID, data.Direction)
	if err != nil {
		a.logger.Error("create transport for %s: %v", participantID, err)
		a.sendError(participantID, "transport creation failed")
		return
	}
	a.hub.SendTo(participantID, signaling.EventTransportCreated, struct {
		*relay.TransportInfo
		Direction string `json:"direction"`
	}{info, data.Direction})
}

func (a *App) handleConnectTransport(participantID string, raw json.RawMessage) {
	var data signaling.ConnectTransportData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.sendError(participantID, "malformed connect-transport request")
		return
	}
	if err := a.registry.ConnectTransport(data.TransportID, data.DtlsParameters); err != nil {
		if errors.Is(err, relay.ErrTransportNotFound) {
			a.sendError(participantID, "transport not found")
		} else {
			a.logger.Error("connect transport %s: %v", data.TransportID, err)
			a.sendError(participantID, "transport connect failed")
		}
		return
	}
	a.hub.SendTo(participantID, signaling.EventTransportConnected, signaling.TransportConnectedData{
		TransportID: data.TransportID,
	})
}

func (a *App) handleProduce(participantID string, raw json.RawMessage) {
	var data signaling.ProduceData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.sendError(participantID, "malformed produce request")
		return
	}
	producer, err := a.registry.Produce(participantID, data.TransportID, data.Kind, data.RtpParameters)
	if err != nil {
		if errors.Is(err, relay.ErrTransportNotFound) {
			a.sendError(participantID, "transport not found")
		} else {
			a.logger.Error("produce for %s: %v", participantID, err)
			a.sendError(participantID, "produce failed")
		}
		return
	}
	a.hub.SendTo(participantID, signaling.EventProducerCreated, signaling.ProducerCreatedData{
		ID: producer.Id(),
	})
}

func (a *App) handleConsume(participantID string, raw json.RawMessage) {
	var data signaling.ConsumeData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.sendError(participantID, "malformed consume request")
		return
	}
	consumer, err := a.registry.Consume(participantID, data.TransportID, data.ProducerID, data.RtpCapabilities)
	if err != nil {
		switch {
		case errors.Is(err, relay.ErrIncompatibleCaps):
			// Logged diagnostic only; the browser simply never gets a
			// consumer for this producer.
		case errors.Is(err, relay.ErrTransportNotFound):
			a.sendError(participantID, "transport not found")
		default:
			a.logger.Error("consume for %s: %v", participantID, err)
			a.sendError(participantID, "consume failed")
		}
		return
	}
	a.hub.SendTo(participantID, signaling.EventConsumerCreated, signaling.ConsumerCreatedData{
		ID:            consumer.Id(),
		ProducerID:    data.ProducerID,
		Kind:          string(consumer.Kind()),
		RtpParameters: consumer.RtpParameters(),
	})
}

// handleOverlayData caches the sender's landmarks for the server-side
// compositor, applies any piggybacked settings change, and forwards the
// payload verbatim to the peer for client-side rendering.
func (a *App) handleOverlayData(participantID string, raw json.RawMessage) {
	var data signaling.OverlayData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.logger.Warn("malformed overlay-data from %s: %v", participantID, err)
		return
	}

	if len(data.Landmarks) > 0 {
		var landmarks []overlay.Landmark
		if err := json.Unmarshal(data.Landmarks, &landmarks); err == nil {
			a.registry.SetLandmarks(participantID, landmarks)
		}
	}
	if data.OverlayURL != "" {
		a.registry.SetOverlay(participantID, data.OverlayURL)
	}
	if data.Opacity != nil {
		a.registry.SetOpacity(participantID, *data.Opacity)
	}

	a.coordinator.Relay(data.RoomCode, participantID, signaling.EventOverlayData, raw)
}
