/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package relay

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/duocall/relay_core/pkg/overlay"
	"github.com/duocall/relay_core/pkg/utils"
)

// PipelineState is the per-raw-producer initialization state. Transitions
// happen only on the event loop: Idle -> Initializing on the first frame,
// Initializing -> Ready when the async encoder/producer setup completes,
// and back to Idle if that setup fails (a later frame may retry).
type PipelineState int32

const (
	StateIdle PipelineState = iota
	StateInitializing
	StateReady
)

func (s PipelineState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// dimensionProbeTimeout bounds how long a pipeline waits for the decoder to
// report the stream's width/height.
const dimensionProbeTimeout = 30 * time.Second

// Dispatcher posts work onto the single-threaded event loop.
type Dispatcher interface {
	Dispatch(task func())
}

// frameSink is the encoder surface the steady-state frame path writes to.
type frameSink interface {
	WriteFrame(frame []byte) error
	Stop() error
}

// Pipeline is the per-raw-video-producer transcoding chain: input relay
// transport -> decode process -> frame transform -> encode process ->
// output relay transport -> processed producer. All fields are owned by the
// orchestrator and mutated only from event-loop callbacks.
type Pipeline struct {
	producerID    string
	participantID string

	state  PipelineState
	closed bool

	width  int
	height int

	rtpPort  int
	rtcpPort int
	sdpPath  string

	inTransport  *mediasoup.Transport
	outTransport *mediasoup.Transport
	pipeConsumer *mediasoup.Consumer
	decoder      *DecodeProcess
	encoder      frameSink
	processed    *mediasoup.Producer

	stats *PipelineStats
}

// State returns the pipeline's current initialization state.
func (p *Pipeline) State() PipelineState {
	return p.state
}

// Stats returns the pipeline's frame counters.
func (p *Pipeline) Stats() *PipelineStats {
	return p.stats
}

// Orchestrator builds and drives the transcoding pipelines. One pipeline
// per raw video producer; pipelines interleave their frame callbacks on the
// shared event loop but never share state with each other.
type Orchestrator struct {
	mu         sync.RWMutex
	logger     *utils.Logger
	cfg        *Config
	router     *mediasoup.Router
	ports      *PortAllocator
	registry   *Registry
	loop       Dispatcher
	compositor *overlay.Compositor
	images     *overlay.ImageCache

	// rawProducerID -> pipeline
	pipelines map[string]*Pipeline

	// onProcessed announces the processed producer to the peer once the
	// pipeline reaches Ready.
	onProcessed func(ownerID string, producer *mediasoup.Producer)

	// initFn runs the async half of pipeline initialization. Swapped out
	// in tests.
	initFn func(p *Pipeline)
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(router *mediasoup.Router, ports *PortAllocator, registry *Registry, loop Dispatcher, cfg *Config, logger *utils.Logger) *Orchestrator {
	o := &Orchestrator{
		logger:     logger.With("pipeline"),
		cfg:        cfg,
		router:     router,
		ports:      ports,
		registry:   registry,
		loop:       loop,
		compositor: overlay.NewCompositor(),
		images:     overlay.NewImageCache(logger),
		pipelines:  make(map[string]*Pipeline),
	}
	o.initFn = o.initializePipeline
	return o
}

// OnProcessedProducer sets the announce hook.
func (o *Orchestrator) OnProcessedProducer(fn func(ownerID string, producer *mediasoup.Producer)) {
	o.onProcessed = fn
}

// Pipeline returns the pipeline for a raw producer id, or nil.
func (o *Orchestrator) Pipeline(producerID string) *Pipeline {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.pipelines[producerID]
}

// StartPipeline builds the input half of the pipeline for a raw video
// producer: port pair, input relay transport, pipe consumer, SDP file, and
// the decode process. The output half waits for the first decoded frame,
// since the encoder needs the stream's probed dimensions.
func (o *Orchestrator) StartPipeline(ownerID string, producer *mediasoup.Producer) error {
	p := &Pipeline{
		producerID:    producer.Id(),
		participantID: ownerID,
		stats:         NewPipelineStats(),
	}

	rtp, rtcp, err := o.ports.Allocate()
	if err != nil {
		return fmt.Errorf("allocate ports: %w", err)
	}
	p.rtpPort, p.rtcpPort = rtp, rtcp

	fail := func(err error) error {
		o.teardownPipeline(p, &CleanupReport{})
		return err
	}

	inTransport, err := o.router.CreatePlainTransport(&mediasoup.PlainTransportOptions{
		ListenInfo: mediasoup.TransportListenInfo{
			Protocol: mediasoup.TransportProtocolUDP,
			Ip:       "127.0.0.1",
		},
		RtcpMux: ptr(false),
		AppData: mediasoup.H{"producerId": producer.Id(), "side": "input"},
	})
	if err != nil {
		return fail(fmt.Errorf("create input transport: %w", err))
	}
	p.inTransport = inTransport

	// Point the engine's RTP/RTCP at the decoder's listening pair.
	if err := inTransport.Connect(&mediasoup.TransportConnectOptions{
		Ip:       "127.0.0.1",
		Port:     ptr(uint16(rtp)),
		RtcpPort: ptr(uint16(rtcp)),
	}); err != nil {
		return fail(fmt.Errorf("connect input transport: %w", err))
	}

	pipeConsumer, err := inTransport.Consume(&mediasoup.ConsumerOptions{
		ProducerId:      producer.Id(),
		RtpCapabilities: o.router.RtpCapabilities(),
		Paused:          true,
		AppData:         mediasoup.H{"producerId": producer.Id(), "side": "input"},
	})
	if err != nil {
		return fail(fmt.Errorf("create pipe consumer: %w", err))
	}
	p.pipeConsumer = pipeConsumer

	codec := pipeConsumer.RtpParameters().Codecs[0]
	codecName := strings.TrimPrefix(codec.MimeType, "video/")
	sdpPath, err := WriteSDP(o.cfg.WorkDir, producer.Id(), rtp, rtcp, byte(codec.PayloadType), codecName, int(codec.ClockRate))
	if err != nil {
		return fail(err)
	}
	p.sdpPath = sdpPath

	decoder, err := StartDecoder(o.cfg.FFmpegBin, sdpPath, o.logger)
	if err != nil {
		return fail(fmt.Errorf("start decoder: %w", err))
	}
	p.decoder = decoder

	if err := pipeConsumer.Resume(); err != nil {
		return fail(fmt.Errorf("resume pipe consumer: %w", err))
	}
	if err := pipeConsumer.RequestKeyFrame(); err != nil {
		o.logger.Debug("keyframe request for pipeline %s failed: %v", producer.Id(), err)
	}

	o.mu.Lock()
	o.pipelines[producer.Id()] = p
	o.mu.Unlock()

	o.logger.Info("pipeline %s started for %s (ports %d/%d)", producer.Id(), ownerID, rtp, rtcp)

	go o.readFrames(p)
	return nil
}

// readFrames waits for the decoder's dimension probe, then reads fixed-size
// RGBA frames off its stdout and posts each one onto the event loop. Runs
// in its own goroutine; exits when the decoder's pipe closes.
func (o *Orchestrator) readFrames(p *Pipeline) {
	width, height, err := p.decoder.WaitDimensions(dimensionProbeTimeout)
	if err != nil {
		o.logger.Error("pipeline %s: %v", p.producerID, err)
		return
	}
	p.width, p.height = width, height

	frameSize := overlay.Size(width, height)
	out := p.decoder.Output()

	for {
		buf := utils.GetBuffer(frameSize)
		if _, err := io.ReadFull(out, buf); err != nil {
			utils.PutBuffer(buf)
			o.logger.Debug("pipeline %s: decoder stream ended: %v", p.producerID, err)
			return
		}
		o.loop.Dispatch(func() {
			o.handleFrame(p, buf)
			utils.PutBuffer(buf)
		})
	}
}

// handleFrame is the per-frame callback, always on the event loop. The
// first frame that observes an idle pipeline claims initialization before
// any asynchronous work starts, so the claim itself can never race; every
// frame arriving before Ready is dropped, not buffered.
func (o *Orchestrator) handleFrame(p *Pipeline, frame []byte) {
	if p.closed {
		return
	}
	p.stats.AddDecoded()

	switch p.state {
	case StateIdle:
		p.state = StateInitializing
		p.stats.AddDropped()
		go o.initFn(p)

	case StateInitializing:
		p.stats.AddDropped()

	case StateReady:
		o.transformAndWrite(p, frame)
	}
}

// initializePipeline builds the output half: output relay transport, encode
// process, warm-up wait, processed producer, announce. Runs in its own
// goroutine and posts its completion back onto the event loop. On failure
// the pipeline returns to Idle so a later frame can retry.
func (o *Orchestrator) initializePipeline(p *Pipeline) {
	outTransport, encoder, processed, err := o.buildOutputChain(p)

	o.loop.Dispatch(func() {
		if p.closed {
			// Torn down while we were initializing; unwind quietly.
			if processed != nil {
				processed.Close()
			}
			if encoder != nil {
				encoder.Stop()
			}
			if outTransport != nil {
				outTransport.Close()
			}
			return
		}

		if err != nil {
			o.logger.Error("pipeline %s initialization failed: %v", p.producerID, err)
			p.state = StateIdle
			return
		}

		p.outTransport = outTransport
		p.encoder = encoder
		p.processed = processed
		p.state = StateReady

		o.logger.Info("pipeline %s ready: processed producer %s (%dx%d)",
			p.producerID, processed.Id(), p.width, p.height)

		if o.onProcessed != nil {
			o.onProcessed(p.participantID, processed)
		}
	})
}

// buildOutputChain does the blocking part of initialization. Partial state
// is unwound before returning an error.
func (o *Orchestrator) buildOutputChain(p *Pipeline) (*mediasoup.Transport, *EncodeProcess, *mediasoup.Producer, error) {
	// Comedia: the transport latches onto the encoder's source port from
	// its first RTP packet, so the encoder only needs a target port.
	outTransport, err := o.router.CreatePlainTransport(&mediasoup.PlainTransportOptions{
		ListenInfo: mediasoup.TransportListenInfo{
			Protocol: mediasoup.TransportProtocolUDP,
			Ip:       "127.0.0.1",
		},
		Comedia: true,
		AppData: mediasoup.H{"producerId": p.producerID, "side": "output"},
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create output transport: %w", err)
	}

	targetPort := int(outTransport.Data().PlainTransportData.Tuple.LocalPort)
	encoder, err := StartEncoder(o.cfg.FFmpegBin, p.width, p.height, targetPort, o.logger)
	if err != nil {
		outTransport.Close()
		return nil, nil, nil, fmt.Errorf("start encoder: %w", err)
	}

	// Give the encoder time to spin up before advertising its stream.
	time.Sleep(o.cfg.EncoderWarmup)

	processed, err := outTransport.Produce(&mediasoup.ProducerOptions{
		Kind:          mediasoup.MediaKindVideo,
		RtpParameters: encoderRtpParameters(),
		AppData:       mediasoup.H{"participantId": p.participantID, "processed": true},
	})
	if err != nil {
		encoder.Stop()
		outTransport.Close()
		return nil, nil, nil, fmt.Errorf("produce processed stream: %w", err)
	}

	return outTransport, encoder, processed, nil
}

// encoderRtpParameters describes the encoder's fixed output stream.
func encoderRtpParameters() *mediasoup.RtpParameters {
	return &mediasoup.RtpParameters{
		Codecs: []*mediasoup.RtpCodecParameters{
			{
				MimeType:    "video/VP8",
				PayloadType: encoderPayloadType,
				ClockRate:   90000,
			},
		},
		Encodings: []*mediasoup.RtpEncodingParameters{
			{Ssrc: encoderSSRC},
		},
	}
}

// transformAndWrite runs the steady-state frame path: composite if the
// owner has an overlay enabled, then push the frame into the encoder.
// Write failures are logged and dropped, never propagated.
func (o *Orchestrator) transformAndWrite(p *Pipeline, frameBytes []byte) {
	settings, ok := o.registry.SettingsOf(p.participantID)
	landmarks := o.registry.LandmarksOf(p.participantID)

	composited := false
	if ok && settings.Enabled && settings.ImageURL != "" {
		if img := o.images.Get(settings.ImageURL); img != nil && len(landmarks) > 0 {
			frame := &overlay.Frame{Width: p.width, Height: p.height, Pix: frameBytes}
			o.compositor.Composite(frame, landmarks, img, settings.Opacity)
			composited = true
		}
	}

	if composited {
		p.stats.AddComposited()
	} else {
		p.stats.AddPassthrough()
	}

	if err := p.encoder.WriteFrame(frameBytes); err != nil {
		p.stats.AddEncoderWriteFail()
		o.logger.Warn("pipeline %s: encoder write failed: %v", p.producerID, err)
	}
}

// CleanupParticipant tears down every pipeline owned by the participant.
// Each step is best-effort and recorded in the report.
func (o *Orchestrator) CleanupParticipant(participantID string, report *CleanupReport) {
	o.mu.Lock()
	var owned []*Pipeline
	for id, p := range o.pipelines {
		if p.participantID == participantID {
			owned = append(owned, p)
			delete(o.pipelines, id)
		}
	}
	o.mu.Unlock()

	for _, p := range owned {
		o.teardownPipeline(p, report)
	}
}

// teardownPipeline unwinds one pipeline in dependency order. Every step
// runs even if an earlier one fails.
func (o *Orchestrator) teardownPipeline(p *Pipeline, report *CleanupReport) {
	p.closed = true
	p.state = StateIdle

	if p.decoder != nil {
		report.Record("stop decoder", p.decoder.Stop())
	}
	if p.encoder != nil {
		report.Record("stop encoder", p.encoder.Stop())
	}
	if p.processed != nil {
		report.Record("close processed producer", p.processed.Close())
	}
	if p.pipeConsumer != nil {
		report.Record("close pipe consumer", p.pipeConsumer.Close())
	}
	if p.inTransport != nil {
		report.Record("close input transport", p.inTransport.Close())
	}
	if p.outTransport != nil {
		report.Record("close output transport", p.outTransport.Close())
	}
	if p.sdpPath != "" {
		report.Record("remove sdp file", os.Remove(p.sdpPath))
	}
	if p.rtpPort != 0 {
		o.ports.Free(p.rtpPort, p.rtcpPort)
	}

	o.logger.Info("pipeline %s torn down", p.producerID)
}

// PipelineCount returns the number of live pipelines.
func (o *Orchestrator) PipelineCount() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.pipelines)
}

// StatsSnapshot returns per-pipeline frame counters keyed by raw producer.
func (o *Orchestrator) StatsSnapshot() map[string]PipelineStatsSnapshot {
	o.mu.RLock()
	defer o.mu.RUnlock()

	out := make(map[string]PipelineStatsSnapshot, len(o.pipelines))
	for id, p := range o.pipelines {
		out[id] = p.stats.Snapshot()
	}
	return out
}

func ptr[T any](v T) *T {
	return &v
}
