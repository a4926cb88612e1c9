/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/jiyeyuran/mediasoup-go/v2"

	"github.com/duocall/relay_core/pkg/utils"
)

// mediaCodecs is the codec set negotiated once per process lifetime. The
// two-party product pins Opus for audio and VP8 for video; the transcoding
// pipelines re-encode to VP8 as well, so every producer in a room shares
// one video codec.
func mediaCodecs() []*mediasoup.RtpCodecCapability {
	return []*mediasoup.RtpCodecCapability{
		{
			Kind:      mediasoup.MediaKindAudio,
			MimeType:  "audio/opus",
			ClockRate: 48000,
			Channels:  2,
		},
		{
			Kind:      mediasoup.MediaKindVideo,
			MimeType:  "video/VP8",
			ClockRate: 90000,
		},
	}
}

// Engine owns the media worker process and the single router every room in
// this relay shares. Worker death is unrecoverable: router and transport
// state live inside the worker, so the registered died handler is expected
// to terminate the whole process.
type Engine struct {
	mu     sync.RWMutex
	logger *utils.Logger
	worker *mediasoup.Worker
	router *mediasoup.Router
	onDied func(error)
	closed bool
}

// NewEngine starts the media worker and creates the router.
func NewEngine(cfg *Config, logger *utils.Logger) (*Engine, error) {
	e := &Engine{
		logger: logger.With("engine"),
	}

	worker, err := mediasoup.NewWorker(cfg.WorkerBin, func(settings *mediasoup.WorkerSettings) {
		settings.LogLevel = mediasoup.WorkerLogLevelWarn
		settings.Logger = utils.NewSlogLogger(e.logger)
	})
	if err != nil {
		return nil, fmt.Errorf("start media worker: %w", err)
	}

	// A close with a non-nil Err means the subprocess died on its own
	// rather than being shut down through Close.
	worker.OnClose(func(ctx context.Context) {
		err := worker.Err()
		if err == nil {
			return
		}
		e.logger.Error("media worker died: %v", err)
		e.mu.RLock()
		onDied := e.onDied
		e.mu.RUnlock()
		if onDied != nil {
			onDied(err)
		}
	})

	router, err := worker.CreateRouter(&mediasoup.RouterOptions{
		MediaCodecs: mediaCodecs(),
	})
	if err != nil {
		worker.Close()
		return nil, fmt.Errorf("create router: %w", err)
	}

	e.worker = worker
	e.router = router
	e.logger.Info("media worker started, router %s", router.Id())
	return e, nil
}

// Router returns the shared router.
func (e *Engine) Router() *mediasoup.Router {
	return e.router
}

// RtpCapabilities returns the router's negotiated capability descriptor.
func (e *Engine) RtpCapabilities() *mediasoup.RtpCapabilities {
	return e.router.RtpCapabilities()
}

// OnDied registers the fatal-error handler invoked when the worker process
// exits unexpectedly.
func (e *Engine) OnDied(handler func(error)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onDied = handler
}

// Close shuts the router and worker down. Safe to call more than once.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	if err := e.router.Close(); err != nil {
		e.logger.Warn("close router: %v", err)
	}
	e.worker.Close()
	e.logger.Info("media engine closed")
	return nil
}
