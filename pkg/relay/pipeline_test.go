/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package relay

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/duocall/relay_core/pkg/utils"
)

// manualLoop queues dispatched tasks for explicit draining, standing in for
// the hub's event loop.
type manualLoop struct {
	mu    sync.Mutex
	tasks []func()
}

func (l *manualLoop) Dispatch(task func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks = append(l.tasks, task)
}

func (l *manualLoop) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		task := l.tasks[0]
		l.tasks = l.tasks[1:]
		l.mu.Unlock()
		task()
	}
}

// stubSink fakes the encoder's stdin.
type stubSink struct {
	mu     sync.Mutex
	frames [][]byte
	err    error
}

func (s *stubSink) WriteFrame(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *stubSink) Stop() error { return nil }

func (s *stubSink) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newTestOrchestrator() (*Orchestrator, *manualLoop, *PortAllocator, *Registry) {
	cfg := &Config{
		WorkDir:       "/tmp",
		FFmpegBin:     "ffmpeg",
		EncoderWarmup: time.Millisecond,
		PipePortBase:  20000,
		PipePortMax:   20098,
	}
	logger := utils.NewLogger("test")
	ports := NewPortAllocator(cfg.PipePortBase, cfg.PipePortMax)
	registry := NewRegistry(nil, cfg, logger)
	loop := &manualLoop{}
	return NewOrchestrator(nil, ports, registry, loop, cfg, logger), loop, ports, registry
}

func newTestPipeline(producerID, ownerID string) *Pipeline {
	return &Pipeline{
		producerID:    producerID,
		participantID: ownerID,
		width:         640,
		height:        480,
		stats:         NewPipelineStats(),
	}
}

func TestPipelineAtMostOneInitializer(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()

	var initCalls int32
	started := make(chan struct{}, 1)
	o.initFn = func(p *Pipeline) {
		atomic.AddInt32(&initCalls, 1)
		started <- struct{}{}
	}

	p := newTestPipeline("prod1", "a")

	// Several frame callbacks interleave before initialization completes.
	frame := make([]byte, 16)
	for i := 0; i < 5; i++ {
		o.handleFrame(p, frame)
	}

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("initializer never started")
	}

	if got := atomic.LoadInt32(&initCalls); got != 1 {
		t.Errorf("initializer ran %d times, expected exactly 1", got)
	}
	if p.State() != StateInitializing {
		t.Errorf("state = %s, expected initializing", p.State())
	}

	snap := p.Stats().Snapshot()
	if snap.FramesDropped != 5 {
		t.Errorf("expected all 5 warm-up frames dropped, got %d", snap.FramesDropped)
	}
	if snap.FramesDecoded != 5 {
		t.Errorf("expected 5 frames decoded, got %d", snap.FramesDecoded)
	}
}

func TestPipelineReadyFramesReachEncoder(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()

	sink := &stubSink{}
	p := newTestPipeline("prod1", "a")
	p.state = StateReady
	p.encoder = sink

	frame := make([]byte, 16)
	o.handleFrame(p, frame)
	o.handleFrame(p, frame)

	if got := sink.frameCount(); got != 2 {
		t.Errorf("encoder received %d frames, expected 2", got)
	}

	snap := p.Stats().Snapshot()
	if snap.FramesPassthrough != 2 {
		t.Errorf("expected 2 passthrough frames, got %d", snap.FramesPassthrough)
	}
	if snap.FramesDropped != 0 {
		t.Errorf("ready frames were dropped: %d", snap.FramesDropped)
	}
}

func TestPipelineInitFailureResetsState(t *testing.T) {
	o, loop, _, _ := newTestOrchestrator()

	var initCalls int32
	started := make(chan struct{}, 2)
	o.initFn = func(p *Pipeline) {
		atomic.AddInt32(&initCalls, 1)
		// Mirror the real initializer's failure path: back to Idle on
		// the loop so a later frame can retry.
		o.loop.Dispatch(func() { p.state = StateIdle })
		started <- struct{}{}
	}

	p := newTestPipeline("prod1", "a")
	frame := make([]byte, 16)

	o.handleFrame(p, frame)
	<-started
	loop.drain()

	if p.State() != StateIdle {
		t.Fatalf("state = %s after failed init, expected idle", p.State())
	}

	// The next frame may claim initialization again.
	o.handleFrame(p, frame)
	<-started

	if got := atomic.LoadInt32(&initCalls); got != 2 {
		t.Errorf("initializer ran %d times, expected a retry (2)", got)
	}
}

func TestPipelineEncoderWriteFailureIsNotFatal(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()

	sink := &stubSink{err: errors.New("broken pipe")}
	p := newTestPipeline("prod1", "a")
	p.state = StateReady
	p.encoder = sink

	o.handleFrame(p, make([]byte, 16))

	if p.State() != StateReady {
		t.Errorf("state = %s after write failure, expected ready", p.State())
	}
	if got := p.Stats().Snapshot().EncoderWriteFails; got != 1 {
		t.Errorf("expected 1 recorded write failure, got %d", got)
	}
}

func TestCleanupParticipantFreesPorts(t *testing.T) {
	o, _, ports, _ := newTestOrchestrator()

	p := newTestPipeline("prod1", "a")
	var err error
	p.rtpPort, p.rtcpPort, err = ports.Allocate()
	if err != nil {
		t.Fatalf("Allocate failed: %v", err)
	}
	p.encoder = &stubSink{}
	o.pipelines[p.producerID] = p

	report := &CleanupReport{}
	o.CleanupParticipant("a", report)

	if got := o.PipelineCount(); got != 0 {
		t.Errorf("expected 0 pipelines after cleanup, got %d", got)
	}
	if got := ports.InUse(); got != 0 {
		t.Errorf("expected ports returned to the pool, %d still reserved", got)
	}

	// Frames arriving after teardown are ignored.
	before := p.Stats().Snapshot().FramesDecoded
	o.handleFrame(p, make([]byte, 16))
	if got := p.Stats().Snapshot().FramesDecoded; got != before {
		t.Error("frame was processed after teardown")
	}
}

func TestCleanupUnknownParticipant(t *testing.T) {
	o, _, _, _ := newTestOrchestrator()

	report := &CleanupReport{}
	o.CleanupParticipant("ghost", report)

	if report.Steps() != 0 {
		t.Errorf("cleanup of unknown participant ran %d step(s)", report.Steps())
	}
	if report.Err() != nil {
		t.Errorf("cleanup of unknown participant reported: %v", report.Err())
	}
}
