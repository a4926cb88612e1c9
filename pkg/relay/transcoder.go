/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package relay

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/duocall/relay_core/pkg/utils"
)

// The encoder emits RTP with a fixed SSRC and payload type so the output
// relay transport's RTP listener can be primed before the stream starts.
const (
	encoderSSRC        = 22222222
	encoderPayloadType = 101
	encoderFramerate   = 30
)

// stopGrace is how long Stop waits after SIGTERM before killing.
const stopGrace = 2 * time.Second

// videoDimensionsRe matches the stream line ffmpeg prints once the decoder
// has probed the input, e.g. "... Video: vp8, yuv420p, 640x480, ...".
var videoDimensionsRe = regexp.MustCompile(`Video:.* (\d{2,5})x(\d{2,5})`)

// WriteSDP writes the session description the decode process reads its RTP
// input from. rtpPort/rtcpPort are the pipeline's allocated loopback pair.
func WriteSDP(dir, producerID string, rtpPort, rtcpPort int, payloadType byte, codec string, clockRate int) (string, error) {
	sdp := fmt.Sprintf(
		"v=0\r\n"+
			"o=- 0 0 IN IP4 127.0.0.1\r\n"+
			"s=relay\r\n"+
			"c=IN IP4 127.0.0.1\r\n"+
			"t=0 0\r\n"+
			"m=video %d RTP/AVP %d\r\n"+
			"a=rtcp:%d\r\n"+
			"a=rtpmap:%d %s/%d\r\n"+
			"a=recvonly\r\n",
		rtpPort, payloadType, rtcpPort, payloadType, codec, clockRate)

	path := filepath.Join(dir, fmt.Sprintf("pipeline-%s.sdp", producerID))
	if err := os.WriteFile(path, []byte(sdp), 0o644); err != nil {
		return "", fmt.Errorf("write sdp: %w", err)
	}
	return path, nil
}

// DecodeProcess converts the RTP stream described by an SDP file into raw
// RGBA frames on its stdout. The stream's dimensions are not known until
// the process has probed the first frames; WaitDimensions blocks for them.
type DecodeProcess struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	logger *utils.Logger

	dimOnce chan struct{}
	width   int
	height  int

	mu      sync.Mutex
	stopped bool
}

// StartDecoder launches the decode process reading from sdpPath.
func StartDecoder(ffmpegBin, sdpPath string, logger *utils.Logger) (*DecodeProcess, error) {
	cmd := exec.Command(ffmpegBin,
		"-protocol_whitelist", "file,udp,rtp",
		"-i", sdpPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-an",
		"pipe:1",
	)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("decoder stderr: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}

	d := &DecodeProcess{
		cmd:     cmd,
		stdout:  stdout,
		logger:  logger,
		dimOnce: make(chan struct{}),
	}
	go d.scanStderr(stderr)
	return d, nil
}

// scanStderr watches the decoder's log output for the probed stream
// dimensions, then keeps draining so the process never blocks on a full
// stderr pipe.
func (d *DecodeProcess) scanStderr(stderr io.Reader) {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

	found := false
	for scanner.Scan() {
		line := scanner.Text()
		if found {
			continue
		}
		m := videoDimensionsRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		w, _ := strconv.Atoi(m[1])
		h, _ := strconv.Atoi(m[2])
		d.width, d.height = w, h
		found = true
		close(d.dimOnce)
		d.logger.Info("decoder detected stream dimensions %dx%d", w, h)
	}
}

// WaitDimensions blocks until the decoder has reported the stream's
// width/height, or the timeout elapses.
func (d *DecodeProcess) WaitDimensions(timeout time.Duration) (int, int, error) {
	select {
	case <-d.dimOnce:
		return d.width, d.height, nil
	case <-time.After(timeout):
		return 0, 0, fmt.Errorf("decoder reported no dimensions within %s", timeout)
	}
}

// Output returns the raw frame stream.
func (d *DecodeProcess) Output() io.Reader {
	return d.stdout
}

// Stop terminates the process gracefully, killing it if it lingers.
func (d *DecodeProcess) Stop() error {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return nil
	}
	d.stopped = true
	d.mu.Unlock()

	return stopProcess(d.cmd)
}

// EncodeProcess consumes raw RGBA frames on its stdin and emits a VP8 RTP
// stream to the output relay transport's port, using the fixed SSRC and
// payload type the transport was primed with.
type EncodeProcess struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser

	mu      sync.Mutex
	stopped bool
}

// StartEncoder launches the encode process for a width x height stream
// targeting 127.0.0.1:targetPort.
func StartEncoder(ffmpegBin string, width, height, targetPort int, logger *utils.Logger) (*EncodeProcess, error) {
	cmd := exec.Command(ffmpegBin,
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", strconv.Itoa(encoderFramerate),
		"-i", "pipe:0",
		"-c:v", "libvpx",
		"-deadline", "realtime",
		"-cpu-used", "8",
		"-b:v", "1M",
		"-an",
		"-f", "rtp",
		"-payload_type", strconv.Itoa(encoderPayloadType),
		"-ssrc", strconv.Itoa(encoderSSRC),
		fmt.Sprintf("rtp://127.0.0.1:%d", targetPort),
	)
	cmd.Stderr = io.Discard

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("encoder stdin: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}

	logger.Info("encoder started (%dx%d -> 127.0.0.1:%d)", width, height, targetPort)
	return &EncodeProcess{cmd: cmd, stdin: stdin}, nil
}

// WriteFrame pushes one raw frame into the encoder. A broken pipe (the
// process already exited) surfaces as an error the caller logs and drops.
func (e *EncodeProcess) WriteFrame(frame []byte) error {
	_, err := e.stdin.Write(frame)
	return err
}

// CloseInput closes the encoder's stdin so it can flush and exit.
func (e *EncodeProcess) CloseInput() error {
	return e.stdin.Close()
}

// Stop terminates the process gracefully, killing it if it lingers.
func (e *EncodeProcess) Stop() error {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.stdin.Close()
	return stopProcess(e.cmd)
}

// stopProcess sends SIGTERM and returns immediately. Reaping and the
// SIGKILL escalation run in the background: teardown happens on the
// signaling event loop, which must never wait out the grace period.
func stopProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Already gone.
		return nil
	}

	go func() {
		done := make(chan error, 1)
		go func() { done <- cmd.Wait() }()

		select {
		case <-done:
		case <-time.After(stopGrace):
			cmd.Process.Kill()
			<-done
		}
	}()
	return nil
}
