/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package relay

import (
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func TestWriteSDP(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteSDP(dir, "prod1", 20000, 20001, 100, "VP8", 90000)
	if err != nil {
		t.Fatalf("WriteSDP failed: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading sdp: %v", err)
	}
	sdp := string(raw)

	for _, line := range []string{
		"m=video 20000 RTP/AVP 100",
		"a=rtcp:20001",
		"a=rtpmap:100 VP8/90000",
		"c=IN IP4 127.0.0.1",
	} {
		if !strings.Contains(sdp, line) {
			t.Errorf("sdp is missing %q:\n%s", line, sdp)
		}
	}
}

func TestStopProcessDoesNotBlock(t *testing.T) {
	// A process that ignores SIGTERM forces the SIGKILL escalation path.
	cmd := exec.Command("sh", "-c", `trap "" TERM; sleep 30`)
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start test process: %v", err)
	}
	t.Cleanup(func() { cmd.Process.Kill() })

	start := time.Now()
	if err := stopProcess(cmd); err != nil {
		t.Fatalf("stopProcess failed: %v", err)
	}

	// Teardown runs on the signaling event loop, so stopProcess must
	// return without waiting out the grace period.
	if elapsed := time.Since(start); elapsed > stopGrace/2 {
		t.Errorf("stopProcess blocked for %s", elapsed)
	}
}

func TestStopProcessUnstarted(t *testing.T) {
	cmd := exec.Command("sh", "-c", "true")

	if err := stopProcess(cmd); err != nil {
		t.Errorf("stopProcess on an unstarted process returned %v", err)
	}
}
