/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds the relay process configuration, read from the environment.
type Config struct {
	// ListenAddr is the HTTP/websocket listen address.
	ListenAddr string `env:"RELAY_LISTEN_ADDR" env-default:":4443"`

	// AnnouncedIP is the public IP announced in ICE candidates. Empty means
	// the engine announces the listen IP as-is (fine behind no NAT).
	AnnouncedIP string `env:"RELAY_ANNOUNCED_IP" env-default:""`

	// ListenIP is the local IP the media worker binds RTC ports on.
	ListenIP string `env:"RELAY_LISTEN_IP" env-default:"0.0.0.0"`

	// WorkerBin is the path to the media worker binary. Empty lets the
	// engine library locate its bundled worker.
	WorkerBin string `env:"RELAY_WORKER_BIN" env-default:""`

	// RtcMinPort/RtcMaxPort bound the UDP port range the engine binds for
	// browser-facing transports.
	RtcMinPort uint16 `env:"RELAY_RTC_MIN_PORT" env-default:"40000"`
	RtcMaxPort uint16 `env:"RELAY_RTC_MAX_PORT" env-default:"49999"`

	// PipePortBase/PipePortMax bound the loopback port pool used by the
	// transcoding pipelines. Must not overlap the RTC range.
	PipePortBase int `env:"RELAY_PIPE_PORT_BASE" env-default:"20000"`
	PipePortMax  int `env:"RELAY_PIPE_PORT_MAX" env-default:"29998"`

	// FFmpegBin is the decode/encode subprocess binary.
	FFmpegBin string `env:"RELAY_FFMPEG_BIN" env-default:"ffmpeg"`

	// EncoderWarmup is the fixed delay after encoder start before the
	// processed producer is created.
	EncoderWarmup time.Duration `env:"RELAY_ENCODER_WARMUP" env-default:"2s"`

	// WorkDir is where per-pipeline SDP files are written.
	WorkDir string `env:"RELAY_WORK_DIR" env-default:"/tmp"`

	// LogLevel is one of debug/info/warn/error.
	LogLevel string `env:"RELAY_LOG_LEVEL" env-default:"info"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
