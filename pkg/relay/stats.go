/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-20
 *
 * Stats - 转码管线帧统计
 * 记录解码帧数、预热期丢帧、合成/直通帧数与编码器写入失败次数
 */
package relay

import (
	"encoding/json"
	"sync/atomic"
	"time"
)

// PipelineStats 单条转码管线的帧计数器
type PipelineStats struct {
	FramesDecoded     uint64
	FramesDropped     uint64
	FramesComposited  uint64
	FramesPassthrough uint64
	EncoderWriteFails uint64

	startTime time.Time
}

// NewPipelineStats 创建管线统计
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{startTime: time.Now()}
}

// AddDecoded 记录一帧解码输出
func (s *PipelineStats) AddDecoded() {
	atomic.AddUint64(&s.FramesDecoded, 1)
}

// AddDropped 记录一帧预热期丢弃
func (s *PipelineStats) AddDropped() {
	atomic.AddUint64(&s.FramesDropped, 1)
}

// AddComposited 记录一帧叠加合成
func (s *PipelineStats) AddComposited() {
	atomic.AddUint64(&s.FramesComposited, 1)
}

// AddPassthrough 记录一帧未合成直通
func (s *PipelineStats) AddPassthrough() {
	atomic.AddUint64(&s.FramesPassthrough, 1)
}

// AddEncoderWriteFail 记录一次编码器写入失败
func (s *PipelineStats) AddEncoderWriteFail() {
	atomic.AddUint64(&s.EncoderWriteFails, 1)
}

// Snapshot 获取当前快照
func (s *PipelineStats) Snapshot() PipelineStatsSnapshot {
	return PipelineStatsSnapshot{
		FramesDecoded:     atomic.LoadUint64(&s.FramesDecoded),
		FramesDropped:     atomic.LoadUint64(&s.FramesDropped),
		FramesComposited:  atomic.LoadUint64(&s.FramesComposited),
		FramesPassthrough: atomic.LoadUint64(&s.FramesPassthrough),
		EncoderWriteFails: atomic.LoadUint64(&s.EncoderWriteFails),
		Uptime:            time.Since(s.startTime).Seconds(),
	}
}

// PipelineStatsSnapshot 统计快照
type PipelineStatsSnapshot struct {
	FramesDecoded     uint64  `json:"frames_decoded"`
	FramesDropped     uint64  `json:"frames_dropped"`
	FramesComposited  uint64  `json:"frames_composited"`
	FramesPassthrough uint64  `json:"frames_passthrough"`
	EncoderWriteFails uint64  `json:"encoder_write_fails"`
	Uptime            float64 `json:"uptime_seconds"`
}

// ToJSON 序列化为 JSON
func (s PipelineStatsSnapshot) ToJSON() string {
	data, _ := json.Marshal(s)
	return string(data)
}
