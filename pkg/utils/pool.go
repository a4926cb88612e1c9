/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-20
 *
 * Buffer Pool - 字节切片缓存池
 * 用于复用解码器输出的原始视频帧缓冲，降低高帧率下的 GC 压力
 */
package utils

import (
	"sync"
)

// 预分配大小按 640x480 RGBA 帧计算，绝大多数摄像头流不超过该分辨率
const defaultFrameBufferSize = 640 * 480 * 4

// 超过 1080p RGBA 帧的大对象不放回池中，防止内存占用过高
const maxPooledBufferSize = 1920 * 1080 * 4

var bufferPool = sync.Pool{
	New: func() interface{} {
		return make([]byte, defaultFrameBufferSize)
	},
}

// GetBuffer 获取一个长度为 length 的切片
// 可能会返回复用的切片，也可能分配新的
func GetBuffer(length int) []byte {
	buf := bufferPool.Get().([]byte)

	// cap 不够时直接分配新的，旧的交给 GC
	if cap(buf) < length {
		return make([]byte, length)
	}

	return buf[:length]
}

// PutBuffer 将切片放回池中
func PutBuffer(buf []byte) {
	// 太小的碎片和超大帧都不放回，保持池的健康
	if cap(buf) < defaultFrameBufferSize || cap(buf) > maxPooledBufferSize {
		return
	}

	bufferPool.Put(buf)
}
