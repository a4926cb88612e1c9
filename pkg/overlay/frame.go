/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package overlay

import (
	"image"
)

// Frame is one raw RGBA video frame as emitted by the decode process:
// tightly packed, 4 bytes per pixel, no padding between rows.
type Frame struct {
	Width  int
	Height int
	Pix    []byte
}

// Size returns the expected byte length of a WxH RGBA frame.
func Size(width, height int) int {
	return width * height * 4
}

// RGBA wraps the frame bytes as an *image.RGBA without copying. Mutating
// the returned image mutates the frame.
func (f *Frame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * 4,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
