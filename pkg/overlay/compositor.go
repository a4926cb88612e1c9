/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package overlay

import (
	"image"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/vector"
)

// Overlay sizing relative to the detected face extent. The overlay is drawn
// slightly larger than the face and shifted up so it covers the forehead.
const (
	widthScale     = 1.5
	heightScale    = 1.6
	verticalOffset = 0.05
)

// Compositor draws an overlay image onto decoded frames, clipped to the
// face contour so the overlay never bleeds outside the face outline. It
// holds no per-frame state and is safe to share across pipelines.
type Compositor struct{}

// NewCompositor creates a compositor.
func NewCompositor() *Compositor {
	return &Compositor{}
}

// Composite draws overlayImg onto frame in place. landmarks are normalized
// coordinates from the producing participant's detector; opacity is clamped
// to [0,1]. Frames with a degenerate landmark set, a zero-extent face or a
// nil overlay are returned unchanged.
func (c *Compositor) Composite(frame *Frame, landmarks []Landmark, overlayImg image.Image, opacity float64) {
	if overlayImg == nil || len(landmarks) < minLandmarkCount {
		return
	}
	if opacity < 0 {
		opacity = 0
	} else if opacity > 1 {
		opacity = 1
	}
	if opacity == 0 {
		return
	}

	face := metricsFrom(landmarks, frame.Width, frame.Height)
	if face.width <= 0 || face.height <= 0 {
		return
	}

	mask := rasterizeContour(landmarks, frame.Width, frame.Height)

	// Target rect: overlay scaled around the face center, shifted up.
	dstW := int(face.width * widthScale)
	dstH := int(face.height * heightScale)
	if dstW <= 0 || dstH <= 0 {
		return
	}
	x0 := int(face.centerX) - dstW/2
	y0 := int(face.centerY-face.height*verticalOffset) - dstH/2
	dstRect := image.Rect(x0, y0, x0+dstW, y0+dstH)

	scaled := image.NewRGBA(image.Rect(0, 0, dstW, dstH))
	xdraw.BiLinear.Scale(scaled, scaled.Bounds(), overlayImg, overlayImg.Bounds(), xdraw.Src, nil)

	blend(frame.RGBA(), scaled, mask, dstRect, opacity)
}

// rasterizeContour fills the closed face-oval polygon into an alpha mask.
func rasterizeContour(landmarks []Landmark, frameW, frameH int) *image.Alpha {
	rast := vector.NewRasterizer(frameW, frameH)

	first := landmarks[faceOvalIndices[0]]
	rast.MoveTo(float32(first.X*float64(frameW)), float32(first.Y*float64(frameH)))
	for _, idx := range faceOvalIndices[1:] {
		pt := landmarks[idx]
		rast.LineTo(float32(pt.X*float64(frameW)), float32(pt.Y*float64(frameH)))
	}
	rast.ClosePath()

	mask := image.NewAlpha(image.Rect(0, 0, frameW, frameH))
	rast.Draw(mask, mask.Bounds(), image.Opaque, image.Point{})
	return mask
}

// blend draws src over dst inside dstRect, modulated per pixel by the clip
// mask and the global opacity.
func blend(dst *image.RGBA, src *image.RGBA, mask *image.Alpha, dstRect image.Rectangle, opacity float64) {
	clipped := dstRect.Intersect(dst.Bounds())
	if clipped.Empty() {
		return
	}

	for y := clipped.Min.Y; y < clipped.Max.Y; y++ {
		for x := clipped.Min.X; x < clipped.Max.X; x++ {
			clip := mask.AlphaAt(x, y).A
			if clip == 0 {
				continue
			}

			srcOff := src.PixOffset(x-dstRect.Min.X, y-dstRect.Min.Y)
			sa := src.Pix[srcOff+3]
			if sa == 0 {
				continue
			}

			// Effective alpha: overlay alpha x clip mask x opacity.
			alpha := float64(sa) / 255 * float64(clip) / 255 * opacity
			if alpha <= 0 {
				continue
			}

			dstOff := dst.PixOffset(x, y)
			for i := 0; i < 3; i++ {
				s := float64(src.Pix[srcOff+i])
				d := float64(dst.Pix[dstOff+i])
				dst.Pix[dstOff+i] = uint8(d + (s-d)*alpha)
			}
			// Composited frames stay opaque.
			dst.Pix[dstOff+3] = 255
		}
	}
}
