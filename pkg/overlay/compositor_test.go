/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"
)

// testLandmarks builds a synthetic 468-point landmark set whose face oval
// is an ellipse centered in the frame (rx=0.2, ry=0.3), ordered clockwise
// from the forehead top.
func testLandmarks() []Landmark {
	landmarks := make([]Landmark, 468)
	for i := range landmarks {
		landmarks[i] = Landmark{X: 0.5, Y: 0.5}
	}

	n := len(faceOvalIndices)
	for i, idx := range faceOvalIndices {
		angle := -math.Pi/2 + 2*math.Pi*float64(i)/float64(n)
		landmarks[idx] = Landmark{
			X: 0.5 + 0.2*math.Cos(angle),
			Y: 0.5 + 0.3*math.Sin(angle),
		}
	}
	return landmarks
}

// blackFrame returns an opaque black WxH frame.
func blackFrame(w, h int) *Frame {
	f := &Frame{Width: w, Height: h, Pix: make([]byte, Size(w, h))}
	for i := 3; i < len(f.Pix); i += 4 {
		f.Pix[i] = 255
	}
	return f
}

// solidImage returns an opaque single-color image.
func solidImage(c color.RGBA, w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func pixelAt(f *Frame, x, y int) (r, g, b, a byte) {
	off := (y*f.Width + x) * 4
	return f.Pix[off], f.Pix[off+1], f.Pix[off+2], f.Pix[off+3]
}

func TestCompositeInsideContour(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	NewCompositor().Composite(frame, testLandmarks(), red, 1.0)

	r, g, b, a := pixelAt(frame, 100, 100)
	if r != 255 || g != 0 || b != 0 {
		t.Errorf("face center = (%d, %d, %d), expected solid red", r, g, b)
	}
	if a != 255 {
		t.Errorf("face center alpha = %d, expected 255", a)
	}
}

func TestCompositeOutsideContourUntouched(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	NewCompositor().Composite(frame, testLandmarks(), red, 1.0)

	// Frame corner is far outside the face oval.
	r, g, b, _ := pixelAt(frame, 5, 5)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("corner pixel = (%d, %d, %d), expected untouched black", r, g, b)
	}
}

func TestCompositeOpacityZero(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	NewCompositor().Composite(frame, testLandmarks(), red, 0)

	for i := 0; i < len(frame.Pix); i += 4 {
		if frame.Pix[i] != 0 || frame.Pix[i+1] != 0 || frame.Pix[i+2] != 0 {
			t.Fatalf("pixel %d changed at opacity 0", i/4)
		}
	}
}

func TestCompositeHalfOpacity(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	NewCompositor().Composite(frame, testLandmarks(), red, 0.5)

	r, _, _, _ := pixelAt(frame, 100, 100)
	if r < 120 || r > 135 {
		t.Errorf("face center red = %d, expected roughly half blend (~127)", r)
	}
}

func TestCompositeOpacityClamped(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	// Out-of-range opacity behaves like 1.0.
	NewCompositor().Composite(frame, testLandmarks(), red, 3.5)

	r, _, _, _ := pixelAt(frame, 100, 100)
	if r != 255 {
		t.Errorf("face center red = %d, expected 255 with clamped opacity", r)
	}
}

func TestCompositeDegenerateLandmarks(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	NewCompositor().Composite(frame, []Landmark{{X: 0.5, Y: 0.5}}, red, 1.0)

	r, g, b, _ := pixelAt(frame, 100, 100)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("frame changed with a degenerate landmark set")
	}
}

func TestCompositeNilOverlay(t *testing.T) {
	frame := blackFrame(200, 200)

	NewCompositor().Composite(frame, testLandmarks(), nil, 1.0)

	r, g, b, _ := pixelAt(frame, 100, 100)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("frame changed with a nil overlay")
	}
}

func TestCompositeZeroExtentFace(t *testing.T) {
	frame := blackFrame(200, 200)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 10, 10)

	// Every landmark collapsed onto one point: zero face width/height.
	landmarks := make([]Landmark, 468)
	for i := range landmarks {
		landmarks[i] = Landmark{X: 0.5, Y: 0.5}
	}

	NewCompositor().Composite(frame, landmarks, red, 1.0)

	r, g, b, _ := pixelAt(frame, 100, 100)
	if r != 0 || g != 0 || b != 0 {
		t.Errorf("frame changed with a zero-extent face")
	}
}

func BenchmarkComposite(b *testing.B) {
	frame := blackFrame(640, 480)
	red := solidImage(color.RGBA{255, 0, 0, 255}, 128, 128)
	landmarks := testLandmarks()
	compositor := NewCompositor()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		compositor.Composite(frame, landmarks, red, 0.8)
	}
}
