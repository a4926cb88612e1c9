/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-19
 */
package overlay

// Landmark is one normalized facial landmark as reported by the browser-side
// detector. Coordinates are in [0,1] relative to the frame.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// faceOvalIndices traces the outer face contour (forehead, temples, cheeks,
// jaw, chin) in the detector's 468-point topology, ordered clockwise so the
// points form a closed polygon.
var faceOvalIndices = []int{
	10, 338, 297, 332, 284, 251, 389, 356, 454, 323, 361, 288,
	397, 365, 379, 378, 400, 377, 152, 148, 176, 149, 150, 136,
	172, 58, 132, 93, 234, 127, 162, 21, 54, 103, 67, 109,
}

// Extent landmarks used to size and center the overlay.
const (
	idxForeheadTop = 10
	idxChin        = 152
	idxLeftCheek   = 234
	idxRightCheek  = 454
)

// minLandmarkCount is the smallest landmark set that contains every index
// the compositor dereferences.
const minLandmarkCount = 455

// faceMetrics is the pixel-space bounding geometry of a detected face.
type faceMetrics struct {
	centerX float64
	centerY float64
	width   float64
	height  float64
}

// metricsFrom computes face center and extent from the four extent
// landmarks, scaled into pixel space.
func metricsFrom(landmarks []Landmark, frameW, frameH int) faceMetrics {
	top := landmarks[idxForeheadTop]
	chin := landmarks[idxChin]
	left := landmarks[idxLeftCheek]
	right := landmarks[idxRightCheek]

	fw := float64(frameW)
	fh := float64(frameH)

	width := (right.X - left.X) * fw
	if width < 0 {
		width = -width
	}
	height := (chin.Y - top.Y) * fh
	if height < 0 {
		height = -height
	}

	return faceMetrics{
		centerX: (left.X + right.X) / 2 * fw,
		centerY: (top.Y + chin.Y) / 2 * fh,
		width:   width,
		height:  height,
	}
}
