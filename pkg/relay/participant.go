/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package relay

import (
	"github.com/duocall/relay_core/pkg/overlay"
)

// OverlaySettings is the per-participant compositing state. Opacity is
// clamped to [0,1] on mutation. Enabled defaults to false until the
// participant picks an overlay.
type OverlaySettings struct {
	ImageURL string  `json:"overlayUrl"`
	Opacity  float64 `json:"opacity"`
	Enabled  bool    `json:"enabled"`
}

// DefaultOverlaySettings returns the settings assigned on connect.
func DefaultOverlaySettings() OverlaySettings {
	return OverlaySettings{
		ImageURL: "",
		Opacity:  1.0,
		Enabled:  false,
	}
}

// Participant is one connected browser. It is created when the websocket
// is accepted and destroyed on disconnect. Landmarks hold the most recent
// facial geometry reported through overlay-data; the transcoding pipeline
// reads them on every composited frame.
type Participant struct {
	ID        string
	Name      string
	Settings  OverlaySettings
	Landmarks []overlay.Landmark
}

// NewParticipant creates a participant with default settings.
func NewParticipant(id string) *Participant {
	return &Participant{
		ID:       id,
		Settings: DefaultOverlaySettings(),
	}
}
