/*
 * @Author: Marlon.M
 * @Email: maiguangyang@163.com
 * @Date: 2026-06-18
 */
package signaling

import (
	"testing"
)

// The browser clients hard-code these event names; renaming a constant
// breaks the wire protocol even when everything still compiles.
func TestInboundEventWireNames(t *testing.T) {
	names := map[string]string{
		EventJoin:             "join-meeting",
		EventOffer:            "offer",
		EventAnswer:           "answer",
		EventIceCandidate:     "ice-candidate",
		EventCreateTransport:  "create-transport",
		EventConnectTransport: "connect-transport",
		EventGetRouterCaps:    "get-router-capabilities",
		EventProduce:          "produce",
		EventConsume:          "consume",
		EventConsumerResume:   "consumer-resume",
		EventOverlayData:      "overlay-data",
		EventChangeOverlay:    "change-overlay",
		EventChangeOpacity:    "change-opacity",
		EventToggleOverlay:    "toggle-overlay",
	}
	for got, want := range names {
		if got != want {
			t.Errorf("inbound event %q does not match its wire name %q", got, want)
		}
	}
}

func TestOutboundEventWireNames(t *testing.T) {
	names := map[string]string{
		EventWaiting:            "waiting",
		EventPartnerConnected:   "partner-connected",
		EventSendOffer:          "send-offer",
		EventUserDisconnected:   "user-disconnected",
		EventError:              "error",
		EventTransportCreated:   "transport-created",
		EventTransportConnected: "transport-connected",
		EventProducerCreated:    "producer-created",
		EventNewProducer:        "new-producer",
		EventConsumerCreated:    "consumer-created",
		EventRouterCaps:         "router-capabilities",
		EventOverlayChanged:     "overlay-changed",
		EventOpacityChanged:     "opacity-changed",
		EventOverlayToggled:     "overlay-toggled",
	}
	for got, want := range names {
		if got != want {
			t.Errorf("outbound event %q does not match its wire name %q", got, want)
		}
	}
}
