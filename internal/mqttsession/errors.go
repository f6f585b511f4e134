// Package mqttsession manages the single MQTT broker connection the bridge
// uses: connect, last-will/birth, automatic reconnect with backoff, and an
// in-process inbound event stream. The reconnect policy is driven by an
// explicit backoff loop rather than paho's built-in auto-reconnect, so the
// delay sequence and resubscribe-on-reconnect signal stay predictable.
package mqttsession

import "errors"

// Domain errors for the MQTT session.
var (
	// ErrNotConnected is returned when Send is attempted with no live
	// broker connection.
	ErrNotConnected = errors.New("mqttsession: not connected to broker")

	// ErrConnectFailed is returned when a connect attempt does not
	// complete within the connect timeout or the broker rejects it.
	ErrConnectFailed = errors.New("mqttsession: broker connect failed")
)
