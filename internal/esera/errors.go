package esera

import "errors"

// Domain errors for the ESERA bridge package.
var (
	// ErrNotConnected is returned when an operation requires a live
	// controller connection but none is established.
	ErrNotConnected = errors.New("esera: not connected to controller")

	// ErrConnectionFailed is returned when dialing a controller fails.
	ErrConnectionFailed = errors.New("esera: connection to controller failed")

	// ErrDisconnected is returned by Pick when the transport has closed
	// while waiting for a response.
	ErrDisconnected = errors.New("esera: controller connection lost")

	// ErrParse is returned for a single malformed line. Non-fatal: the
	// caller resynchronises at the next newline.
	ErrParse = errors.New("esera: invalid syntax in controller response")

	// ErrProtocol wraps a numeric error code returned by the controller
	// itself (ERR|<code>).
	ErrProtocol = errors.New("esera: controller protocol error")

	// ErrValidation is returned when an MQTT command payload is outside
	// the range or enum a device handler expects.
	ErrValidation = errors.New("esera: invalid command payload")

	// ErrNoRoute names the case of an MQTT publish with no registered
	// recipient. Nothing in this package returns it: the Bridge logs that
	// case and drops the message.
	ErrNoRoute = errors.New("esera: no route for topic")

	// ErrUnknownBusID is returned when a bus-id string cannot be mapped
	// to a slot index.
	ErrUnknownBusID = errors.New("esera: unrecognised bus id")
)
