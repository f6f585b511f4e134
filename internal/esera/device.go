package esera

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DeviceInfo is the identity and liveness state shared by every device
// variant, addressed by (Contno, BusID) rather than a back-pointer into the
// owning Bus.
type DeviceInfo struct {
	Contno uint8
	BusID  string
	Serial string
	Artno  string
	Name   string
	Status Status
}

// topicRoot is the bus-id, or the human name if one has been assigned —
// a name, once set, replaces the bus-id in every MQTT topic for that
// device.
func (i DeviceInfo) topicRoot() string {
	if i.Name != "" {
		return i.Name
	}
	if i.BusID == "" {
		return "UNKNOWN"
	}
	return i.BusID
}

// Topic builds an "ESERA/<contno>/<busid-or-name>/<tail>" topic rooted at
// this device.
func (i DeviceInfo) Topic(tail string) string {
	return fmt.Sprintf("ESERA/%d/%s/%s", i.Contno, i.topicRoot(), tail)
}

// StatusTopic is the retained per-device liveness topic SetStatus
// publishes to.
func (i DeviceInfo) StatusTopic() string {
	return i.Topic("status")
}

// DeviceNumber extracts the numeric suffix of an "OWD<n>" bus-id, as
// needed to build SET,OWD,... commands. Returns false for the controller's
// own "SYS" slot, which has no device number.
func (i DeviceInfo) DeviceNumber() (int, bool) {
	n := strings.TrimPrefix(i.BusID, "OWD")
	if n == i.BusID || n == "" {
		return 0, false
	}
	v, err := strconv.Atoi(n)
	if err != nil {
		return 0, false
	}
	return v, true
}

// discTopic builds the Home-Assistant discovery config topic for a
// component published at this device, with its serial sanitised for use
// in a topic segment (strip anything not alphanumeric, `_`, `-`).
func discTopic(component string, info DeviceInfo, sub string) string {
	return fmt.Sprintf("homeassistant/%s/%d/%s_%s/config", component, info.Contno, sanitiseSerial(info.Serial), sub)
}

func sanitiseSerial(serial string) string {
	if serial == "" {
		return "unconfigured"
	}
	var b strings.Builder
	for _, r := range serial {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		}
	}
	return strings.ToLower(b.String())
}

// Device is the behavioural contract every device variant implements:
// the handshake, Home-Assistant announcement, wire-address registration and
// the two inbound edges (a 1-Wire/bus status update, or an MQTT command).
type Device interface {
	// Info returns this device's identity and current status.
	Info() DeviceInfo
	// SetStatus updates the liveness status and returns the retained
	// publish to this device's status topic.
	SetStatus(Status) TwoWay
	// Init returns the controller commands needed to bring this device to
	// a known configuration after (re)enumeration. Idempotent.
	Init() TwoWay
	// Announce returns the retained Home-Assistant discovery publishes for
	// this device.
	Announce() TwoWay
	// Register1Wire returns the bus addresses (as seen in Devstatus.Addr)
	// this device must be routed updates for.
	Register1Wire() []string
	// RegisterMqtt returns the (topic, token) pairs this device must be
	// subscribed to and routed commands for.
	RegisterMqtt() []TopicToken
	// Handle1Wire processes a Devstatus update addressed to this device.
	Handle1Wire(addr string, value int32) TwoWay
	// HandleMqtt processes an inbound MQTT command identified by token.
	HandleMqtt(token int, payload string) TwoWay
}

// TopicToken pairs a concrete MQTT topic this device subscribes to with the
// token HandleMqtt uses to tell its commands apart.
type TopicToken struct {
	Topic string
	Token int
}

// statusTwoWay is the retained status publish every SetStatus returns.
func statusTwoWay(info DeviceInfo) TwoWay {
	return FromMqtt(Retained(info.StatusTopic(), info.Status.String()))
}

// bool2str renders a boolean as the "0"/"1" payload ESERA expects.
func bool2str(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// str2bool accepts the handful of truthy spellings Home Assistant sends on
// a command topic.
func str2bool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "on", "true":
		return true, nil
	case "0", "off", "false":
		return false, nil
	default:
		return false, fmt.Errorf("%w: %q is not a recognised boolean", ErrValidation, s)
	}
}

// float2centi converts a decimal reading into the integer hundredths the
// wire protocol carries.
func float2centi(f float64) int32 {
	return int32(math.Round(f * 100))
}

// centi2float converts an integer-hundredths wire value into its decimal
// unit (°C, %RH, V, ppm, mA — the unit is implied by the sub-address, not
// carried on the wire).
func centi2float(c int32) float64 {
	return float64(c) / 100.0
}

// levelBits publishes the current state of every channel unconditionally,
// the "in/ch<n>" / "out/ch<n>" level semantics every multi-channel digital
// device exposes alongside its edge events.
func levelBits(info DeviceInfo, channels int, topicTail string, value uint32) TwoWay {
	var out TwoWay
	for ch := range channels {
		bit := uint32(1) << uint(ch)
		topic := info.Topic(fmt.Sprintf("%s/ch%d", topicTail, ch+1))
		out.Append(FromMqtt(Publish(topic, bool2str(value&bit != 0))))
	}
	return out
}

// digitalIO is the edge-detection bit-diff helper every multi-channel
// digital device uses to turn a raw bitmask into per-channel button
// publications. With no previous reading (previous == nil) every channel is
// emitted unconditionally; otherwise only channels whose bit changed are
// emitted. Switch8 deliberately does not call this helper on its very
// first observation: no button events at all until a baseline exists.
func digitalIO(info DeviceInfo, channels int, topicTail string, value uint32, previous *uint32) TwoWay {
	var out TwoWay
	for ch := range channels {
		bit := uint32(1) << uint(ch)
		cur := value&bit != 0
		if previous != nil {
			prev := *previous&bit != 0
			if cur == prev {
				continue
			}
		}
		topic := info.Topic(fmt.Sprintf("%s/ch%d", topicTail, ch+1))
		out.Append(FromMqtt(Publish(topic, bool2str(cur))))
	}
	return out
}
