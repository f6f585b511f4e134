package esera

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/esera-bridge/bridge/internal/logging"
)

// reconnectDelay is the flat per-controller retry backoff used when a
// controller connection drops.
const reconnectDelay = 5 * time.Second

// MqttSender is the subset of MqttSession the Bridge drives: send outbound
// messages and observe inbound ones. Kept as an interface so
// integration_test.go can substitute an in-process fake instead of a real
// broker connection.
type MqttSender interface {
	Send(MqttMsg) error
	Inbound() <-chan MqttMsg
}

// ControllerDialer opens one ControllerSession. The Bridge owns the
// reconnect policy; the dialer just gets one connection at a time.
type ControllerDialer func(ctx context.Context, address string) (*ControllerSession, error)

// Bridge is the top-level event loop: it multiplexes one inbound channel
// per controller plus the MQTT inbound channel, drives Bus+Router, and
// owns the lifecycle and reconnection policy of every ControllerSession.
// It multiplexes over a dynamic set of channels via reflect.Select since Go's select
// statement cannot range over a slice of channels.
type Bridge struct {
	addresses []string
	busConfig map[uint8]BusConfig
	dial      ControllerDialer
	mqtt      MqttSender
	logger    *logging.Logger

	mu       sync.Mutex
	sessions []*ControllerSession
	buses    []*Bus
	routes   *Router
}

// NewBridge constructs a Bridge for the given controller addresses.
// busConfig, if non-nil, supplies per-controller-number shutter
// configuration keyed by the contno a CSI eventually reports, since that
// number is only known once each controller's handshake completes (see
// ParseShutterEnv); pass nil when no shutters are configured anywhere.
// Call Start to dial every controller and enter the event loop.
func NewBridge(addresses []string, busConfig map[uint8]BusConfig, dial ControllerDialer, mqtt MqttSender, logger *logging.Logger) *Bridge {
	return &Bridge{
		addresses: addresses,
		busConfig: busConfig,
		dial:      dial,
		mqtt:      mqtt,
		logger:    logger,
		sessions:  make([]*ControllerSession, len(addresses)),
		buses:     make([]*Bus, len(addresses)),
		routes:    NewRouter(),
	}
}

// busConfigFor returns the configured BusConfig for the given controller
// number, or the zero value when none was supplied.
func (b *Bridge) busConfigFor(contno uint8) BusConfig {
	return b.busConfig[contno]
}

// Start dials every configured controller and blocks running the main
// multiplexing loop until ctx is cancelled.
func (b *Bridge) Start(ctx context.Context) error {
	for i, addr := range b.addresses {
		sess, err := b.dial(ctx, addr)
		if err != nil {
			return fmt.Errorf("dial controller %q: %w", addr, err)
		}
		b.sessions[i] = sess
		b.buses[i] = nil // created lazily on the first CSI, 
	}

	return b.loop(ctx)
}

// loop is the reflect.Select multiplexer: one case per live controller
// stream, one case for the MQTT inbound channel, one for ctx.Done.
// Within a single controller, events are processed in arrival order;
// across controllers no ordering is guaranteed.
func (b *Bridge) loop(ctx context.Context) error {
	for {
		b.mu.Lock()
		cases := make([]reflect.SelectCase, 0, len(b.sessions)+2)
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())})
		cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(b.mqtt.Inbound())})
		controllerBase := len(cases)
		for _, sess := range b.sessions {
			if sess == nil {
				cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf((chan Response)(nil))})
				continue
			}
			cases = append(cases, reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(sess.Stream())})
		}
		b.mu.Unlock()

		chosen, recv, ok := reflect.Select(cases)
		switch {
		case chosen == 0:
			return ctx.Err()

		case chosen == 1:
			if !ok {
				return fmt.Errorf("mqtt inbound channel closed")
			}
			b.handleMqtt(recv.Interface().(MqttMsg))

		default:
			idx := chosen - controllerBase
			if !ok {
				b.handleControllerClosed(ctx, idx)
				continue
			}
			b.handleController(idx, recv.Interface().(Response))
		}
	}
}

func (b *Bridge) handleController(idx int, resp Response) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.buses[idx] == nil {
		if resp.Kind != RespCSI {
			return
		}
		b.buses[idx] = NewBus(resp.Contno, b.busConfigFor(resp.Contno))
	}
	two := b.buses[idx].Handle1Wire(resp, b.routes)
	b.send(idx, two)
}

func (b *Bridge) handleMqtt(msg MqttMsg) {
	if msg.Kind == MqttReconnected {
		b.mu.Lock()
		subs := b.routes.Subscriptions()
		b.mu.Unlock()
		for _, s := range subs {
			if err := b.mqtt.Send(s); err != nil {
				b.logWarn("failed to replay subscription", "topic", s.Topic, "error", err)
			}
		}
		return
	}
	if msg.Kind != MqttPublish {
		return
	}

	b.mu.Lock()
	recipients := b.routes.Lookup(msg.Topic)
	if len(recipients) == 0 {
		b.mu.Unlock()
		b.logWarn("no route for topic", "topic", msg.Topic)
		return
	}
	byBus := make(map[uint8]TwoWay)
	for _, r := range recipients {
		idx := b.busIndex(r.Locator.Contno)
		if idx < 0 {
			continue
		}
		dev := b.buses[idx].DeviceAt(r.Locator.Slot)
		if dev == nil {
			continue
		}
		two := dev.HandleMqtt(r.Token, msg.Payload)
		out := byBus[r.Locator.Contno]
		out.Append(two)
		byBus[r.Locator.Contno] = out
	}
	b.mu.Unlock()

	for contno, two := range byBus {
		idx := b.busIndex(contno)
		if idx >= 0 {
			b.send(idx, two)
		}
	}
}

// busIndex returns the session/bus slice index owning contno, or -1.
// Caller must hold b.mu (or tolerate a benign race, since it's only used
// to locate a session for outbound sends).
func (b *Bridge) busIndex(contno uint8) int {
	for i, bus := range b.buses {
		if bus != nil && bus.Contno == contno {
			return i
		}
	}
	return -1
}

// send dispatches a TwoWay's MQTT publications to MqttSession and its
// controller commands back to the originating session.
func (b *Bridge) send(idx int, two TwoWay) {
	for _, m := range two.Mqtt {
		if err := b.mqtt.Send(m); err != nil {
			b.logWarn("mqtt send failed", "topic", m.Topic, "error", err)
		}
	}
	sess := b.sessions[idx]
	if sess == nil {
		return
	}
	for _, cmd := range two.Controls {
		if err := sess.Send(cmd); err != nil {
			b.logWarn("controller send failed", "contno", sess.contno, "error", err)
		}
	}
}

// handleControllerClosed discards the dead session/bus and starts an
// independent reconnect loop with a flat 5s backoff. Other controllers
// remain live while this one retries.
func (b *Bridge) handleControllerClosed(ctx context.Context, idx int) {
	b.mu.Lock()
	addr := b.addresses[idx]
	b.sessions[idx] = nil
	if bus := b.buses[idx]; bus != nil {
		b.routes.Clear(bus.Contno)
	}
	b.buses[idx] = nil
	b.mu.Unlock()

	b.logWarn("controller disconnected, reconnecting", "address", addr)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
			sess, err := b.dial(ctx, addr)
			if err != nil {
				b.logWarn("controller reconnect failed, retrying", "address", addr, "error", err)
				continue
			}
			b.mu.Lock()
			b.sessions[idx] = sess
			b.mu.Unlock()
			return
		}
	}()
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

// NormalizeAddress appends defaultPort to addr if it carries no port of
// its own ("host:port" is accepted as-is).
func NormalizeAddress(addr string, defaultPort uint16) string {
	if strings.Contains(addr, ":") {
		return addr
	}
	return fmt.Sprintf("%s:%d", addr, defaultPort)
}
