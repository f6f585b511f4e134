package mqttsession

import (
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/esera-bridge/bridge/internal/esera"
	"github.com/esera-bridge/bridge/internal/logging"
	"github.com/esera-bridge/bridge/internal/queue"
)

const (
	connectTimeout = 10 * time.Second

	// backoff sequence: 200ms initial, ×6/5 per failure, capped at 20s.
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 20 * time.Second
)

// Session manages one MQTT broker connection: last-will/birth, an
// in-process inbound event stream, and a reconnect loop with its own
// backoff. Subscriptions are *not* restored here — the Bridge observes the
// synthetic ReconnectedNotice this session emits on every connect and
// replays them via Router.Subscriptions().
type Session struct {
	client      pahomqtt.Client
	statusTopic string
	logger      *logging.Logger

	inbound *queue.Unbounded[esera.MqttMsg]

	mu        sync.Mutex
	connected bool
	closed    bool
}

// Open dials host, completes the initial connect handshake, and publishes
// the retained birth message to statusTopic . cred is
// "user:password"; either half may be empty.
func Open(host, cred, statusTopic string, logger *logging.Logger) (*Session, error) {
	s := &Session{
		statusTopic: statusTopic,
		logger:      logger,
		inbound:     queue.NewUnbounded[esera.MqttMsg](),
	}

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", host))
	opts.SetClientID(fmt.Sprintf("esera-bridge-%s", uuid.NewString()))
	if user, pass, ok := splitCred(cred); ok {
		opts.SetUsername(user)
		opts.SetPassword(pass)
	}
	opts.SetCleanSession(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetWill(statusTopic, "offline", 0, true)

	// MqttSession drives its own reconnect loop (see reconnectLoop) rather
	// than paho's built-in AutoReconnect, since it needs an exact backoff
	// sequence paho's defaults don't match.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetOnConnectHandler(func(_ pahomqtt.Client) {
		s.handleConnect()
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		s.handleDisconnect(err)
	})
	opts.SetDefaultPublishHandler(func(_ pahomqtt.Client, msg pahomqtt.Message) {
		s.handleMessage(msg)
	})

	s.client = pahomqtt.NewClient(opts)
	if err := s.connect(); err != nil {
		return nil, err
	}
	return s, nil
}

// splitCred parses "user:password" into its halves. An empty cred string
// means no credentials at all.
func splitCred(cred string) (user, pass string, ok bool) {
	if cred == "" {
		return "", "", false
	}
	for i := 0; i < len(cred); i++ {
		if cred[i] == ':' {
			return cred[:i], cred[i+1:], true
		}
	}
	return cred, "", true
}

// connect performs one connect attempt, completing only after the broker
// has returned a successful connect-ack (paho's token.Error() surfaces a
// non-accepted code as a failed token, the Go-idiomatic equivalent of the
// original's "accepted within three packets" check).
func (s *Session) connect() error {
	token := s.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return fmt.Errorf("%w: timeout after %v", ErrConnectFailed, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectFailed, err)
	}
	return nil
}

// handleConnect fires on every successful connect, including the first —
// it publishes the retained birth message and pushes a synthetic
// ReconnectedNotice so the Bridge replays its subscriptions (harmless on
// first connect, when the route table is still empty).
func (s *Session) handleConnect() {
	s.mu.Lock()
	s.connected = true
	s.mu.Unlock()

	s.client.Publish(s.statusTopic, 0, true, "online")
	s.inbound.In() <- esera.ReconnectedNotice()
}

// handleDisconnect marks the session down and starts the backoff reconnect
// loop. Spawned once per disconnect; handleConnect sets connected back to
// true and the loop returns once a connect attempt succeeds.
func (s *Session) handleDisconnect(err error) {
	s.mu.Lock()
	s.connected = false
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return
	}
	if s.logger != nil {
		s.logger.Warn("mqtt broker connection lost, reconnecting", "error", err)
	}
	go s.reconnectLoop()
}

// reconnectLoop retries connect with an exponential-ish backoff:
// 200ms initial delay, growing ×6/5 per failure, capped at 20s.
func (s *Session) reconnectLoop() {
	delay := initialBackoff
	for {
		s.mu.Lock()
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return
		}

		time.Sleep(delay)

		if err := s.connect(); err == nil {
			return
		} else if s.logger != nil {
			s.logger.Warn("mqtt reconnect attempt failed", "error", err)
		}

		delay = delay * 6 / 5
		if delay > maxBackoff {
			delay = maxBackoff
		}
	}
}

// handleMessage decodes one inbound PUBLISH into esera.MqttMsg. Invalid
// UTF-8 payloads are logged and dropped.
func (s *Session) handleMessage(msg pahomqtt.Message) {
	payload := msg.Payload()
	if !utf8.Valid(payload) {
		if s.logger != nil {
			s.logger.Warn("dropping publish with invalid UTF-8 payload", "topic", msg.Topic())
		}
		return
	}
	s.inbound.In() <- esera.Publish(msg.Topic(), string(payload))
}

// Send forwards one MqttMsg to the broker: QoS-0 publish or QoS-0
// subscribe. ReconnectedNotice is a synthetic message local to the
// bridge; sending one here is a no-op.
func (s *Session) Send(msg esera.MqttMsg) error {
	switch msg.Kind {
	case esera.MqttPublish:
		if !s.IsConnected() {
			return ErrNotConnected
		}
		token := s.client.Publish(msg.Topic, 0, msg.Retain, msg.Payload)
		token.Wait()
		return token.Error()

	case esera.MqttSubscribe:
		if !s.IsConnected() {
			return ErrNotConnected
		}
		token := s.client.Subscribe(msg.Topic, 0, nil)
		token.Wait()
		return token.Error()

	default:
		return nil
	}
}

// Inbound returns the channel of decoded inbound messages and synthetic
// ReconnectedNotice events.
func (s *Session) Inbound() <-chan esera.MqttMsg {
	return s.inbound.Out()
}

// IsConnected reports the last known connection state.
func (s *Session) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected && s.client.IsConnected()
}

// Close publishes a graceful offline status and disconnects.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	wasConnected := s.connected
	s.mu.Unlock()

	if wasConnected {
		token := s.client.Publish(s.statusTopic, 0, true, "offline")
		token.WaitTimeout(2 * time.Second)
	}
	s.client.Disconnect(250)
	return nil
}
