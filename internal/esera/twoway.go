package esera

// MqttMsgKind discriminates the three MqttMsg constructors.
type MqttMsgKind int

const (
	// MqttPublish carries a value to a concrete topic.
	MqttPublish MqttMsgKind = iota
	// MqttSubscribe requests a broker subscription.
	MqttSubscribe
	// MqttReconnected is a synthetic notice MqttSession pushes onto its
	// inbound stream after every connect, so the Bridge replays its
	// subscriptions.
	MqttReconnected
)

// MqttMsg is the sum type flowing between the bridge and MqttSession.
type MqttMsg struct {
	Kind    MqttMsgKind
	Topic   string
	Payload string
	Retain  bool
}

// Publish builds a non-retained MqttPublish message.
func Publish(topic, payload string) MqttMsg {
	return MqttMsg{Kind: MqttPublish, Topic: topic, Payload: payload}
}

// Retained builds a retained MqttPublish message.
func Retained(topic, payload string) MqttMsg {
	return MqttMsg{Kind: MqttPublish, Topic: topic, Payload: payload, Retain: true}
}

// Subscribe builds an MqttSubscribe message.
func Subscribe(topic string) MqttMsg {
	return MqttMsg{Kind: MqttSubscribe, Topic: topic}
}

// ReconnectedNotice builds the synthetic reconnect notice.
func ReconnectedNotice() MqttMsg {
	return MqttMsg{Kind: MqttReconnected}
}

// TwoWay is the unit of output from every device handler: an ordered list
// of MQTT messages to publish and an ordered list of controller command
// lines to send. Monoidal under Append so handlers compose naturally.
type TwoWay struct {
	Mqtt     []MqttMsg
	Controls []string
}

// FromMqtt builds a TwoWay carrying a single MQTT message.
func FromMqtt(msg MqttMsg) TwoWay {
	return TwoWay{Mqtt: []MqttMsg{msg}}
}

// FromControl builds a TwoWay carrying a single controller command.
func FromControl(line string) TwoWay {
	return TwoWay{Controls: []string{line}}
}

// Append concatenates other onto t in place and returns t for chaining.
func (t *TwoWay) Append(other TwoWay) *TwoWay {
	t.Mqtt = append(t.Mqtt, other.Mqtt...)
	t.Controls = append(t.Controls, other.Controls...)
	return t
}

// Empty reports whether this TwoWay carries no output at all.
func (t TwoWay) Empty() bool {
	return len(t.Mqtt) == 0 && len(t.Controls) == 0
}
