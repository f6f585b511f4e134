package esera

import (
	"testing"
)

// fakeMqttSender is an in-process MqttSession stand-in: Send just records;
// Inbound returns a channel these tests never read from.
type fakeMqttSender struct {
	in   chan MqttMsg
	sent []MqttMsg
}

func newFakeMqttSender() *fakeMqttSender {
	return &fakeMqttSender{in: make(chan MqttMsg, 64)}
}

func (f *fakeMqttSender) Send(m MqttMsg) error {
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeMqttSender) Inbound() <-chan MqttMsg { return f.in }

// TestScenarioAKeepaliveIsDiscarded verifies a bare keepalive line
// produces no output.
func TestScenarioAKeepaliveIsDiscarded(t *testing.T) {
	consumed, resp, err := Parse([]byte("1_KAL|1\r\n"))
	if err != nil || consumed == 0 {
		t.Fatalf("Parse() failed: consumed=%d err=%v", consumed, err)
	}
	b := NewBus(1, BusConfig{})
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)
	if !two.Empty() {
		t.Errorf("keepalive produced output: %+v", two)
	}
}

// TestScenarioBListPopulateAnnouncesDevices covers Scenario B: an LST3
// enumeration installs devices and announces them.
func TestScenarioBListPopulateAnnouncesDevices(t *testing.T) {
	buf := "1_LST3|0\r\n" +
		"LST|1_OWD1|0102030405060708|S_0|11220|Switches\r\n" +
		"LST|1_OWD2|1122334455667788|S_0|11150|Sensor\r\n" +
		"1_KAL|1\r\n" // the first non-LST line ends the list

	_, resp, err := Parse([]byte(buf))
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}

	b := NewBus(1, BusConfig{})
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)

	if two.Empty() {
		t.Fatal("expected announce/subscribe output from LST3 handling")
	}
	if b.DeviceAt(1) == nil || b.DeviceAt(2) == nil {
		t.Error("devices were not installed into their slots")
	}
}

// TestScenarioCSensorConversion covers Scenario C: a positive centi-scaled
// reading converts to its decimal unit.
func TestScenarioCSensorConversion(t *testing.T) {
	if got := centi2float(2150); got != 21.5 {
		t.Errorf("centi2float(2150) = %v, want 21.5", got)
	}
}

// TestScenarioDNegativeSensorConversion covers Scenario D: a negative
// centi-scaled reading (sub-zero temperature) converts correctly.
func TestScenarioDNegativeSensorConversion(t *testing.T) {
	if got := centi2float(-350); got != -3.5 {
		t.Errorf("centi2float(-350) = %v, want -3.5", got)
	}
}

// TestScenarioEMqttCommandDispatch covers Scenario E: an inbound MQTT
// command, routed through the Router, reaches the owning device and
// produces a controller command.
func TestScenarioEMqttCommandDispatch(t *testing.T) {
	b := NewBus(1, BusConfig{})
	routes := NewRouter()
	listResp := Response{Kind: RespList3, Contno: 1, List3: []List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"},
	}}
	b.Handle1Wire(listResp, routes)

	topic := DeviceInfo{Contno: 1, BusID: "OWD1"}.Topic("set/ch1")
	recipients := routes.Lookup(topic)
	if len(recipients) != 1 {
		t.Fatalf("Lookup(%q) = %d recipients, want 1", topic, len(recipients))
	}

	dev := b.DeviceAt(recipients[0].Locator.Slot)
	two := dev.HandleMqtt(recipients[0].Token, "1")
	if len(two.Controls) != 1 {
		t.Fatalf("HandleMqtt() produced %d controller commands, want 1", len(two.Controls))
	}
}

// TestScenarioFReconnectReplaysSubscriptions covers Scenario F: on an MQTT
// reconnect notice, every distinct registered topic is re-subscribed.
func TestScenarioFReconnectReplaysSubscriptions(t *testing.T) {
	mqtt := newFakeMqttSender()
	b := NewBridge(nil, nil, nil, mqtt, nil)

	b.routes.Register("ESERA/1/OWD1/set/ch1", Locator{Contno: 1, Slot: 1}, 1)
	b.routes.Register("ESERA/1/OWD2/set/ch1", Locator{Contno: 1, Slot: 2}, 1)

	b.handleMqtt(ReconnectedNotice())
	if len(mqtt.sent) != 2 {
		t.Fatalf("replayed %d subscriptions, want 2", len(mqtt.sent))
	}
}
