package esera

import (
	"strings"
	"testing"
)

func newSwitch8(t *testing.T) *Switch8 {
	t.Helper()
	return NewSwitch8(DeviceInfo{Contno: 1, BusID: "OWD5", Serial: "s1", Artno: "11220"})
}

func TestSwitch8FirstInputEmitsLevelsOnlyNoEdges(t *testing.T) {
	s := newSwitch8(t)
	two := s.Handle1Wire("OWD5_1", 0b00000011)

	for _, m := range two.Mqtt {
		if strings.Contains(m.Topic, "/button/") {
			t.Errorf("unexpected button event on first observation: %+v", m)
		}
	}
	wantLevels := 8
	gotLevels := 0
	for _, m := range two.Mqtt {
		if strings.Contains(m.Topic, "/in/ch") {
			gotLevels++
		}
	}
	if gotLevels != wantLevels {
		t.Errorf("level publishes = %d, want %d", gotLevels, wantLevels)
	}
}

func TestSwitch8SecondInputEmitsEdgesForChangedBitsOnly(t *testing.T) {
	s := newSwitch8(t)
	s.Handle1Wire("OWD5_1", 0b00000001) // baseline: ch1 on

	two := s.Handle1Wire("OWD5_1", 0b00000011) // ch2 turns on too

	edges := 0
	for _, m := range two.Mqtt {
		if strings.Contains(m.Topic, "/button/") {
			edges++
			if m.Topic != "ESERA/1/OWD5/button/ch2" {
				t.Errorf("unexpected edge topic %q", m.Topic)
			}
			if m.Payload != "1" {
				t.Errorf("edge payload = %q, want 1", m.Payload)
			}
		}
	}
	if edges != 1 {
		t.Errorf("edges = %d, want exactly 1 (ch2)", edges)
	}
}

func TestSwitch8OutputWordIsLevelOnly(t *testing.T) {
	s := newSwitch8(t)
	two := s.Handle1Wire("OWD5_3", 0b00000001)
	for _, m := range two.Mqtt {
		if strings.Contains(m.Topic, "/button/") {
			t.Errorf("output word must never produce button events: %+v", m)
		}
	}
}

func TestSwitch8HandleMqttBuildsOutputCommand(t *testing.T) {
	s := newSwitch8(t)
	two := s.HandleMqtt(3, "1")
	if len(two.Controls) != 1 {
		t.Fatalf("Controls = %v, want 1 command", two.Controls)
	}
	want := "SET,OWD,OUT,5,2,1"
	if two.Controls[0] != want {
		t.Errorf("command = %q, want %q", two.Controls[0], want)
	}
}

func TestSwitch8HandleMqttRejectsOutOfRangeToken(t *testing.T) {
	s := newSwitch8(t)
	two := s.HandleMqtt(9, "1")
	if !two.Empty() {
		t.Errorf("expected no output for out-of-range token, got %+v", two)
	}
}

func TestSwitch8HandleMqttRejectsInvalidPayload(t *testing.T) {
	s := newSwitch8(t)
	two := s.HandleMqtt(1, "maybe")
	if !two.Empty() {
		t.Errorf("expected no output for invalid payload, got %+v", two)
	}
}
