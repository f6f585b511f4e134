package esera

import (
	"testing"
	"time"
)

func newTestShutter(t *testing.T, travel ShutterTravel) (*Shutter, *fakeClock) {
	t.Helper()
	s := NewShutter(DeviceInfo{Contno: 1, BusID: "OWD7", Serial: "sh1", Artno: "11220"}, travel)
	clk := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	s.now = clk.Now
	return s, clk
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// TestShutterAutoStop verifies that given a 30s travel time, opening
// from position 0, after 31s of updates the Shutter
// must have emitted a STOP command and reported position 100.
func TestShutterAutoStop(t *testing.T) {
	s, clk := newTestShutter(t, ShutterTravel{Open: 30 * time.Second, Close: 30 * time.Second})

	s.Handle1Wire("OWD7_3", motionOpening) // motion starts
	clk.Advance(31 * time.Second)
	two := s.Handle1Wire("OWD7_3", motionOpening) // still reporting "opening" past travel time

	var stopped bool
	for _, cmd := range two.Controls {
		if cmd == "SET,OWD,SHT,7,3" {
			stopped = true
		}
	}
	if !stopped {
		t.Errorf("Controls = %v, want a STOP command after travel time elapsed", two.Controls)
	}
	if s.position != 100 {
		t.Errorf("position = %d, want 100", s.position)
	}
	if s.state != "open" {
		t.Errorf("state = %q, want open", s.state)
	}
}

func TestShutterClosingReachesZero(t *testing.T) {
	s, clk := newTestShutter(t, ShutterTravel{Open: 10 * time.Second, Close: 10 * time.Second})
	s.position = 100

	s.Handle1Wire("OWD7_3", motionClosing)
	clk.Advance(11 * time.Second)
	s.Handle1Wire("OWD7_3", motionClosing)

	if s.position != 0 {
		t.Errorf("position = %d, want 0", s.position)
	}
	if s.state != "closed" {
		t.Errorf("state = %q, want closed", s.state)
	}
}

func TestShutterStopCommandHalts(t *testing.T) {
	s, clk := newTestShutter(t, ShutterTravel{Open: 30 * time.Second, Close: 30 * time.Second})
	s.Handle1Wire("OWD7_3", motionOpening)
	clk.Advance(5 * time.Second)
	s.Handle1Wire("OWD7_3", motionStop)

	if s.state != "stopped" {
		t.Errorf("state = %q, want stopped", s.state)
	}
}

func TestShutterHandleMqttCommands(t *testing.T) {
	s, _ := newTestShutter(t, DefaultShutterTravel)
	tests := []struct {
		payload string
		want    string
	}{
		{"OPEN", "SET,OWD,SHT,7,2"},
		{"CLOSE", "SET,OWD,SHT,7,1"},
		{"STOP", "SET,OWD,SHT,7,3"},
	}
	for _, tt := range tests {
		two := s.HandleMqtt(1, tt.payload)
		if len(two.Controls) != 1 || two.Controls[0] != tt.want {
			t.Errorf("HandleMqtt(%q) = %v, want [%q]", tt.payload, two.Controls, tt.want)
		}
	}
}

func TestShutterHandleMqttRejectsUnknownPayload(t *testing.T) {
	s, _ := newTestShutter(t, DefaultShutterTravel)
	two := s.HandleMqtt(1, "WIGGLE")
	if !two.Empty() {
		t.Errorf("expected no output for unrecognised payload, got %+v", two)
	}
}
