package esera

import (
	"fmt"
	"time"
)

// motion codes reported on a shutter's "_3" sub-address.
const (
	motionIdle    = 0b00
	motionClosing = 0b01
	motionOpening = 0b10
	motionStop    = 0b11
)

const (
	directionIdle = iota
	directionClosing
	directionOpening
)

// ShutterTravel is the per-shutter open/close travel-time budget, lifted
// out of an environment-variable lookup
// (SHUTTER_<contno>_<name>_<CLOSE|OPEN>_TIME) into an explicit value
// supplied at construction — this is what lets shutter_test.go drive the
// auto-stop path deterministically via an injected clock instead of a
// real 60s wait.
type ShutterTravel struct {
	Open  time.Duration
	Close time.Duration
}

// DefaultShutterTravel is the 60s fallback used when no travel time is
// configured for a shutter.
var DefaultShutterTravel = ShutterTravel{Open: 60 * time.Second, Close: 60 * time.Second}

// Shutter is a roller-shutter/cover actuator (article group sharing the
// Switch8 article numbers' sibling hardware; selected explicitly by
// Bus.newDeviceForArticle's name-matched config, not by article lookup
// alone, since no distinct Shutter article number exists on the wire).
type Shutter struct {
	info      DeviceInfo
	deviceNum int
	travel    ShutterTravel
	now       func() time.Time

	position    int
	state       string
	direction   int
	start       time.Time
	prevButtons *uint32
}

// NewShutter constructs a Shutter. now defaults to time.Now; tests inject a
// deterministic clock.
func NewShutter(info DeviceInfo, travel ShutterTravel) *Shutter {
	n, _ := info.DeviceNumber()
	return &Shutter{
		info:      info,
		deviceNum: n,
		travel:    travel,
		now:       time.Now,
		state:     "stopped",
	}
}

func (s *Shutter) Info() DeviceInfo { return s.info }

func (s *Shutter) SetStatus(st Status) TwoWay {
	s.info.Status = st
	return statusTwoWay(s.info)
}

func (s *Shutter) Init() TwoWay { return TwoWay{} }

func (s *Shutter) Announce() TwoWay {
	topic := discTopic("cover", s.info, "shutter")
	payload := fmt.Sprintf(
		`{"name":"%s","position_topic":"%s","state_topic":"%s","command_topic":"%s","payload_open":"OPEN","payload_close":"CLOSE","payload_stop":"STOP"}`,
		s.info.topicRoot(), s.info.Topic("position"), s.info.Topic("state"), s.info.Topic("set"))
	return FromMqtt(Retained(topic, payload))
}

func (s *Shutter) Register1Wire() []string {
	return []string{s.info.BusID + "_1", s.info.BusID + "_3"}
}

func (s *Shutter) RegisterMqtt() []TopicToken {
	return []TopicToken{{Topic: s.info.Topic("set"), Token: 1}}
}

func (s *Shutter) Handle1Wire(addr string, value int32) TwoWay {
	switch addr {
	case s.info.BusID + "_1":
		word := uint32(value)
		var out TwoWay
		if s.prevButtons != nil {
			out.Append(digitalIO(s.info, 2, "button", word, s.prevButtons))
		}
		prev := word
		s.prevButtons = &prev
		return out
	case s.info.BusID + "_3":
		return s.handleMotion(uint32(value) & 0b11)
	default:
		return TwoWay{}
	}
}

func (s *Shutter) handleMotion(motion uint32) TwoWay {
	var out TwoWay
	switch motion {
	case motionOpening:
		if s.direction != directionOpening {
			s.direction = directionOpening
			s.start = s.now()
		}
		elapsed := s.now().Sub(s.start)
		if elapsed >= s.travel.Open {
			s.position = 100
			s.state = "open"
			s.direction = directionIdle
			out.Append(FromControl(fmt.Sprintf("SET,OWD,SHT,%d,3", s.deviceNum)))
		} else {
			s.position = clampPercent(int(elapsed * 100 / s.travel.Open))
			s.state = "opening"
		}
	case motionClosing:
		if s.direction != directionClosing {
			s.direction = directionClosing
			s.start = s.now()
		}
		elapsed := s.now().Sub(s.start)
		if elapsed >= s.travel.Close {
			s.position = 0
			s.state = "closed"
			s.direction = directionIdle
			out.Append(FromControl(fmt.Sprintf("SET,OWD,SHT,%d,3", s.deviceNum)))
		} else {
			s.position = clampPercent(100 - int(elapsed*100/s.travel.Close))
			s.state = "closing"
		}
	case motionStop:
		s.direction = directionIdle
		s.state = "stopped"
	case motionIdle:
		// no change in motion; retain last reported state.
	}

	out.Append(FromMqtt(Publish(s.info.Topic("position"), fmt.Sprintf("%d", s.position))))
	out.Append(FromMqtt(Publish(s.info.Topic("state"), s.state)))
	return out
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func (s *Shutter) HandleMqtt(token int, payload string) TwoWay {
	if token != 1 {
		return TwoWay{}
	}
	var code int
	switch payload {
	case "OPEN":
		code = 2
	case "CLOSE":
		code = 1
	case "STOP":
		code = 3
	default:
		return TwoWay{}
	}
	return FromControl(fmt.Sprintf("SET,OWD,SHT,%d,%d", s.deviceNum, code))
}
