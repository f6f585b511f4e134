package esera

import "fmt"

// Switch8 is an 8-channel relay/input bank (article 11220, 11228, 11229).
type Switch8 struct {
	info      DeviceInfo
	prevInput *uint32
	deviceNum int
}

// NewSwitch8 constructs a Switch8 at the given bus slot.
func NewSwitch8(info DeviceInfo) *Switch8 {
	n, _ := info.DeviceNumber()
	return &Switch8{info: info, deviceNum: n}
}

func (s *Switch8) Info() DeviceInfo { return s.info }

func (s *Switch8) SetStatus(st Status) TwoWay {
	s.info.Status = st
	return statusTwoWay(s.info)
}

func (s *Switch8) Init() TwoWay { return TwoWay{} }

func (s *Switch8) Announce() TwoWay {
	var out TwoWay
	for ch := 1; ch <= 8; ch++ {
		binTopic := discTopic("binary_sensor", s.info, fmt.Sprintf("in%d", ch))
		binPayload := fmt.Sprintf(`{"name":"Input %d","state_topic":"%s"}`, ch, s.info.Topic(fmt.Sprintf("in/ch%d", ch)))
		out.Append(FromMqtt(Retained(binTopic, binPayload)))

		swTopic := discTopic("switch", s.info, fmt.Sprintf("out%d", ch))
		swPayload := fmt.Sprintf(`{"name":"Output %d","state_topic":"%s","command_topic":"%s"}`,
			ch, s.info.Topic(fmt.Sprintf("out/ch%d", ch)), s.info.Topic(fmt.Sprintf("set/ch%d", ch)))
		out.Append(FromMqtt(Retained(swTopic, swPayload)))
	}
	return out
}

func (s *Switch8) Register1Wire() []string {
	return []string{s.info.BusID + "_1", s.info.BusID + "_3"}
}

func (s *Switch8) RegisterMqtt() []TopicToken {
	tt := make([]TopicToken, 0, 8)
	for ch := 1; ch <= 8; ch++ {
		tt = append(tt, TopicToken{Topic: s.info.Topic(fmt.Sprintf("set/ch%d", ch)), Token: ch})
	}
	return tt
}

// Handle1Wire distinguishes the input word (level + edge) from the output
// word (level only) by the registered sub-address. On the very first input
// observation no button (edge) events are emitted at all — stricter than
// the shared digitalIO default, 
func (s *Switch8) Handle1Wire(addr string, value int32) TwoWay {
	switch addr {
	case s.info.BusID + "_1":
		word := uint32(value)
		var out TwoWay
		out.Append(levelBits(s.info, 8, "in", word))
		if s.prevInput != nil {
			out.Append(digitalIO(s.info, 8, "button", word, s.prevInput))
		}
		prev := word
		s.prevInput = &prev
		return out
	case s.info.BusID + "_3":
		return levelBits(s.info, 8, "out", uint32(value))
	default:
		return TwoWay{}
	}
}

func (s *Switch8) HandleMqtt(token int, payload string) TwoWay {
	if token < 1 || token > 8 {
		return TwoWay{}
	}
	on, err := str2bool(payload)
	if err != nil {
		return TwoWay{}
	}
	return FromControl(fmt.Sprintf("SET,OWD,OUT,%d,%d,%s", s.deviceNum, token-1, bool2str(on)))
}
