package esera

import (
	"fmt"
	"strconv"
)

// Dimmer is a 2-channel dimmable-light controller (article 11221).
type Dimmer struct {
	info      DeviceInfo
	prevInput *uint32
	deviceNum int
}

func NewDimmer(info DeviceInfo) *Dimmer {
	n, _ := info.DeviceNumber()
	return &Dimmer{info: info, deviceNum: n}
}

func (d *Dimmer) Info() DeviceInfo { return d.info }

func (d *Dimmer) SetStatus(s Status) TwoWay {
	d.info.Status = s
	return statusTwoWay(d.info)
}

func (d *Dimmer) Init() TwoWay { return TwoWay{} }

func (d *Dimmer) Announce() TwoWay {
	var out TwoWay
	for ch := 1; ch <= 2; ch++ {
		topic := discTopic("light", d.info, fmt.Sprintf("ch%d", ch))
		payload := fmt.Sprintf(
			`{"name":"Dimmer %d","state_topic":"%s","command_topic":"%s","brightness_state_topic":"%s","brightness_command_topic":"%s","brightness_scale":31}`,
			ch, d.info.Topic(fmt.Sprintf("out/ch%d", ch)), d.info.Topic(fmt.Sprintf("set/ch%d", ch)),
			d.info.Topic(fmt.Sprintf("out/ch%d", ch)), d.info.Topic(fmt.Sprintf("set/ch%d", ch)))
		out.Append(FromMqtt(Retained(topic, payload)))
	}
	return out
}

func (d *Dimmer) Register1Wire() []string {
	return []string{d.info.BusID + "_1", d.info.BusID + "_3", d.info.BusID + "_4"}
}

func (d *Dimmer) RegisterMqtt() []TopicToken {
	return []TopicToken{
		{Topic: d.info.Topic("set/ch1"), Token: 1},
		{Topic: d.info.Topic("set/ch2"), Token: 2},
	}
}

func (d *Dimmer) Handle1Wire(addr string, value int32) TwoWay {
	switch addr {
	case d.info.BusID + "_1":
		word := uint32(value)
		var out TwoWay
		if d.prevInput != nil {
			out.Append(digitalIO(d.info, 2, "button", word, d.prevInput))
		}
		prev := word
		d.prevInput = &prev
		return out
	case d.info.BusID + "_3":
		return FromMqtt(Publish(d.info.Topic("out/ch1"), strconv.Itoa(int(value))))
	case d.info.BusID + "_4":
		return FromMqtt(Publish(d.info.Topic("out/ch2"), strconv.Itoa(int(value))))
	default:
		return TwoWay{}
	}
}

func (d *Dimmer) HandleMqtt(token int, payload string) TwoWay {
	if token != 1 && token != 2 {
		return TwoWay{}
	}
	v, err := strconv.Atoi(payload)
	if err != nil || v < 0 || v > 31 {
		return TwoWay{}
	}
	return FromControl(fmt.Sprintf("SET,OWD,DIM,%d,%d,%d", d.deviceNum, token, v))
}
