package esera

import (
	"fmt"
	"strconv"
)

// Controller2 is the controller board itself, always resident in bus slot
// 0 under bus-id "SYS".
type Controller2 struct {
	info      DeviceInfo
	dio       DIOMode
	dioKnown  bool
	prevInput *uint32
}

// NewController2 constructs the controller device for a freshly observed
// CSI.
func NewController2(info DeviceInfo) *Controller2 {
	info.BusID = "SYS"
	return &Controller2{info: info}
}

func (c *Controller2) Info() DeviceInfo { return c.info }

func (c *Controller2) SetStatus(s Status) TwoWay {
	c.info.Status = s
	return statusTwoWay(c.info)
}

// SetDIO records the controller's switching-semantics mode, fed by Bus
// routing the parser's distinct DIO message kind directly here.
func (c *Controller2) SetDIO(mode DIOMode) {
	c.dio = mode
	c.dioKnown = true
}

func (c *Controller2) Init() TwoWay {
	return FromControl("GET,SYS,DIO")
}

func (c *Controller2) Announce() TwoWay {
	var out TwoWay
	for ch := 1; ch <= 4; ch++ {
		topic := discTopic("binary_sensor", c.info, fmt.Sprintf("in%d", ch))
		payload := fmt.Sprintf(`{"name":"Input %d","state_topic":"%s","device_class":"none"}`,
			ch, c.info.Topic(fmt.Sprintf("in/ch%d", ch)))
		out.Append(FromMqtt(Retained(topic, payload)))

		buttonType := "long_press"
		if c.dio == DIOIndependentEdge || c.dio == DIOLinkedEdge {
			buttonType = "short_press"
		}
		autoTopic := discTopic("device_automation", c.info, fmt.Sprintf("btn%d", ch))
		autoPayload := fmt.Sprintf(`{"automation_type":"trigger","type":"%s","subtype":"button_%d","topic":"%s"}`,
			buttonType, ch, c.info.Topic(fmt.Sprintf("button/ch%d", ch)))
		out.Append(FromMqtt(Retained(autoTopic, autoPayload)))
	}
	for ch := 1; ch <= 5; ch++ {
		topic := discTopic("switch", c.info, fmt.Sprintf("out%d", ch))
		payload := fmt.Sprintf(`{"name":"Output %d","state_topic":"%s","command_topic":"%s"}`,
			ch, c.info.Topic(fmt.Sprintf("out/ch%d", ch)), c.info.Topic(fmt.Sprintf("set/ch%d", ch)))
		out.Append(FromMqtt(Retained(topic, payload)))
	}
	anaTopic := discTopic("sensor", c.info, "ana")
	anaPayload := fmt.Sprintf(`{"name":"Analog out","state_topic":"%s","unit_of_measurement":"V"}`,
		c.info.Topic("out/ana"))
	out.Append(FromMqtt(Retained(anaTopic, anaPayload)))
	return out
}

func (c *Controller2) Register1Wire() []string {
	return []string{"SYS1_1", "SYS2_1", "SYS3"}
}

func (c *Controller2) RegisterMqtt() []TopicToken {
	tt := make([]TopicToken, 0, 6)
	for ch := 1; ch <= 5; ch++ {
		tt = append(tt, TopicToken{Topic: c.info.Topic(fmt.Sprintf("set/ch%d", ch)), Token: ch})
	}
	tt = append(tt, TopicToken{Topic: c.info.Topic("set/ana"), Token: tokenControllerAna})
	return tt
}

const tokenControllerAna = 100

func (c *Controller2) Handle1Wire(addr string, value int32) TwoWay {
	switch addr {
	case "SYS1_1":
		word := uint32(value)
		var out TwoWay
		out.Append(levelBits(c.info, 4, "in", word))
		out.Append(digitalIO(c.info, 4, "button", word, c.prevInput))
		prev := word
		c.prevInput = &prev
		return out
	case "SYS2_1":
		return levelBits(c.info, 5, "out", uint32(value))
	case "SYS3":
		return FromMqtt(Publish(c.info.Topic("out/ana"), fmt.Sprintf("%.2f", centi2float(value))))
	default:
		return TwoWay{}
	}
}

func (c *Controller2) HandleMqtt(token int, payload string) TwoWay {
	if token == tokenControllerAna {
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil || v < 0.0 || v > 10.0 {
			return TwoWay{}
		}
		return FromControl(fmt.Sprintf("SET,SYS,OUTA,%d", float2centi(v)))
	}
	if token >= 1 && token <= 5 {
		on, err := str2bool(payload)
		if err != nil {
			return TwoWay{}
		}
		return FromControl(fmt.Sprintf("SET,SYS,OUT,%d,%s", token, bool2str(on)))
	}
	return TwoWay{}
}
