package esera

import "fmt"

// BinarySensor is a single digital 1-Wire contact (article 11216). Unlike
// its passive-sensor siblings its one sub-address carries a raw 0/1, not a
// centi-scaled reading, so it gets its own (simpler) handler rather than
// passiveSensorHandle.
type BinarySensor struct {
	info DeviceInfo
}

func NewBinarySensor(info DeviceInfo) *BinarySensor { return &BinarySensor{info: info} }

func (b *BinarySensor) Info() DeviceInfo { return b.info }

func (b *BinarySensor) SetStatus(s Status) TwoWay {
	b.info.Status = s
	return statusTwoWay(b.info)
}

func (b *BinarySensor) Init() TwoWay { return TwoWay{} }

func (b *BinarySensor) Announce() TwoWay {
	topic := discTopic("binary_sensor", b.info, "state")
	payload := fmt.Sprintf(`{"name":"%s","state_topic":"%s"}`, b.info.topicRoot(), b.info.Topic("state"))
	return FromMqtt(Retained(topic, payload))
}

func (b *BinarySensor) Register1Wire() []string   { return []string{b.info.BusID + "_1"} }
func (b *BinarySensor) RegisterMqtt() []TopicToken { return nil }
func (b *BinarySensor) HandleMqtt(int, string) TwoWay { return TwoWay{} }

func (b *BinarySensor) Handle1Wire(addr string, value int32) TwoWay {
	if addr != b.info.BusID+"_1" {
		return TwoWay{}
	}
	return FromMqtt(Publish(b.info.Topic("state"), bool2str(value != 0)))
}
