package esera

import "fmt"

// sensorField pairs a bus sub-address with the topic tail and Home
// Assistant sensor metadata it reports (the fixed
// sub-address subsets, shared by TempHum/AirQuality/Hub).
type sensorField struct {
	sub   string
	tail  string
	name  string
	unit  string
	class string
}

// passiveSensorHandle publishes the centi-scaled reading for whichever
// field matches addr, or an empty TwoWay if this device has no such field.
func passiveSensorHandle(info DeviceInfo, fields []sensorField, addr string, value int32) TwoWay {
	for _, f := range fields {
		if info.BusID+"_"+f.sub == addr {
			return FromMqtt(Publish(info.Topic(f.tail), fmt.Sprintf("%.2f", centi2float(value))))
		}
	}
	return TwoWay{}
}

func passiveSensorAnnounce(info DeviceInfo, fields []sensorField) TwoWay {
	var out TwoWay
	for _, f := range fields {
		topic := discTopic("sensor", info, f.tail)
		payload := fmt.Sprintf(`{"name":"%s","state_topic":"%s","unit_of_measurement":"%s","device_class":"%s"}`,
			f.name, info.Topic(f.tail), f.unit, f.class)
		out.Append(FromMqtt(Retained(topic, payload)))
	}
	return out
}

func passiveSensorAddrs(info DeviceInfo, fields []sensorField) []string {
	addrs := make([]string, len(fields))
	for i, f := range fields {
		addrs[i] = info.BusID + "_" + f.sub
	}
	return addrs
}

var temphumFields = []sensorField{
	{sub: "1", tail: "temp", name: "Temperature", unit: "°C", class: "temperature"},
	{sub: "2", tail: "vdd", name: "Supply voltage", unit: "V", class: "voltage"},
	{sub: "3", tail: "hum", name: "Humidity", unit: "%", class: "humidity"},
	{sub: "4", tail: "dew", name: "Dewpoint", unit: "°C", class: "temperature"},
}

// TempHum is a combined temperature/humidity sensor (article 11150).
type TempHum struct {
	info DeviceInfo
}

func NewTempHum(info DeviceInfo) *TempHum { return &TempHum{info: info} }

func (t *TempHum) Info() DeviceInfo { return t.info }

func (t *TempHum) SetStatus(s Status) TwoWay {
	t.info.Status = s
	return statusTwoWay(t.info)
}

func (t *TempHum) Init() TwoWay                      { return TwoWay{} }
func (t *TempHum) Announce() TwoWay                  { return passiveSensorAnnounce(t.info, temphumFields) }
func (t *TempHum) Register1Wire() []string           { return passiveSensorAddrs(t.info, temphumFields) }
func (t *TempHum) RegisterMqtt() []TopicToken         { return nil }
func (t *TempHum) HandleMqtt(int, string) TwoWay      { return TwoWay{} }
func (t *TempHum) Handle1Wire(addr string, v int32) TwoWay {
	return passiveSensorHandle(t.info, temphumFields, addr, v)
}
