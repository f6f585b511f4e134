package esera

// hubFields: the Hub's 4 sub-addresses report the 12V/5V rail voltage and
// current respectively (the wire protocol doesn't pin an exact
// sub-address order; this ordering follows the field's
// natural rail-then-current grouping).
var hubFields = []sensorField{
	{sub: "1", tail: "vcc_12", name: "12V rail", unit: "V", class: "voltage"},
	{sub: "2", tail: "vcc_5", name: "5V rail", unit: "V", class: "voltage"},
	{sub: "3", tail: "cur_12", name: "12V current", unit: "mA", class: "current"},
	{sub: "4", tail: "cur_5", name: "5V current", unit: "mA", class: "current"},
}

// Hub is a bus-power distribution module (article 11322).
type Hub struct {
	info DeviceInfo
}

func NewHub(info DeviceInfo) *Hub { return &Hub{info: info} }

func (h *Hub) Info() DeviceInfo { return h.info }

func (h *Hub) SetStatus(s Status) TwoWay {
	h.info.Status = s
	return statusTwoWay(h.info)
}

func (h *Hub) Init() TwoWay                 { return TwoWay{} }
func (h *Hub) Announce() TwoWay             { return passiveSensorAnnounce(h.info, hubFields) }
func (h *Hub) Register1Wire() []string      { return passiveSensorAddrs(h.info, hubFields) }
func (h *Hub) RegisterMqtt() []TopicToken   { return nil }
func (h *Hub) HandleMqtt(int, string) TwoWay { return TwoWay{} }
func (h *Hub) Handle1Wire(addr string, v int32) TwoWay {
	return passiveSensorHandle(h.info, hubFields, addr, v)
}
