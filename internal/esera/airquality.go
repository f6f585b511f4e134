package esera

var airqualityFields = []sensorField{
	{sub: "1", tail: "temp", name: "Temperature", unit: "°C", class: "temperature"},
	{sub: "2", tail: "vdd", name: "Supply voltage", unit: "V", class: "voltage"},
	{sub: "3", tail: "hum", name: "Humidity", unit: "%", class: "humidity"},
	{sub: "4", tail: "dew", name: "Dewpoint", unit: "°C", class: "temperature"},
	{sub: "5", tail: "co2", name: "CO2", unit: "ppm", class: "carbon_dioxide"},
}

// AirQuality extends TempHum with a CO2 reading (article 11151).
type AirQuality struct {
	info DeviceInfo
}

func NewAirQuality(info DeviceInfo) *AirQuality { return &AirQuality{info: info} }

func (a *AirQuality) Info() DeviceInfo { return a.info }

func (a *AirQuality) SetStatus(s Status) TwoWay {
	a.info.Status = s
	return statusTwoWay(a.info)
}

func (a *AirQuality) Init() TwoWay                 { return TwoWay{} }
func (a *AirQuality) Announce() TwoWay             { return passiveSensorAnnounce(a.info, airqualityFields) }
func (a *AirQuality) Register1Wire() []string      { return passiveSensorAddrs(a.info, airqualityFields) }
func (a *AirQuality) RegisterMqtt() []TopicToken    { return nil }
func (a *AirQuality) HandleMqtt(int, string) TwoWay { return TwoWay{} }
func (a *AirQuality) Handle1Wire(addr string, v int32) TwoWay {
	return passiveSensorHandle(a.info, airqualityFields, addr, v)
}
