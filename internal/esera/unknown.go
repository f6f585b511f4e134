package esera

// Unknown is the placeholder variant for an unconfigured or unrecognised
// article number. A slot holding Unknown is skipped by any iteration over
// "configured devices".
type Unknown struct {
	info DeviceInfo
}

func NewUnknown(info DeviceInfo) *Unknown { return &Unknown{info: info} }

func (u *Unknown) Info() DeviceInfo { return u.info }

func (u *Unknown) SetStatus(s Status) TwoWay {
	u.info.Status = s
	return TwoWay{}
}

func (u *Unknown) Init() TwoWay                       { return TwoWay{} }
func (u *Unknown) Announce() TwoWay                    { return TwoWay{} }
func (u *Unknown) Register1Wire() []string             { return nil }
func (u *Unknown) RegisterMqtt() []TopicToken          { return nil }
func (u *Unknown) Handle1Wire(string, int32) TwoWay    { return TwoWay{} }
func (u *Unknown) HandleMqtt(int, string) TwoWay       { return TwoWay{} }
