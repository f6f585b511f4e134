package hvac

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/esera-bridge/bridge/internal/esera"
)

// Base is the shared HVAC root topic.
const Base = "homeassistant/climate/virt"

// StatusTopic is the single status topic every Climate's discovery payload
// points at as its availability_topic.
const StatusTopic = Base + "/status"

// Token identifies which of a Climate's subscriptions an inbound payload
// came from, so HandleMqtt can tell them apart.
type Token = int

const (
	TokHeatState Token = iota + 1
	TokTemp
	TokModeSet
	TokTempSet
	TokDew
	TokAuxState
)

const initialTemp = 21.0

// epsilon suppresses no-op setpoint/sensor republishing, the
// last bullet.
const epsilon = 0.02

// auxOnBelow and auxOffAt are the aux-heat hysteresis thresholds relative
// to the setpoint: aux turns on 0.8°C below setpoint, off again only once
// within 0.1°C of it.
const (
	auxOnBelow = 0.8
	auxOffAt   = 0.1
)

type mode int

const (
	modeHeat mode = iota
	modeOff
)

func parseMode(s string) (mode, error) {
	switch s {
	case "heat":
		return modeHeat, nil
	case "off":
		return modeOff, nil
	default:
		return 0, fmt.Errorf("%w: unrecognised hvac mode %q", esera.ErrValidation, s)
	}
}

func (m mode) String() string {
	if m == modeOff {
		return "off"
	}
	return "heat"
}

// Climate is one virtual thermostat, built entirely out of MQTT topics
// rather than a controller bus address. It has the MQTT-side methods of
// esera.Device (Announce, RegisterMqtt, HandleMqtt) but not Info,
// SetStatus, Init, Register1Wire or Handle1Wire, so it does not satisfy
// that interface; cmd/esera-hvac drives it directly.
type Climate struct {
	name string
	base string
	conf Conf

	mode      mode
	setpoint  float64
	current   float64
	heatingOn bool
	auxOn     bool
}

// New constructs a Climate in mode=heat at the default 21.0°C setpoint,
// heating off, aux off.
func New(name string, conf Conf) *Climate {
	return &Climate{
		name:     name,
		base:     fmt.Sprintf("%s/%s", Base, name),
		conf:     conf,
		mode:     modeHeat,
		setpoint: initialTemp,
		current:  initialTemp,
	}
}

func (c *Climate) topic(tail string) string {
	return fmt.Sprintf("%s/%s", c.base, tail)
}

// discovery is the Home-Assistant climate entity payload.
type discovery struct {
	ActionTopic             string   `json:"action_topic"`
	AuxCommandTopic         string   `json:"aux_command_topic,omitempty"`
	AuxStateTopic           string   `json:"aux_state_topic,omitempty"`
	AvailabilityTopic       string   `json:"availability_topic"`
	CurrentTemperatureTopic string   `json:"current_temperature_topic"`
	Initial                 float64  `json:"initial"`
	ModeCommandTopic        string   `json:"mode_command_topic"`
	ModeStateTopic          string   `json:"mode_state_topic"`
	Modes                   []string `json:"modes"`
	Name                    string   `json:"name"`
	PayloadOff              string   `json:"payload_off"`
	PayloadOn               string   `json:"payload_on"`
	TemperatureCommandTopic string   `json:"temperature_command_topic"`
	TemperatureStateTopic   string   `json:"temperature_state_topic"`
	UniqueID                string   `json:"unique_id"`
}

// Announce returns the retained discovery publish for this unit.
func (c *Climate) Announce() esera.TwoWay {
	d := discovery{
		ActionTopic:             c.topic("action"),
		AuxCommandTopic:         c.conf.AuxCmnd,
		AuxStateTopic:           c.conf.AuxState,
		AvailabilityTopic:       StatusTopic,
		CurrentTemperatureTopic: c.topic("current"),
		Initial:                 initialTemp,
		ModeCommandTopic:        c.topic("mode/set"),
		ModeStateTopic:          c.topic("mode"),
		Modes:                   []string{"off", "heat"},
		Name:                    c.name,
		PayloadOn:               "1",
		PayloadOff:              "0",
		TemperatureCommandTopic: c.topic("target/set"),
		TemperatureStateTopic:   c.topic("target"),
		UniqueID:                fmt.Sprintf("esera-bridge::climate::virtual::%s", c.name),
	}
	payload, err := json.Marshal(d)
	if err != nil {
		return esera.TwoWay{}
	}
	return esera.FromMqtt(esera.Retained(c.topic("config"), string(payload)))
}

// RegisterMqtt returns the (topic, token) pairs this unit subscribes to:
// its two externally-supplied sensor/state topics plus its own command
// topics.
func (c *Climate) RegisterMqtt() []esera.TopicToken {
	t := []esera.TopicToken{
		{Topic: c.conf.HeatState, Token: TokHeatState},
		{Topic: c.conf.Temp, Token: TokTemp},
		{Topic: c.topic("mode/set"), Token: TokModeSet},
		{Topic: c.topic("target/set"), Token: TokTempSet},
	}
	if c.conf.Dew != "" {
		t = append(t, esera.TopicToken{Topic: c.conf.Dew, Token: TokDew})
	}
	if c.conf.AuxState != "" {
		t = append(t, esera.TopicToken{Topic: c.conf.AuxState, Token: TokAuxState})
	}
	return t
}

func (c *Climate) action() string {
	if c.mode == modeOff {
		return "off"
	}
	if c.heatingOn {
		return "heating"
	}
	return "idle"
}

// HandleMqtt applies one inbound payload by token and re-evaluates,
// Invalid payloads are
// validation errors logged and dropped by the caller, never propagated.
func (c *Climate) HandleMqtt(token Token, payload string) esera.TwoWay {
	switch token {
	case TokTempSet:
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return esera.TwoWay{}
		}
		if abs(c.setpoint-v) < epsilon {
			return esera.TwoWay{}
		}
		c.setpoint = v
		two := c.Eval()
		two.Append(esera.FromMqtt(esera.Retained(c.topic("target/set"), payload)))
		return two

	case TokModeSet:
		m, err := parseMode(payload)
		if err != nil {
			return esera.TwoWay{}
		}
		if c.mode == m {
			return esera.TwoWay{}
		}
		c.mode = m
		two := c.Eval()
		two.Append(esera.FromMqtt(esera.Retained(c.topic("mode/set"), payload)))
		return two

	case TokTemp:
		v, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return esera.TwoWay{}
		}
		v += c.conf.Offset
		if abs(c.current-v) < epsilon {
			return esera.TwoWay{}
		}
		c.current = v
		return c.Eval()

	case TokHeatState:
		v, err := strconv.ParseBool(normalizeBool(payload))
		if err != nil {
			return esera.TwoWay{}
		}
		if c.heatingOn == v {
			return esera.TwoWay{}
		}
		c.heatingOn = v
		return c.Eval()

	case TokAuxState:
		v, err := strconv.ParseBool(normalizeBool(payload))
		if err != nil {
			return esera.TwoWay{}
		}
		c.auxOn = v
		return esera.TwoWay{}

	case TokDew:
		return esera.TwoWay{}

	default:
		return esera.TwoWay{}
	}
}

func normalizeBool(s string) string {
	switch s {
	case "1":
		return "true"
	case "0":
		return "false"
	default:
		return s
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// Eval recomputes action/heat/aux state from the current mode, setpoint and
// reading, publishing the four state topics plus any heat/aux command
// changes. The action topic is published twice: first with the action as
// it stood on entry, and last with the recomputed action. Run on every
// state change and on explicit startup eval.
func (c *Climate) Eval() esera.TwoWay {
	var two esera.TwoWay
	two.Append(esera.FromMqtt(esera.Publish(c.topic("action"), c.action())))
	two.Append(esera.FromMqtt(esera.Publish(c.topic("mode"), c.mode.String())))
	two.Append(esera.FromMqtt(esera.Publish(c.topic("current"), formatTemp(c.current))))
	two.Append(esera.FromMqtt(esera.Publish(c.topic("target"), formatTemp(c.setpoint))))

	if c.mode == modeOff {
		if c.heatingOn {
			c.heatingOn = false
			two.Append(esera.FromMqtt(esera.Publish(c.conf.HeatCmnd, "0")))
		}
		if c.auxOn && c.conf.AuxCmnd != "" {
			c.auxOn = false
			two.Append(esera.FromMqtt(esera.Publish(c.conf.AuxCmnd, "0")))
		}
		two.Append(esera.FromMqtt(esera.Publish(c.topic("action"), c.action())))
		return two
	}

	switch {
	case c.current < c.setpoint && !c.heatingOn:
		c.heatingOn = true
		two.Append(esera.FromMqtt(esera.Publish(c.conf.HeatCmnd, "1")))
	case c.current >= c.setpoint && c.heatingOn:
		c.heatingOn = false
		two.Append(esera.FromMqtt(esera.Publish(c.conf.HeatCmnd, "0")))
	}

	if c.conf.AuxCmnd != "" {
		switch {
		case c.current < c.setpoint-auxOnBelow && !c.auxOn:
			c.auxOn = true
			two.Append(esera.FromMqtt(esera.Publish(c.conf.AuxCmnd, "1")))
		case c.current >= c.setpoint-auxOffAt && c.auxOn:
			c.auxOn = false
			two.Append(esera.FromMqtt(esera.Publish(c.conf.AuxCmnd, "0")))
		}
	}

	two.Append(esera.FromMqtt(esera.Publish(c.topic("action"), c.action())))
	return two
}

func formatTemp(f float64) string {
	return strconv.FormatFloat(f, 'f', 2, 64)
}
