package esera

import (
	"fmt"
	"strconv"
	"strings"
)

// BusMax is the number of device slots per controller: slot 0 is always
// the controller itself, slots 1..30 are OWD devices.
const BusMax = 31

// BusConfig carries the configuration that cannot be derived from the
// wire enumeration alone. Shutter keys by the device name assigned on the
// controller (the same name a SHUTTER_<contno>_<name>_{OPEN,CLOSE}_TIME
// environment variable would have named in the original), since the
// article numbers a Shutter reports are indistinguishable from a plain
// Switch8's: no distinct Shutter article number exists on the wire.
type BusConfig struct {
	Shutters map[string]ShutterTravel
}

// Bus is the per-controller aggregate: a fixed 31-slot device array plus
// the 1-Wire bus-address → slot index map. Owned exclusively by the
// Bridge; never shared.
type Bus struct {
	Contno  uint8
	devices [BusMax]Device
	addrIdx map[string]int
	cfg     BusConfig
}

// NewBus constructs an empty Bus for the given controller number. cfg may
// be the zero value when no shutters are configured on this controller.
func NewBus(contno uint8, cfg BusConfig) *Bus {
	return &Bus{Contno: contno, addrIdx: make(map[string]int), cfg: cfg}
}

// busID2Slot maps an "OWD<n>" bus-id to its slot index (1..30), or fails
// for anything else.
func busID2Slot(busID string) (int, error) {
	n := strings.TrimPrefix(busID, "OWD")
	if n == busID || n == "" {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBusID, busID)
	}
	v, err := strconv.Atoi(n)
	if err != nil || v < 1 || v > BusMax-1 {
		return 0, fmt.Errorf("%w: %q", ErrUnknownBusID, busID)
	}
	return v, nil
}

// SetController installs the controller into slot 0.
func (b *Bus) SetController(csi CSI) TwoWay {
	info := DeviceInfo{Contno: b.Contno, BusID: "SYS", Serial: csi.Serno, Artno: csi.Artno, Status: StatusOnline}
	ctrl := NewController2(info)
	b.devices[0] = ctrl
	b.reindex()
	return ctrl.Init()
}

// newDeviceForArticle selects the concrete Device variant for an article
// number via a single closed pattern-match. A Switch8-article device
// whose name matches a configured shutter is instantiated as Shutter
// instead, since no distinct Shutter article number exists on the wire.
func (b *Bus) newDeviceForArticle(info DeviceInfo) Device {
	switch info.Artno {
	case "11150":
		return NewTempHum(info)
	case "11151":
		return NewAirQuality(info)
	case "11216":
		return NewBinarySensor(info)
	case "11220", "11228", "11229":
		if travel, ok := b.cfg.Shutters[info.Name]; ok {
			return NewShutter(info, travel)
		}
		return NewSwitch8(info)
	case "11221":
		return NewDimmer(info)
	case "11322":
		return NewHub(info)
	case "11340":
		return NewController2(info)
	default:
		return NewUnknown(info)
	}
}

// Populate applies an LST3 enumeration to this bus: a slot whose serial
// differs from the enumerated entry is replaced by a fresh device (state
// discarded); a slot whose non-empty serial matches is left alone except
// for its status. A slot with an empty serial is rebuilt on every call, with
// the same variant and DeviceInfo. Applying the same list twice is therefore
// idempotent: Register1Wire/RegisterMqtt output (and hence the rebuilt route
// table) is identical across repeated calls. An empty list (zero LST lines)
// is well-formed and leaves every slot as it was.
func (b *Bus) Populate(items []List3Item) TwoWay {
	var out TwoWay
	seen := make(map[int]bool, len(items))

	for _, item := range items {
		slot, err := busID2Slot(item.BusID)
		if err != nil {
			continue
		}
		seen[slot] = true

		serial := item.Serno
		existing := b.devices[slot]
		if existing != nil && existing.Info().Serial == serial && serial != "" {
			out.Append(existing.SetStatus(item.Status))
			continue
		}

		info := DeviceInfo{
			Contno: b.Contno,
			BusID:  item.BusID,
			Serial: serial,
			Artno:  item.Artno,
			Name:   item.Name,
			Status: item.Status,
		}
		dev := b.newDeviceForArticle(info)
		b.devices[slot] = dev
		out.Append(dev.Init())
		out.Append(dev.Announce())
	}

	b.reindex()
	return out
}

// reindex rebuilds the bus-address → slot map from the currently installed
// devices.
func (b *Bus) reindex() {
	b.addrIdx = make(map[string]int)
	for slot, dev := range b.devices {
		if dev == nil {
			continue
		}
		for _, addr := range dev.Register1Wire() {
			b.addrIdx[addr] = slot
		}
	}
}

// Handle1Wire dispatches one parsed controller Response.
// The caller additionally passes a Router so LST3 enumeration can rebuild
// the per-bus MQTT routes.
func (b *Bus) Handle1Wire(resp Response, routes *Router) TwoWay {
	switch resp.Kind {
	case RespCSI:
		return b.SetController(resp.CSI)

	case RespList3:
		var out TwoWay
		out.Append(b.Populate(resp.List3))
		routes.Clear(b.Contno)
		for slot, dev := range b.devices {
			if dev == nil {
				continue
			}
			if _, unknown := dev.(*Unknown); unknown {
				continue
			}
			for _, tt := range dev.RegisterMqtt() {
				if sub := routes.Register(tt.Topic, Locator{Contno: b.Contno, Slot: slot}, tt.Token); sub != nil {
					out.Mqtt = append(out.Mqtt, *sub)
				}
			}
		}
		return out

	case RespDIO:
		if ctrl, ok := b.devices[0].(*Controller2); ok {
			ctrl.SetDIO(resp.DIO)
		}
		return TwoWay{}

	case RespDevstatus:
		slot, ok := b.addrIdx[resp.Devstatus.Addr]
		if !ok {
			return TwoWay{}
		}
		dev := b.devices[slot]
		if dev == nil {
			return TwoWay{}
		}
		return dev.Handle1Wire(resp.Devstatus.Addr, resp.Devstatus.Value)

	case RespOWDStatus:
		slot := resp.OWDStatus.Device
		if slot < 1 || slot >= BusMax {
			return TwoWay{}
		}
		dev := b.devices[slot]
		if dev == nil {
			return TwoWay{}
		}
		return dev.SetStatus(resp.OWDStatus.Status)

	case RespKeepalive, RespInfo, RespEvent, RespErr, RespDataprint, RespDatatime, RespDate, RespTime:
		return TwoWay{}

	default:
		return TwoWay{}
	}
}

// DeviceAt returns the device installed in the given slot, or nil.
func (b *Bus) DeviceAt(slot int) Device {
	if slot < 0 || slot >= BusMax {
		return nil
	}
	return b.devices[slot]
}

// Format renders a human-readable multi-line listing for startup logs.
func (b *Bus) Format() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "controller %d:\n", b.Contno)
	for slot, dev := range b.devices {
		if dev == nil {
			continue
		}
		info := dev.Info()
		name := info.BusID
		if info.Name != "" {
			name = fmt.Sprintf("%s (%s)", info.BusID, info.Name)
		}
		fmt.Fprintf(&sb, "  [%2d] %-20s serial=%-20s status=%s\n", slot, name, info.Serial, info.Status)
	}
	return sb.String()
}
