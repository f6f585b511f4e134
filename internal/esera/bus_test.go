package esera

import "testing"

func TestBusSetControllerInstallsSlotZero(t *testing.T) {
	b := NewBus(1, BusConfig{})
	b.SetController(CSI{Contno: 1, Serno: "CTRL1", Artno: "11340"})

	dev := b.DeviceAt(0)
	if dev == nil {
		t.Fatal("slot 0 is empty after SetController")
	}
	if dev.Info().BusID != "SYS" {
		t.Errorf("BusID = %q, want SYS", dev.Info().BusID)
	}
}

func TestBusPopulateSelectsVariantByArticle(t *testing.T) {
	b := NewBus(1, BusConfig{})
	items := []List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"}, // Switch8
		{Contno: 1, BusID: "OWD2", Serno: "s2", Status: StatusOnline, Artno: "11150"}, // TempHum
		{Contno: 1, BusID: "OWD3", Serno: "s3", Status: StatusOnline, Artno: "99999"}, // Unknown
	}
	b.Populate(items)

	if _, ok := b.DeviceAt(1).(*Switch8); !ok {
		t.Errorf("slot 1 = %T, want *Switch8", b.DeviceAt(1))
	}
	if _, ok := b.DeviceAt(2).(*TempHum); !ok {
		t.Errorf("slot 2 = %T, want *TempHum", b.DeviceAt(2))
	}
	if _, ok := b.DeviceAt(3).(*Unknown); !ok {
		t.Errorf("slot 3 = %T, want *Unknown", b.DeviceAt(3))
	}
}

func TestBusPopulateSelectsShutterWhenConfigured(t *testing.T) {
	cfg := BusConfig{Shutters: map[string]ShutterTravel{"Blind A": DefaultShutterTravel}}
	b := NewBus(1, cfg)
	items := []List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220", Name: "Blind A"},
	}
	b.Populate(items)

	if _, ok := b.DeviceAt(1).(*Shutter); !ok {
		t.Errorf("slot 1 = %T, want *Shutter (matched by configured name)", b.DeviceAt(1))
	}
}

func TestBusPopulateIsIdempotentOnUnchangedSerial(t *testing.T) {
	b := NewBus(1, BusConfig{})
	items := []List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"},
	}
	b.Populate(items)
	first := b.DeviceAt(1)

	b.Populate(items)
	second := b.DeviceAt(1)

	if first != second {
		t.Error("Populate() replaced a slot whose serial did not change")
	}
}

func TestBusPopulateReplacesSlotOnSerialChange(t *testing.T) {
	b := NewBus(1, BusConfig{})
	b.Populate([]List3Item{{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"}})
	first := b.DeviceAt(1)

	b.Populate([]List3Item{{Contno: 1, BusID: "OWD1", Serno: "s2", Status: StatusOnline, Artno: "11220"}})
	second := b.DeviceAt(1)

	if first == second {
		t.Error("Populate() kept the old device despite a changed serial")
	}
}

func TestBusPopulateEmptyListIsNoOp(t *testing.T) {
	b := NewBus(1, BusConfig{})
	out := b.Populate(nil)
	if !out.Empty() {
		t.Errorf("Populate(nil) = %+v, want empty TwoWay", out)
	}
}

func TestBusHandle1WireDevstatusRoutesToSlot(t *testing.T) {
	b := NewBus(1, BusConfig{})
	b.Populate([]List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"},
	})

	resp := Response{Kind: RespDevstatus, Contno: 1, Devstatus: Devstatus{Addr: "OWD1_1", Value: 0b1}}
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)
	if two.Empty() {
		t.Error("expected output for a known devstatus address")
	}
}

func TestBusHandle1WireUnknownAddrIsIgnored(t *testing.T) {
	b := NewBus(1, BusConfig{})
	resp := Response{Kind: RespDevstatus, Contno: 1, Devstatus: Devstatus{Addr: "OWD9_1", Value: 1}}
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)
	if !two.Empty() {
		t.Errorf("expected no output for unknown address, got %+v", two)
	}
}

func TestBusHandle1WireOWDStatusUpdatesDeviceStatus(t *testing.T) {
	b := NewBus(1, BusConfig{})
	b.Populate([]List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"},
	})

	resp := Response{Kind: RespOWDStatus, Contno: 1, OWDStatus: OWDStatus{Contno: 1, Device: 1, Status: StatusErr2}}
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)
	if two.Empty() {
		t.Fatal("expected a retained status publish for a known device")
	}

	dev := b.DeviceAt(1)
	if dev == nil || dev.Info().Status != StatusErr2 {
		t.Errorf("device status = %+v, want StatusErr2", dev.Info())
	}
}

func TestBusHandle1WireOWDStatusUnknownSlotIsIgnored(t *testing.T) {
	b := NewBus(1, BusConfig{})
	resp := Response{Kind: RespOWDStatus, Contno: 1, OWDStatus: OWDStatus{Contno: 1, Device: 9, Status: StatusOffline}}
	routes := NewRouter()
	two := b.Handle1Wire(resp, routes)
	if !two.Empty() {
		t.Errorf("expected no output for an unoccupied slot, got %+v", two)
	}
}

func TestBusHandle1WireList3RebuildsRoutes(t *testing.T) {
	b := NewBus(1, BusConfig{})
	routes := NewRouter()
	resp := Response{Kind: RespList3, Contno: 1, List3: []List3Item{
		{Contno: 1, BusID: "OWD1", Serno: "s1", Status: StatusOnline, Artno: "11220"},
	}}
	b.Handle1Wire(resp, routes)

	subs := routes.Subscriptions()
	if len(subs) == 0 {
		t.Error("Handle1Wire(LST3) did not register any MQTT routes")
	}
}
