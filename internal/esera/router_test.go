package esera

import "testing"

func TestRouterRegisterReturnsSubscribeOnlyOnFirstTopic(t *testing.T) {
	r := NewRouter()
	loc := Locator{Contno: 1, Slot: 2}

	msg := r.Register("ESERA/1/OWD2/set/ch1", loc, 1)
	if msg == nil {
		t.Fatal("first Register() returned nil, want a Subscribe message")
	}
	if msg.Kind != MqttSubscribe || msg.Topic != "ESERA/1/OWD2/set/ch1" {
		t.Errorf("msg = %+v", msg)
	}

	msg2 := r.Register("ESERA/1/OWD2/set/ch1", Locator{Contno: 1, Slot: 3}, 2)
	if msg2 != nil {
		t.Errorf("second Register() on same topic = %+v, want nil", msg2)
	}
}

func TestRouterLookupExactMatch(t *testing.T) {
	r := NewRouter()
	loc := Locator{Contno: 1, Slot: 5}
	r.Register("ESERA/1/OWD5/set/ch1", loc, 7)

	got := r.Lookup("ESERA/1/OWD5/set/ch1")
	if len(got) != 1 || got[0].Locator != loc || got[0].Token != 7 {
		t.Errorf("Lookup() = %+v", got)
	}
	if len(r.Lookup("ESERA/1/OWD5/set/ch2")) != 0 {
		t.Error("Lookup() matched an unrelated topic")
	}
}

func TestRouterLookupWildcards(t *testing.T) {
	r := NewRouter()
	plusLoc := Locator{Contno: 1, Slot: 1}
	hashLoc := Locator{Contno: 1, Slot: 2}
	r.Register("homeassistant/+/1/config", plusLoc, 1)
	r.Register("homeassistant/sensor/#", hashLoc, 2)

	got := r.Lookup("homeassistant/switch/1/config")
	if len(got) != 1 || got[0].Locator != plusLoc {
		t.Errorf("plus-wildcard Lookup() = %+v", got)
	}

	got = r.Lookup("homeassistant/sensor/1/deep/config")
	if len(got) != 1 || got[0].Locator != hashLoc {
		t.Errorf("hash-wildcard Lookup() = %+v", got)
	}
}

func TestRouterSubscriptionsOnePerDistinctTopic(t *testing.T) {
	r := NewRouter()
	r.Register("a/b", Locator{Contno: 1, Slot: 1}, 1)
	r.Register("a/b", Locator{Contno: 1, Slot: 2}, 2)
	r.Register("c/d", Locator{Contno: 1, Slot: 1}, 3)

	subs := r.Subscriptions()
	if len(subs) != 2 {
		t.Fatalf("Subscriptions() = %d, want 2", len(subs))
	}
	topics := map[string]bool{}
	for _, s := range subs {
		topics[s.Topic] = true
	}
	if !topics["a/b"] || !topics["c/d"] {
		t.Errorf("Subscriptions() = %+v", subs)
	}
}

func TestRouterClearDropsOnlyGivenContno(t *testing.T) {
	r := NewRouter()
	r.Register("a/b", Locator{Contno: 1, Slot: 1}, 1)
	r.Register("a/b", Locator{Contno: 2, Slot: 1}, 1)

	r.Clear(1)

	got := r.Lookup("a/b")
	if len(got) != 1 || got[0].Locator.Contno != 2 {
		t.Errorf("after Clear(1), Lookup() = %+v, want only contno 2 left", got)
	}
}
