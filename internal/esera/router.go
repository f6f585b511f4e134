package esera

import "strings"

// Locator addresses one device slot within the process: a bus (by
// controller number) and a slot index within it. The Router stores only
// these plus a token — no back-pointers into the Bus exist.
type Locator struct {
	Contno uint8
	Slot   int
}

// Recipient is one registered (locator, token) pair a topic resolves to.
type Recipient struct {
	Locator Locator
	Token   int
}

// Router maps MQTT topic patterns (exact or broker-wildcard) to the
// recipients that should be notified of a matching publish.
type Router struct {
	byPattern map[string][]Recipient
}

// NewRouter constructs an empty Router.
func NewRouter() *Router {
	return &Router{byPattern: make(map[string][]Recipient)}
}

// Register appends (locator, token) under pattern. If pattern was not
// previously registered, it returns a Subscribe message for the caller to
// forward to the broker; otherwise it returns nil.
func (r *Router) Register(pattern string, loc Locator, token int) *MqttMsg {
	_, known := r.byPattern[pattern]
	r.byPattern[pattern] = append(r.byPattern[pattern], Recipient{Locator: loc, Token: token})
	if known {
		return nil
	}
	msg := Subscribe(pattern)
	return &msg
}

// Lookup returns every recipient whose registered pattern matches topic,
// using MQTT broker wildcard semantics (+ single-level, # multi-level
// trailing).
func (r *Router) Lookup(topic string) []Recipient {
	var out []Recipient
	for pattern, recips := range r.byPattern {
		if topicMatches(pattern, topic) {
			out = append(out, recips...)
		}
	}
	return out
}

// Subscriptions produces one Subscribe message per distinct registered
// pattern, used to replay subscriptions after an MQTT reconnect.
func (r *Router) Subscriptions() []MqttMsg {
	out := make([]MqttMsg, 0, len(r.byPattern))
	for pattern := range r.byPattern {
		out = append(out, Subscribe(pattern))
	}
	return out
}

// Clear drops every registration belonging to the given controller, ahead
// of a fresh LST3 enumeration rebuilding that bus's routes.
func (r *Router) Clear(contno uint8) {
	for pattern, recips := range r.byPattern {
		kept := recips[:0]
		for _, rc := range recips {
			if rc.Locator.Contno != contno {
				kept = append(kept, rc)
			}
		}
		if len(kept) == 0 {
			delete(r.byPattern, pattern)
		} else {
			r.byPattern[pattern] = kept
		}
	}
}

// topicMatches implements MQTT wildcard matching of pattern against a
// concrete topic: '+' matches exactly one level, a trailing '#' matches
// zero or more trailing levels.
func topicMatches(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
	pLevels := strings.Split(pattern, "/")
	tLevels := strings.Split(topic, "/")

	for i, p := range pLevels {
		if p == "#" {
			return i == len(pLevels)-1
		}
		if i >= len(tLevels) {
			return false
		}
		if p != "+" && p != tLevels[i] {
			return false
		}
	}
	return len(pLevels) == len(tLevels)
}
