package esera

import (
	"strconv"
	"strings"
	"time"
)

// ParseShutterEnv builds a per-controller BusConfig from environment
// variables named `SHUTTER_<contno>_<name>_<OPEN|CLOSE>_TIME` (seconds),
// turning a per-call environment lookup into explicit,
// construction-time configuration. A value that does not parse as a number
// is ignored: that direction keeps DefaultShutterTravel's value when the
// shutter's other direction is set, and a shutter none of whose values
// parse is not configured at all.
func ParseShutterEnv(environ []string) map[uint8]BusConfig {
	out := make(map[uint8]BusConfig)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		contno, name, dir, ok := parseShutterKey(key)
		if !ok {
			continue
		}
		secs, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			continue
		}

		cfg, ok := out[contno]
		if !ok {
			cfg = BusConfig{Shutters: make(map[string]ShutterTravel)}
		}
		travel, ok := cfg.Shutters[name]
		if !ok {
			travel = DefaultShutterTravel
		}
		d := time.Duration(secs * float64(time.Second))
		switch dir {
		case "OPEN":
			travel.Open = d
		case "CLOSE":
			travel.Close = d
		}
		cfg.Shutters[name] = travel
		out[contno] = cfg
	}
	return out
}

// parseShutterKey splits "SHUTTER_<contno>_<name>_<OPEN|CLOSE>_TIME" into
// its parts. name may itself contain underscores, so the contno and
// direction/suffix are stripped from the ends and whatever remains is the
// name.
func parseShutterKey(key string) (contno uint8, name string, dir string, ok bool) {
	const prefix = "SHUTTER_"
	const suffix = "_TIME"
	if !strings.HasPrefix(key, prefix) || !strings.HasSuffix(key, suffix) {
		return 0, "", "", false
	}
	body := key[len(prefix) : len(key)-len(suffix)]

	firstSep := strings.IndexByte(body, '_')
	if firstSep < 0 {
		return 0, "", "", false
	}
	n, err := strconv.ParseUint(body[:firstSep], 10, 8)
	if err != nil {
		return 0, "", "", false
	}
	rest := body[firstSep+1:]

	lastSep := strings.LastIndexByte(rest, '_')
	if lastSep < 0 {
		return 0, "", "", false
	}
	direction := rest[lastSep+1:]
	if direction != "OPEN" && direction != "CLOSE" {
		return 0, "", "", false
	}
	return uint8(n), rest[:lastSep], direction, true
}
