// Package hvac implements the virtual thermostat device: a unit built
// entirely out of MQTT inputs/outputs (not an esera.Device), with its own TOML
// configuration file (one entry per synthesised unit).
// Each unit gets a synthetic Locator{Contno: 0, Slot: index} so it can
// reuse esera.Router for MQTT dispatch like every physical device.
package hvac

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Conf is one thermostat unit's configuration: the MQTT topics it wires
// together, one row per configured unit.
type Conf struct {
	HeatState string  `toml:"heat_state"`
	HeatCmnd  string  `toml:"heat_cmnd"`
	AuxState  string  `toml:"aux_state"`
	AuxCmnd   string  `toml:"aux_cmnd"`
	Temp      string  `toml:"temp"`
	Dew       string  `toml:"dew"`
	Offset    float64 `toml:"offset"`
}

// ReadConfig parses a TOML file mapping unit name to Conf. An unreadable
// or malformed file is a fatal configuration error at startup.
func ReadConfig(path string) (map[string]Conf, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("hvac: read config %q: %w", path, err)
	}
	var cfg map[string]Conf
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("hvac: parse config %q: %w", path, err)
	}
	if cfg == nil {
		cfg = make(map[string]Conf)
	}
	return cfg, nil
}
