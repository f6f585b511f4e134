// Package cliopts holds the CLI flag parsing shared by both binaries
// (the bridge and HVAC command-line surfaces), grounded on
// rustyeddy-otto/cmd's pflag-based flag registration shape.
package cliopts

import (
	"os"

	"github.com/spf13/pflag"
)

// MQTT holds the broker connection flags every binary accepts, with
// MQTT_HOST/MQTT_CRED environment overrides taking precedence over the
// flag defaults but not over an explicitly passed flag.
type MQTT struct {
	Host string
	Cred string
}

// DefaultPort is the bridge binary's controller port default.
const DefaultPort uint16 = 5000

// Parse registers and parses the MQTT flags plus, when withDefaultPort is
// true, the bridge's -p/--default-port flag. It returns the parsed
// values and the remaining positional arguments.
func Parse(progName string, args []string, withDefaultPort bool) (mqtt MQTT, defaultPort uint16, positional []string, err error) {
	fs := pflag.NewFlagSet(progName, pflag.ContinueOnError)

	host := fs.StringP("mqtt-host", "H", "localhost", "MQTT broker host[:port]")
	cred := fs.StringP("mqtt-cred", "C", "", "MQTT broker credentials, user:password")

	var port *uint16
	if withDefaultPort {
		port = fs.Uint16P("default-port", "p", DefaultPort, "default controller port when none is given")
	}

	if err := fs.Parse(args); err != nil {
		return MQTT{}, 0, nil, err
	}

	mqtt.Host = *host
	mqtt.Cred = *cred
	if v := os.Getenv("MQTT_HOST"); v != "" && !fs.Changed("mqtt-host") {
		mqtt.Host = v
	}
	if v := os.Getenv("MQTT_CRED"); v != "" && !fs.Changed("mqtt-cred") {
		mqtt.Cred = v
	}

	if withDefaultPort {
		defaultPort = *port
	}
	return mqtt, defaultPort, fs.Args(), nil
}

// Args returns os.Args[1:], split out so main() stays a one-liner and tests
// can call Parse directly with a literal slice.
func Args() []string {
	return os.Args[1:]
}
