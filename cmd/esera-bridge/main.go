// esera-bridge connects one or more ESERA 1-Wire controllers to an MQTT
// broker.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/esera-bridge/bridge/internal/cliopts"
	"github.com/esera-bridge/bridge/internal/esera"
	"github.com/esera-bridge/bridge/internal/logging"
	"github.com/esera-bridge/bridge/internal/mqttsession"
)

// Version information, set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	fmt.Printf("esera-bridge %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "esera-bridge: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	mqtt, defaultPort, hosts, err := cliopts.Parse("esera-bridge", cliopts.Args(), true)
	if err != nil {
		return err
	}
	if len(hosts) == 0 {
		return fmt.Errorf("usage: esera-bridge [flags] HOST[:PORT] ...")
	}

	logger := logging.New(logging.Config{Level: "info", Format: "json", Output: "stdout"}, "esera-bridge", version)

	addresses := make([]string, len(hosts))
	for i, h := range hosts {
		addresses[i] = esera.NormalizeAddress(h, defaultPort)
	}

	const statusTopic = "ESERA/status"
	sess, err := mqttsession.Open(mqtt.Host, mqtt.Cred, statusTopic, logger)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer sess.Close()

	dial := func(ctx context.Context, address string) (*esera.ControllerSession, error) {
		return esera.Open(ctx, address, logger)
	}

	shutters := esera.ParseShutterEnv(os.Environ())
	bridge := esera.NewBridge(addresses, shutters, dial, sess, logger)

	logger.Info("esera-bridge starting", "controllers", addresses, "mqtt_host", mqtt.Host)
	err = bridge.Start(ctx)
	if err != nil && ctx.Err() == nil {
		return err
	}
	logger.Info("esera-bridge stopped")
	return nil
}
