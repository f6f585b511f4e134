// esera-hvac runs one or more virtual thermostats, driven entirely by MQTT
// sensor/state topics rather than a controller bus.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/esera-bridge/bridge/internal/cliopts"
	"github.com/esera-bridge/bridge/internal/esera"
	"github.com/esera-bridge/bridge/internal/hvac"
	"github.com/esera-bridge/bridge/internal/logging"
	"github.com/esera-bridge/bridge/internal/mqttsession"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	fmt.Printf("esera-hvac %s (%s)\n", version, commit)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "esera-hvac: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	mqtt, _, positional, err := cliopts.Parse("esera-hvac", cliopts.Args(), false)
	if err != nil {
		return err
	}
	if len(positional) != 1 {
		return fmt.Errorf("usage: esera-hvac [flags] CONFIG.toml")
	}

	logger := logging.New(logging.Config{Level: "info", Format: "json", Output: "stdout"}, "esera-hvac", version)

	confs, err := hvac.ReadConfig(positional[0])
	if err != nil {
		return err
	}

	// Deterministic iteration order for the synthetic Locator.Slot index
	// assigned to each unit, so log output and tests are reproducible.
	names := make([]string, 0, len(confs))
	for name := range confs {
		names = append(names, name)
	}
	sort.Strings(names)

	units := make([]*hvac.Climate, len(names))
	for i, name := range names {
		units[i] = hvac.New(name, confs[name])
	}

	routes := esera.NewRouter()
	var subscribes []esera.MqttMsg
	for i, unit := range units {
		loc := esera.Locator{Contno: 0, Slot: i}
		for _, tt := range unit.RegisterMqtt() {
			if msg := routes.Register(tt.Topic, loc, tt.Token); msg != nil {
				subscribes = append(subscribes, *msg)
			}
		}
	}

	sess, err := mqttsession.Open(mqtt.Host, mqtt.Cred, hvac.StatusTopic, logger)
	if err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	defer sess.Close()

	for _, s := range subscribes {
		if err := sess.Send(s); err != nil {
			logger.Warn("subscribe failed", "topic", s.Topic, "error", err)
		}
	}
	for _, unit := range units {
		sendTwoWay(sess, logger, unit.Announce())
		sendTwoWay(sess, logger, unit.Eval())
	}

	logger.Info("esera-hvac starting", "units", names, "mqtt_host", mqtt.Host)

	for {
		select {
		case <-ctx.Done():
			logger.Info("esera-hvac stopped")
			return nil

		case msg, ok := <-sess.Inbound():
			if !ok {
				return fmt.Errorf("mqtt inbound channel closed")
			}
			handleMqtt(sess, logger, routes, units, msg)
		}
	}
}

func handleMqtt(sess *mqttsession.Session, logger *logging.Logger, routes *esera.Router, units []*hvac.Climate, msg esera.MqttMsg) {
	if msg.Kind == esera.MqttReconnected {
		for _, s := range routes.Subscriptions() {
			if err := sess.Send(s); err != nil {
				logger.Warn("subscribe replay failed", "topic", s.Topic, "error", err)
			}
		}
		return
	}
	if msg.Kind != esera.MqttPublish {
		return
	}

	recipients := routes.Lookup(msg.Topic)
	if len(recipients) == 0 {
		logger.Warn("no route for topic", "topic", msg.Topic)
		return
	}
	for _, r := range recipients {
		if r.Locator.Slot < 0 || r.Locator.Slot >= len(units) {
			continue
		}
		two := units[r.Locator.Slot].HandleMqtt(r.Token, msg.Payload)
		sendTwoWay(sess, logger, two)
	}
}

func sendTwoWay(sess *mqttsession.Session, logger *logging.Logger, two esera.TwoWay) {
	for _, m := range two.Mqtt {
		if err := sess.Send(m); err != nil {
			logger.Warn("mqtt send failed", "topic", m.Topic, "error", err)
		}
	}
}
