// Command home-bridge synchronizes a GPIO light and DHT22 sensor with
// an MQTT broker.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/sweeney/home-bridge/internal/bridge"
	"github.com/sweeney/home-bridge/internal/config"
	"github.com/sweeney/home-bridge/internal/device"
	"github.com/sweeney/home-bridge/internal/gpio"
	"github.com/sweeney/home-bridge/internal/logging"
	"github.com/sweeney/home-bridge/internal/mqtt"
	"github.com/sweeney/home-bridge/internal/sensor"
	"github.com/sweeney/home-bridge/internal/status"
	"github.com/sweeney/home-bridge/internal/web"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to YAML config file")
	envFile := flag.String("env", ".env", "Path to .env file (missing file is not an error)")
	printState := flag.Bool("print-state", false, "Print light level and one sensor reading, then exit")
	flag.Parse()

	if err := run(*configPath, *envFile, *printState); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}

func run(configPath, envFile string, printState bool) error {
	// .env is optional; environment overrides still apply without it.
	if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("loading env file: %w", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := logging.New(cfg.Logging, version)

	port, err := gpio.NewRealPort(cfg.GPIO.LightPin, cfg.GPIO.SensorPin)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer port.Close()

	if printState {
		return runPrintState(port)
	}

	topics := mqtt.Topics{Base: cfg.Bridge.BaseTopic}

	tlsConf, err := mqtt.NewTLSConfig(cfg.MQTT.TLS.CACert, cfg.MQTT.TLS.Cert, cfg.MQTT.TLS.Key)
	if err != nil {
		return fmt.Errorf("loading TLS material: %w", err)
	}

	session := mqtt.NewRealSession(mqtt.Config{
		BrokerURL:     cfg.BrokerURL(),
		ClientID:      cfg.MQTT.Broker.ClientID,
		Username:      cfg.MQTT.Auth.Username,
		Password:      cfg.MQTT.Auth.Password,
		TLS:           tlsConf,
		BackoffBase:   cfg.BackoffBase(),
		BackoffCap:    cfg.BackoffCap(),
		MaxAttempts:   uint32(cfg.MQTT.Reconnect.MaxAttempts),
		Subscriptions: []string{topics.LightSet(), topics.LightState()},
		StatusTopic:   topics.BridgeStatus(),
	}, logger.With("component", "mqtt"))

	controller := device.NewController("light", port)
	poller := sensor.New("dht22", port, cfg.PollInterval(), logger.With("component", "sensor"))

	tracker := status.NewTracker(time.Now(), status.Config{
		Broker:      cfg.BrokerURL(),
		BaseTopic:   cfg.Bridge.BaseTopic,
		PollSeconds: int64(cfg.Bridge.PollInterval),
		LightPin:    cfg.GPIO.LightPin,
		SensorPin:   cfg.GPIO.SensorPin,
		HTTPAddr:    cfg.Web.Addr,
		TLS:         tlsConf != nil,
	})

	// Queued while disconnected; the session delivers it right after
	// the first successful connect.
	snap := tracker.Snapshot()
	if err := session.Publish(topics.BridgeStatus(), status.FormatStatusEvent(snap, "STARTUP", ""), true); err != nil {
		logger.Warn("failed to queue startup event", "error", err)
	}

	if cfg.Web.Addr != "" {
		srv := web.New(cfg.Web.Addr, tracker)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		logger.Info("http status server listening", "addr", cfg.Web.Addr)
	}

	engine := bridge.New(session, topics, controller, poller, tracker, logger.With("component", "bridge"), bridge.Options{
		DefaultLevel:     device.Level(cfg.Bridge.DefaultLevel),
		RepublishReading: cfg.Bridge.RepublishReading,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sigCh
		logger.Info("shutting down", "signal", s.String())
		snap := tracker.Snapshot()
		payload := status.FormatStatusEvent(snap, "SHUTDOWN", signalName(s))
		if err := session.Publish(topics.BridgeStatus(), payload, true); err != nil {
			logger.Warn("failed to publish shutdown event", "error", err)
		}
		cancel()
	}()

	logger.Info("started",
		"broker", cfg.BrokerURL(),
		"base_topic", cfg.Bridge.BaseTopic,
		"poll", cfg.PollInterval(),
		"light_pin", cfg.GPIO.LightPin,
		"sensor_pin", cfg.GPIO.SensorPin)

	return engine.Run(ctx)
}

// runPrintState reads the hardware once and prints it, for quick field
// checks without a broker.
func runPrintState(port gpio.Port) error {
	level, err := port.ReadLevel()
	if err != nil {
		return fmt.Errorf("read light: %w", err)
	}
	fmt.Printf("light: %s\n", levelString(level))

	reading, err := port.ReadTemperature()
	if err != nil {
		return fmt.Errorf("read sensor: %w", err)
	}
	fmt.Printf("temperature: %.1f C\nhumidity: %.1f %%\n", reading.Celsius, reading.Humidity)
	return nil
}

func levelString(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	}
	return "UNKNOWN"
}
