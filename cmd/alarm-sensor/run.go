package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/config"
	"github.com/alarm-monitor/alarm-sensor/internal/gpio"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/metrics"
	"github.com/alarm-monitor/alarm-sensor/internal/mqtt"
	"github.com/alarm-monitor/alarm-sensor/internal/status"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
	"github.com/alarm-monitor/alarm-sensor/internal/web"
)

// commandQueue is the number of threshold commands that may wait for the loop.
const commandQueue = 16

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the monitoring daemon",
	Args:  cobra.NoArgs,
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return run(cfg, newLogger(cfg.Log))
}

// openSource opens the analog driver selected in the configuration.
func openSource(cfg *config.Config) (analog.Source, error) {
	switch cfg.Analog.Driver {
	case analog.DriverModbus:
		src, err := analog.NewModbusSource(cfg.ModbusSource())
		if err != nil {
			return nil, fmt.Errorf("init modbus: %w", err)
		}
		return src, nil
	default:
		src, err := analog.NewIIOSource(cfg.Analog.IIO.Device, cfg.Analog.FullScale)
		if err != nil {
			return nil, fmt.Errorf("init iio: %w", err)
		}
		return src, nil
	}
}

func run(cfg *config.Config, logger hclog.Logger) error {
	// Initialize analog input
	source, err := openSource(cfg)
	if err != nil {
		return err
	}
	defer source.Close()

	// Initialize indicator outputs and run the lamp test
	writer, err := gpio.NewRealWriter(cfg.GPIO.Chip, cfg.GPIOOutputs())
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer writer.Close()

	if err := gpio.LampTest(writer, cfg.LampTestStep(), time.Sleep); err != nil {
		logger.Named("gpio").Warn("lamp test failed", "error", err)
	}

	// Restore thresholds
	st, err := store.OpenSQLite(cfg.Store.Path, logger.Named("store"))
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	defer st.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	stored, err := store.LoadAll(ctx, st, cfg.ChannelIDs())
	cancel()
	if err != nil {
		logger.Named("store").Warn("cannot restore thresholds, using defaults", "error", err)
		stored = nil
	}

	start := time.Now()
	detector := logic.NewDetector(cfg.ChannelSpecs(), cfg.Thresholds(stored), cfg.DetectorOptions(source.FullScale()), start)

	// Initialize MQTT. Commands arrive on the paho goroutine and are handed
	// to the loop, which owns the detector.
	cmds := make(chan mqtt.ThresholdCommand, commandQueue)
	mqttLogger := logger.Named("mqtt")
	publisher, err := mqtt.NewRealPublisher(mqtt.Options{
		Broker:     cfg.MQTT.Broker,
		ClientID:   cfg.MQTT.ClientID,
		Username:   cfg.MQTT.Username,
		Password:   cfg.MQTT.Password,
		Prefix:     cfg.MQTT.TopicPrefix,
		BufferSize: cfg.MQTT.Buffer,
		OnThreshold: func(c mqtt.ThresholdCommand) {
			select {
			case cmds <- c:
			default:
				mqttLogger.Warn("threshold command queue full, dropping", "channel", c.Channel)
			}
		},
		Logger: mqttLogger,
	})
	if err != nil {
		return fmt.Errorf("init mqtt: %w", err)
	}
	defer publisher.Close()

	m := metrics.New()

	// Initialize status tracker (before STARTUP so snapshot is available)
	tracker := status.NewTracker(start, status.Config{
		PollMs:       cfg.Poll().Milliseconds(),
		IntervalMs:   cfg.Interval().Milliseconds(),
		HeartbeatMs:  cfg.Heartbeat().Milliseconds(),
		BlinkEdges:   cfg.Sampling.BlinkEdges,
		Broker:       cfg.MQTT.Broker,
		TopicPrefix:  cfg.MQTT.TopicPrefix,
		HTTPAddr:     cfg.HTTP.Addr,
		AnalogDriver: cfg.Analog.Driver,
	})
	tracker.Update(detector.Channels(), false, detector.ReportCounts())
	tracker.SetMQTTConnected(publisher.IsConnected())
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m.ObserveChannels(detector.Channels())

	// Publish startup event with full status snapshot
	snap := tracker.Snapshot()
	startupEvent := mqtt.SystemEvent{
		Timestamp:  snap.Now,
		Event:      "STARTUP",
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "STARTUP", ""),
	}
	if err := publisher.PublishSystem(startupEvent); err != nil {
		mqttLogger.Error("failed to publish startup event", "error", err)
	} else {
		mqttLogger.Info("published startup event")
	}

	// Start HTTP status server
	if cfg.HTTP.Addr != "" {
		webLogger := logger.Named("web")
		srv := web.New(cfg.HTTP.Addr, tracker, m, webLogger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				webLogger.Error("http server error", "error", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		webLogger.Info("http status server listening", "addr", cfg.HTTP.Addr)
	}

	logger.Info("started",
		"channels", detector.Len(),
		"poll", cfg.Poll(),
		"interval", cfg.Interval(),
		"blink_edges", cfg.Sampling.BlinkEdges,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat(),
		"analog", cfg.Analog.Driver)

	ticker := time.NewTicker(cfg.Poll())
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	l := &loop{
		source:     source,
		inputs:     cfg.Inputs(),
		writer:     writer,
		publisher:  publisher,
		mqttStatus: publisher,
		store:      st,
		tracker:    tracker,
		metrics:    m,
		detector:   detector,
		heartbeat:  cfg.Heartbeat(),
		logger:     logger,
	}
	return runLoop(l, time.Now, ticker.C, cmds, sigCh)
}
