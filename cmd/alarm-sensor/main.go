// Command alarm-sensor watches the LEDs of an alarm panel through light
// sensors, classifies each one as off, blinking or steady, mirrors the result
// on local indicator outputs and reports changes to MQTT.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/cobra"

	"github.com/alarm-monitor/alarm-sensor/internal/config"
)

var (
	configPath string
	logLevel   string
	logJSON    bool
	brokerFlag string
	storeFlag  string
	httpAddr   string
	poll       time.Duration
	interval   time.Duration
	heartbeat  time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "alarm-sensor",
	Short: "Alarm panel LED monitor",
	Long: `alarm-sensor samples the light sensors fixed over an alarm panel's LEDs,
resolves every LED to OFF, BLINKING or STEADY once per window and publishes
each change to MQTT.`,
	SilenceUsage: true,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configPath, "config", "c", "", "YAML configuration file (defaults to the reference hardware)")
	pf.StringVar(&logLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	pf.BoolVar(&logJSON, "log-json", false, "Log as JSON")
	pf.StringVar(&brokerFlag, "broker", "", "MQTT broker address")
	pf.StringVar(&storeFlag, "store", "", "Threshold database path")
	pf.StringVar(&httpAddr, "http", "", "HTTP status address (empty to disable)")
	pf.DurationVar(&poll, "poll", 0, "Sampling period")
	pf.DurationVar(&interval, "interval", 0, "Observation window length")
	pf.DurationVar(&heartbeat, "heartbeat", 0, "Heartbeat interval (0 to disable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the configuration file and applies every flag the user
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = logLevel
	}
	if flags.Changed("log-json") {
		cfg.Log.JSON = logJSON
	}
	if flags.Changed("broker") {
		cfg.MQTT.Broker = brokerFlag
	}
	if flags.Changed("store") {
		cfg.Store.Path = storeFlag
	}
	if flags.Changed("http") {
		cfg.HTTP.Addr = httpAddr
	}
	if flags.Changed("poll") {
		cfg.Sampling.PollMs = int(poll / time.Millisecond)
	}
	if flags.Changed("interval") {
		cfg.Sampling.IntervalMs = int(interval / time.Millisecond)
	}
	if flags.Changed("heartbeat") {
		cfg.Sampling.HeartbeatMs = int(heartbeat / time.Millisecond)
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

func newLogger(cfg config.LogConfig) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:       "alarm-sensor",
		Level:      hclog.LevelFromString(cfg.Level),
		JSONFormat: cfg.JSON,
		Output:     os.Stderr,
	})
}
