package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/alarm-monitor/alarm-sensor/internal/config"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/mqtt"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
)

var thresholdsCmd = &cobra.Command{
	Use:   "thresholds",
	Short: "List the stored channel thresholds",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := store.OpenSQLite(cfg.Store.Path, nil)
		if err != nil {
			return err
		}
		defer st.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Second)
		defer cancel()
		stored, err := st.All(ctx)
		if err != nil {
			return err
		}
		return printThresholds(cmd.OutOrStdout(), cfg, stored)
	},
}

var setThresholdCmd = &cobra.Command{
	Use:   "set-threshold CHANNEL VALUE",
	Short: "Send a threshold to the running daemon over MQTT",
	Long: `Publishes a threshold command for one channel. The running daemon clamps
the value to 0..99, applies it and stores it.

Example:
  alarm-sensor set-threshold 2 55`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		c, err := parseSetThresholdArgs(cfg, args)
		if err != nil {
			return err
		}
		if v := logic.ClampThreshold(c.Threshold); v != c.Threshold {
			fmt.Fprintf(cmd.ErrOrStderr(), "threshold %d will be clamped to %d\n", c.Threshold, v)
		}

		err = mqtt.SendThreshold(mqtt.Options{
			Broker:   cfg.MQTT.Broker,
			ClientID: cfg.MQTT.ClientID + "-cli",
			Username: cfg.MQTT.Username,
			Password: cfg.MQTT.Password,
			Prefix:   cfg.MQTT.TopicPrefix,
		}, c)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent threshold %d for channel %d to %s\n", c.Threshold, c.Channel, mqtt.NewTopics(cfg.MQTT.TopicPrefix).Threshold(c.Channel))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(thresholdsCmd, setThresholdCmd)
}

func parseSetThresholdArgs(cfg *config.Config, args []string) (mqtt.ThresholdCommand, error) {
	if len(args) != 2 {
		return mqtt.ThresholdCommand{}, fmt.Errorf("requires CHANNEL and VALUE")
	}
	ch, err := strconv.Atoi(args[0])
	if err != nil {
		return mqtt.ThresholdCommand{}, fmt.Errorf("channel %q: %w", args[0], err)
	}
	if ch < 0 || ch >= len(cfg.Channels) {
		return mqtt.ThresholdCommand{}, fmt.Errorf("channel %d: want 0..%d", ch, len(cfg.Channels)-1)
	}
	v, err := strconv.Atoi(args[1])
	if err != nil {
		return mqtt.ThresholdCommand{}, fmt.Errorf("threshold %q: %w", args[1], err)
	}
	return mqtt.ThresholdCommand{Channel: ch, Threshold: v}, nil
}

// printThresholds lists every configured channel with the threshold it
// starts with and where that value comes from.
func printThresholds(w io.Writer, cfg *config.Config, stored map[int]int) error {
	effective := cfg.Thresholds(stored)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tTHRESHOLD\tSOURCE")
	for _, ch := range cfg.Channels {
		source := "default"
		if _, ok := stored[ch.ID]; ok {
			source = "stored"
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", ch.ID, ch.Name, effective[ch.ID], source)
	}

	// Rows left behind by a larger channel table.
	for _, id := range store.SortedChannels(stored) {
		if id >= len(cfg.Channels) {
			fmt.Fprintf(tw, "%d\t-\t%d\tstored (unused)\n", id, stored[id])
		}
	}
	return tw.Flush()
}
