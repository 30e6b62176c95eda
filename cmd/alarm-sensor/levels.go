package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/config"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
)

var (
	traceChannel  int
	traceDuration time.Duration
)

var levelsCmd = &cobra.Command{
	Use:   "levels",
	Short: "Print the current light level of every channel and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		source, err := openSource(cfg)
		if err != nil {
			return err
		}
		defer source.Close()

		return printLevels(cmd.OutOrStdout(), cfg, source, currentThresholds(cfg))
	},
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Sample one channel and plot its light level",
	Long: `Samples one channel at the configured poll rate for the given duration and
plots the light levels. The caption shows the threshold, the number of edges
counted and the status the samples resolve to.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if traceChannel < 0 || traceChannel >= len(cfg.Channels) {
			return fmt.Errorf("channel %d: want 0..%d", traceChannel, len(cfg.Channels)-1)
		}
		source, err := openSource(cfg)
		if err != nil {
			return err
		}
		defer source.Close()

		n := int(traceDuration / cfg.Poll())
		if n < 1 {
			n = 1
		}
		out, err := traceLevels(cfg, source, currentThresholds(cfg), traceChannel, n, func() { time.Sleep(cfg.Poll()) })
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	traceCmd.Flags().IntVar(&traceChannel, "channel", 0, "Channel to trace")
	traceCmd.Flags().DurationVar(&traceDuration, "duration", logic.DefaultInterval, "How long to sample")
	rootCmd.AddCommand(levelsCmd, traceCmd)
}

// currentThresholds returns the thresholds the daemon would start with.
// A missing or unreadable database falls back to the configured defaults.
func currentThresholds(cfg *config.Config) map[int]int {
	var stored map[int]int
	if st, err := store.OpenSQLite(cfg.Store.Path, nil); err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		stored, _ = store.LoadAll(ctx, st, cfg.ChannelIDs())
		cancel()
		st.Close()
	}
	return cfg.Thresholds(stored)
}

// printLevels reads every channel once.
func printLevels(w io.Writer, cfg *config.Config, source analog.Source, thresholds map[int]int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tNAME\tINPUT\tRAW\tLEVEL\tTHRESHOLD\tSIGNAL")

	inputs := cfg.Inputs()
	for i, ch := range cfg.Channels {
		raw, err := source.Read(inputs[i])
		if err != nil {
			fmt.Fprintf(tw, "%d\t%s\t%d\terror: %v\t\t\t\n", ch.ID, ch.Name, inputs[i], err)
			continue
		}
		level := logic.Level(raw, source.FullScale())
		threshold := thresholds[ch.ID]
		signal := logic.SignalHigh
		if level < threshold {
			signal = logic.SignalLow
		}
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%d\t%d\t%s\n", ch.ID, ch.Name, inputs[i], raw, level, threshold, signal)
	}
	return tw.Flush()
}

// traceLevels takes n samples of one channel, calling wait between them, and
// renders the plot. The samples run through a detector so the caption shows
// what the daemon would resolve.
func traceLevels(cfg *config.Config, source analog.Source, thresholds map[int]int, id, n int, wait func()) (string, error) {
	start := time.Now()
	d := logic.NewDetector(cfg.ChannelSpecs(), thresholds, cfg.DetectorOptions(source.FullScale()), start)
	input := cfg.Inputs()[id]

	levels := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		if i > 0 && wait != nil {
			wait()
		}
		raw, err := source.Read(input)
		if err != nil {
			return "", fmt.Errorf("read input %d: %w", input, err)
		}
		d.Sample(id, raw)
		levels = append(levels, float64(logic.Level(raw, source.FullScale())))
	}

	ch := d.Channels()[id]
	w := d.Resolve(start)
	res := w.Results[id]

	line := make([]float64, len(levels))
	for i := range line {
		line[i] = float64(ch.Threshold)
	}

	caption := fmt.Sprintf("channel %d %s: threshold %d, %d edges, %s", id, ch.Name, ch.Threshold, res.Edges, res.Status)
	return asciigraph.PlotMany([][]float64{levels, line},
		asciigraph.Height(10),
		asciigraph.Width(70),
		asciigraph.LowerBound(0),
		asciigraph.UpperBound(100),
		asciigraph.Caption(caption)), nil
}
