package main

import (
	"context"
	"os"
	"syscall"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/gpio"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/metrics"
	"github.com/alarm-monitor/alarm-sensor/internal/mqtt"
	"github.com/alarm-monitor/alarm-sensor/internal/status"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
)

// storeTimeout bounds a single threshold write.
const storeTimeout = 2 * time.Second

// loop holds everything the control loop touches. The detector is owned by
// the loop goroutine; only the tracker is shared with other goroutines.
type loop struct {
	source     analog.Source
	inputs     []int // analog input per channel id
	writer     gpio.Writer
	publisher  mqtt.Publisher
	mqttStatus mqtt.ConnectionStatus
	store      store.Store
	tracker    *status.Tracker
	metrics    *metrics.Metrics
	detector   *logic.Detector
	heartbeat  time.Duration
	logger     hclog.Logger

	// network is read on every heartbeat; nil uses readNetworkInfo.
	network func() *status.NetworkInfo

	// failing marks channels whose last read failed, so a dead input
	// is logged once and not on every tick.
	failing []bool
}

func runLoop(l *loop, now func() time.Time, tick <-chan time.Time, cmds <-chan mqtt.ThresholdCommand, sig <-chan os.Signal) error {
	if l.logger == nil {
		l.logger = hclog.NewNullLogger()
	}
	if l.network == nil {
		l.network = readNetworkInfo
	}
	l.failing = make([]bool, len(l.inputs))

	for {
		select {
		case s := <-sig:
			l.shutdown(s, now())
			return nil

		case cmd := <-cmds:
			l.applyThreshold(cmd)

		case <-tick:
			t := now()
			l.sample()

			if w, ok := l.detector.MaybeResolve(t); ok {
				l.handleWindow(w)
			}

			if hb := l.detector.CheckHeartbeat(t, l.heartbeat); hb != nil {
				l.publishHeartbeat(hb)
			}

			l.refresh()
		}
	}
}

// sample reads every channel once. A failed read leaves the channel's
// signal where it was for this tick.
func (l *loop) sample() {
	for id, input := range l.inputs {
		raw, err := l.source.Read(input)
		if err != nil {
			name := l.detector.Channels()[id].Name
			l.metrics.ReadError(id, name)
			if !l.failing[id] {
				l.logger.Named("analog").Error("read failed", "channel", id, "name", name, "input", input, "error", err)
				l.failing[id] = true
			}
			continue
		}
		if l.failing[id] {
			l.logger.Named("analog").Info("read recovered", "channel", id, "input", input)
			l.failing[id] = false
		}
		l.detector.Sample(id, raw)
	}
}

func (l *loop) handleWindow(w logic.Window) {
	l.metrics.ObserveWindow(w)

	if l.logger.IsDebug() {
		for _, r := range w.Results {
			l.logger.Debug("window", "channel", r.Channel, "name", r.Name, "edges", r.Edges, "signal", r.Signal, "status", r.Status)
		}
	}

	// Indicators are updated before the collector is told.
	for _, ev := range w.Events {
		l.logger.Info("status change", "channel", ev.Channel, "name", ev.Name, "previous", ev.Previous, "status", ev.Status)

		if err := gpio.Apply(l.writer, ev.Writes); err != nil {
			l.logger.Named("gpio").Error("output write failed", "channel", ev.Channel, "error", err)
		}

		if err := l.publisher.Publish(ev); err != nil {
			l.metrics.PublishError()
			l.logger.Named("mqtt").Error("publish failed", "channel", ev.Channel, "error", err)
		}
	}

	l.tracker.SetLastWindow(w.Time)
}

func (l *loop) applyThreshold(cmd mqtt.ThresholdCommand) {
	applied, err := l.detector.SetThreshold(cmd.Channel, cmd.Threshold)
	if err != nil {
		l.logger.Warn("threshold command ignored", "channel", cmd.Channel, "threshold", cmd.Threshold, "error", err)
		return
	}
	l.logger.Info("threshold set", "channel", cmd.Channel, "requested", cmd.Threshold, "applied", applied)

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := l.store.Save(ctx, cmd.Channel, applied); err != nil {
		l.logger.Named("store").Error("save threshold failed", "channel", cmd.Channel, "error", err)
	}

	l.refresh()
}

func (l *loop) publishHeartbeat(hb *logic.HeartbeatData) {
	l.logger.Info("heartbeat", "uptime", hb.Uptime.Truncate(time.Second), "reports", hb.Reports)

	// Refresh network info for heartbeat
	if net := l.network(); net != nil {
		l.tracker.SetNetwork(net)
	}
	l.refresh()

	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  hb.Timestamp,
		Event:      "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, "HEARTBEAT", ""),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Named("mqtt").Error("heartbeat publish failed", "error", err)
	}
}

func (l *loop) shutdown(s os.Signal, at time.Time) {
	l.logger.Info("shutting down", "signal", s)

	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}

	l.refresh()
	snap := l.tracker.Snapshot()
	event := mqtt.SystemEvent{
		Timestamp:  at,
		Event:      "SHUTDOWN",
		Reason:     signalName,
		Retained:   true,
		RawPayload: status.FormatStatusEvent(snap, "SHUTDOWN", signalName),
	}
	if err := l.publisher.PublishSystem(event); err != nil {
		l.logger.Named("mqtt").Error("failed to publish shutdown event", "error", err)
	} else {
		l.logger.Named("mqtt").Info("published shutdown event")
	}
}

// refresh copies detector state into the tracker and the gauges for the
// HTTP consumers.
func (l *loop) refresh() {
	channels := l.detector.Channels()
	l.tracker.Update(channels, l.detector.IsReady(), l.detector.ReportCounts())
	if l.mqttStatus != nil {
		l.tracker.SetMQTTConnected(l.mqttStatus.IsConnected())
	}
	l.metrics.ObserveChannels(channels)
}
