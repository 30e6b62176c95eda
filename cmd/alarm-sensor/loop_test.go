package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/analog"
	"github.com/alarm-monitor/alarm-sensor/internal/config"
	"github.com/alarm-monitor/alarm-sensor/internal/gpio"
	"github.com/alarm-monitor/alarm-sensor/internal/logic"
	"github.com/alarm-monitor/alarm-sensor/internal/metrics"
	"github.com/alarm-monitor/alarm-sensor/internal/mqtt"
	"github.com/alarm-monitor/alarm-sensor/internal/status"
	"github.com/alarm-monitor/alarm-sensor/internal/store"
)

// With a full scale of 100 the light level is 100 - raw.
const (
	testScale = 100
	idle      = 0   // level 100, signal HIGH
	lit       = 100 // level 0, signal LOW
)

// fakeClock returns a function that yields start, start+step, start+2*step, ...
// on successive calls. Not safe for concurrent use (only called from runLoop's goroutine).
func fakeClock(start time.Time, step time.Duration) func() time.Time {
	n := 0
	return func() time.Time {
		t := start.Add(time.Duration(n) * step)
		n++
		return t
	}
}

// frames returns n copies of one raw reading per channel.
func frames(n int, raw ...int) [][]int {
	out := make([][]int, n)
	for i := range out {
		out[i] = append([]int(nil), raw...)
	}
	return out
}

// faultSource fails reads of one input once the given number of reads of
// that input has succeeded.
type faultSource struct {
	*analog.FakeSource
	input int
	after int
	reads int
}

func (s *faultSource) Read(input int) (int, error) {
	if input == s.input {
		s.reads++
		if s.reads > s.after {
			return 0, errors.New("adc timeout")
		}
	}
	return s.FakeSource.Read(input)
}

type harness struct {
	source  *analog.FakeSource
	writer  *gpio.FakeWriter
	pub     *mqtt.FakePublisher
	store   *store.MemoryStore
	tracker *status.Tracker
	metrics *metrics.Metrics
	start   time.Time
	loop    *loop
}

func newHarness(t *testing.T, script [][]int, heartbeat time.Duration) *harness {
	t.Helper()
	cfg := config.Default()
	config.Normalize(cfg)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	src := analog.NewFakeSource(script)
	src.Scale = testScale

	h := &harness{
		source:  src,
		writer:  gpio.NewFakeWriter("mode_full", "mode_partial", "trigger", "bell", "maintenance"),
		pub:     mqtt.NewFakePublisher(),
		store:   store.NewMemoryStore(),
		tracker: status.NewTracker(start, status.Config{IntervalMs: 5000, Broker: config.DefaultBroker}),
		metrics: metrics.New(),
		start:   start,
	}
	h.pub.Connected = true

	detector := logic.NewDetector(cfg.ChannelSpecs(), cfg.Thresholds(nil), logic.Options{
		Interval:  5 * time.Second,
		FullScale: testScale,
	}, start)

	h.loop = &loop{
		source:     src,
		inputs:     cfg.Inputs(),
		writer:     h.writer,
		publisher:  h.pub,
		mqttStatus: h.pub,
		store:      h.store,
		tracker:    h.tracker,
		metrics:    h.metrics,
		detector:   detector,
		heartbeat:  heartbeat,
		network:    func() *status.NetworkInfo { return nil },
	}
	return h
}

// driver feeds the loop. Every send blocks until the loop has taken it, so
// ticks and commands are processed in the order they are sent.
type driver struct {
	tick chan time.Time
	cmds chan mqtt.ThresholdCommand
}

func (d *driver) ticks(n int) {
	for i := 0; i < n; i++ {
		d.tick <- time.Time{}
	}
}

func (d *driver) send(c mqtt.ThresholdCommand) {
	d.cmds <- c
}

// run drives runLoop with a 1s clock step: tick k happens at start+k s, so
// the first window closes on tick 5 and the next on tick 10.
func (h *harness) run(t *testing.T, step time.Duration, drive func(d *driver), s os.Signal) {
	t.Helper()
	d := &driver{tick: make(chan time.Time), cmds: make(chan mqtt.ThresholdCommand)}
	sig := make(chan os.Signal, 1)

	errCh := make(chan error, 1)
	go func() {
		errCh <- runLoop(h.loop, fakeClock(h.start, step), d.tick, d.cmds, sig)
	}()

	drive(d)
	sig <- s

	if err := <-errCh; err != nil {
		t.Fatalf("runLoop returned error: %v", err)
	}
}

func eventsFor(events []logic.Event, channel int) []logic.Event {
	var out []logic.Event
	for _, e := range events {
		if e.Channel == channel {
			out = append(out, e)
		}
	}
	return out
}

// counterValue reads one counter sample from the registry.
func counterValue(t *testing.T, m *metrics.Metrics, name, channel string) float64 {
	t.Helper()
	mfs, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if channel == "" {
				return metric.GetCounter().GetValue()
			}
			for _, lp := range metric.GetLabel() {
				if lp.GetName() == "channel" && lp.GetValue() == channel {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestRunLoopNoEventsBeforeFirstWindow(t *testing.T) {
	h := newHarness(t, frames(1, idle, lit, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(5) }, syscall.SIGTERM)

	if len(h.pub.Events) != 0 {
		t.Errorf("expected 0 events before the first window, got %d", len(h.pub.Events))
	}
	if len(h.writer.Writes) != 0 {
		t.Errorf("expected no output writes, got %v", h.writer.Writes)
	}
	if h.tracker.Snapshot().Ready {
		t.Error("tracker should not be ready before the first window")
	}

	if len(h.pub.SystemEvents) != 1 || h.pub.SystemEvents[0].Event != "SHUTDOWN" {
		t.Fatalf("expected only SHUTDOWN, got %+v", h.pub.SystemEvents)
	}
}

func TestRunLoopFirstWindowAllOff(t *testing.T) {
	h := newHarness(t, frames(1, idle, idle, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(6) }, syscall.SIGTERM)

	// Channel 0 absorbs its first change; the others report at once.
	if len(h.pub.Events) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(h.pub.Events), h.pub.Events)
	}
	for i, e := range h.pub.Events {
		if e.Channel != i+1 {
			t.Errorf("event %d: channel %d, want %d", i, e.Channel, i+1)
		}
		if e.Previous != logic.StatusUnknown || e.Status != logic.StatusOff {
			t.Errorf("event %d: %s -> %s, want UNKNOWN -> OFF", i, e.Previous, e.Status)
		}
		if !e.Timestamp.Equal(h.start.Add(5 * time.Second)) {
			t.Errorf("event %d: timestamp %v", i, e.Timestamp)
		}
	}
	if active := h.writer.Active(); len(active) != 0 {
		t.Errorf("expected no active outputs, got %v", active)
	}
}

func TestRunLoopSteadyAndBlinking(t *testing.T) {
	// Channel 1 lit throughout, channel 2 pulsing every other tick.
	script := make([][]int, 6)
	for i := range script {
		bell := idle
		if i%2 == 0 {
			bell = lit
		}
		script[i] = []int{idle, lit, bell, idle}
	}
	h := newHarness(t, script, 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(6) }, syscall.SIGTERM)

	want := map[int]logic.Status{1: logic.StatusSteady, 2: logic.StatusBlinking, 3: logic.StatusOff}
	if len(h.pub.Events) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(h.pub.Events))
	}
	for _, e := range h.pub.Events {
		if e.Status != want[e.Channel] {
			t.Errorf("channel %d: got %s, want %s", e.Channel, e.Status, want[e.Channel])
		}
	}

	active := h.writer.Active()
	if len(active) != 2 || active[0] != "trigger" || active[1] != "bell" {
		t.Errorf("active outputs: got %v, want [trigger bell]", active)
	}

	if got := counterValue(t, h.metrics, "alarm_sensor_edges_total", "2"); got != 3 {
		t.Errorf("edges for channel 2: got %v, want 3", got)
	}
}

func TestRunLoopDebouncedChannelReportsSecondChange(t *testing.T) {
	h := newHarness(t, frames(1, lit, idle, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(11) }, syscall.SIGTERM)

	evs := eventsFor(h.pub.Events, 0)
	if len(evs) != 1 {
		t.Fatalf("expected 1 event for channel 0, got %d", len(evs))
	}
	if evs[0].Status != logic.StatusSteady || evs[0].Previous != logic.StatusUnknown {
		t.Errorf("channel 0: %s -> %s, want UNKNOWN -> STEADY", evs[0].Previous, evs[0].Status)
	}
	if !evs[0].Timestamp.Equal(h.start.Add(10 * time.Second)) {
		t.Errorf("channel 0 should report on the second window, got %v", evs[0].Timestamp)
	}

	if !h.writer.State["mode_full"] || h.writer.State["mode_partial"] {
		t.Errorf("mode outputs: full=%v partial=%v, want full only",
			h.writer.State["mode_full"], h.writer.State["mode_partial"])
	}
}

func TestRunLoopNoRepeatReports(t *testing.T) {
	h := newHarness(t, frames(1, idle, idle, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(16) }, syscall.SIGTERM)

	// 3 on the first window, the absorbed channel 0 on the second, nothing after.
	if len(h.pub.Events) != 4 {
		t.Fatalf("expected 4 events over 3 windows, got %d", len(h.pub.Events))
	}
	counts := h.tracker.Snapshot().Reports
	for id, n := range counts {
		if n != 1 {
			t.Errorf("channel %d: %d reports, want 1", id, n)
		}
	}
}

func TestRunLoopReadErrorKeepsLastSignal(t *testing.T) {
	h := newHarness(t, frames(1, idle, lit, idle, idle), 0)
	h.loop.source = &faultSource{FakeSource: h.source, input: 1, after: 1}

	h.run(t, time.Second, func(d *driver) { d.ticks(6) }, syscall.SIGTERM)

	// The only good read of channel 1 was lit; the signal holds through the errors.
	evs := eventsFor(h.pub.Events, 1)
	if len(evs) != 1 || evs[0].Status != logic.StatusSteady {
		t.Fatalf("channel 1: got %+v, want one STEADY event", evs)
	}
	if got := counterValue(t, h.metrics, "alarm_sensor_analog_read_errors_total", "1"); got != 5 {
		t.Errorf("read errors for channel 1: got %v, want 5", got)
	}

	if len(h.pub.SystemEventsNamed("SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN after read errors")
	}
}

func TestRunLoopPublishErrorDoesNotStopLoop(t *testing.T) {
	h := newHarness(t, frames(1, idle, lit, idle, idle), 0)
	h.pub.PublishError = errors.New("broker unavailable")

	h.run(t, time.Second, func(d *driver) { d.ticks(11) }, syscall.SIGTERM)

	if !h.writer.State["trigger"] {
		t.Error("outputs must be driven even when publishing fails")
	}
	if got := counterValue(t, h.metrics, "alarm_sensor_publish_errors_total", ""); got != 4 {
		t.Errorf("publish errors: got %v, want 4", got)
	}
	if !h.tracker.Snapshot().Ready {
		t.Error("tracker should be ready")
	}
	if len(h.pub.SystemEventsNamed("SHUTDOWN")) != 1 {
		t.Error("expected SHUTDOWN after publish errors")
	}
}

func TestRunLoopOutputWriteErrorDoesNotStopPublish(t *testing.T) {
	h := newHarness(t, frames(1, idle, lit, idle, idle), 0)
	h.writer.WriteError = errors.New("line busy")

	h.run(t, time.Second, func(d *driver) { d.ticks(6) }, syscall.SIGTERM)

	if len(h.pub.Events) != 3 {
		t.Errorf("expected 3 events despite output errors, got %d", len(h.pub.Events))
	}
}

func TestRunLoopThresholdCommand(t *testing.T) {
	// Level 80 is idle at the default threshold 70 but active at 99.
	h := newHarness(t, frames(1, idle, 20, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) {
		d.ticks(2)
		d.send(mqtt.ThresholdCommand{Channel: 1, Threshold: 150})
		d.send(mqtt.ThresholdCommand{Channel: 9, Threshold: 50})
		d.ticks(4)
	}, syscall.SIGTERM)

	if th, _ := h.loop.detector.Threshold(1); th != logic.MaxThreshold {
		t.Errorf("detector threshold: got %d, want %d", th, logic.MaxThreshold)
	}

	v, ok, err := h.store.Load(context.Background(), 1)
	if err != nil || !ok || v != logic.MaxThreshold {
		t.Errorf("stored threshold: got %d ok=%v err=%v, want %d", v, ok, err, logic.MaxThreshold)
	}
	if _, ok, _ := h.store.Load(context.Background(), 9); ok {
		t.Error("unknown channel must not be stored")
	}

	evs := eventsFor(h.pub.Events, 1)
	if len(evs) != 1 || evs[0].Status != logic.StatusSteady {
		t.Errorf("channel 1 after threshold change: got %+v, want STEADY", evs)
	}

	if got := h.tracker.Snapshot().Channels[1].Threshold; got != logic.MaxThreshold {
		t.Errorf("tracker threshold: got %d, want %d", got, logic.MaxThreshold)
	}
}

func TestRunLoopThresholdSaveErrorKeepsValue(t *testing.T) {
	h := newHarness(t, frames(1, idle, idle, idle, idle), 0)
	h.store.SaveError = errors.New("disk full")

	h.run(t, time.Second, func(d *driver) {
		d.send(mqtt.ThresholdCommand{Channel: 2, Threshold: 40})
	}, syscall.SIGTERM)

	if th, _ := h.loop.detector.Threshold(2); th != 40 {
		t.Errorf("detector threshold: got %d, want 40", th)
	}
}

func TestRunLoopHeartbeat(t *testing.T) {
	// 5-minute steps: the first window closes on tick 1 and the 15-minute
	// heartbeat fires on tick 3.
	h := newHarness(t, frames(1, idle, lit, idle, idle), 15*time.Minute)
	h.loop.network = func() *status.NetworkInfo {
		return &status.NetworkInfo{Type: "ethernet", IP: "10.0.0.7", Status: "connected"}
	}

	h.run(t, 5*time.Minute, func(d *driver) { d.ticks(4) }, syscall.SIGTERM)

	hbs := h.pub.SystemEventsNamed("HEARTBEAT")
	if len(hbs) != 1 {
		t.Fatalf("expected 1 heartbeat, got %d", len(hbs))
	}
	if hbs[0].Retained {
		t.Error("heartbeat must not be retained")
	}
	if !hbs[0].Timestamp.Equal(h.start.Add(15 * time.Minute)) {
		t.Errorf("heartbeat timestamp: got %v", hbs[0].Timestamp)
	}

	var sj status.StatusJSON
	if err := json.Unmarshal(hbs[0].RawPayload, &sj); err != nil {
		t.Fatalf("heartbeat payload: %v", err)
	}
	if sj.Status.Event != "HEARTBEAT" || !sj.Status.Ready {
		t.Errorf("heartbeat status: %+v", sj.Status)
	}
	if sj.Status.Network == nil || sj.Status.Network.IP != "10.0.0.7" {
		t.Errorf("heartbeat network: %+v", sj.Status.Network)
	}
	if sj.Status.Channels[1].Status != "STEADY" {
		t.Errorf("heartbeat channel 1: got %q, want STEADY", sj.Status.Channels[1].Status)
	}
}

func TestRunLoopHeartbeatDisabled(t *testing.T) {
	h := newHarness(t, frames(1, idle, idle, idle, idle), 0)

	h.run(t, 5*time.Minute, func(d *driver) { d.ticks(10) }, syscall.SIGTERM)

	if n := len(h.pub.SystemEventsNamed("HEARTBEAT")); n != 0 {
		t.Errorf("expected no heartbeats when disabled, got %d", n)
	}
}

func TestRunLoopShutdownReason(t *testing.T) {
	tests := []struct {
		sig  os.Signal
		want string
	}{
		{syscall.SIGTERM, "SIGTERM"},
		{syscall.SIGINT, "SIGINT"},
		{syscall.SIGHUP, "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			h := newHarness(t, frames(1, idle, idle, idle, idle), 0)

			h.run(t, time.Second, func(d *driver) { d.ticks(6) }, tt.sig)

			evs := h.pub.SystemEventsNamed("SHUTDOWN")
			if len(evs) != 1 {
				t.Fatalf("expected 1 SHUTDOWN, got %d", len(evs))
			}
			ev := evs[0]
			if ev.Reason != tt.want || !ev.Retained {
				t.Errorf("shutdown: reason=%q retained=%v", ev.Reason, ev.Retained)
			}

			var sj status.StatusJSON
			if err := json.Unmarshal(ev.RawPayload, &sj); err != nil {
				t.Fatalf("shutdown payload: %v", err)
			}
			if sj.Status.Event != "SHUTDOWN" || sj.Status.Reason != tt.want {
				t.Errorf("shutdown payload: event=%q reason=%q", sj.Status.Event, sj.Status.Reason)
			}
			if !sj.Status.MQTT.Connected {
				t.Error("shutdown payload should carry the connection state")
			}
		})
	}
}

func TestRunLoopTrackerReflectsState(t *testing.T) {
	h := newHarness(t, frames(1, idle, lit, idle, idle), 0)

	h.run(t, time.Second, func(d *driver) { d.ticks(7) }, syscall.SIGTERM)

	snap := h.tracker.Snapshot()
	if !snap.Ready {
		t.Error("expected ready")
	}
	if !snap.LastWindow.Equal(h.start.Add(5 * time.Second)) {
		t.Errorf("last window: got %v", snap.LastWindow)
	}
	if !snap.MQTTConnected {
		t.Error("expected MQTT connected")
	}
	if len(snap.Channels) != 4 {
		t.Fatalf("expected 4 channels, got %d", len(snap.Channels))
	}
	ch := snap.Channels[1]
	if ch.Reported != logic.StatusSteady || ch.Signal != logic.SignalLow || ch.Level != 0 {
		t.Errorf("channel 1: %+v", ch)
	}
	if want := []int{0, 1, 1, 1}; len(snap.Reports) != 4 || snap.Reports[0] != want[0] || snap.Reports[1] != want[1] {
		t.Errorf("reports: got %v, want %v", snap.Reports, want)
	}
}
