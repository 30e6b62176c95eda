package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alarm-monitor/alarm-sensor/internal/logic"
)

func testChannels() []logic.ChannelState {
	return []logic.ChannelState{
		{ID: 0, Name: "operation", Threshold: 70, Level: 85, Signal: logic.SignalLow, Edges: 2, Resolved: logic.StatusBlinking, Reported: logic.StatusBlinking},
		{ID: 1, Name: "trigger", Threshold: 55, Level: 3, Signal: logic.SignalHigh, Resolved: logic.StatusOff, Reported: logic.StatusOff},
	}
}

func TestNewTracker(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := Config{PollMs: 5, IntervalMs: 5000, Broker: "tcp://localhost:1883", HTTPAddr: ":80"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.IntervalMs != 5000 {
		t.Errorf("Config.IntervalMs: got %d, want 5000", snap.Config.IntervalMs)
	}
	if snap.Config.HTTPAddr != ":80" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":80")
	}
	if snap.Ready {
		t.Error("expected Ready=false initially")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
	if len(snap.Channels) != 0 {
		t.Errorf("expected no channels initially, got %d", len(snap.Channels))
	}
}

func TestUpdateAndSnapshot(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.Update(testChannels(), true, []int{3, 1})

	snap := tr.Snapshot()
	if len(snap.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(snap.Channels))
	}
	if snap.Channels[0].Reported != logic.StatusBlinking {
		t.Errorf("channel 0: got %s, want BLINKING", snap.Channels[0].Reported)
	}
	if !snap.Ready {
		t.Error("expected Ready=true")
	}
	if snap.Reports[0] != 3 || snap.Reports[1] != 1 {
		t.Errorf("Reports: got %v, want [3 1]", snap.Reports)
	}
}

func TestSetLastWindow(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	at := time.Date(2026, 1, 1, 0, 0, 5, 0, time.UTC)

	tr.SetLastWindow(at)
	if !tr.Snapshot().LastWindow.Equal(at) {
		t.Errorf("LastWindow: got %v, want %v", tr.Snapshot().LastWindow, at)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSetNetwork(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	if tr.Snapshot().Network != nil {
		t.Error("expected nil Network initially")
	}

	net := &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected"}
	tr.SetNetwork(net)

	got := tr.Snapshot().Network
	if got == nil || got.IP != "192.168.1.42" {
		t.Errorf("Network: got %+v", got)
	}
}

func TestSnapshotUptime(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	chs := testChannels()
	tr.Update(chs, true, []int{1, 0})

	// Mutating the caller's slice must not leak into the tracker.
	chs[0].Reported = logic.StatusSteady

	snap1 := tr.Snapshot()
	if snap1.Channels[0].Reported != logic.StatusBlinking {
		t.Error("Update should copy the channel slice")
	}

	snap1.Channels[1].Threshold = 99
	snap1.Reports[0] = 42

	snap2 := tr.Snapshot()
	if snap2.Channels[1].Threshold != 55 {
		t.Error("snapshot should be a copy; channel was modified")
	}
	if snap2.Reports[0] != 1 {
		t.Error("snapshot should be a copy; reports were modified")
	}
}

func TestFormatJSON(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Channels:      testChannels(),
		Reports:       []int{5, 2},
		Ready:         true,
		LastWindow:    start.Add(15*time.Minute - 2*time.Second),
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{PollMs: 5, IntervalMs: 5000, HeartbeatMs: 900000, BlinkEdges: 2, Broker: "tcp://localhost:1883", HTTPAddr: ":80"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if !parsed.Status.Ready {
		t.Error("expected Ready=true")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if parsed.Status.LastWindow != "2026-01-01T00:14:58Z" {
		t.Errorf("LastWindow: got %q", parsed.Status.LastWindow)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if len(parsed.Status.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(parsed.Status.Channels))
	}

	op := parsed.Status.Channels[0]
	if op.Name != "operation" || op.Status != "BLINKING" || op.Code != 2 {
		t.Errorf("channel 0: got %+v", op)
	}
	if op.Signal != "LOW" || op.Level != 85 || op.Threshold != 70 || op.Edges != 2 || op.Reports != 5 {
		t.Errorf("channel 0 details: got %+v", op)
	}
	if parsed.Status.Channels[1].Status != "OFF" || parsed.Status.Channels[1].Reports != 2 {
		t.Errorf("channel 1: got %+v", parsed.Status.Channels[1])
	}

	if parsed.Status.Config.BlinkEdges != 2 {
		t.Errorf("Config.BlinkEdges: got %d, want 2", parsed.Status.Config.BlinkEdges)
	}
	// Event and Reason should be omitted
	if parsed.Status.Event != "" {
		t.Errorf("expected empty Event for web format, got %q", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("expected empty Reason for web format, got %q", parsed.Status.Reason)
	}
}

func TestFormatJSONBeforeFirstWindow(t *testing.T) {
	snap := Snapshot{
		Channels:  []logic.ChannelState{{ID: 0, Signal: logic.SignalHigh}},
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatJSON(snap)

	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	status := raw["status"].(map[string]interface{})
	if _, exists := status["last_window"]; exists {
		t.Error("last_window should be omitted before the first resolution")
	}

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)
	if parsed.Status.Channels[0].Status != "UNKNOWN" {
		t.Errorf("status: got %q, want UNKNOWN", parsed.Status.Channels[0].Status)
	}
	if parsed.Status.Channels[0].Reports != 0 {
		t.Errorf("reports: got %d, want 0", parsed.Status.Channels[0].Reports)
	}
}

func TestFormatStatusEvent(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Channels:      testChannels(),
		Ready:         true,
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "HEARTBEAT", "")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "HEARTBEAT" {
		t.Errorf("Event: got %q, want HEARTBEAT", parsed.Status.Event)
	}
	if parsed.Status.Reason != "" {
		t.Errorf("Reason: got %q, want empty", parsed.Status.Reason)
	}
	if parsed.Status.Channels[1].Threshold != 55 {
		t.Errorf("channel 1 threshold: got %d, want 55", parsed.Status.Channels[1].Threshold)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventShutdown(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	snap := Snapshot{
		Ready:     true,
		StartTime: start,
		Now:       start.Add(30 * time.Minute),
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatStatusEvent(snap, "SHUTDOWN", "SIGTERM")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGTERM" {
		t.Errorf("Reason: got %q, want SIGTERM", parsed.Status.Reason)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 0, 1, 0, time.UTC),
	}

	data := FormatStatusEvent(snap, "STARTUP", "")

	var raw map[string]interface{}
	json.Unmarshal(data, &raw)
	status := raw["status"].(map[string]interface{})
	if _, exists := status["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if status["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", status["event"])
	}
}

func TestFormatJSONWithNetwork(t *testing.T) {
	snap := Snapshot{
		StartTime: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Now:       time.Date(2026, 1, 1, 0, 1, 0, 0, time.UTC),
		Network:   &NetworkInfo{Type: "wifi", IP: "192.168.1.42", Status: "connected", SSID: "MyNet"},
		Config:    Config{Broker: "tcp://localhost:1883"},
	}

	data := FormatJSON(snap)

	var parsed StatusJSON
	json.Unmarshal(data, &parsed)

	if parsed.Status.Network == nil {
		t.Fatal("expected Network in JSON")
	}
	if parsed.Status.Network.IP != "192.168.1.42" {
		t.Errorf("Network.IP: got %q, want 192.168.1.42", parsed.Status.Network.IP)
	}
	if parsed.Status.Network.SSID != "MyNet" {
		t.Errorf("Network.SSID: got %q, want MyNet", parsed.Status.Network.SSID)
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	// Writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Update(testChannels(), true, []int{i, i})
			tr.SetLastWindow(time.Now())
			tr.SetMQTTConnected(i%2 == 0)
			tr.SetNetwork(&NetworkInfo{IP: "1.2.3.4"})
		}
	}()

	// Reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
