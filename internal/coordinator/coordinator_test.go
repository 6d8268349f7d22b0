package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
)

// mockSource is a scripted DataSource. Results and failures are keyed by
// device MAC; every fetch is recorded in order.
type mockSource struct {
	mu      sync.Mutex
	results map[string]eheim.Document
	errs    map[string]error
	calls   []string
}

func newMockSource() *mockSource {
	return &mockSource{
		results: make(map[string]eheim.Document),
		errs:    make(map[string]error),
	}
}

func (m *mockSource) GetDeviceData(_ context.Context, device eheim.Device) (eheim.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, device.MAC)

	if err := m.errs[device.MAC]; err != nil {
		return nil, err
	}
	return m.results[device.MAC], nil
}

func (m *mockSource) setResult(mac string, doc eheim.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[mac] = doc
}

func (m *mockSource) setError(mac string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.errs, mac)
		return
	}
	m.errs[mac] = err
}

func (m *mockSource) callOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *mockSource) resetCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

var testDevices = []eheim.Device{
	{MAC: "AA:BB:CC:DD:EE:01", Version: "professionel5e", Group: eheim.GroupFilter},
	{MAC: "AA:BB:CC:DD:EE:02", Version: "phcontrol", Group: eheim.GroupPHControl},
	{MAC: "AA:BB:CC:DD:EE:03", Version: "heater", Group: eheim.GroupHeater},
}

func newTestCoordinator(t *testing.T, source DataSource) *Coordinator {
	t.Helper()

	coord, err := New(source, nil, Options{Interval: time.Hour})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	coord.SetDevices(testDevices)
	return coord
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(nil, nil, Options{})
	if !errors.Is(err, ErrNoDataSource) {
		t.Errorf("New(nil) error = %v, want ErrNoDataSource", err)
	}
}

func TestCoordinator_CycleBuildsSnapshot(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{"active": float64(0), "ph": 6.8})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{"temp": 25.1})

	coord := newTestCoordinator(t, source)

	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v", err)
	}

	snap := coord.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(snapshot) = %d, want 3", len(snap))
	}
	if snap["AA:BB:CC:DD:EE:01"]["filterActive"] != float64(1) {
		t.Errorf("filter entry = %v", snap["AA:BB:CC:DD:EE:01"])
	}
	if snap["AA:BB:CC:DD:EE:02"]["ph"] != 6.8 {
		t.Errorf("ph entry = %v", snap["AA:BB:CC:DD:EE:02"])
	}

	if !coord.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after successful cycle")
	}
	if got := coord.Stats().Cycles; got != 1 {
		t.Errorf("Stats().Cycles = %d, want 1", got)
	}
}

func TestCoordinator_FetchesSequentiallyInOrder(t *testing.T) {
	source := newMockSource()
	coord := newTestCoordinator(t, source)

	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v", err)
	}

	want := []string{"AA:BB:CC:DD:EE:01", "AA:BB:CC:DD:EE:02", "AA:BB:CC:DD:EE:03"}
	got := source.callOrder()
	if len(got) != len(want) {
		t.Fatalf("calls = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("calls = %v, want device-list order %v", got, want)
		}
	}
}

func TestCoordinator_FailureKeepsPreviousSnapshot(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{"active": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{"temp": 25.1})

	coord := newTestCoordinator(t, source)

	// First cycle succeeds and becomes last known good data.
	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("first runCycle() error = %v", err)
	}

	// Second cycle fails on the middle device.
	source.setError("AA:BB:CC:DD:EE:02", eheim.ErrTimeout)
	source.resetCalls()

	err := coord.runCycle(context.Background())
	if !errors.Is(err, eheim.ErrTimeout) {
		t.Fatalf("runCycle() error = %v, want ErrTimeout", err)
	}

	// The cycle aborted at the failing device; the third was never fetched.
	calls := source.callOrder()
	if len(calls) != 2 {
		t.Errorf("calls after failure = %v, want fetch to stop at failing device", calls)
	}

	// Previous snapshot stays visible, unchanged.
	snap := coord.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("len(snapshot) = %d after failed cycle, want previous 3", len(snap))
	}
	if snap["AA:BB:CC:DD:EE:01"]["filterActive"] != float64(1) {
		t.Errorf("previous snapshot entry mutated: %v", snap["AA:BB:CC:DD:EE:01"])
	}

	if coord.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = true after failed cycle")
	}
	if coord.LastError() == nil {
		t.Error("LastError() = nil after failed cycle")
	}
	if got := coord.Stats().Failures; got != 1 {
		t.Errorf("Stats().Failures = %d, want 1", got)
	}

	// Recovery replaces the snapshot wholesale.
	source.setError("AA:BB:CC:DD:EE:02", nil)
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(0)})

	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("recovery runCycle() error = %v", err)
	}
	if got := coord.Snapshot()["AA:BB:CC:DD:EE:01"]["filterActive"]; got != float64(0) {
		t.Errorf("snapshot after recovery = %v, want replaced data", got)
	}
	if !coord.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false after recovery")
	}
	if coord.LastError() != nil {
		t.Errorf("LastError() = %v after recovery, want nil", coord.LastError())
	}
}

func TestCoordinator_NoPartialSnapshotOnFirstFailure(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setError("AA:BB:CC:DD:EE:02", eheim.ErrConnection)

	coord := newTestCoordinator(t, source)

	if err := coord.runCycle(context.Background()); err == nil {
		t.Fatal("runCycle() expected error")
	}

	// The successfully fetched first device must not leak into the snapshot.
	if snap := coord.Snapshot(); len(snap) != 0 {
		t.Errorf("snapshot = %v after first-cycle failure, want empty", snap)
	}
}

func TestCoordinator_SetStateKey(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(0), "freq": float64(4500)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{"active": float64(0)})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{})

	coord := newTestCoordinator(t, source)
	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v", err)
	}

	// A reader's copy taken before the patch must not change.
	before := coord.Snapshot()

	coord.SetStateKey("AA:BB:CC:DD:EE:01", "filterActive", 1)

	doc, ok := coord.DeviceData("AA:BB:CC:DD:EE:01")
	if !ok {
		t.Fatal("DeviceData() missing patched device")
	}
	if doc["filterActive"] != 1 {
		t.Errorf("filterActive = %v, want patched 1", doc["filterActive"])
	}
	if doc["freq"] != float64(4500) {
		t.Errorf("freq = %v, other keys must survive the patch", doc["freq"])
	}

	if before["AA:BB:CC:DD:EE:01"]["filterActive"] != float64(0) {
		t.Error("patch leaked into a copy handed out before the write")
	}

	// Unknown MACs are ignored.
	coord.SetStateKey("00:00:00:00:00:00", "filterActive", 1)
	if _, ok := coord.DeviceData("00:00:00:00:00:00"); ok {
		t.Error("SetStateKey() created an entry for an unpolled device")
	}
}

func TestCoordinator_SnapshotCopyIsolation(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{})

	coord := newTestCoordinator(t, source)
	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v", err)
	}

	snap := coord.Snapshot()
	snap["AA:BB:CC:DD:EE:01"]["filterActive"] = float64(99)

	if got, _ := coord.DeviceData("AA:BB:CC:DD:EE:01"); got["filterActive"] != float64(1) {
		t.Errorf("mutating a returned snapshot changed internal state: %v", got)
	}
}

func TestCoordinator_Events(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{})

	coord := newTestCoordinator(t, source)

	var mu sync.Mutex
	var events []Event
	coord.Subscribe(func(e Event) {
		mu.Lock()
		events = append(events, e)
		mu.Unlock()
	})

	// Successful cycle → updated.
	if err := coord.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle() error = %v", err)
	}

	// Optimistic patch → patched with the device MAC.
	coord.SetStateKey("AA:BB:CC:DD:EE:01", "filterActive", 0)

	// Failed cycle → failed with MAC and error.
	source.setError("AA:BB:CC:DD:EE:01", eheim.ErrConnection)
	coord.runCycle(context.Background()) //nolint:errcheck

	mu.Lock()
	defer mu.Unlock()

	if len(events) != 3 {
		t.Fatalf("got %d events %v, want 3", len(events), events)
	}

	if events[0].Type != EventUpdated {
		t.Errorf("events[0].Type = %q, want updated", events[0].Type)
	}
	if events[1].Type != EventPatched || events[1].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("events[1] = %+v, want patched for device 01", events[1])
	}
	if events[2].Type != EventFailed || events[2].MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("events[2] = %+v, want failed for device 01", events[2])
	}
	if !errors.Is(events[2].Err, eheim.ErrConnection) {
		t.Errorf("events[2].Err = %v, want ErrConnection", events[2].Err)
	}
}

func TestCoordinator_RefreshLifecycle(t *testing.T) {
	source := newMockSource()
	source.setResult("AA:BB:CC:DD:EE:01", eheim.Document{"filterActive": float64(1)})
	source.setResult("AA:BB:CC:DD:EE:02", eheim.Document{})
	source.setResult("AA:BB:CC:DD:EE:03", eheim.Document{})

	coord := newTestCoordinator(t, source)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	coord.Start(ctx)

	// Explicit refresh reports the cycle outcome.
	if err := coord.Refresh(ctx); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(coord.Snapshot()) != 3 {
		t.Errorf("snapshot incomplete after refresh: %v", coord.Snapshot())
	}

	source.setError("AA:BB:CC:DD:EE:03", eheim.ErrTimeout)
	if err := coord.Refresh(ctx); !errors.Is(err, eheim.ErrTimeout) {
		t.Errorf("Refresh() error = %v, want ErrTimeout", err)
	}

	coord.Stop()
	coord.Stop() // second call is a no-op

	if err := coord.Refresh(ctx); !errors.Is(err, ErrStopped) {
		t.Errorf("Refresh() after Stop error = %v, want ErrStopped", err)
	}
}

func TestCoordinator_LastUpdateSuccessBeforeFirstCycle(t *testing.T) {
	coord := newTestCoordinator(t, newMockSource())

	if !coord.LastUpdateSuccess() {
		t.Error("LastUpdateSuccess() = false before any cycle has run")
	}
}

func TestCoordinator_DeviceByMAC(t *testing.T) {
	coord := newTestCoordinator(t, newMockSource())

	if dev, ok := coord.DeviceByMAC("AA:BB:CC:DD:EE:01"); !ok || dev.Version != "professionel5e" {
		t.Errorf("DeviceByMAC(raw) = %+v, %v", dev, ok)
	}

	// Slug form resolves to the same device.
	if dev, ok := coord.DeviceByMAC("aa_bb_cc_dd_ee_01"); !ok || dev.MAC != "AA:BB:CC:DD:EE:01" {
		t.Errorf("DeviceByMAC(slug) = %+v, %v", dev, ok)
	}

	if _, ok := coord.DeviceByMAC("00:00:00:00:00:00"); ok {
		t.Error("DeviceByMAC() resolved an unknown device")
	}
}
