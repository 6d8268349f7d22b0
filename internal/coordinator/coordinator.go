package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/madxdev/home-assistant-eheim-digital/internal/eheim"
	"github.com/madxdev/home-assistant-eheim-digital/internal/infrastructure/logging"
)

// DefaultInterval is the poll cadence used when Options leaves it unset.
const DefaultInterval = 30 * time.Second

// DataSource is the slice of the hub client the coordinator depends on.
// Narrowing to one method keeps the poll loop testable without a hub.
type DataSource interface {
	GetDeviceData(ctx context.Context, device eheim.Device) (eheim.Document, error)
}

// EventType classifies snapshot change notifications.
type EventType string

const (
	// EventUpdated fires after a successful poll cycle has replaced the
	// whole snapshot.
	EventUpdated EventType = "updated"

	// EventFailed fires when a poll cycle aborts. The previous snapshot
	// stays in place as last known good data.
	EventFailed EventType = "failed"

	// EventPatched fires when a command handler optimistically patches a
	// single device entry.
	EventPatched EventType = "patched"
)

// Event describes one snapshot change.
type Event struct {
	Type EventType

	// MAC identifies the device involved: the patched device for
	// EventPatched, the device whose fetch failed for EventFailed.
	// Empty for EventUpdated, which covers the whole snapshot.
	MAC string

	// Err carries the cycle failure for EventFailed.
	Err error
}

// Listener receives snapshot change events.
//
// Callbacks run synchronously on whichever goroutine produced the change
// (the poll loop for cycles, a command handler for patches). They must
// return quickly and must not call Refresh, or the poll loop deadlocks.
type Listener func(Event)

// Options configures a Coordinator.
type Options struct {
	// Interval between poll cycles. Zero means DefaultInterval.
	Interval time.Duration
}

// Stats is a point-in-time view of the coordinator's counters.
type Stats struct {
	Cycles        uint64    `json:"cycles"`
	Failures      uint64    `json:"failures"`
	LastAttempt   time.Time `json:"last_attempt"`
	LastSuccess   time.Time `json:"last_success"`
	UpdateSuccess bool      `json:"update_success"`

	// LastDuration is how long the most recent cycle took.
	LastDuration time.Duration `json:"last_duration"`
}

// Coordinator polls every known device's status through the hub on a
// fixed interval and maintains the latest snapshot.
//
// The device list is populated once by the setup step (SetDevices); the
// coordinator never re-runs discovery. Within a cycle devices are fetched
// strictly one after another, and the first failure aborts the cycle
// without touching the published snapshot — readers always see either the
// previous complete snapshot or the new complete one, never a partial mix.
//
// Thread Safety:
//   - All exported methods are safe for concurrent use.
//   - Snapshot data is copied on read and on write, so callers never
//     share mutable state with the poll loop.
type Coordinator struct {
	source   DataSource
	interval time.Duration
	logger   *logging.Logger

	mu        sync.RWMutex
	devices   []eheim.Device
	snapshot  map[string]eheim.Document
	listeners []Listener
	stats     Stats
	lastErr   error

	refreshCh chan refreshRequest

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

type refreshRequest struct {
	ctx   context.Context
	reply chan error
}

// New creates a coordinator. The data source is required; a nil logger
// falls back to the default logger.
func New(source DataSource, logger *logging.Logger, opts Options) (*Coordinator, error) {
	if source == nil {
		return nil, ErrNoDataSource
	}
	if logger == nil {
		logger = logging.Default()
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Coordinator{
		source:    source,
		interval:  interval,
		logger:    logger.With("component", "coordinator"),
		snapshot:  make(map[string]eheim.Document),
		refreshCh: make(chan refreshRequest),
		done:      make(chan struct{}),
	}, nil
}

// SetDevices installs the device list to poll. Called once during setup,
// before Start; the coordinator itself never re-fetches the list.
func (c *Coordinator) SetDevices(devices []eheim.Device) {
	list := make([]eheim.Device, len(devices))
	copy(list, devices)

	for _, dev := range list {
		if _, ok := eheim.StatusEndpoint(dev.Version); !ok {
			c.logger.Warn("device version has no status endpoint; polling it will fail",
				"mac", dev.MAC, "version", dev.Version)
		}
	}

	c.mu.Lock()
	c.devices = list
	c.mu.Unlock()
}

// Subscribe registers a snapshot change listener. Safe to call at any
// time; a listener added while the loop is running starts receiving
// events from the next snapshot change.
func (c *Coordinator) Subscribe(fn Listener) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// Start launches the poll loop: one immediate cycle, then one per
// interval. Call Stop to shut down.
func (c *Coordinator) Start(ctx context.Context) {
	c.wg.Add(1)
	go c.run(ctx)
}

// Stop shuts the poll loop down and waits for it to finish. Safe to call
// multiple times.
func (c *Coordinator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
	})
}

// Refresh triggers an immediate poll cycle and waits for its outcome.
// Cycles stay serialised: if an interval cycle is already in flight the
// refresh runs after it completes.
func (c *Coordinator) Refresh(ctx context.Context) error {
	req := refreshRequest{ctx: ctx, reply: make(chan error, 1)}

	select {
	case c.refreshCh <- req:
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-req.reply:
		return err
	case <-c.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Devices returns a copy of the device list.
func (c *Coordinator) Devices() []eheim.Device {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]eheim.Device, len(c.devices))
	copy(out, c.devices)
	return out
}

// DeviceByMAC looks up a known device by MAC. Raw ("AA:BB:…") and slug
// ("aa_bb_…") forms are both accepted.
func (c *Coordinator) DeviceByMAC(mac string) (eheim.Device, bool) {
	slug := eheim.MACSlug(mac)

	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, dev := range c.devices {
		if dev.MACSlug() == slug {
			return dev, true
		}
	}
	return eheim.Device{}, false
}

// Snapshot returns a copy of the latest per-device status documents,
// keyed by MAC.
func (c *Coordinator) Snapshot() map[string]eheim.Document {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]eheim.Document, len(c.snapshot))
	for mac, doc := range c.snapshot {
		out[mac] = copyDocument(doc)
	}
	return out
}

// DeviceData returns a copy of one device's latest status document. The
// second return value is false when the device has not been polled yet.
func (c *Coordinator) DeviceData(mac string) (eheim.Document, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	doc, ok := c.snapshot[mac]
	if !ok {
		return nil, false
	}
	return copyDocument(doc), true
}

// SetStateKey optimistically patches a single key in one device's entry,
// swapping in a patched copy of the document. Documents are never mutated
// in place, so readers holding older copies are unaffected. Unknown MACs
// are ignored — the device simply has not been polled yet.
func (c *Coordinator) SetStateKey(mac, key string, value any) {
	c.mu.Lock()
	doc, ok := c.snapshot[mac]
	if !ok {
		c.mu.Unlock()
		return
	}

	patched := copyDocument(doc)
	patched[key] = value
	c.snapshot[mac] = patched
	c.mu.Unlock()

	c.notify(Event{Type: EventPatched, MAC: mac})
}

// Stats returns a copy of the coordinator's counters.
func (c *Coordinator) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

// LastUpdateSuccess reports whether the most recent cycle completed.
// True before the first cycle has run, matching "nothing has failed yet".
func (c *Coordinator) LastUpdateSuccess() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats.Cycles == 0 || c.stats.UpdateSuccess
}

// LastError returns the failure from the most recent failed cycle, or nil
// if the last cycle succeeded.
func (c *Coordinator) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Interval returns the poll interval.
func (c *Coordinator) Interval() time.Duration {
	return c.interval
}

// run is the poll loop goroutine.
func (c *Coordinator) run(ctx context.Context) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// First cycle runs immediately so consumers have data at startup.
	c.runCycle(ctx) //nolint:errcheck // failure is recorded and published as an event

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.runCycle(ctx) //nolint:errcheck // failure is recorded and published as an event
		case req := <-c.refreshCh:
			req.reply <- c.runCycle(req.ctx)
		}
	}
}

// runCycle fetches every device's status sequentially into a fresh map.
// On success the snapshot is replaced wholesale; the first failure aborts
// the cycle and discards the partial map, leaving the previous snapshot
// as last known good data.
func (c *Coordinator) runCycle(ctx context.Context) error {
	start := time.Now()
	devices := c.Devices()

	fresh := make(map[string]eheim.Document, len(devices))
	for _, dev := range devices {
		doc, err := c.source.GetDeviceData(ctx, dev)
		if err != nil {
			cycleErr := fmt.Errorf("updating %s: %w", dev.MAC, err)
			c.recordFailure(cycleErr, start)

			c.logger.Warn("poll cycle failed",
				"mac", dev.MAC, "version", dev.Version, "error", err)

			c.notify(Event{Type: EventFailed, MAC: dev.MAC, Err: cycleErr})
			return cycleErr
		}
		fresh[dev.MAC] = doc
	}

	c.recordSuccess(fresh, start)

	c.logger.Debug("poll cycle complete",
		"devices", len(fresh), "took", time.Since(start))

	c.notify(Event{Type: EventUpdated})
	return nil
}

func (c *Coordinator) recordSuccess(fresh map[string]eheim.Document, start time.Time) {
	now := time.Now()

	c.mu.Lock()
	c.snapshot = fresh
	c.lastErr = nil
	c.stats.Cycles++
	c.stats.LastAttempt = now
	c.stats.LastSuccess = now
	c.stats.LastDuration = now.Sub(start)
	c.stats.UpdateSuccess = true
	c.mu.Unlock()
}

func (c *Coordinator) recordFailure(err error, start time.Time) {
	now := time.Now()

	c.mu.Lock()
	c.lastErr = err
	c.stats.Cycles++
	c.stats.Failures++
	c.stats.LastAttempt = now
	c.stats.LastDuration = now.Sub(start)
	c.stats.UpdateSuccess = false
	c.mu.Unlock()
}

// notify delivers an event to every listener. The listener slice is
// copied under the read lock so callbacks run without holding it.
func (c *Coordinator) notify(event Event) {
	c.mu.RLock()
	listeners := make([]Listener, len(c.listeners))
	copy(listeners, c.listeners)
	c.mu.RUnlock()

	for _, fn := range listeners {
		fn(event)
	}
}

func copyDocument(doc eheim.Document) eheim.Document {
	out := make(eheim.Document, len(doc))
	for k, v := range doc {
		out[k] = v
	}
	return out
}
