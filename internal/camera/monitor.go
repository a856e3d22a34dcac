package camera

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/pkg/linuxav/hotplug"
)

// ueventMonitor is the seam to the netlink monitor so tests can inject
// synthetic kernel events.
type ueventMonitor interface {
	AddSubsystemFilter(subsystem string)
	Run(ctx context.Context, events chan<- hotplug.Event) error
	Close() error
}

func openNetlinkMonitor() (ueventMonitor, error) {
	return hotplug.NewMonitor()
}

// DeviceMonitor watches kernel hotplug events for video devices. Every
// add or remove is published on the event bus; removal of the active
// capture device additionally fires the OnRemove callback.
type DeviceMonitor struct {
	devicePath string
	eventBus   *events.Bus
	logger     *slog.Logger

	openMonitor func() (ueventMonitor, error)
	onRemove    func()

	cancel context.CancelFunc
	done   chan struct{}
}

// NewDeviceMonitor creates a monitor for the given active device path.
func NewDeviceMonitor(devicePath string, eventBus *events.Bus, logger *slog.Logger) *DeviceMonitor {
	return &DeviceMonitor{
		devicePath:  devicePath,
		eventBus:    eventBus,
		logger:      logger,
		openMonitor: openNetlinkMonitor,
	}
}

// OnRemove sets the callback fired when the active device is unplugged.
// Must be called before Start.
func (m *DeviceMonitor) OnRemove(fn func()) {
	m.onRemove = fn
}

// Start opens the netlink socket and begins watching in the background.
func (m *DeviceMonitor) Start() error {
	monitor, err := m.openMonitor()
	if err != nil {
		return err
	}
	monitor.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})

	eventCh := make(chan hotplug.Event, 16)
	go func() {
		if err := monitor.Run(ctx, eventCh); err != nil && !errors.Is(err, context.Canceled) {
			m.logger.Error("hotplug monitor stopped", "error", err)
		}
	}()
	go func() {
		defer close(m.done)
		defer monitor.Close()
		m.consume(eventCh)
	}()

	m.logger.Info("watching for device hotplug events")
	return nil
}

func (m *DeviceMonitor) consume(eventCh <-chan hotplug.Event) {
	for ev := range eventCh {
		if ev.DevName == "" {
			continue
		}
		devPath := "/dev/" + ev.DevName

		if ev.Action != hotplug.ActionAdd && ev.Action != hotplug.ActionRemove {
			continue
		}

		m.logger.Info("video device changed", "device", devPath, "action", ev.Action)
		if m.eventBus != nil {
			m.eventBus.Publish(events.DeviceChangeEvent{
				DevicePath: devPath,
				Action:     ev.Action,
				Timestamp:  time.Now().UTC().Format(time.RFC3339),
			})
		}

		if ev.Action == hotplug.ActionRemove && devPath == m.devicePath && m.onRemove != nil {
			m.logger.Warn("active capture device removed", "device", devPath)
			m.onRemove()
		}
	}
}

// Stop shuts down the monitor and waits for the watch loop to exit.
func (m *DeviceMonitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.done
	m.cancel = nil
}
