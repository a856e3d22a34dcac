package camera

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/edgevision/perceptd/internal/events"
	"github.com/edgevision/perceptd/pkg/linuxav/hotplug"
)

type fakeUEventMonitor struct {
	events  []hotplug.Event
	filters []string
	closed  bool
}

func (f *fakeUEventMonitor) AddSubsystemFilter(subsystem string) {
	f.filters = append(f.filters, subsystem)
}

func (f *fakeUEventMonitor) Run(ctx context.Context, out chan<- hotplug.Event) error {
	defer close(out)
	for _, ev := range f.events {
		select {
		case out <- ev:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return ctx.Err()
}

func (f *fakeUEventMonitor) Close() error {
	f.closed = true
	return nil
}

func newTestMonitor(devicePath string, bus *events.Bus, fake *fakeUEventMonitor) *DeviceMonitor {
	m := NewDeviceMonitor(devicePath, bus, slog.New(slog.NewTextHandler(io.Discard, nil)))
	m.openMonitor = func() (ueventMonitor, error) { return fake, nil }
	return m
}

func TestDeviceMonitorPublishesChanges(t *testing.T) {
	bus := events.New()
	changeCh := make(chan any, 4)
	unsub := events.SubscribeToChannel[events.DeviceChangeEvent](bus, changeCh)
	defer unsub()

	fake := &fakeUEventMonitor{
		events: []hotplug.Event{
			{Action: hotplug.ActionAdd, Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video2"},
			{Action: "change", Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video2"},
		},
	}
	m := newTestMonitor("/dev/video0", bus, fake)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	select {
	case raw := <-changeCh:
		ev := raw.(events.DeviceChangeEvent)
		if ev.DevicePath != "/dev/video2" || ev.Action != "add" {
			t.Errorf("event = %+v, want add /dev/video2", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for device change event")
	}

	// The change action is filtered out, so no second event arrives.
	select {
	case raw := <-changeCh:
		t.Errorf("unexpected event %+v", raw)
	case <-time.After(100 * time.Millisecond):
	}

	if len(fake.filters) != 1 || fake.filters[0] != hotplug.SubsystemVideo4Linux {
		t.Errorf("filters = %v, want [video4linux]", fake.filters)
	}
}

func TestDeviceMonitorFiresOnRemove(t *testing.T) {
	bus := events.New()
	fake := &fakeUEventMonitor{
		events: []hotplug.Event{
			{Action: hotplug.ActionRemove, Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video1"},
			{Action: hotplug.ActionRemove, Subsystem: hotplug.SubsystemVideo4Linux, DevName: "video0"},
		},
	}
	m := newTestMonitor("/dev/video0", bus, fake)

	removed := make(chan struct{}, 2)
	m.OnRemove(func() { removed <- struct{}{} })

	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	defer m.Stop()

	select {
	case <-removed:
	case <-time.After(2 * time.Second):
		t.Fatal("OnRemove not called for active device removal")
	}

	// Only /dev/video0 matches the active device.
	select {
	case <-removed:
		t.Error("OnRemove called for a non-active device")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestDeviceMonitorStopClosesMonitor(t *testing.T) {
	fake := &fakeUEventMonitor{}
	m := newTestMonitor("/dev/video0", events.New(), fake)
	if err := m.Start(); err != nil {
		t.Fatal(err)
	}
	m.Stop()
	if !fake.closed {
		t.Error("underlying monitor not closed on Stop")
	}
	// Stop again is a no-op.
	m.Stop()
}
