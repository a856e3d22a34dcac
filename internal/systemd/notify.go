// Package systemd integrates the daemon lifecycle with systemd.
package systemd

import (
	"log/slog"

	"github.com/coreos/go-systemd/v22/daemon"
)

// NotifyReady tells systemd the service finished starting up. Outside a
// systemd unit (no NOTIFY_SOCKET) this is a silent no-op.
func NotifyReady(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		logger.Warn("Failed to notify systemd", "error", err)
		return
	}
	if sent {
		logger.Debug("Notified systemd: ready")
	}
}

// NotifyStopping tells systemd the service began shutting down.
func NotifyStopping(logger *slog.Logger) {
	sent, err := daemon.SdNotify(false, daemon.SdNotifyStopping)
	if err != nil {
		logger.Warn("Failed to notify systemd", "error", err)
		return
	}
	if sent {
		logger.Debug("Notified systemd: stopping")
	}
}
