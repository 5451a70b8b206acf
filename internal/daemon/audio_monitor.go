package daemon

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/pilebones/go-udev/netlink"

	"murmur/internal/logging"
)

// audioMonitor listens for udev netlink events on the sound subsystem so the
// daemon can log and surface capture-device hotplug without polling ALSA.
type audioMonitor struct {
	logger   *slog.Logger
	onChange func(device, action string)

	mu      sync.Mutex
	conn    *netlink.UEventConn
	quit    chan struct{}
	running bool
}

func newAudioMonitor(logger *slog.Logger, onChange func(device, action string)) *audioMonitor {
	return &audioMonitor{
		logger:   logging.WithComponent(logger, "audio-monitor"),
		onChange: onChange,
	}
}

// Start begins listening for udev netlink events. Failure to connect is not
// fatal; the daemon works without hotplug awareness.
func (m *audioMonitor) Start(ctx context.Context) error {
	if m == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil
	}

	conn := new(netlink.UEventConn)
	if err := conn.Connect(netlink.UdevEvent); err != nil {
		m.logger.Warn("failed to connect to netlink socket; audio device hotplug events unavailable",
			logging.Error(err),
			logging.String(logging.FieldEventType, "netlink_connect_failed"),
			logging.String(logging.FieldErrorHint, "ensure the daemon has permission to access netlink sockets"),
			logging.String(logging.FieldImpact, "capture device changes will not be reported"),
		)
		return nil
	}

	m.conn = conn
	m.quit = make(chan struct{})
	m.running = true

	quit := m.quit
	go m.monitorLoop(ctx, quit)

	m.logger.Info("audio device monitor started",
		logging.String(logging.FieldEventType, "audio_monitor_started"))
	return nil
}

// Stop shuts down the monitor.
func (m *audioMonitor) Stop() {
	if m == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		return
	}
	if m.quit != nil {
		close(m.quit)
		m.quit = nil
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.running = false

	m.logger.Info("audio device monitor stopped",
		logging.String(logging.FieldEventType, "audio_monitor_stopped"))
}

// Running reports whether the monitor is active.
func (m *audioMonitor) Running() bool {
	if m == nil {
		return false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *audioMonitor) monitorLoop(ctx context.Context, quit <-chan struct{}) {
	queue := make(chan netlink.UEvent)
	errs := make(chan error)

	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	monitorQuit := conn.Monitor(queue, errs, m.buildMatcher())

	for {
		select {
		case <-ctx.Done():
			close(monitorQuit)
			return
		case <-quit:
			close(monitorQuit)
			return
		case uevent := <-queue:
			m.handleEvent(uevent)
		case err := <-errs:
			m.logger.Warn("netlink monitor error",
				logging.Error(err),
				logging.String(logging.FieldEventType, "netlink_monitor_error"))
		}
	}
}

// buildMatcher selects sound-card add/remove events.
func (m *audioMonitor) buildMatcher() netlink.Matcher {
	action := "add|remove"
	rules := &netlink.RuleDefinitions{}
	rules.AddRule(netlink.RuleDefinition{
		Action: &action,
		Env: map[string]string{
			"SUBSYSTEM": "sound",
		},
	})
	return rules
}

func (m *audioMonitor) handleEvent(uevent netlink.UEvent) {
	device := m.extractDeviceName(uevent)
	if device == "" {
		return
	}
	action := string(uevent.Action)

	m.logger.Info("audio device event",
		logging.String("device", device),
		logging.String("action", action),
		logging.String(logging.FieldEventType, "audio_device_event"))

	if m.onChange != nil {
		m.onChange(device, action)
	}
}

func (m *audioMonitor) extractDeviceName(uevent netlink.UEvent) string {
	if devname := uevent.Env["DEVNAME"]; devname != "" {
		return devname
	}
	devpath := uevent.Env["DEVPATH"]
	if devpath == "" {
		return ""
	}
	parts := strings.Split(devpath, "/")
	return parts[len(parts)-1]
}
