// Package notifications turns engine status into desktop alerts
package notifications

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gen2brain/beeep"

	"github.com/mrcode/nightscout-engine/internal/bwp"
	"github.com/mrcode/nightscout-engine/internal/engine"
	"github.com/mrcode/nightscout-engine/internal/logger"
	"github.com/mrcode/nightscout-engine/internal/models"
	"github.com/mrcode/nightscout-engine/internal/units"
)

// Alert type constants
const (
	alertUrgentLow  = models.StatusUrgentLow
	alertLow        = models.StatusLow
	alertUrgentHigh = models.StatusUrgentHigh
	alertHigh       = models.StatusHigh
	alertBWPWarn    = "bwp_warn"
	alertBWPUrgent  = "bwp_urgent"
)

// SendFunc delivers one notification
type SendFunc func(title, message string) error

// Manager handles glucose alerts and notifications
type Manager struct {
	settings      *models.Settings
	lastAlertTime map[string]time.Time
	send          SendFunc
	now           func() time.Time
	log           *slog.Logger
	mu            sync.Mutex
}

// Option customises a Manager
type Option func(*Manager)

// WithSender replaces desktop delivery
func WithSender(send SendFunc) Option {
	return func(m *Manager) {
		m.send = send
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		m.now = now
	}
}

// WithLogger sets the logger
func WithLogger(log *slog.Logger) Option {
	return func(m *Manager) {
		m.log = log
	}
}

// NewManager creates a new notification manager
func NewManager(settings *models.Settings, opts ...Option) *Manager {
	m := &Manager{
		settings:      settings,
		lastAlertTime: make(map[string]time.Time),
		send:          desktopNotify,
		now:           time.Now,
		log:           logger.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("component", "notifications")
	return m
}

// UpdateSettings swaps in a new settings reference
func (m *Manager) UpdateSettings(settings *models.Settings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings = settings
}

// CheckAndNotify sends the alerts a status calls for and returns their types
func (m *Manager) CheckAndNotify(status *engine.Status) ([]string, error) {
	if status == nil {
		return nil, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// the caller may update the shared settings while we evaluate
	current := m.settings.Clone()

	var sent []string
	var errs []error
	for _, alertType := range shouldAlert(status, current) {
		if !m.due(alertType, current) {
			continue
		}

		title, message := m.formatNotification(status, alertType)
		if err := m.send(title, message); err != nil {
			errs = append(errs, fmt.Errorf("sending %s alert: %w", alertType, err))
			continue
		}

		m.lastAlertTime[alertType] = m.now()
		m.log.Info("alert sent", "type", alertType, "glucose", status.GlucoseDisplay)
		sent = append(sent, alertType)
	}

	return sent, errors.Join(errs...)
}

// due applies the repeat policy. The caller must hold m.mu.
func (m *Manager) due(alertType string, settings *models.Settings) bool {
	lastTime, ok := m.lastAlertTime[alertType]
	if !ok {
		return true
	}
	if settings.RepeatAlertMinutes <= 0 {
		// No repeat, only alert once per status change
		return false
	}
	repeatDuration := time.Duration(settings.RepeatAlertMinutes) * time.Minute
	return m.now().Sub(lastTime) >= repeatDuration
}

// shouldAlert lists the alerts a status warrants. Stale readings never alarm
// and a high already covered by insulin on board stays quiet.
func shouldAlert(status *engine.Status, settings *models.Settings) []string {
	if status.Stale {
		return nil
	}

	var alerts []string
	switch status.Band {
	case alertUrgentLow:
		if settings.EnableUrgentLowAlert {
			alerts = append(alerts, alertUrgentLow)
		}
	case alertLow:
		if settings.EnableLowAlert {
			alerts = append(alerts, alertLow)
		}
	case alertUrgentHigh:
		if settings.EnableUrgentHighAlert {
			alerts = append(alerts, alertUrgentHigh)
		}
	case alertHigh:
		if settings.EnableHighAlert && !status.HighSnoozed {
			alerts = append(alerts, alertHigh)
		}
	}

	if settings.EnableBWPAlert {
		switch status.BWPLevel {
		case bwp.LevelUrgent:
			alerts = append(alerts, alertBWPUrgent)
		case bwp.LevelWarn:
			alerts = append(alerts, alertBWPWarn)
		}
	}
	return alerts
}

// formatNotification creates the notification title and message
func (m *Manager) formatNotification(status *engine.Status, alertType string) (string, string) {
	var title, message string

	unitLabel := "mg/dL"
	if units.IsMmol(status.Units) {
		unitLabel = "mmol/L"
	}
	valueStr := fmt.Sprintf("%s %s", status.GlucoseDisplay, unitLabel)
	arrow := status.Direction.Label
	if arrow == "" {
		arrow = status.Computed.Glyph()
	}

	switch alertType {
	case alertUrgentLow:
		title = "⚠️ URGENT LOW GLUCOSE"
		message = fmt.Sprintf("Glucose is critically low: %s %s", valueStr, arrow)
	case alertLow:
		title = "⬇️ Low Glucose"
		message = fmt.Sprintf("Glucose is low: %s %s", valueStr, arrow)
	case alertUrgentHigh:
		title = "⚠️ URGENT HIGH GLUCOSE"
		message = fmt.Sprintf("Glucose is critically high: %s %s", valueStr, arrow)
	case alertHigh:
		title = "⬆️ High Glucose"
		message = fmt.Sprintf("Glucose is high: %s %s", valueStr, arrow)
	case alertBWPUrgent, alertBWPWarn:
		title = "💉 Check BG, time to bolus?"
		if alertType == alertBWPUrgent {
			title = "⚠️ " + title
		}
		message = fmt.Sprintf("%s at %s %s, IOB %sU", status.BWP.DisplayLine, valueStr, arrow, status.BWP.DisplayIOB)
	}

	return title, message
}

// desktopNotify sends a system notification
func desktopNotify(title, message string) error {
	return beeep.Notify(title, message, "")
}

// ClearAlertState clears the alert state for a specific type or all types
func (m *Manager) ClearAlertState(alertType string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if alertType == "" {
		m.lastAlertTime = make(map[string]time.Time)
	} else {
		delete(m.lastAlertTime, alertType)
	}
}

// SendTestNotification sends a test notification
func (m *Manager) SendTestNotification() error {
	return m.send("Nightscout Engine", "Test notification - alerts are working!")
}
