// Package app runs the periodic evaluate-and-alert loop
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mrcode/nightscout-engine/internal/badge"
	"github.com/mrcode/nightscout-engine/internal/engine"
	"github.com/mrcode/nightscout-engine/internal/logger"
	"github.com/mrcode/nightscout-engine/internal/notifications"
)

// StatusSource evaluates the current status
type StatusSource interface {
	Status(ctx context.Context) (*engine.Status, error)
	RefreshCache()
}

// Publisher receives every evaluation outcome
type Publisher interface {
	Publish(payload any)
	PublishError(err error)
}

// Options configures a Watcher
type Options struct {
	Interval   time.Duration
	BadgePath  string // empty disables badge output
	Publishers []Publisher
	Logger     *slog.Logger
}

// Watcher polls the engine and forwards every status to alerts and the badge
type Watcher struct {
	source        StatusSource
	notifyManager *notifications.Manager
	interval      time.Duration
	badgePath     string
	publishers    []Publisher
	log           *slog.Logger

	mu         sync.RWMutex
	lastStatus *engine.Status
	lastErr    error
}

// New creates a watcher. A nil manager disables alerts.
func New(source StatusSource, notifyManager *notifications.Manager, opts Options) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	return &Watcher{
		source:        source,
		notifyManager: notifyManager,
		interval:      opts.Interval,
		badgePath:     opts.BadgePath,
		publishers:    opts.Publishers,
		log:           opts.Logger.With("component", "watcher"),
	}
}

// Run polls until ctx is cancelled
func (w *Watcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Initial fetch
	w.Update(ctx)

	for {
		select {
		case <-ticker.C:
			w.source.RefreshCache()
			w.Update(ctx)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Update evaluates once and dispatches the result
func (w *Watcher) Update(ctx context.Context) {
	status, err := w.source.Status(ctx)

	w.mu.Lock()
	w.lastErr = err
	if err == nil {
		w.lastStatus = status
	}
	w.mu.Unlock()

	if err != nil {
		w.log.Warn("status evaluation failed", "error", err)
		for _, p := range w.publishers {
			p.PublishError(err)
		}
		return
	}

	w.log.Info("glucose update",
		"glucose", status.GlucoseDisplay,
		"band", status.Band,
		"direction", status.Direction.Value.String(),
		"cob", status.Cob.Cob,
		"bwp", status.BWP.BolusEstimate,
	)

	for _, p := range w.publishers {
		p.Publish(status)
	}

	if w.badgePath != "" {
		if err := w.writeBadge(status); err != nil {
			w.log.Error("badge write failed", "path", w.badgePath, "error", err)
		}
	}

	if w.notifyManager != nil {
		if _, err := w.notifyManager.CheckAndNotify(status); err != nil {
			w.log.Error("notification error", "error", err)
		}
	}
}

// LastStatus returns the most recent successful status and the last error
func (w *Watcher) LastStatus() (*engine.Status, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastStatus, w.lastErr
}

// writeBadge replaces the badge file atomically
func (w *Watcher) writeBadge(status *engine.Status) error {
	format := badge.FormatPNG
	if filepath.Ext(w.badgePath) == ".ico" {
		format = badge.FormatICO
	}
	data, err := badge.Render(status, format)
	if err != nil {
		return err
	}

	tmp := w.badgePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("writing badge: %w", err)
	}
	if err := os.Rename(tmp, w.badgePath); err != nil {
		return fmt.Errorf("replacing badge: %w", err)
	}
	return nil
}
