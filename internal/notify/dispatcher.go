package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"mgmonitor/internal/config"
)

// Notifier is one delivery channel.
type Notifier interface {
	Name() string
	Send(ctx context.Context, event DealEvent) error
}

// Publisher is the surface the scan pipeline sees. A nil error means the
// event was delivered or durably queued; the caller may mark the deal
// notified either way.
type Publisher interface {
	Publish(ctx context.Context, event DealEvent) error
}

// Frequency values for NotifyConfig.Frequency.
const (
	FrequencyImmediate = "immediate"
	FrequencyDigest    = "digest"
)

// Dispatcher fans events out to the configured channels. Immediate mode
// sends on Publish; digest mode and quiet hours queue events for the next
// flush. Safe for concurrent use.
type Dispatcher struct {
	cfg       config.NotifyConfig
	window    quietWindow
	notifiers []Notifier
	logger    *zap.Logger

	// now is swapped in tests.
	now func() time.Time

	mu      sync.Mutex
	pending []DealEvent
}

func NewDispatcher(cfg config.NotifyConfig, logger *zap.Logger) (*Dispatcher, error) {
	window, err := parseQuietWindow(cfg.QuietHours)
	if err != nil {
		return nil, err
	}
	d := &Dispatcher{
		cfg:    cfg,
		window: window,
		logger: logger,
		now:    time.Now,
	}
	if cfg.Desktop.Enabled {
		d.notifiers = append(d.notifiers, NewDesktopNotifier(cfg.Desktop))
	}
	if cfg.Email.Enabled {
		d.notifiers = append(d.notifiers, NewEmailNotifier(cfg.Email))
	}
	if cfg.Webhook.Enabled {
		d.notifiers = append(d.notifiers, NewWebhookNotifier(cfg.Webhook))
	}
	return d, nil
}

func (d *Dispatcher) Publish(ctx context.Context, event DealEvent) error {
	if len(d.notifiers) == 0 {
		return nil
	}
	if d.cfg.Frequency == FrequencyDigest || d.window.contains(d.now()) {
		d.enqueue(event)
		return nil
	}
	return d.sendAll(ctx, event)
}

func (d *Dispatcher) enqueue(event DealEvent) {
	d.mu.Lock()
	d.pending = append(d.pending, event)
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Debug("deal queued for later delivery", zap.String("event_id", event.ID))
	}
}

// Flush delivers all queued events. A no-op during quiet hours; events stay
// queued until the window ends.
func (d *Dispatcher) Flush(ctx context.Context) {
	if d.window.contains(d.now()) {
		return
	}
	d.mu.Lock()
	batch := d.pending
	d.pending = nil
	d.mu.Unlock()

	for _, event := range batch {
		if err := d.sendAll(ctx, event); err != nil && d.logger != nil {
			d.logger.Warn("queued deal delivery failed",
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
		}
	}
}

// Run flushes the queue on the digest interval until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	interval := d.cfg.DigestInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Flush(ctx)
		}
	}
}

// sendAll tries every channel and succeeds if at least one delivery lands.
func (d *Dispatcher) sendAll(ctx context.Context, event DealEvent) error {
	var lastErr error
	delivered := false
	for _, n := range d.notifiers {
		if err := n.Send(ctx, event); err != nil {
			lastErr = err
			if d.logger != nil {
				d.logger.Warn("notification channel failed",
					zap.String("channel", n.Name()),
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
			}
			continue
		}
		delivered = true
	}
	if !delivered && lastErr != nil {
		return lastErr
	}
	return nil
}
