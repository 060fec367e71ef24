// Package notify tells the operator about things that need a human: an empty tank,
// a skipped watering, a failed pump.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/saturnblock/pythonplantpot/internal/log"
	"github.com/saturnblock/pythonplantpot/internal/plantpot/config"
)

// Kind groups notices for throttling
type Kind string

// Notice kinds
const (
	KindSkipped     Kind = "skipped"
	KindRefill      Kind = "refill"
	KindPumpFailure Kind = "pump_failure"
	KindRepot       Kind = "repot"
)

// Notice is one message to the operator
type Notice struct {
	Kind    Kind              `json:"kind"`
	Title   string            `json:"title"`
	Message string            `json:"message"`
	Time    time.Time         `json:"time"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// Notifier delivers notices to one destination
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notice) error
}

// Dispatcher fans a notice out to every configured destination. Notices of the same
// kind are throttled to one per minInterval; failed deliveries are retried with backoff.
type Dispatcher struct {
	notifiers   []Notifier
	minInterval time.Duration
	retryDelay  time.Duration
	maxElapsed  time.Duration
	now         func() time.Time

	mu   sync.Mutex
	last map[Kind]time.Time
}

// NewDispatcher wraps the given notifiers
func NewDispatcher(minInterval time.Duration, notifiers ...Notifier) *Dispatcher {
	return &Dispatcher{
		notifiers:   notifiers,
		minInterval: minInterval,
		retryDelay:  500 * time.Millisecond,
		maxElapsed:  time.Minute,
		now:         time.Now,
		last:        make(map[Kind]time.Time),
	}
}

// FromConfig builds the destinations present in cfg. Destinations that fail to
// initialise are logged and left out.
func FromConfig(cfg config.NotifyConfig) *Dispatcher {
	var notifiers []Notifier
	if cfg.DiscordWebhookURL != "" {
		d, err := NewDiscord(cfg.DiscordWebhookURL)
		if err != nil {
			log.Error("Discord notifications disabled: %v", err)
		} else {
			notifiers = append(notifiers, d)
		}
	}
	if cfg.Webhook.URL != "" {
		notifiers = append(notifiers, NewWebhook(cfg.Webhook.URL, cfg.Webhook.Token))
	}
	if cfg.Email.Host != "" && len(cfg.Email.To) > 0 {
		notifiers = append(notifiers, NewEmail(cfg.Email))
	}
	return NewDispatcher(time.Duration(cfg.MinIntervalSeconds)*time.Second, notifiers...)
}

// Name identifies the dispatcher as a Notifier
func (d *Dispatcher) Name() string { return "dispatcher" }

// Enabled reports whether any destination is configured
func (d *Dispatcher) Enabled() bool {
	return d != nil && len(d.notifiers) > 0
}

// allow records a send of kind unless one happened within minInterval
func (d *Dispatcher) allow(kind Kind, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.last[kind]; ok && d.minInterval > 0 && now.Sub(last) < d.minInterval {
		return false
	}
	d.last[kind] = now
	return true
}

// Notify delivers n to every destination. Throttled notices return nil without sending.
func (d *Dispatcher) Notify(ctx context.Context, n Notice) error {
	if !d.Enabled() {
		return nil
	}
	if n.Time.IsZero() {
		n.Time = d.now()
	}
	if !d.allow(n.Kind, n.Time) {
		log.Debug("notice %q throttled", n.Kind)
		return nil
	}

	var errs []error
	for _, notifier := range d.notifiers {
		if err := d.deliver(ctx, notifier, n); err != nil {
			log.Error("Failed to send %s notice via %s: %v", n.Kind, notifier.Name(), err)
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

func (d *Dispatcher) deliver(ctx context.Context, notifier Notifier, n Notice) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = d.retryDelay
	bo.MaxElapsedTime = d.maxElapsed

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := notifier.Notify(ctx, n)
		if err != nil {
			log.DebugH2("%s attempt %d failed: %v", notifier.Name(), attempt, err)
		}
		return err
	}, backoff.WithContext(bo, ctx))
}
