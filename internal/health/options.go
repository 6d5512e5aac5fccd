package health

import (
	"log/slog"
	"time"
)

// DefaultConsentTimeout bounds how long an import waits for the user to answer
// the platform consent prompt.
const DefaultConsentTimeout = 2 * time.Minute

type options struct {
	logger         *slog.Logger
	consentTimeout time.Duration
	location       *time.Location
	now            func() time.Time
	observer       Observer
}

func defaultOptions() options {
	return options{
		logger:         slog.Default(),
		consentTimeout: DefaultConsentTimeout,
		location:       time.Local,
		now:            time.Now,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures optional behaviour for the pipeline components.
type Option func(*options)

// WithLogger overrides the logger for pipeline diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithConsentTimeout bounds the wait for a permission prompt. Non-positive values are ignored.
func WithConsentTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.consentTimeout = d
		}
	}
}

// WithLocation sets the time zone used for calendar-day rollups.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.location = loc
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver registers an observer for orchestrator state changes.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		o.observer = obs
	}
}
