package health

import (
	"context"
	"log/slog"

	"example.com/healthsync/internal/platform"
)

// Probe reports whether the device health platform can be used at all.
type Probe struct {
	checker platform.AvailabilityChecker
	logger  *slog.Logger
}

// NewProbe constructs a Probe.
func NewProbe(checker platform.AvailabilityChecker, logger *slog.Logger) *Probe {
	if logger == nil {
		logger = slog.Default()
	}
	return &Probe{checker: checker, logger: logger}
}

// Available never fails: any error from the platform means unavailable.
func (p *Probe) Available(ctx context.Context) bool {
	ok, err := p.checker.IsHealthServiceAvailable(ctx)
	if err != nil {
		p.logger.WarnContext(ctx, "availability probe failed", "error", err)
		return false
	}
	return ok
}
