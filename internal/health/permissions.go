package health

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"example.com/healthsync/internal/domain"
	"example.com/healthsync/internal/platform"
)

// ErrConsentTimeout is reported when the user never answers the consent prompt.
var ErrConsentTimeout = errors.New("permission request timed out")

// PermissionStatus is the grant state of one record type.
type PermissionStatus int

const (
	PermissionUnknown PermissionStatus = iota
	PermissionGranted
	PermissionDenied
)

func (s PermissionStatus) String() string {
	switch s {
	case PermissionGranted:
		return "granted"
	case PermissionDenied:
		return "denied"
	default:
		return "unknown"
	}
}

// PermissionState is a snapshot of grants for one import. It is built fresh
// for every run and never shared between runs.
type PermissionState struct {
	order    []domain.RecordType
	statuses map[domain.RecordType]PermissionStatus
}

// NewPermissionState builds a snapshot from explicit grants.
func NewPermissionState(grants ...domain.PermissionGrant) PermissionState {
	s := PermissionState{statuses: make(map[domain.RecordType]PermissionStatus, len(grants))}
	for _, g := range grants {
		if g.Granted {
			s.set(g.RecordType, PermissionGranted)
		} else {
			s.set(g.RecordType, PermissionDenied)
		}
	}
	return s
}

func (s *PermissionState) set(t domain.RecordType, status PermissionStatus) {
	if s.statuses == nil {
		s.statuses = make(map[domain.RecordType]PermissionStatus)
	}
	if _, seen := s.statuses[t]; !seen {
		s.order = append(s.order, t)
	}
	s.statuses[t] = status
}

func (s PermissionState) clone() PermissionState {
	out := PermissionState{
		order:    append([]domain.RecordType(nil), s.order...),
		statuses: make(map[domain.RecordType]PermissionStatus, len(s.statuses)),
	}
	for k, v := range s.statuses {
		out.statuses[k] = v
	}
	return out
}

// Status returns the recorded status for t.
func (s PermissionState) Status(t domain.RecordType) PermissionStatus {
	return s.statuses[t]
}

// HasPermission reports whether t was granted.
func (s PermissionState) HasPermission(t domain.RecordType) bool {
	return s.statuses[t] == PermissionGranted
}

// Pending lists the types not granted, in the order they were recorded.
func (s PermissionState) Pending() []domain.RecordType {
	var out []domain.RecordType
	for _, t := range s.order {
		if s.statuses[t] != PermissionGranted {
			out = append(out, t)
		}
	}
	return out
}

// Grants returns the snapshot as a list in recorded order.
func (s PermissionState) Grants() []domain.PermissionGrant {
	out := make([]domain.PermissionGrant, 0, len(s.order))
	for _, t := range s.order {
		out = append(out, domain.PermissionGrant{RecordType: t, Granted: s.statuses[t] == PermissionGranted})
	}
	return out
}

// Negotiator checks and requests read grants.
type Negotiator struct {
	client         platform.PermissionClient
	consentTimeout time.Duration
	logger         *slog.Logger
}

// NewNegotiator constructs a Negotiator. A non-positive timeout uses DefaultConsentTimeout.
func NewNegotiator(client platform.PermissionClient, consentTimeout time.Duration, logger *slog.Logger) *Negotiator {
	if consentTimeout <= 0 {
		consentTimeout = DefaultConsentTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Negotiator{client: client, consentTimeout: consentTimeout, logger: logger}
}

// Check queries current grants without prompting. On error every type is
// reported denied together with the error.
func (n *Negotiator) Check(ctx context.Context, types []domain.RecordType) (PermissionState, error) {
	state := PermissionState{}
	for _, t := range types {
		state.set(t, PermissionDenied)
	}
	if len(types) == 0 {
		return state, nil
	}
	resp, err := n.client.CheckPermissions(ctx, platform.ReadRequests(types))
	if err != nil {
		return state, err
	}
	applyGranted(&state, types, resp.Granted)
	return state, nil
}

// Request prompts for the given types and returns an updated copy of state.
// Types the user did not grant, or that were still pending when the consent
// timeout fired, are marked denied.
func (n *Negotiator) Request(ctx context.Context, state PermissionState, types []domain.RecordType) (PermissionState, error) {
	next := state.clone()
	for _, t := range types {
		next.set(t, PermissionDenied)
	}
	if len(types) == 0 {
		return next, nil
	}

	ctx, cancel := context.WithTimeout(ctx, n.consentTimeout)
	defer cancel()

	type answer struct {
		resp platform.PermissionResponse
		err  error
	}
	done := make(chan answer, 1)
	go func() {
		resp, err := n.client.RequestPermissions(ctx, platform.ReadRequests(types))
		done <- answer{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		err := ctx.Err()
		if errors.Is(err, context.DeadlineExceeded) {
			err = ErrConsentTimeout
		}
		n.logger.WarnContext(ctx, "permission request abandoned", "types", types, "error", err)
		return next, err
	case a := <-done:
		if a.err != nil {
			return next, a.err
		}
		applyGranted(&next, types, a.resp.Granted)
		return next, nil
	}
}

func applyGranted(state *PermissionState, asked, granted []domain.RecordType) {
	allowed := make(map[domain.RecordType]bool, len(asked))
	for _, t := range asked {
		allowed[t] = true
	}
	for _, t := range granted {
		if allowed[t] {
			state.set(t, PermissionGranted)
		}
	}
}
