package submission

import (
	"github.com/example/meibo-check/internal/prediction"
)

const (
	// InitialProgress is reported as soon as a submission is accepted.
	InitialProgress = 20
	// CompleteProgress is reported once a result has been accepted.
	CompleteProgress = 100
)

// Phase is the coarse lifecycle position of a submission attempt.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseInFlight
	PhaseSettled
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseInFlight:
		return "in_flight"
	case PhaseSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// MarshalText renders the phase by name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// FailureKind classifies why an attempt settled without a result.
type FailureKind string

const (
	FailureTransport         FailureKind = "transport_failure"
	FailureMalformedResponse FailureKind = "malformed_response"
)

// Failure records a failed attempt. Reason carries technical detail for
// diagnostics and must not be shown to end users.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Reason string      `json:"-"`
}

// State is a snapshot of one submission attempt. When Phase is PhaseSettled
// exactly one of Result and Failure is set.
type State struct {
	Phase        Phase              `json:"phase"`
	Progress     int                `json:"progress"`
	SubmissionID string             `json:"submission_id,omitempty"`
	Result       *prediction.Result `json:"result,omitempty"`
	Failure      *Failure           `json:"failure,omitempty"`
}

// InFlight reports whether a request is outstanding.
func (s State) InFlight() bool {
	return s.Phase == PhaseInFlight
}

// Succeeded reports whether the attempt settled with a result.
func (s State) Succeeded() bool {
	return s.Phase == PhaseSettled && s.Result != nil
}

// Failed reports whether the attempt settled with a failure.
func (s State) Failed() bool {
	return s.Phase == PhaseSettled && s.Failure != nil
}

func (s State) clone() State {
	out := s
	if s.Result != nil {
		r := *s.Result
		out.Result = &r
	}
	if s.Failure != nil {
		f := *s.Failure
		out.Failure = &f
	}
	return out
}

// Stats counts submissions seen by a controller since it was created.
type Stats struct {
	Accepted  int64 `json:"accepted"`
	Rejected  int64 `json:"rejected"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}
