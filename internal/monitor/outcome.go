package monitor

import (
	"errors"

	"github.com/uksgomel/uks_checker/internal/probe"
)

var (
	// ErrProbeInFlight is returned when a probe of the same kind is still running.
	ErrProbeInFlight = errors.New("probe already in flight")
	// ErrNoCandidate means the listing held nothing matching.
	ErrNoCandidate = errors.New("no matching candidate")
)

// Status is the result of one probe cycle.
type Status string

const (
	StatusUnchanged Status = "unchanged"
	StatusChanged   Status = "changed"
	StatusFirstSeen Status = "first_seen"
	StatusNotFound  Status = "not_found"
	StatusOversize  Status = "oversize"
	StatusFailed    Status = "failed"
)

// Outcome describes what a probe cycle saw and did.
type Outcome struct {
	Kind   probe.Kind `json:"kind"`
	Status Status     `json:"status"`
	Name   string     `json:"name,omitempty"`
	URL    string     `json:"url,omitempty"`
	Title  string     `json:"title,omitempty"`
	Hash   string     `json:"hash,omitempty"`
	Size   int64      `json:"size,omitempty"`
	Err    error      `json:"-"`
}

// Changed reports whether the cycle detected something new.
func (o Outcome) Changed() bool {
	return o.Status == StatusChanged || o.Status == StatusFirstSeen
}

// ErrorText is the error message, or "" when the cycle did not fail.
func (o Outcome) ErrorText() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

func changeStatus(previous *string) Status {
	if previous == nil {
		return StatusFirstSeen
	}
	return StatusChanged
}
