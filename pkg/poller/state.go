package poller

import (
	"fmt"
	"time"

	"election_board/pkg/election"
)

// Status is the lifecycle position of the latest poll result
type Status int

const (
	StatusLoading Status = iota
	StatusReady
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusReady:
		return "ready"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON payloads
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// State is what the display layer sees of the poller. Data is set only when
// Status is StatusReady and Err only when it is StatusFailed.
type State struct {
	Status    Status
	Data      *election.ElectionData
	Err       error
	Endpoint  string
	Seq       uint64
	UpdatedAt time.Time
}

// Loading reports whether no poll has completed yet
func (s State) Loading() bool { return s.Status == StatusLoading }

// Failed reports whether the latest applied poll failed
func (s State) Failed() bool { return s.Status == StatusFailed }

// ErrorMessage returns the error text, or "" when there is none
func (s State) ErrorMessage() string {
	if s.Err == nil {
		return ""
	}
	return s.Err.Error()
}
