package controller

import "github.com/dharmasatrya/flightpoll/internal/models"

type State int

const (
	StateIdle State = iota
	StateCreatingSession
	StatePolling
	StateExhausted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCreatingSession:
		return "creating_session"
	case StatePolling:
		return "polling"
	case StateExhausted:
		return "exhausted"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is a consistent snapshot of the controller for display.
type Status struct {
	State     State
	Epoch     uint64
	SearchID  string
	Currency  string
	Converged bool
	FromCache bool
	Closed    bool
	Err       error
	// Count is the number of results held; Total is what the server reports
	// for the whole epoch.
	Count int
	Total int
}

type View struct {
	Status  Status
	Results models.ResultSet
	Filter  models.PollFilter
}
