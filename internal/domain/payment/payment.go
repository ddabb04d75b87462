package payment

import "time"

type State string

const (
	StateIdle        State = "IDLE"
	StatePolling     State = "POLLING"
	StateTimeout     State = "TIMEOUT"
	StateAwaitingAck State = "AWAITING_ACK"
	StateClosed      State = "CLOSED"
)

func (s State) IsTerminal() bool {
	return s == StateTimeout || s == StateClosed
}

func (s State) String() string {
	return string(s)
}

const (
	DefaultMaxAttempts  = 60
	DefaultPollInterval = 3 * time.Second
)

// Session is one in-flight confirmation attempt tied to a single sale.
// Generation changes on every start, retry and stop so callbacks issued
// for an older generation can recognise themselves as stale.
type Session struct {
	TransactionRef string
	Attempts       int
	MaxAttempts    int
	Active         bool
	State          State
	Generation     uint64
	StartedAt      time.Time
	Received       *Completed
	Confirming     bool
}

// RemainingAttempts never goes below zero.
func (s Session) RemainingAttempts() int {
	return max(0, s.MaxAttempts-s.Attempts)
}
