package contracts

import "github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"

type EventRecorder interface {
	Record(event.Event) error
}

type EventPublisher interface {
	Publish(event.Event) error
}

type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Notice struct {
	Level   Level
	Title   string
	Message string
}

type Prompt struct {
	Title   string
	Message string
	Accept  string
	Decline string
}

// Dialogs is the operator feedback surface. Neither method blocks: Confirm
// hands back a channel that receives the answer once and is then closed.
type Dialogs interface {
	Notify(Notice)
	Confirm(Prompt) <-chan bool
}
