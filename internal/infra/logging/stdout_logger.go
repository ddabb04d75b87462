package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"sync"
	"time"
)

// StdoutLogger writes one JSON object per line. Out defaults to stdout.
type StdoutLogger struct {
	Out       io.Writer
	Component string

	mu sync.Mutex
}

func (l *StdoutLogger) log(level, msg string, fields map[string]any) {
	entry := map[string]any{
		"level": level,
		"msg":   msg,
		"time":  time.Now().UTC().Format(time.RFC3339),
	}
	if l.Component != "" {
		entry["component"] = l.Component
	}

	maps.Copy(entry, fields)

	b, _ := json.Marshal(entry)

	out := l.Out
	if out == nil {
		out = os.Stdout
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(out, string(b))
}

func (l *StdoutLogger) Info(msg string, fields map[string]any) {
	l.log("INFO", msg, fields)
}

func (l *StdoutLogger) Warn(msg string, fields map[string]any) {
	l.log("WARN", msg, fields)
}

func (l *StdoutLogger) Error(msg string, fields map[string]any) {
	l.log("ERROR", msg, fields)
}
