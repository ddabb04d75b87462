package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
)

type prompt struct {
	contracts.Prompt
	reply chan bool
}

// Dialogs prints notices and prompts to Out. Prompts queue up until the
// operator answers them through Answer, oldest first.
type Dialogs struct {
	Out io.Writer

	mu      sync.Mutex
	pending []prompt
}

func (d *Dialogs) Notify(n contracts.Notice) {
	d.mu.Lock()
	defer d.mu.Unlock()

	fmt.Fprintf(d.Out, "\n[%s] %s\n", strings.ToUpper(string(n.Level)), n.Title)
	if n.Message != "" {
		fmt.Fprintln(d.Out, indent(n.Message))
	}
}

func (d *Dialogs) Confirm(p contracts.Prompt) <-chan bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	reply := make(chan bool, 1)
	d.pending = append(d.pending, prompt{Prompt: p, reply: reply})

	fmt.Fprintf(d.Out, "\n[?] %s\n", p.Title)
	if p.Message != "" {
		fmt.Fprintln(d.Out, indent(p.Message))
	}
	fmt.Fprintf(d.Out, "  answer: %s (y) / %s (n)\n", label(p.Accept, "OK"), label(p.Decline, "Cancel"))
	return reply
}

// Waiting reports whether a prompt is waiting for an answer.
func (d *Dialogs) Waiting() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending) > 0
}

// Answer resolves the oldest prompt when line is a yes/no answer or one
// of the prompt's button labels. It reports whether line was consumed.
func (d *Dialogs) Answer(line string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if len(d.pending) == 0 {
		return false
	}
	p := d.pending[0]

	v, ok := parseAnswer(line, p.Prompt)
	if !ok {
		return false
	}

	d.pending = d.pending[1:]
	p.reply <- v
	close(p.reply)
	return true
}

// Close declines every open prompt.
func (d *Dialogs) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, p := range d.pending {
		p.reply <- false
		close(p.reply)
	}
	d.pending = nil
}

func parseAnswer(line string, p contracts.Prompt) (bool, bool) {
	a := strings.ToLower(strings.TrimSpace(line))
	switch {
	case a == "y" || a == "yes" || a == "ok" || (p.Accept != "" && a == strings.ToLower(p.Accept)):
		return true, true
	case a == "n" || a == "no" || a == "cancel" || (p.Decline != "" && a == strings.ToLower(p.Decline)):
		return false, true
	}
	return false, false
}

func label(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(s, "\n", "\n  ")
}
