package scanner

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/contracts"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/event"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/domain/storage"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/logging"
	"github.com/rcarvalho-pb/pos_terminal-go/internal/infra/metrics"
)

var scannerKey = regexp.MustCompile(`^[a-zA-Z0-9\-_.]$`)

type Config struct {
	Prefix     string `json:"prefix"`
	Suffix     string `json:"suffix"`
	MinLength  int    `json:"minLength"`
	TimeoutMS  int    `json:"timeout"`
	Terminator string `json:"terminator"`
}

func DefaultConfig() Config {
	return Config{
		MinLength:  6,
		TimeoutMS:  100,
		Terminator: "Enter",
	}
}

// normalize clamps MinLength to at least 1 and replaces a non-positive
// timeout with the default.
func (c *Config) normalize() {
	if c.MinLength < 1 {
		c.MinLength = 1
	}
	if c.TimeoutMS <= 0 {
		c.TimeoutMS = DefaultConfig().TimeoutMS
	}
}

func (c Config) timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// Focus describes the element holding keyboard focus when a key arrives.
type Focus struct {
	ID             string
	Editable       bool
	ScannerEnabled bool
}

type KeyEvent struct {
	Key   string
	Ctrl  bool
	Alt   bool
	Meta  bool
	Focus Focus
}

type Callback func(code string)

// Accumulator turns bursts of keystrokes from a keyboard-wedge scanner
// into whole barcodes. A burst ends on the terminator key or after the
// configured inactivity timeout.
type Accumulator struct {
	Store     storage.Store
	Scheduler worker.Scheduler
	EventBus  contracts.EventPublisher
	Logger    logging.Logger
	Metrics   *metrics.Counters

	// Default receives codes scanned while no registered field has focus.
	Default Callback

	mu        sync.Mutex
	cfg       Config
	loaded    bool
	buffer    strings.Builder
	focus     Focus
	gen       uint64
	timer     worker.Task
	callbacks map[string]Callback
}

// Load merges the persisted config over the defaults. A missing entry is
// not an error.
func (a *Accumulator) Load() error {
	cfg := DefaultConfig()

	if a.Store != nil {
		raw, err := a.Store.Get(storage.KeyScannerConfig)
		switch {
		case errors.Is(err, storage.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := json.Unmarshal(raw, &cfg); err != nil {
				return err
			}
		}
	}
	cfg.normalize()

	a.mu.Lock()
	a.cfg = cfg
	a.loaded = true
	a.mu.Unlock()
	return nil
}

func (a *Accumulator) Config() Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.configLocked()
}

// UpdateConfig applies fn to the current config and persists the result.
func (a *Accumulator) UpdateConfig(fn func(*Config)) (Config, error) {
	a.mu.Lock()
	cfg := a.configLocked()
	fn(&cfg)
	cfg.normalize()
	a.cfg = cfg
	a.loaded = true
	a.mu.Unlock()

	if a.Store == nil {
		return cfg, nil
	}
	raw, err := json.Marshal(cfg)
	if err != nil {
		return cfg, err
	}
	return cfg, a.Store.Set(storage.KeyScannerConfig, raw)
}

// Register routes codes scanned while focusID has focus to cb. The field
// is treated as scanner-enabled even if it is editable.
func (a *Accumulator) Register(focusID string, cb Callback) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.callbacks == nil {
		a.callbacks = make(map[string]Callback)
	}
	a.callbacks[focusID] = cb
}

func (a *Accumulator) Unregister(focusID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.callbacks, focusID)
}

// HandleKey reports whether the key was consumed by the scanner.
func (a *Accumulator) HandleKey(k KeyEvent) bool {
	a.mu.Lock()
	cfg := a.configLocked()
	_, registered := a.callbacks[k.Focus.ID]
	if k.Focus.Editable && !k.Focus.ScannerEnabled && !registered {
		a.mu.Unlock()
		return false
	}
	if k.Ctrl || k.Alt || k.Meta {
		a.mu.Unlock()
		return false
	}

	if cfg.Terminator != "" && k.Key == cfg.Terminator {
		if a.buffer.Len() == 0 {
			a.mu.Unlock()
			return false
		}
		a.mu.Unlock()
		a.Flush()
		return true
	}

	if !scannerKey.MatchString(k.Key) {
		a.mu.Unlock()
		return false
	}

	a.buffer.WriteString(k.Key)
	a.focus = k.Focus
	a.gen++
	gen := a.gen
	if a.timer != nil {
		a.timer.Cancel()
	}
	a.timer = nil
	a.mu.Unlock()

	if a.Scheduler == nil {
		return true
	}
	timer := a.Scheduler.After(cfg.timeout(), func() { a.expire(gen) })

	a.mu.Lock()
	if a.gen == gen {
		a.timer = timer
		a.mu.Unlock()
		return true
	}
	a.mu.Unlock()
	timer.Cancel()
	return true
}

// Flush processes whatever is buffered now.
func (a *Accumulator) Flush() {
	a.mu.Lock()
	code, focus, cb, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.emit(code, focus, cb)
	}
}

func (a *Accumulator) expire(gen uint64) {
	a.mu.Lock()
	if a.gen != gen {
		a.mu.Unlock()
		return
	}
	code, focus, cb, ok := a.takeLocked()
	a.mu.Unlock()

	if ok {
		a.emit(code, focus, cb)
	}
}

// takeLocked empties the buffer and returns the cleaned code when it is
// long enough to be a scan.
func (a *Accumulator) takeLocked() (string, Focus, Callback, bool) {
	cfg := a.configLocked()
	raw := a.buffer.String()
	focus := a.focus

	a.buffer.Reset()
	a.focus = Focus{}
	a.gen++
	if a.timer != nil {
		a.timer.Cancel()
		a.timer = nil
	}

	if raw == "" || len(raw) < cfg.MinLength {
		return "", Focus{}, nil, false
	}

	code := raw
	if cfg.Prefix != "" {
		code = strings.TrimPrefix(code, cfg.Prefix)
	}
	if cfg.Suffix != "" {
		code = strings.TrimSuffix(code, cfg.Suffix)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return "", Focus{}, nil, false
	}

	cb := a.callbacks[focus.ID]
	if cb == nil {
		cb = a.Default
	}
	return code, focus, cb, true
}

func (a *Accumulator) emit(code string, focus Focus, cb Callback) {
	a.Metrics.IncBarcodesScanned()
	if a.Logger != nil {
		a.Logger.Info("barcode scanned", map[string]any{"code": code, "focus": focus.ID})
	}

	if a.EventBus != nil {
		if err := a.EventBus.Publish(event.Event{
			Type:    event.BarcodeScanned,
			Payload: event.BarcodeScannedPayload{Code: code, FocusID: focus.ID},
		}); err != nil && a.Logger != nil {
			a.Logger.Error("barcode handler failed", map[string]any{"code": code, "error": err.Error()})
		}
	}

	if cb != nil {
		cb(code)
	}
}

func (a *Accumulator) configLocked() Config {
	if !a.loaded {
		return DefaultConfig()
	}
	return a.cfg
}

// Feed types s as a scanner would, one key per rune, followed by the
// terminator. It is how the terminal REPL injects scans.
func (a *Accumulator) Feed(ctx context.Context, s string, focus Focus) {
	for _, r := range s {
		if ctx.Err() != nil {
			return
		}
		a.HandleKey(KeyEvent{Key: string(r), Focus: focus})
	}
	a.HandleKey(KeyEvent{Key: a.Config().Terminator, Focus: focus})
}
