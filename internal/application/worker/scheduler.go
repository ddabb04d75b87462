package worker

import (
	"sync"
	"time"
)

// Task is a handle on scheduled work. Cancel is idempotent.
type Task interface {
	Cancel()
}

type Scheduler interface {
	Every(interval time.Duration, fn func()) Task
	After(delay time.Duration, fn func()) Task
}

// TickerScheduler runs callbacks on their own goroutines.
type TickerScheduler struct{}

func (TickerScheduler) Every(interval time.Duration, fn func()) Task {
	t := &tickerTask{done: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-t.done:
				return
			case <-ticker.C:
				select {
				case <-t.done:
					return
				default:
				}
				fn()
			}
		}
	}()

	return t
}

func (TickerScheduler) After(delay time.Duration, fn func()) Task {
	return &timerTask{timer: time.AfterFunc(delay, fn)}
}

type tickerTask struct {
	once sync.Once
	done chan struct{}
}

func (t *tickerTask) Cancel() {
	t.once.Do(func() { close(t.done) })
}

type timerTask struct {
	timer *time.Timer
}

func (t *timerTask) Cancel() {
	t.timer.Stop()
}
