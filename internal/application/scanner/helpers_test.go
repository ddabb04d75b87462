package scanner_test

import "github.com/rcarvalho-pb/pos_terminal-go/internal/application/worker"

func realScheduler() worker.Scheduler {
	return worker.TickerScheduler{}
}
