package usecase

import (
	"context"
	"fmt"
	"time"
)

const (
	defaultPollInterval = 1 * time.Second
	defaultPollCeiling  = 30 * time.Second
)

// pollFunc checks the indexing service once and reports the file's
// current state plus the service-reported error message, if any.
type pollFunc func(ctx context.Context) (status, lastError string, err error)

// poller is a bounded fixed-interval wait on an external status check:
// three terminal outcomes (completed, failed, cancelled) plus a timeout
// when the ceiling elapses first. The sleep function is injectable so
// tests can drive the loop without real time.
type poller struct {
	interval time.Duration
	ceiling  time.Duration
	sleep    func(time.Duration)
}

func newPoller(interval, ceiling time.Duration) poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if ceiling <= 0 {
		ceiling = defaultPollCeiling
	}
	return poller{interval: interval, ceiling: ceiling, sleep: time.Sleep}
}

// await polls until a terminal status or the ceiling. A nil return
// means indexing completed.
func (p poller) await(ctx context.Context, poll pollFunc) error {
	for elapsed := time.Duration(0); elapsed < p.ceiling; elapsed += p.interval {
		status, lastError, err := poll(ctx)
		if err != nil {
			return newError(ErrorUpstream, "indexing_status_check", err)
		}
		switch status {
		case "completed":
			return nil
		case "failed":
			return newError(ErrorUpstream, "indexing_failed", fmt.Errorf("file processing failed: %s", lastError))
		case "cancelled":
			return newError(ErrorUpstream, "indexing_cancelled", fmt.Errorf("file processing was cancelled"))
		}
		p.sleep(p.interval)
	}
	return newError(ErrorTimeout, "indexing_timeout",
		fmt.Errorf("file processing did not complete within %s", p.ceiling))
}
