package timewheel

import (
	"context"
	"time"

	"github.com/songokas/hvents/internal/logger"
	"github.com/songokas/hvents/pkg/models"
)

// Fire is called once per due spec. The caller (the dispatch loop's time
// source) is expected to enqueue the resulting event and, for Repeat
// entries, reschedule.
type Fire func(spec Spec)

// Run blocks until ctx is cancelled, delivering due entries to fire. It
// never polls: with nothing scheduled it blocks on ctx.Done()/Wakeup()
// alone, and otherwise sleeps until the earliest pending fire time or
// wakes early when a new, possibly-earlier entry is scheduled.
func Run(ctx context.Context, w *Wheel, fire Fire) {
	for {
		var timer *time.Timer
		var timerC <-chan time.Time
		if next, ok := w.Peek(); ok {
			wait := time.Until(next)
			if wait < 0 {
				wait = 0
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-timerC:
		case <-w.Wakeup():
			if timer != nil {
				timer.Stop()
			}
		}

		for _, spec := range w.DueNow(time.Now()) {
			logger.L().Debug("time wheel fired", "identity", spec.Identity, "event_name", spec.EventName)
			fire(spec)
		}
	}
}

// RescheduleRepeat recomputes spec's next fire time from the spec string it
// was originally scheduled with, so "repeat: 8:00" fires tomorrow at 8:00
// and "repeat: in 4 seconds" fires 4s after each fire instant.
func RescheduleRepeat(spec Spec, from time.Time, loc *models.LocationConfig) (Spec, error) {
	next, err := ParseSpec(spec.Repeat, from, loc)
	if err != nil {
		return Spec{}, err
	}
	spec.FireAt = next
	return spec, nil
}
