// package schedule decides whether a point in time falls inside the cache
// maintenance window that follows a scheduled ETL run.
//
// Provider response caches are only cleared inside this window: right after a
// scheduled run fires, stale responses must be refreshed exactly once; outside
// it, caches are preserved even when stale so ad hoc clears cannot exhaust
// rate-limited upstream quotas.
package schedule

import (
	"fmt"
	"time"

	"github.com/crosschart/crosschart/internal/shared"
	"github.com/robfig/cron/v3"
)

// lookbacks bound the search for the most recent fire time. Standard 5-field
// cron expressions fire at least once every 366 days.
var lookbacks = []time.Duration{
	25 * time.Hour,
	8 * 24 * time.Hour,
	32 * 24 * time.Hour,
	367 * 24 * time.Hour,
}

// IsWithinWindow reports whether now falls within [prevFire, prevFire+window],
// where prevFire is the most recent fire time of cronExpr at or before now.
// Returns false when the expression has never fired within the past year.
func IsWithinWindow(cronExpr string, windowMinutes int, now time.Time) (bool, error) {
	sched, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return false, fmt.Errorf("%w: cron expression %q: %v", shared.ErrInvalidConfig, cronExpr, err)
	}

	prev, ok := prevFire(sched, now)
	if !ok {
		return false, nil
	}

	window := time.Duration(windowMinutes) * time.Minute
	return !now.After(prev.Add(window)), nil
}

// prevFire finds the most recent scheduled fire time at or before now.
//
// The cron library only computes forward, so the search starts behind now and
// steps Next until it passes now, widening the start point when a lookback
// contains no fire at all.
func prevFire(sched cron.Schedule, now time.Time) (time.Time, bool) {
	for _, lookback := range lookbacks {
		fire := sched.Next(now.Add(-lookback))
		if fire.After(now) {
			continue
		}
		for {
			next := sched.Next(fire)
			if next.After(now) {
				return fire, true
			}
			fire = next
		}
	}
	return time.Time{}, false
}

// Guard binds a configured schedule to the window check, for cache-clearing
// call sites.
type Guard struct {
	Cron          string
	WindowMinutes int
}

// Open reports whether the maintenance window is open at now.
func (g Guard) Open(now time.Time) (bool, error) {
	return IsWithinWindow(g.Cron, g.WindowMinutes, now)
}
