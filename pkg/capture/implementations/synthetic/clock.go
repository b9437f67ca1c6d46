package synthetic

import (
	"context"
	"time"

	"github.com/xaionaro-go/xsync"
)

// Clock is a manually advanced clock. A Device advances it by one buffer
// duration per read, which makes the simulated time independent from
// the wall clock.
type Clock struct {
	locker xsync.Mutex
	now    time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	ctx := xsync.WithNoLogging(context.Background(), true)
	return xsync.DoR1(ctx, &c.locker, func() time.Time {
		return c.now
	})
}

func (c *Clock) Advance(d time.Duration) {
	ctx := xsync.WithNoLogging(context.Background(), true)
	c.locker.Do(ctx, func() {
		c.now = c.now.Add(d)
	})
}
