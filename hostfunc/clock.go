package hostfunc

import (
	"context"
	"time"

	"github.com/caffeineduck/quickjs/bridge"
)

// Clock exposes the host clock as a time_now global returning unix seconds
// with sub-second precision. Now is replaceable for tests.
type Clock struct {
	Now func() time.Time
}

func NewClock() *Clock {
	return &Clock{Now: time.Now}
}

func (c *Clock) Install(ctx context.Context, qjs *bridge.Context) error {
	return qjs.RegisterFunc(ctx, "time_now", func() float64 {
		return float64(c.Now().UnixNano()) / 1e9
	})
}
