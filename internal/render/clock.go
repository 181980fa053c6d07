package render

import "time"

// FrameClock paces the render loop; one tick is one frame.
type FrameClock interface {
	C() <-chan time.Time
	Stop()
}

type tickerClock struct {
	t *time.Ticker
}

// NewTickerClock ticks fps times per second.
func NewTickerClock(fps int) FrameClock {
	if fps <= 0 {
		fps = 60
	}
	return &tickerClock{t: time.NewTicker(time.Second / time.Duration(fps))}
}

func (c *tickerClock) C() <-chan time.Time { return c.t.C }

func (c *tickerClock) Stop() { c.t.Stop() }
