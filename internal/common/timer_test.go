package common

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTimer_StopAndLaps(t *testing.T) {
	clk := &fakeClock{t: time.Unix(1000, 0)}
	timer := newTimer("scan", clk.now)
	assert.Equal(t, "scan", timer.Name())

	clk.advance(20 * time.Millisecond)
	assert.Equal(t, 20*time.Millisecond, timer.Lap("load"))

	clk.advance(30 * time.Millisecond)
	assert.Equal(t, 30*time.Millisecond, timer.Lap("search"))

	total := timer.Stop()
	assert.Equal(t, 50*time.Millisecond, total)
	assert.Equal(t, total, timer.Duration())

	laps := timer.Laps()
	assert.Equal(t, []Lap{{"load", 20 * time.Millisecond}, {"search", 30 * time.Millisecond}}, laps)
	assert.Equal(t, "scan: 50ms (load=20ms, search=30ms)", timer.String())
}

func TestTimer_RealClock(t *testing.T) {
	timer := NewNamedTimer("")
	time.Sleep(5 * time.Millisecond)
	d := timer.Stop()
	assert.GreaterOrEqual(t, d, 5*time.Millisecond)
	assert.NotContains(t, timer.String(), ":")
}
