package service

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// fakeClock advances only when the work under measurement says so.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestTimer_ReportsElapsed(t *testing.T) {
	var out bytes.Buffer
	timer := NewTimer(&out, testLogger(), nil, nil)
	clock := &fakeClock{now: time.Unix(0, 0)}
	timer.now = clock.Now

	calls := 0
	elapsed, err := timer.Measure(context.Background(), "block", func(context.Context) error {
		calls++
		clock.Advance(1500 * time.Millisecond)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1500*time.Millisecond, elapsed)
	assert.Equal(t, "Execution time: 1.500000 seconds\n", out.String())
}

func TestTimer_ReturnsWorkError(t *testing.T) {
	var out bytes.Buffer
	timer := NewTimer(&out, testLogger(), nil, nil)
	boom := errors.New("boom")

	_, err := timer.Measure(context.Background(), "block", func(context.Context) error { return boom })

	assert.ErrorIs(t, err, boom)
	assert.Contains(t, out.String(), "Execution time:")
}

func TestTimer_PanicPropagates(t *testing.T) {
	var out bytes.Buffer
	timer := NewTimer(&out, testLogger(), nil, nil)

	assert.PanicsWithValue(t, "boom", func() {
		_, _ = timer.Measure(context.Background(), "block", func(context.Context) error { panic("boom") })
	})
	assert.Empty(t, out.String())
}

func TestTimer_RealClockSubSecond(t *testing.T) {
	var out bytes.Buffer
	timer := NewTimer(&out, testLogger(), nil, nil)

	short, err := timer.Measure(context.Background(), "short", func(context.Context) error { return nil })
	require.NoError(t, err)
	long, err := timer.Measure(context.Background(), "long", func(context.Context) error {
		time.Sleep(20 * time.Millisecond)
		return nil
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, short, time.Duration(0))
	assert.GreaterOrEqual(t, long, 20*time.Millisecond)
	assert.Less(t, short, long)
}

func TestProperty_TimerLongerWorkReportsLonger(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(rt, "a"))
		extra := time.Duration(rapid.Int64Range(0, int64(time.Hour)).Draw(rt, "extra"))

		timer := NewTimer(&bytes.Buffer{}, testLogger(), nil, nil)
		clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
		timer.now = clock.Now

		measure := func(d time.Duration) time.Duration {
			elapsed, _ := timer.Measure(context.Background(), "block", func(context.Context) error {
				clock.Advance(d)
				return nil
			})
			return elapsed
		}

		shorter := measure(a)
		longer := measure(a + extra)
		if shorter < 0 || longer < shorter {
			rt.Fatalf("measure(%v) = %v, measure(%v) = %v", a, shorter, a+extra, longer)
		}
	})
}
