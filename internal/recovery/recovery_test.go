package recovery

import (
	"testing"
	"time"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/log2"
)

// fakeClock advances only when the sampler sleeps, so tests cover the
// full 3 second window instantly.
type fakeClock struct {
	t time.Time
}

func (fc *fakeClock) now() time.Time { return fc.t }

func (fc *fakeClock) sleep(d time.Duration) { fc.t = fc.t.Add(d) }

func (fc *fakeClock) since(start time.Time) time.Duration { return fc.t.Sub(start) }

func testSampler(t *testing.T, fc *fakeClock, pressed func(time.Duration) bool) *Sampler {
	start := fc.t
	return &Sampler{
		Log: log2.NewTest(t, log2.LDebug),
		Line: &MockKey{PressedFunc: func() (bool, error) {
			return pressed(fc.since(start)), nil
		}},
		Now:   fc.now,
		Sleep: fc.sleep,
	}
}

func TestHeldFullDurationRecovers(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	s := testSampler(t, fc, func(time.Duration) bool { return true })
	start := fc.t
	require.Equal(t, Recover, s.Run())
	elapsed := fc.since(start)
	assert.True(t, elapsed >= DefaultHold, "elapsed=%v", elapsed)
	assert.True(t, elapsed < DefaultWindow, "decision before window end, elapsed=%v", elapsed)
}

func TestHeldHalfProceeds(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	s := testSampler(t, fc, func(el time.Duration) bool { return el < DefaultHold/2 })
	assert.Equal(t, Proceed, s.Run())
}

func TestNeverPressedProceeds(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	s := testSampler(t, fc, func(time.Duration) bool { return false })
	start := fc.t
	assert.Equal(t, Proceed, s.Run())
	assert.True(t, fc.since(start) >= DefaultWindow)
}

func TestBounceIsDebounced(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	n := 0
	s := testSampler(t, fc, func(time.Duration) bool {
		n++
		return n%2 == 0 // alternates every sample, never settles
	})
	assert.Equal(t, Proceed, s.Run())
}

func TestLatePressCannotComplete(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	// Pressed from 2.5s on: only 0.5s of window left, hold needs 2s.
	s := testSampler(t, fc, func(el time.Duration) bool {
		return el >= 2500*time.Millisecond
	})
	assert.Equal(t, Proceed, s.Run())
}

func TestSampleErrorCountsAsReleased(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	s := &Sampler{
		Log: log2.NewTest(t, log2.LError),
		Line: &MockKey{PressedFunc: func() (bool, error) {
			return true, errors.New("line fault")
		}},
		Now:   fc.now,
		Sleep: fc.sleep,
	}
	assert.Equal(t, Proceed, s.Run(), "a broken line must never wipe the device")
}

func TestNilLineProceeds(t *testing.T) {
	t.Parallel()

	fc := &fakeClock{t: time.Unix(1000, 0)}
	s := &Sampler{Now: fc.now, Sleep: fc.sleep}
	assert.Equal(t, Proceed, s.Run())
}

func TestPerform(t *testing.T) {
	t.Parallel()

	dev := flash.NewMockDevice(1 << 20)
	dev.Record = flash.BootRecord{Target: flash.SlotB, Valid: true}
	require.NoError(t, Perform(dev, log2.NewTest(t, log2.LDebug)))
	_, valid := dev.BootTarget()
	assert.False(t, valid, "erased record falls through to factory")
}
