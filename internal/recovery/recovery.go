// Package recovery decides at power-on whether to bring up the menu or
// wipe back to factory. It runs before anything else touches the boot
// record, so a launcher wedged by bad persisted state can always be
// escaped by holding the recovery key through the boot window.
package recovery

import (
	"time"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/log2"
)

type Decision uint8

const (
	DecisionInvalid Decision = iota
	Proceed
	Recover
)

func (d Decision) String() string {
	switch d {
	case Proceed:
		return "proceed"
	case Recover:
		return "recover"
	default:
		return "invalid"
	}
}

// KeyLine samples the current level of the recovery key.
type KeyLine interface {
	Pressed() (bool, error)
	Close() error
}

const (
	DefaultHold         = 2 * time.Second
	DefaultWindow       = 3 * time.Second
	DefaultSamplePeriod = 10 * time.Millisecond

	// debounceSamples consecutive equal readings before a level change
	// is believed. Contact bounce on these keys settles well under
	// 3 sample periods.
	debounceSamples = 3
)

// Sampler polls the key line through the boot window. Now and Sleep are
// injectable so tests run on a fake clock.
type Sampler struct {
	Log          *log2.Log
	Line         KeyLine
	Hold         time.Duration
	Window       time.Duration
	SamplePeriod time.Duration
	Now          func() time.Time
	Sleep        func(time.Duration)
}

// Run returns Recover iff the key was held continuously for Hold within
// Window, Proceed otherwise. A released key does not end the window
// early: a late press still gets its chance as long as Hold fits.
func (self *Sampler) Run() Decision {
	hold, window, period := self.Hold, self.Window, self.SamplePeriod
	if hold == 0 {
		hold = DefaultHold
	}
	if window == 0 {
		window = DefaultWindow
	}
	if period == 0 {
		period = DefaultSamplePeriod
	}
	now := self.Now
	if now == nil {
		now = time.Now
	}
	sleep := self.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	start := now()
	pressed := false // debounced level
	last := false    // last raw sample
	streak := 0
	var heldSince time.Time
	for {
		t := now()
		if t.Sub(start) >= window {
			self.Log.Debugf("recovery window over decision=proceed")
			return Proceed
		}

		raw := false
		if self.Line != nil {
			v, err := self.Line.Pressed()
			if err != nil {
				// A broken line must never wipe the device.
				self.Log.Errorf("recovery key sample err=%v", err)
				v = false
			}
			raw = v
		}
		if raw == last {
			streak++
		} else {
			streak = 1
			last = raw
		}
		if streak >= debounceSamples && raw != pressed {
			pressed = raw
			if pressed {
				heldSince = t
			}
			self.Log.Debugf("recovery key pressed=%t t=%v", pressed, t.Sub(start))
		}
		if pressed && t.Sub(heldSince) >= hold {
			self.Log.Infof("recovery key held %v decision=recover", t.Sub(heldSince))
			return Recover
		}
		sleep(period)
	}
}

// Perform executes the Recover decision: invalidate the boot-target
// record and wipe the settings store, then the caller restarts into the
// factory image.
func Perform(dev flash.Device, log *log2.Log) error {
	if err := dev.EraseBootTargetAndSettings(); err != nil {
		return errors.Annotate(err, "recovery")
	}
	log.Infof("recovery complete, boot record erased")
	return nil
}
