package ui

import (
	"time"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"

	"github.com/m5lab/launcher/hardware/flash"
	"github.com/m5lab/launcher/hardware/input"
	"github.com/m5lab/launcher/internal/catalog"
	"github.com/m5lab/launcher/internal/chainload"
	"github.com/m5lab/launcher/internal/render"
	"github.com/m5lab/launcher/internal/storage"
	"github.com/m5lab/launcher/internal/types"
	"github.com/m5lab/launcher/log2"
)

const (
	// DefaultTick is the redraw cadence of the main loop.
	DefaultTick = 16 * time.Millisecond

	// progressRedraw bounds how often the flashing screen re-renders
	// between whole-percent steps.
	progressRedraw = 150 * time.Millisecond
)

// UI runs the menu. Everything except the display transfer happens on
// the Loop goroutine: input handling, the state machine, catalog scans
// and the flash copy itself, so the boot record and the catalog need no
// locks.
type UI struct {
	Log      *log2.Log
	Alive    *alive.Alive
	Inputs   *input.Dispatch
	Install  *chainload.Installer
	Storage  storage.Access
	AppsDir  string
	Swap     *render.Swapchain
	Settings *Settings
	WebURL   string
	// Reboot hands control to the armed slot; on hardware this restarts
	// the device. Called on the Loop goroutine after the final frame.
	Reboot func(flash.Slot)
	Tick   time.Duration

	catalog *catalog.Catalog
	state   State
	dirty   bool
	events  chan Event
	boot    *atomic_clock.Clock
}

func (self *UI) Loop() {
	stopch := self.Alive.StopChan()
	self.events = make(chan Event, 16)
	self.boot = atomic_clock.Now()
	tick := self.Tick
	if tick == 0 {
		tick = DefaultTick
	}

	self.rescan()
	self.state = State{Kind: StateBrowsing, Selected: self.restoreSelected()}
	self.dirty = true

	if self.Inputs != nil {
		self.Inputs.SubscribeFunc("ui", self.onInput, stopch)
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case e := <-self.events:
			self.apply(e)

		case <-ticker.C:
			if self.dirty {
				self.redraw()
			}

		case <-stopch:
			return
		}
	}
}

// onInput runs on the dispatch goroutine; it never blocks there. Key
// releases are dropped here so the state machine only sees presses.
// Events arriving while a flash copy occupies the loop queue up in the
// buffer and fall on the Flashing state, which ignores them.
func (self *UI) onInput(e types.InputEvent) {
	if e.Up {
		return
	}
	select {
	case self.events <- Event{Kind: EventKey, Key: e.Key}:
	default:
		self.Log.Debugf("ui input dropped key=%d", e.Key)
	}
}

func (self *UI) apply(e Event) {
	prev := self.state
	// A confirming keypress carries the entry size so Flashing starts
	// with the real total, not zero.
	if e.Kind == EventKey && prev.Kind == StateConfirmLaunch && prev.Selected < self.catalog.Len() {
		e.Total = self.catalog.At(prev.Selected).SizeBytes
	}
	next, effect := Transition(prev, e, self.catalog.Len())
	if next != prev {
		self.Log.Debugf("ui %s -> %s", prev.Kind, next.Kind)
		self.state = next
		self.dirty = true
	}

	switch effect {
	case EffectRescan:
		self.rescan()
		self.apply(Event{Kind: EventRescan})
		self.dirty = true

	case EffectStartChainload:
		self.install(next.Selected)

	case EffectReboot:
		self.redraw()
		if self.Reboot != nil {
			self.Reboot(next.Target)
		}
	}
}

func (self *UI) rescan() {
	self.catalog = catalog.Scan(self.Storage, self.AppsDir, self.Log)
	self.dirty = true
}

// restoreSelected maps the persisted last-selected path back to an
// index in the fresh catalog, 0 when gone.
func (self *UI) restoreSelected() int {
	want := self.Settings.LastSelected()
	if want == "" {
		return 0
	}
	for i, e := range self.catalog.Entries() {
		if e.StoragePath == want {
			return i
		}
	}
	return 0
}

// install runs the chainloader synchronously on the loop goroutine.
// Progress frames are rendered from the copy callback, throttled to a
// whole percent or progressRedraw, whichever comes first.
func (self *UI) install(idx int) {
	if idx >= self.catalog.Len() {
		self.apply(Event{Kind: EventFlashFailed, Message: "File changed, rescan"})
		return
	}
	entry := self.catalog.At(idx)
	self.Settings.SetLastSelected(entry.StoragePath)

	// First frame: Flashing already holds {Written: 0, Total: size}.
	self.redraw()

	lastDraw := atomic_clock.Now()
	lastPct := uint64(0)
	slot, err := self.Install.Install(entry, func(written uint32) {
		pct := uint64(written) * 100 / uint64(entry.SizeBytes)
		if pct == lastPct && atomic_clock.Since(lastDraw) < progressRedraw {
			return
		}
		lastPct = pct
		lastDraw.SetNow()
		self.apply(Event{Kind: EventFlashProgress, Written: written, Total: entry.SizeBytes})
		self.redraw()
	})
	if err != nil {
		self.Log.Errorf("ui install path=%s err=%v", entry.StoragePath, errors.ErrorStack(err))
		msg := "Flash failed, try again"
		if ierr, ok := err.(*chainload.InstallError); ok {
			msg = ierr.Message()
		}
		self.apply(Event{Kind: EventFlashFailed, Message: msg})
		return
	}
	self.apply(Event{Kind: EventFlashComplete, Slot: slot})
}

func (self *UI) status() Status {
	st := Status{
		Uptime:    atomic_clock.Since(self.boot),
		StorageOK: !self.catalog.Unavailable,
		WebURL:    self.WebURL,
	}
	st.Armed, st.ArmedValid = self.Install.Flash.BootTarget()
	return st
}

func (self *UI) redraw() {
	Draw(self.Swap.Back(), self.state, self.catalog, self.status())
	if self.Swap.Present() {
		self.dirty = false
	}
	// A deferred present leaves dirty set; the next tick recomposes.
}
