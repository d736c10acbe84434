// Package render owns the double-buffered pipeline between menu
// composition and the display sink. Two frames alternate roles: the
// main loop composes into back, the transfer goroutine streams front to
// the panel. A swap is a plain index flip guarded by the in-flight
// flag, so no buffer is ever read and written in the same epoch.
package render

import (
	"image"
	"sync/atomic"

	"github.com/temoto/alive/v2"
	"github.com/temoto/atomic_clock"

	"github.com/m5lab/launcher/hardware/display"
	"github.com/m5lab/launcher/log2"
)

type Swapchain struct {
	log   *log2.Log
	sink  display.Sink
	alive *alive.Alive

	bufs   [2]*image.RGBA
	back   int
	busy   int32 // 1 while the transfer loop reads the other buffer
	sendCh chan int

	swapped  *atomic_clock.Clock
	deferred uint32
}

func NewSwapchain(sink display.Sink, log *log2.Log) *Swapchain {
	size := sink.Size()
	rect := image.Rectangle{Max: size}
	return &Swapchain{
		log:     log,
		sink:    sink,
		alive:   alive.NewAlive(),
		bufs:    [2]*image.RGBA{image.NewRGBA(rect), image.NewRGBA(rect)},
		sendCh:  make(chan int),
		swapped: atomic_clock.New(),
	}
}

// Start launches the display-transfer loop. Blocking waits for the
// panel happen there, never on the main loop.
func (self *Swapchain) Start() {
	if !self.alive.Add(1) {
		panic("code error swapchain started after stop")
	}
	go self.transferLoop()
}

func (self *Swapchain) Stop() {
	self.alive.Stop()
	self.alive.Wait()
}

// Back is the frame the main loop may compose into right now.
func (self *Swapchain) Back() *image.RGBA { return self.bufs[self.back] }

// Present hands the back buffer to the transfer loop and flips roles.
// If the previous front is still being transferred, the swap is
// deferred: Present returns false and ownership does not change, so the
// caller keeps composing into the same back buffer next tick.
func (self *Swapchain) Present() bool {
	if !atomic.CompareAndSwapInt32(&self.busy, 0, 1) {
		atomic.AddUint32(&self.deferred, 1)
		return false
	}
	sent := self.back
	self.back = 1 - self.back
	select {
	case self.sendCh <- sent:
	case <-self.alive.StopChan():
		atomic.StoreInt32(&self.busy, 0)
		return false
	}
	self.swapped.SetNow()
	return true
}

// LastPresent reports when the last successful swap happened, zero if
// none yet.
func (self *Swapchain) LastPresent() *atomic_clock.Clock { return self.swapped }

// Deferred counts swaps skipped because a transfer was in flight.
func (self *Swapchain) Deferred() uint32 { return atomic.LoadUint32(&self.deferred) }

func (self *Swapchain) transferLoop() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		select {
		case idx := <-self.sendCh:
			tbegin := atomic_clock.Now()
			err := self.sink.Transfer(self.bufs[idx])
			atomic.StoreInt32(&self.busy, 0)
			if err != nil {
				self.log.Errorf("display transfer err=%v", err)
			} else {
				self.log.Debugf("display transfer duration=%v", atomic_clock.Since(tbegin))
			}

		case <-stopch:
			return
		}
	}
}
