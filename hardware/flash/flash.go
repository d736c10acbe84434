// Package flash is the capability interface over the boot partitions:
// the resident factory image, two alternate application slots, and the
// small persisted record telling the ROM which one to boot next.
package flash

import (
	"github.com/juju/errors"
)

//go:generate stringer -type=Slot -trimprefix=Slot
type Slot uint8

const (
	SlotInvalid Slot = iota
	SlotFactory
	SlotA
	SlotB
)

func (s Slot) String() string {
	switch s {
	case SlotFactory:
		return "factory"
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return "invalid"
	}
}

// Alternate returns the application slot to write next, ping-pong
// relative to s. Anything but a valid application slot maps to A so a
// factory-fresh device takes a defined path.
func (s Slot) Alternate() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) IsApp() bool { return s == SlotA || s == SlotB }

type Device interface {
	// Capacity of the slot in bytes; the hard cap for installs.
	Capacity(slot Slot) (uint32, error)

	// Erase wipes the slot and resets its sequential write cursor.
	Erase(slot Slot) error

	// WriteSequential appends b at the slot's write cursor. Valid only
	// after Erase.
	WriteSequential(slot Slot, b []byte) error

	// BootTarget reads the persisted record. valid=false means the ROM
	// falls through to the factory image.
	BootTarget() (slot Slot, valid bool)

	// SetBootTarget durably commits the record in one atomic step.
	SetBootTarget(slot Slot) error

	// EraseBootTargetAndSettings invalidates the record and wipes the
	// settings store wholesale. The safe-mode escape hatch.
	EraseBootTargetAndSettings() error
}

func errSlotOutOfRange(op string, slot Slot) error {
	return errors.NotValidf("flash %s slot=%d out of range", op, slot)
}

// IsOutOfRange reports a programming-invariant violation in slot
// addressing; callers treat it as fatal, not user-recoverable.
func IsOutOfRange(err error) bool { return errors.IsNotValid(errors.Cause(err)) }
