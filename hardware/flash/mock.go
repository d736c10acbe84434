package flash

import (
	"sync"

	"github.com/juju/errors"
)

// MockDevice records every operation so tests can assert ordering
// (erase before write, commit last) and inject faults at each step.
type MockDevice struct {
	mu sync.Mutex

	SlotCapacity uint32
	Erases       []Slot
	Images       map[Slot][]byte
	Commits      []Slot
	Record       BootRecord

	EraseErr  error
	CommitErr error
	// WriteErrAfter fails WriteSequential once the slot holds at least
	// this many bytes. Negative disables.
	WriteErrAfter int
}

var _ Device = new(MockDevice)

func NewMockDevice(capacity uint32) *MockDevice {
	return &MockDevice{
		SlotCapacity:  capacity,
		Images:        make(map[Slot][]byte, 2),
		WriteErrAfter: -1,
	}
}

func (self *MockDevice) Capacity(slot Slot) (uint32, error) {
	if !slot.IsApp() {
		return 0, errSlotOutOfRange("capacity", slot)
	}
	return self.SlotCapacity, nil
}

func (self *MockDevice) Erase(slot Slot) error {
	if !slot.IsApp() {
		return errSlotOutOfRange("erase", slot)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.EraseErr != nil {
		return self.EraseErr
	}
	self.Erases = append(self.Erases, slot)
	self.Images[slot] = nil
	return nil
}

func (self *MockDevice) WriteSequential(slot Slot, b []byte) error {
	if !slot.IsApp() {
		return errSlotOutOfRange("write", slot)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	img := self.Images[slot]
	if self.WriteErrAfter >= 0 && len(img) >= self.WriteErrAfter {
		return errors.Errorf("mock flash write fault offset=%d", len(img))
	}
	if uint32(len(img)+len(b)) > self.SlotCapacity {
		return errors.Errorf("mock flash overflow slot=%s", slot)
	}
	self.Images[slot] = append(img, b...)
	return nil
}

func (self *MockDevice) BootTarget() (Slot, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.Record.Target, self.Record.Valid
}

func (self *MockDevice) SetBootTarget(slot Slot) error {
	if !slot.IsApp() && slot != SlotFactory {
		return errSlotOutOfRange("set boot target", slot)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	if self.CommitErr != nil {
		return self.CommitErr
	}
	self.Record = BootRecord{Target: slot, Valid: true}
	self.Commits = append(self.Commits, slot)
	return nil
}

func (self *MockDevice) EraseBootTargetAndSettings() error {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.Record = BootRecord{}
	return nil
}
