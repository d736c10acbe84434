package flash

import (
	"os"
	"path/filepath"

	"github.com/juju/errors"

	"github.com/m5lab/launcher/helpers"
	"github.com/m5lab/launcher/internal/state/persist"
	"github.com/m5lab/launcher/log2"
)

// FileDevice emulates the partition table with one image file per
// application slot, for embedded-Linux targets where the ROM reads the
// boot record from the same persist root. The factory image is the
// running launcher binary itself and is never written through here.
type FileDevice struct {
	log      *log2.Log
	dir      string
	capacity uint32
	record   BootRecord
	recordP  persist.Persist
	settings string // settings persist directory, erased wholesale
	cursor   map[Slot]bool
}

var _ Device = new(FileDevice)

type FileDeviceConfig struct {
	Dir          string // slot image directory
	PersistRoot  string // boot record storage
	SettingsRoot string // opaque settings store, erased by recovery
	SlotCapacity uint32
}

func NewFileDevice(cfg FileDeviceConfig, log *log2.Log) (*FileDevice, error) {
	if cfg.SlotCapacity == 0 {
		return nil, errors.Errorf("flash file device capacity=0")
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, errors.Annotate(err, "flash file device mkdir")
	}
	self := &FileDevice{
		log:      log,
		dir:      cfg.Dir,
		capacity: cfg.SlotCapacity,
		settings: cfg.SettingsRoot,
		cursor:   make(map[Slot]bool, 2),
	}
	if err := self.recordP.Init("boot-target", &self.record, cfg.PersistRoot, log); err != nil {
		return nil, errors.Trace(err)
	}
	if err := self.recordP.Load(); err != nil {
		// A corrupt record degrades to factory boot, same as erased.
		self.log.Errorf("flash boot record load err=%v", err)
		self.record = BootRecord{}
	}
	return self, nil
}

func (self *FileDevice) slotPath(slot Slot) string {
	return filepath.Join(self.dir, "slot-"+slot.String()+".img")
}

func (self *FileDevice) Capacity(slot Slot) (uint32, error) {
	if !slot.IsApp() {
		return 0, errSlotOutOfRange("capacity", slot)
	}
	return self.capacity, nil
}

func (self *FileDevice) Erase(slot Slot) error {
	if !slot.IsApp() {
		return errSlotOutOfRange("erase", slot)
	}
	if err := os.WriteFile(self.slotPath(slot), nil, 0644); err != nil {
		return errors.Annotatef(err, "flash erase slot=%s", slot)
	}
	self.cursor[slot] = true
	self.log.Debugf("flash erase slot=%s", slot)
	return nil
}

func (self *FileDevice) WriteSequential(slot Slot, b []byte) error {
	if !slot.IsApp() {
		return errSlotOutOfRange("write", slot)
	}
	if !self.cursor[slot] {
		return errors.Errorf("flash write slot=%s before erase", slot)
	}
	f, err := os.OpenFile(self.slotPath(slot), os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return errors.Annotatef(err, "flash write slot=%s", slot)
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return errors.Annotatef(err, "flash write slot=%s", slot)
	}
	if uint32(fi.Size())+uint32(len(b)) > self.capacity {
		return errors.Errorf("flash write slot=%s overflow offset=%d len=%d cap=%d",
			slot, fi.Size(), len(b), self.capacity)
	}
	if err = helpers.WriteAll(f, b); err != nil {
		return errors.Annotatef(err, "flash write slot=%s", slot)
	}
	return nil
}

func (self *FileDevice) BootTarget() (Slot, bool) {
	return self.record.Target, self.record.Valid
}

func (self *FileDevice) SetBootTarget(slot Slot) error {
	if !slot.IsApp() && slot != SlotFactory {
		return errSlotOutOfRange("set boot target", slot)
	}
	prev := self.record
	self.record = BootRecord{Target: slot, Valid: true}
	if err := self.recordP.Store(); err != nil {
		self.record = prev
		return errors.Annotatef(err, "flash set boot target slot=%s", slot)
	}
	self.cursor[slot] = false
	self.log.Infof("flash boot target=%s", slot)
	return nil
}

func (self *FileDevice) EraseBootTargetAndSettings() error {
	self.record = BootRecord{}
	if err := self.recordP.Store(); err != nil {
		return errors.Annotate(err, "flash erase boot target")
	}
	if self.settings != "" {
		if err := os.RemoveAll(self.settings); err != nil {
			return errors.Annotate(err, "flash erase settings")
		}
	}
	self.log.Infof("flash boot target and settings erased")
	return nil
}

// SlotBytes reads back a slot image, for tests and flash-cli.
func (self *FileDevice) SlotBytes(slot Slot) ([]byte, error) {
	if !slot.IsApp() {
		return nil, errSlotOutOfRange("read", slot)
	}
	b, err := os.ReadFile(self.slotPath(slot))
	if os.IsNotExist(err) {
		return nil, nil
	}
	return b, errors.Annotatef(err, "flash read slot=%s", slot)
}
