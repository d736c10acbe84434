package flash

import "github.com/juju/errors"

// BootRecord is the persisted boot-target: one slot identifier plus a
// validity flag. Storage durability comes from the persist layer; this
// type only defines the byte layout.
type BootRecord struct {
	Target Slot
	Valid  bool
}

const bootRecordMagic = byte(0xb7)

var _ interface {
	MarshalBinary() ([]byte, error)
	UnmarshalBinary([]byte) error
} = new(BootRecord)

func (r *BootRecord) MarshalBinary() ([]byte, error) {
	b := make([]byte, 3)
	b[0] = bootRecordMagic
	b[1] = byte(r.Target)
	if r.Valid {
		b[2] = 1
	}
	return b, nil
}

func (r *BootRecord) UnmarshalBinary(b []byte) error {
	if len(b) != 3 || b[0] != bootRecordMagic {
		return errors.NotValidf("boot record bytes=%x", b)
	}
	slot := Slot(b[1])
	valid := b[2] == 1
	if valid && !slot.IsApp() && slot != SlotFactory {
		return errors.NotValidf("boot record slot=%d", b[1])
	}
	r.Target = slot
	r.Valid = valid
	return nil
}
